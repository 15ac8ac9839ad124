package headhunter

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/utils"
)

const maxAttempts = 3

var (
	// ErrNotFound is returned when the API answers 404.
	ErrNotFound = errors.New("not found")
	// ErrThrottled is returned when hh.ru keeps answering 429 or 503.
	ErrThrottled = errors.New("throttled by hh.ru")
)

// page is one page of a paginated hh.ru listing.
type page struct {
	Items   []any `json:"items"`
	Found   int   `json:"found"`
	Pages   int   `json:"pages"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

// GetItems reads a paginated listing and returns undecoded items from at most
// maxPages pages. Zero maxPages reads every page.
func (c *Client) GetItems(endpoint string, q url.Values, maxPages int) ([]any, error) {
	if q == nil {
		q = url.Values{}
	}

	var items []any
	for n := 0; ; n++ {
		if n > 0 {
			q.Set("page", strconv.Itoa(n))
		}

		var p page
		if err := c.getJSON(endpoint, q, &p); err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		items = append(items, p.Items...)

		last := p.Pages - 1
		if maxPages > 0 && maxPages-1 < last {
			last = maxPages - 1
		}
		if p.Page >= last {
			c.logger.Debug("listing read", zap.Int("pages", p.Pages), zap.Int("items", len(items)))
			return items, nil
		}
	}
}

func (c *Client) getJSON(endpoint string, q url.Values, target any) error {
	body, err := c.get(endpoint, q)
	if err != nil {
		return err
	}
	defer body.Close()

	if target == nil {
		return nil
	}
	if err := json.NewDecoder(body).Decode(target); err != nil {
		return fmt.Errorf("decoding %s: %w", endpoint, err)
	}
	return nil
}

// get performs a GET and returns the decoded body of a 200 answer. Throttled
// answers are retried with a growing pause.
func (c *Client) get(endpoint string, q url.Values) (io.ReadCloser, error) {
	backoff := time.Second

	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		if len(q) > 0 {
			req.URL.RawQuery = q.Encode()
		}

		c.logger.Debug("make request", zap.String("url", req.URL.String()), zap.Int("attempt", attempt))
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return decodedBody(resp)
		case http.StatusNotFound:
			resp.Body.Close()
			return nil, ErrNotFound
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			resp.Body.Close()
			if attempt == maxAttempts {
				return nil, fmt.Errorf("%w: %s", ErrThrottled, resp.Status)
			}
			wait := retryAfter(resp.Header.Get("Retry-After"), backoff)
			c.logger.Warn("hh.ru throttles requests, waiting", zap.Duration("wait", wait), zap.Int("attempt", attempt))
			if err := utils.WaitFor(c.ctx, wait); err != nil {
				return nil, err
			}
			backoff *= 2
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("bad status: %s", resp.Status)
		}
	}
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
}

// retryAfter reads a Retry-After value in seconds.
func retryAfter(v string, fallback time.Duration) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

type gzipBody struct {
	*gzip.Reader
	raw io.Closer
}

func (b gzipBody) Close() error {
	b.Reader.Close()
	return b.raw.Close()
}

func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp.Body, nil
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return gzipBody{Reader: zr, raw: resp.Body}, nil
}
