package headhunter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://api.hh.ru"
	userAgent = "spigell/hh-pathfinder (spigelly@gmail.com)"
	// Max value for search per page.
	perPage = 100

	unknownIndustry = "Unknown"
)

type Client struct {
	// ctx used only for http requests right now
	ctx        context.Context
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

// New returns a client for the hh.ru API. The token is optional: public
// vacancy endpoints work without it, with a lower rate limit.
func New(ctx context.Context, logger *zap.Logger, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		ctx:    ctx,
		token:  token,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

func (c *Client) Search(params *SearchParams) (*Vacancies, error) {
	return c.search(params)
}

// GetVacancy returns the full vacancy, including key skills.
func (c *Client) GetVacancy(id string) (*Vacancy, error) {
	var v Vacancy
	if err := c.getJSON(fmt.Sprintf("%s%s/%s", c.APIURL, SearchPath, id), nil, &v); err != nil {
		return nil, fmt.Errorf("get vacancy %s: %w", id, err)
	}
	return &v, nil
}

// GetEmployer returns the employer card.
func (c *Client) GetEmployer(id string) (*Employer, error) {
	var e Employer
	if err := c.getJSON(fmt.Sprintf("%s%s/%s", c.APIURL, employersPath, id), nil, &e); err != nil {
		return nil, fmt.Errorf("get employer %s: %w", id, err)
	}
	return &e, nil
}
