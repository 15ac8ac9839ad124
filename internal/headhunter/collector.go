package headhunter

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/utils"
	"github.com/spigell/hh-pathfinder/internal/vacancy"
)

// Collector gathers a vacancy snapshot from search queries.
type Collector struct {
	client *Client
	logger *zap.Logger

	// MinDelay and MaxDelay bound the pause between queries.
	MinDelay time.Duration
	MaxDelay time.Duration

	industries map[string]string
}

func NewCollector(client *Client, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		client:     client,
		logger:     logger,
		MinDelay:   time.Second,
		MaxDelay:   2 * time.Second,
		industries: make(map[string]string),
	}
}

// Collect runs a search for every query with the shared params and converts
// the results into snapshot rows. Vacancies found by several queries are kept
// once, in first seen order.
func (c *Collector) Collect(ctx context.Context, queries []string, params SearchParams) ([]vacancy.Record, error) {
	var records []vacancy.Record
	seen := make(map[string]struct{})

	for n, query := range queries {
		if n > 0 {
			if err := utils.WaitFor(ctx, utils.Jitter(c.MinDelay, c.MaxDelay)); err != nil {
				return nil, err
			}
		}

		p := params
		p.Text = query
		found, err := c.client.Search(&p)
		if err != nil {
			c.logger.Error("search failed, skipping query", zap.String("query", query), zap.Error(err))
			continue
		}

		c.logger.Info("collected search results", zap.String("query", query), zap.Int("count", found.Len()))

		for _, v := range found.Items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if _, dup := seen[v.ID]; dup {
				continue
			}
			seen[v.ID] = struct{}{}

			rec, err := v.Record(c.skills(v.ID), c.industry(v.Employer.ID))
			if err != nil {
				c.logger.Warn("skipping vacancy", zap.Error(err))
				continue
			}
			records = append(records, rec)
		}
	}

	c.logger.Info("snapshot collected", zap.Int("vacancies", len(records)), zap.Int("queries", len(queries)))
	return records, nil
}

func (c *Collector) skills(id string) []string {
	v, err := c.client.GetVacancy(id)
	if err != nil {
		c.logger.Warn("getting vacancy skills", zap.String("vacancy_id", id), zap.Error(err))
		return []string{}
	}
	return v.Skills()
}

// industry resolves the employer industry once per employer.
func (c *Collector) industry(employerID string) string {
	if employerID == "" {
		return unknownIndustry
	}
	if industry, ok := c.industries[employerID]; ok {
		return industry
	}

	industry := unknownIndustry
	e, err := c.client.GetEmployer(employerID)
	switch {
	case err == nil:
		industry = e.Industry()
	case errors.Is(err, ErrNotFound):
	default:
		c.logger.Warn("getting employer industry", zap.String("employer_id", employerID), zap.Error(err))
	}

	c.industries[employerID] = industry
	return industry
}
