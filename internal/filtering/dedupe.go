package filtering

import (
	"context"

	"github.com/spigell/hh-pathfinder/internal/vacancy"
)

type dedupeFilter struct {
	toggle
}

// NewDedupe creates a filter that keeps the first record of every vacancy id.
func NewDedupe() Filter {
	return &dedupeFilter{}
}

func (f *dedupeFilter) Name() string { return "dedupe" }

func (f *dedupeFilter) Apply(_ context.Context, records []vacancy.Record) ([]vacancy.Record, Step, error) {
	seen := make(map[int64]struct{}, len(records))
	kept, step, _ := drop(records, func(rec vacancy.Record) bool {
		if _, ok := seen[rec.ID]; ok {
			return true
		}
		seen[rec.ID] = struct{}{}
		return false
	})
	return kept, step, nil
}

func (f *dedupeFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
