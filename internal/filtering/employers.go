package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/normalize"
	"github.com/spigell/hh-pathfinder/internal/vacancy"
)

type employersFilter struct {
	toggle
	employers []string
	logger    *zap.Logger
}

// NewExcludedEmployers creates a filter that removes vacancies of the given
// employers. Names are compared case-insensitively.
func NewExcludedEmployers(employers []string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &employersFilter{employers: employers, logger: logger}
}

func (f *employersFilter) Name() string { return "employers" }

func (f *employersFilter) Apply(_ context.Context, records []vacancy.Record) ([]vacancy.Record, Step, error) {
	if len(f.employers) == 0 {
		return records, Step{Initial: len(records), Left: len(records)}, nil
	}

	excluded := make(map[string]struct{}, len(f.employers))
	for _, e := range f.employers {
		excluded[normalize.Label(e)] = struct{}{}
	}

	kept, step, dropped := drop(records, func(rec vacancy.Record) bool {
		_, ok := excluded[normalize.Label(rec.Company)]
		return ok
	})

	if len(dropped) > 0 {
		f.logger.Info("excluding vacancies by employers",
			zap.Strings("excluded_employers", f.employers),
			zap.Strings("excluded_vacancies", dropped),
			zap.Int("vacancies_left", len(kept)),
		)
	}

	return kept, step, nil
}

func (f *employersFilter) Status() Status {
	details := map[string]string{}
	if len(f.employers) > 0 {
		details["employers"] = strings.Join(f.employers, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
