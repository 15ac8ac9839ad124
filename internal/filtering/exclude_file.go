package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/headhunter"
	"github.com/spigell/hh-pathfinder/internal/vacancy"
)

type excludeFileFilter struct {
	toggle
	path   string
	logger *zap.Logger
}

// NewExcludeFile creates a filter that removes vacancies listed in an exclude file.
func NewExcludeFile(path string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &excludeFileFilter{path: path, logger: logger}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Apply(_ context.Context, records []vacancy.Record) ([]vacancy.Record, Step, error) {
	if f.path == "" {
		return records, Step{Initial: len(records), Left: len(records)}, nil
	}

	excluded, err := headhunter.GetExcludedVacanciesFromFile(f.path)
	if err != nil {
		return nil, Step{}, fmt.Errorf("getting excluded vacancies from file: %w", err)
	}

	ids := make(map[string]struct{}, len(excluded.Items))
	for _, id := range excluded.VacanciesIDs() {
		ids[id] = struct{}{}
	}

	kept, step, dropped := drop(records, func(rec vacancy.Record) bool {
		_, ok := ids[strconv.FormatInt(rec.ID, 10)]
		return ok
	})

	if len(dropped) > 0 {
		f.logger.Info("excluding vacancies based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_vacancies", dropped),
			zap.Int("vacancies_left", len(kept)),
		)
	}

	return kept, step, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
