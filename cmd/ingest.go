package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/filtering"
	"github.com/spigell/hh-pathfinder/internal/headhunter"
	"github.com/spigell/hh-pathfinder/internal/logger"
	"github.com/spigell/hh-pathfinder/internal/secrets"
	"github.com/spigell/hh-pathfinder/internal/vacancy"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Collect a vacancy snapshot from hh.ru",
	Long: `Search hh.ru for every configured query, fetch key skills and employer
industries, drop excluded vacancies and write a JSON Lines snapshot that the
other commands load.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ingest(cmd)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringSliceP("query", "q", nil, "search query, may be repeated (default is headhunter.queries)")
	ingestCmd.Flags().StringP("output", "o", "", "snapshot file to write (default is corpus.path)")
	ingestCmd.Flags().StringP("exclude-file", "e", "", "special file with vacancies to exclude (default is headhunter.exclude-file)")
	ingestCmd.Flags().StringSlice("skip-filter", nil, "filter to disable: dedupe, excluded-employers or exclude-file")
	ingestCmd.Flags().Bool("append", false, "keep vacancies of the existing snapshot that were not found again")
}

func ingest(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, log := setup()
	log.Info("starting the hh-pathfinder ingest", zap.String("version", version))

	queries, _ := cmd.Flags().GetStringSlice("query")
	if len(queries) == 0 {
		queries = config.Headhunter.Queries
	}

	params := headhunter.SearchParams{}
	if config.Headhunter.Search != nil {
		params = *config.Headhunter.Search
	}
	if len(queries) == 0 && strings.TrimSpace(params.Text) != "" {
		queries = []string{params.Text}
	}
	if len(queries) == 0 {
		log.Fatal("no search queries", zap.String("hint", "pass --query or set headhunter.queries"))
	}

	token, err := secrets.Load(secrets.Source{
		Name:     "headhunter token",
		File:     config.Headhunter.TokenFile,
		Env:      "HH_TOKEN",
		Optional: true,
	})
	if err != nil {
		log.Fatal("loading headhunter token",
			zap.Error(err),
			zap.String("hint", "set HH_TOKEN_FILE environment variable or the 'headhunter.token-file' key in the configuration file"),
		)
	}
	if token == "" {
		log.Info("no headhunter token configured, using anonymous access")
	}

	hh := headhunter.New(ctx, logger.Component(log, "headhunter"), token)
	if config.Headhunter.UserAgent != "" {
		hh.UserAgent = config.Headhunter.UserAgent
	}

	records, err := headhunter.NewCollector(hh, log).Collect(ctx, queries, params)
	if err != nil {
		log.Fatal("collecting vacancies", zap.Error(err))
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = config.Corpus.Path
	}

	if appendMode, _ := cmd.Flags().GetBool("append"); appendMode {
		var kept int
		records, kept, err = mergeSnapshot(output, records)
		if err != nil {
			log.Fatal("reading the existing snapshot", zap.Error(err))
		}
		log.Info("merged with the existing snapshot", zap.String("filename", output), zap.Int("previous", kept))
	}

	excludeFile, _ := cmd.Flags().GetString("exclude-file")
	if excludeFile == "" {
		excludeFile = config.Headhunter.ExcludeFile
	}

	filters := filtering.New([]filtering.Filter{
		filtering.NewDedupe(),
		filtering.NewExcludedEmployers(config.Headhunter.Exclude.Employers, log),
		filtering.NewExcludeFile(excludeFile, log),
	}, log)

	skipped, _ := cmd.Flags().GetStringSlice("skip-filter")
	for _, name := range skipped {
		filters.DisableByName(name, "disabled with --skip-filter")
	}
	for _, st := range filters.Describe() {
		log.Debug("filter configured",
			zap.String("name", st.Name),
			zap.Bool("enabled", st.Enabled),
			zap.String("reason", st.Reason),
			zap.Any("details", st.Details),
		)
	}

	records, err = filters.RunFilters(ctx, records)
	if err != nil {
		log.Fatal("filtering failed", zap.Error(err))
	}

	if len(records) == 0 {
		log.Info("exiting", zap.String("reason", "no vacancies left after filters"))
		return
	}

	if err := writeSnapshot(output, records); err != nil {
		log.Fatal("writing the snapshot", zap.Error(err))
	}

	log.Info("snapshot written", zap.String("filename", output), zap.Int("vacancies", len(records)))
}

// mergeSnapshot appends the records of the snapshot at path to fresh ones.
// Fresh records come first, so the dedupe filter keeps them over stale
// copies. A missing snapshot merges nothing.
func mergeSnapshot(path string, fresh []vacancy.Record) ([]vacancy.Record, int, error) {
	previous, err := vacancy.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fresh, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	corpus, err := vacancy.NewCorpus(previous)
	if err != nil {
		return nil, 0, fmt.Errorf("existing snapshot %q: %w", path, err)
	}
	merged := make([]vacancy.Record, 0, len(fresh)+corpus.Len())
	merged = append(merged, fresh...)
	return append(merged, corpus.Records()...), corpus.Len(), nil
}

// writeSnapshot replaces path atomically.
func writeSnapshot(path string, records []vacancy.Record) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}

	if err := vacancy.WriteJSONL(f, records); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}
