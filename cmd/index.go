package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/graph"
	"github.com/spigell/hh-pathfinder/internal/logger"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the relevance index and relation graph for the snapshot",
	Long: `Build the relevance index and relation graph for the snapshot and report
their sizes. With the dense strategy the index is stored at index.path and
embeddings are kept in encoder.cache-path, so later runs start without
re-encoding the corpus.`,
	Run: func(_ *cobra.Command, _ []string) {
		buildIndex()
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().String("output", "", "where to store the dense index (default is index.path)")
	viper.BindPFlag("index.path", indexCmd.Flags().Lookup("output"))
}

func buildIndex() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, log := setup()

	d, err := newDeps(ctx, config, log)
	if err != nil {
		log.Fatal("preparing the engine", zap.Error(err))
	}
	defer d.Close()

	e, err := d.build(ctx)
	if err != nil {
		log.Fatal("building the engine", zap.Error(err))
	}

	g := e.Graph()
	fields := append(logger.EngineFields(e.Strategy(), e.ID()),
		zap.String("checksum", e.Corpus().Checksum()),
		zap.Int("positions", e.Corpus().Len()),
		zap.Int("skills", g.Count(graph.KindSkill)),
		zap.Int("companies", g.Count(graph.KindCompany)),
		zap.Int("levels", g.Count(graph.KindLevel)),
		zap.Int("domains", g.Count(graph.KindDomain)),
		zap.Int("edges", g.EdgeCount()),
	)
	if config.Index.Path != "" {
		fields = append(fields, zap.String("index_path", config.Index.Path))
	}
	if d.cache != nil {
		if n, err := d.cache.Len(ctx); err == nil {
			fields = append(fields, zap.Int("cached_embeddings", n))
		}
	}

	log.Info("index ready", fields...)
}
