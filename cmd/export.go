package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/graph"
	"github.com/spigell/hh-pathfinder/internal/graphexport"
	"github.com/spigell/hh-pathfinder/internal/logger"
	"github.com/spigell/hh-pathfinder/internal/secrets"
)

var exportCmd = &cobra.Command{
	Use:   "export-graph",
	Short: "Write the relation graph of the snapshot into Neo4j",
	Run: func(cmd *cobra.Command, _ []string) {
		exportGraph(cmd)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().Bool("prune", false, "delete positions written by earlier snapshots")
}

func exportGraph(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, log := setup()

	d := &deps{config: config, logger: log}
	corpus, err := d.loadCorpus()
	if err != nil {
		log.Fatal("loading the snapshot", zap.Error(err))
	}

	g, err := graph.Build(corpus, config.Graph)
	if err != nil {
		log.Fatal("building the relation graph", zap.Error(err))
	}

	password, err := secrets.Load(secrets.Source{
		Name: "neo4j password",
		File: config.Neo4j.PasswordFile,
		Env:  "NEO4J_PASSWORD",
	})
	if err != nil {
		log.Fatal("loading neo4j password",
			zap.Error(err),
			zap.String("hint", "set NEO4J_PASSWORD_FILE environment variable or the 'neo4j.password-file' key in the configuration file"),
		)
	}

	cfg := config.Neo4j.Config
	cfg.Password = password
	if prune, _ := cmd.Flags().GetBool("prune"); prune {
		cfg.Prune = true
	}

	exporter, err := graphexport.New(ctx, cfg, logger.Component(log, "neo4j"))
	if err != nil {
		log.Fatal("connecting to neo4j", zap.Error(err))
	}
	defer exporter.Close(context.Background())

	if _, err := exporter.Export(ctx, g, corpus.Checksum()); err != nil {
		log.Fatal("exporting the graph", zap.Error(err))
	}
}
