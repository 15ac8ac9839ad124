package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var searchCmd = &cobra.Command{
	Use:   "search KEYWORD...",
	Short: "Find vacancies by keywords without graph expansion",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSearch(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntP("top-k", "k", 0, "number of vacancies to return (default is recommend.top-k)")
}

func runSearch(cmd *cobra.Command, keywords []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, log := setup()

	d, err := newDeps(ctx, config, log)
	if err != nil {
		log.Fatal("preparing the engine", zap.Error(err))
	}
	defer d.Close()

	engine, err := d.build(ctx)
	if err != nil {
		log.Fatal("building the engine", zap.Error(err))
	}

	k, _ := cmd.Flags().GetInt("top-k")
	if k <= 0 {
		k = config.Recommend.TopK
	}

	hits, err := engine.SearchKeywords(ctx, keywords, k)
	if err != nil {
		log.Fatal("searching", zap.Error(err))
	}

	log.Info("search done", zap.Strings("keywords", keywords), zap.Int("count", len(hits)))
	if err := printJSON(cmd.OutOrStdout(), hits); err != nil {
		log.Fatal("printing the result", zap.Error(err))
	}
}
