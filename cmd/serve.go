package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/hh-pathfinder/internal/logger"
	"github.com/spigell/hh-pathfinder/internal/recommend"
	"github.com/spigell/hh-pathfinder/internal/secrets"
	"github.com/spigell/hh-pathfinder/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations over HTTP and MCP",
	Long: `Serve recommendations over HTTP (/v1/recommend, /v1/search) and as MCP tools
on /mcp. SIGHUP reloads the vacancy snapshot without downtime.`,
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default is server.addr)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, log := setup()
	log.Info("starting the hh-pathfinder server", zap.String("version", version))

	d, err := newDeps(ctx, config, log)
	if err != nil {
		log.Fatal("preparing the engine", zap.Error(err))
	}
	defer d.Close()

	holder := d.holder()
	engine, err := holder.Reload(ctx)
	if err != nil {
		log.Fatal("building the first snapshot", zap.Error(err))
	}
	log.Info("snapshot published", logger.EngineFields(engine.Strategy(), engine.ID())...)

	token, err := secrets.Load(secrets.Source{
		Name:     "reload token",
		File:     config.Server.ReloadTokenFile,
		Env:      "HH_PATHFINDER_RELOAD_TOKEN",
		Optional: true,
	})
	if err != nil {
		log.Fatal("loading reload token", zap.Error(err))
	}

	opts := config.Server.Options
	opts.ReloadToken = token
	opts.Defaults = config.Recommend
	opts.Version = version

	var extractor server.ProfileExtractor
	if ex := d.extractor(); ex != nil {
		extractor = ex
	}
	srv := server.New(holder, extractor, opts, logger.Component(log, "server"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		reloadOnHangup(ctx, holder, log)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func reloadOnHangup(ctx context.Context, holder *recommend.Holder, log *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			e, err := holder.Reload(ctx)
			if err != nil {
				// The holder keeps serving the previous snapshot.
				continue
			}
			log.Info("snapshot reloaded", logger.EngineFields(e.Strategy(), e.ID())...)
		}
	}
}
