package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mspro-labs/emlak-ai/internal/config"
	"mspro-labs/emlak-ai/internal/db"
	"mspro-labs/emlak-ai/internal/observability"
	"mspro-labs/emlak-ai/internal/scheduler"
	"mspro-labs/emlak-ai/internal/web"
)

var serveRunOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the estimate form and the daily refresh scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveRunOnStart, "refresh-now", false, "run one refresh immediately at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServer(ctx context.Context) error {
	// 1. Setup
	appCfg, logger, err := loadApp()
	if err != nil {
		return err
	}
	loc, err := appCfg.Location()
	if err != nil {
		return err
	}
	siteCfg, err := config.LoadSiteConfig(appCfg.ConfigPath)
	if err != nil {
		return err
	}
	store, err := db.Open(appCfg.DBDriver, appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	defer store.Close()

	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Start the HTTP server; /readyz stays 503 until the model is set.
	srv, err := web.NewServer(web.Config{
		Addr:    appCfg.HTTPAddr,
		Regions: siteCfg.Regions,
		MapPath: appCfg.MapPath,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 3. Train the model and render the map once.
	m, err := trainModel(appCfg, logger)
	if err != nil {
		return err
	}
	srv.SetModel(m)
	metrics.ModelReady.Set(1)

	if _, err := renderMap(appCfg, m, logger); err != nil {
		metrics.MapRenderErrors.Inc()
		srv.SetMapStatus(time.Now(), err)
	} else {
		srv.SetMapStatus(time.Now(), nil)
	}

	// 4. Daily refresh loop.
	job := newRefreshJob(appCfg, siteCfg, store, metrics, logger)
	daily, err := scheduler.NewDaily(appCfg.RefreshAt, loc, nil, func(ctx context.Context) {
		job.Run(ctx)
	}, logger)
	if err != nil {
		return err
	}
	daily.RunOnStart(serveRunOnStart)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		daily.Run(ctx) //nolint:errcheck // nil on shutdown
	}()

	// 5. Wait for a signal or a listener failure.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-errCh:
		logger.Error("http server failed", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Error("http shutdown", "error", serr)
	}
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn("refresh still running at shutdown deadline")
	}
	return err
}
