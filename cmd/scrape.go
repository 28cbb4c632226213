package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mspro-labs/emlak-ai/internal/cleaner"
	"mspro-labs/emlak-ai/internal/config"
	"mspro-labs/emlak-ai/internal/db"
	"mspro-labs/emlak-ai/internal/observability"
	"mspro-labs/emlak-ai/internal/refresh"
	"mspro-labs/emlak-ai/internal/scraper"
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run the listing refresh once",
	Long:  `Fetches the configured listing page(s), cleans the rows, overwrites the listings CSV and records the run in the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScrape(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(ctx context.Context) error {
	appCfg, logger, err := loadApp()
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

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := newRefreshJob(appCfg, siteCfg, store, nil, logger).Run(ctx)
	fmt.Printf("run %s: %s (fetched %d, kept %d, dropped %d) → %s\n",
		out.RunID, out.Status, out.Fetched, out.Kept, out.Dropped, appCfg.CSVPath)
	if out.Status == refresh.StatusFailed {
		return fmt.Errorf("refresh failed: %w", out.Err)
	}
	return nil
}

func newRefreshJob(appCfg config.AppConfig, siteCfg *config.SiteConfig, store *db.Store, metrics *observability.Metrics, logger *slog.Logger) *refresh.Job {
	return refresh.New(refresh.Config{
		Fetcher: scraper.NewFetcher(siteCfg, logger),
		Cleaner: cleaner.New(logger),
		Store:   store,
		CSVPath: appCfg.CSVPath,
		Pages:   siteCfg.Pages,
		Logger:  logger,
		Metrics: metrics,
	})
}
