package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mspro-labs/emlak-ai/internal/config"
	"mspro-labs/emlak-ai/internal/model"
	"mspro-labs/emlak-ai/internal/models"
	"mspro-labs/emlak-ai/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "emlak",
	Short: "Real-estate price estimator for Istanbul districts",
	Long: `Scrapes classified listings into a CSV on a daily schedule, trains a
gradient-boosted price model and serves an estimate form with a
choropleth of average prices per district.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadApp reads the env config and builds the logger every command uses.
func loadApp() (config.AppConfig, *slog.Logger, error) {
	appCfg, err := config.GetAppConfig()
	if err != nil {
		return config.AppConfig{}, nil, fmt.Errorf("config error: %w", err)
	}
	logger := observability.NewLogger(appCfg.LogLevel, appCfg.LogFormat)
	slog.SetDefault(logger)
	return appCfg, logger, nil
}

// trainModel fits the price model on TRAINING_CSV, or on the built-in
// sample when it is unset.
func trainModel(appCfg config.AppConfig, logger *slog.Logger) (*model.Model, error) {
	var (
		rows   []models.TrainingRow
		source = "built-in sample"
		err    error
	)
	if appCfg.TrainingCSV != "" {
		source = appCfg.TrainingCSV
		rows, err = model.LoadTrainingCSV(appCfg.TrainingCSV)
		if err != nil {
			return nil, err
		}
	} else {
		rows = model.SampleRows()
	}

	m, err := model.Train(rows, model.DefaultParams())
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}
	logger.Info("price model trained", "source", source, "rows", m.TrainingRows(), "districts", len(m.Districts()))
	return m, nil
}
