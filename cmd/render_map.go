package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mspro-labs/emlak-ai/internal/config"
	"mspro-labs/emlak-ai/internal/mapview"
	"mspro-labs/emlak-ai/internal/model"
	"mspro-labs/emlak-ai/internal/web"
)

var renderMapCmd = &cobra.Command{
	Use:   "render-map",
	Short: "Render the average-price choropleth PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, logger, err := loadApp()
		if err != nil {
			return err
		}
		m, err := trainModel(appCfg, logger)
		if err != nil {
			return err
		}
		res, err := renderMap(appCfg, m, logger)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s (matched: %s)\n", appCfg.MapPath, strings.Join(res.Matched, ", "))
		if len(res.Unmatched) > 0 {
			fmt.Printf("no price data for: %s\n", strings.Join(res.Unmatched, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderMapCmd)
}

func renderMap(appCfg config.AppConfig, m *model.Model, logger *slog.Logger) (mapview.Result, error) {
	start := time.Now()
	res, err := mapview.Render(appCfg.GeometryPath, m.DistrictAverages(), appCfg.MapPath, mapview.Options{
		FormatPrice: web.FormatTL,
	})
	if err != nil {
		logger.Error("map render failed", "geometry", appCfg.GeometryPath, "error", err)
		return res, fmt.Errorf("map render failed: %w", err)
	}
	logger.Info("map rendered", "path", appCfg.MapPath, "matched", len(res.Matched), "took", time.Since(start))
	return res, nil
}
