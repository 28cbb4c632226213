package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mspro-labs/emlak-ai/internal/models"
	"mspro-labs/emlak-ai/internal/web"
)

var predictInput models.Features

var predictCmd = &cobra.Command{
	Use:     "predict",
	Short:   "Estimate a price from the command line",
	Example: `  emlak predict --district Kadıköy --area 100 --rooms 3 --age 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if predictInput.District == "" {
			return fmt.Errorf("--district is required")
		}
		appCfg, logger, err := loadApp()
		if err != nil {
			return err
		}
		m, err := trainModel(appCfg, logger)
		if err != nil {
			return err
		}
		price := m.Predict(predictInput)
		fmt.Printf("Tahmini Fiyat: %s\n", web.FormatTL(price))
		if !m.KnownDistrict(predictInput.District) {
			fmt.Printf("note: %q is not in the training data; district has no effect\n", predictInput.District)
		}
		return nil
	},
}

func init() {
	predictCmd.Flags().StringVar(&predictInput.District, "district", "", "district name, e.g. Kadıköy")
	predictCmd.Flags().Float64Var(&predictInput.Area, "area", 100, "floor area in m²")
	predictCmd.Flags().Float64Var(&predictInput.RoomCount, "rooms", 3, "room count")
	predictCmd.Flags().Float64Var(&predictInput.BuildingAge, "age", 10, "building age in years")
	rootCmd.AddCommand(predictCmd)
}
