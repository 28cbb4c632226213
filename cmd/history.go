package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mspro-labs/emlak-ai/internal/db"
	"mspro-labs/emlak-ai/internal/models"
	"mspro-labs/emlak-ai/internal/storage"
	"mspro-labs/emlak-ai/internal/web"
)

var (
	historyLimit int
	historyRun   string
	historyCSV   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent refresh runs",
	Long: `Lists recent refresh runs from the database, newest first.
With --run, prints the listing snapshot of one run. With --csv, summarises
the current listings CSV by region.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, _, err := loadApp()
		if err != nil {
			return err
		}
		if historyCSV {
			records, err := storage.ReadListingsCSV(appCfg.CSVPath)
			if err != nil {
				return err
			}
			printRegionSummary(records)
			return nil
		}

		store, err := db.Open(appCfg.DBDriver, appCfg.DBPath)
		if err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		defer store.Close()

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer tw.Flush()

		if historyRun != "" {
			records, err := store.RunListings(cmd.Context(), historyRun)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "PRICE\tREGION\tSUBREGION\tTITLE")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", web.FormatTL(r.Price), r.Region, r.Subregion, r.Title)
			}
			return nil
		}

		runs, err := store.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tFETCHED\tKEPT\tDROPPED\tERROR")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status, r.Fetched, r.Kept, r.Dropped, r.Error)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to list")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the listings stored for this run id")
	historyCmd.Flags().BoolVar(&historyCSV, "csv", false, "summarise the current listings CSV instead")
	rootCmd.AddCommand(historyCmd)
}

func printRegionSummary(records []models.ListingRecord) {
	type agg struct {
		n   int
		sum float64
	}
	byRegion := map[string]*agg{}
	for _, r := range records {
		a := byRegion[r.Region]
		if a == nil {
			a = &agg{}
			byRegion[r.Region] = a
		}
		a.n++
		a.sum += r.Price
	}
	regions := make([]string, 0, len(byRegion))
	for k := range byRegion {
		regions = append(regions, k)
	}
	sort.Strings(regions)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintf(tw, "%d listings\n", len(records))
	fmt.Fprintln(tw, "REGION\tCOUNT\tMEAN PRICE")
	for _, k := range regions {
		a := byRegion[k]
		fmt.Fprintf(tw, "%s\t%d\t%s\n", k, a.n, web.FormatTL(a.sum/float64(a.n)))
	}
}
