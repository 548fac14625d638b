package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"market-exit-alerts/internal/app"
	"market-exit-alerts/internal/history"
)

var (
	exportIndicator string
	exportDays      int
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export indicator history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportDays < 0 {
			return fmt.Errorf("--days cannot be negative")
		}

		opts := app.ExportOptions{
			Indicator: exportIndicator,
			Days:      exportDays,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportIndicator, "indicator", history.AltRatio, "Indicator to export")
	exportCmd.Flags().IntVar(&exportDays, "days", 0, "Most recent points to export (0 = all)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
