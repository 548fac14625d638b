package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"market-exit-alerts/internal/app"
)

var (
	showIndicator string
	showLimit     int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display stored indicator history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Indicator: showIndicator,
			Limit:     showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showIndicator, "indicator", "", "Indicator to display (all when empty)")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of most recent points per indicator")
}
