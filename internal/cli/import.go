package cli

import (
	"github.com/spf13/cobra"

	"market-exit-alerts/internal/app"
)

var importFrom string

var importCmd = &cobra.Command{
	Use:   "import-legacy",
	Short: "Merge a legacy {date, ratio} history file into alt_ratio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ImportLegacy(cmd.Context(), app.ImportOptions{From: importFrom})
	},
}

func init() {
	importCmd.Flags().StringVar(&importFrom, "from", "", "Legacy history file (defaults to history.legacy_path)")
}
