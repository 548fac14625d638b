package cli

import (
	"github.com/spf13/cobra"

	"market-exit-alerts/internal/app"
)

var simulateOpts app.SimulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "用给定读数评估告警规则",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Simulate(cmd.Context(), simulateOpts)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateOpts.Dominance, "btc", 50, "BTC dominance (%)")
	simulateCmd.Flags().BoolVar(&simulateOpts.Flat, "flat", false, "M2 series is flat")
	simulateCmd.Flags().BoolVar(&simulateOpts.Pullback, "pullback", false, "Others ratio pulled back")
	simulateCmd.Flags().IntVar(&simulateOpts.FearGreed, "fear-greed", 50, "Fear & greed index (0-100)")
	simulateCmd.Flags().BoolVar(&simulateOpts.Hype, "hype", false, "Social or app-rank hype present")
	simulateCmd.Flags().BoolVar(&simulateOpts.Send, "send", false, "Deliver the resulting alerts")
}
