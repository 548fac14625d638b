package app

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
)

// Show prints stored history, newest last. An empty indicator lists every series.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, err := a.openHistory()
	if err != nil {
		return err
	}

	indicators := store.Indicators()
	if opts.Indicator != "" {
		indicators = []string{opts.Indicator}
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Indicator\tDate (UTC)\tValue")

	rows := 0
	for _, name := range indicators {
		for _, p := range store.History(name, opts.Limit) {
			fmt.Fprintf(writer, "%s\t%s\t%s\n", name, p.Date, formatValue(p.Value))
			rows++
		}
	}
	if rows == 0 {
		fmt.Fprintln(a.Out, "no history found")
		return nil
	}

	return writer.Flush()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
