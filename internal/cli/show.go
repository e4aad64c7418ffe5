package cli

import (
	"time"

	"github.com/spf13/cobra"

	"power-saver/internal/app"
)

var (
	showLimit int
	showSince time.Duration
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the latest persisted schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			Limit: showLimit,
			Since: showSince,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 0, "Number of slots to display (0 shows all)")
	showCmd.Flags().DurationVar(&showSince, "since", 0, "Also list snapshot history for the trailing window (e.g. 24h)")
}
