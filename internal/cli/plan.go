package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"power-saver/internal/app"
)

var (
	planPricesPath string
	planAt         string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute and print a schedule without persisting or switching",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.PlanOptions{
			PricesPath: planPricesPath,
		}

		if planAt != "" {
			at, err := time.Parse(time.RFC3339, planAt)
			if err != nil {
				return fmt.Errorf("invalid --at value: %w", err)
			}
			opts.At = &at
		}

		return getApp().Plan(cmd.Context(), opts)
	},
}

func init() {
	planCmd.Flags().StringVar(&planPricesPath, "prices", "", "Path to a JSON price file (defaults to the live feed)")
	planCmd.Flags().StringVar(&planAt, "at", "", "Reference time (RFC3339, defaults to now)")
}
