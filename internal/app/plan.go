package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"power-saver/internal/pricing"
	"power-saver/internal/schedule"
)

// Plan computes a schedule once, without persistence or relay control, and
// prints the resulting slot table.
func (a *App) Plan(ctx context.Context, opts PlanOptions) error {
	engineCfg, err := a.Config.Planner.EngineConfig()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if opts.At != nil {
		now = opts.At.UTC()
	}

	var source pricing.Source
	if opts.PricesPath != "" {
		source = &pricing.FileSource{Path: opts.PricesPath}
	} else {
		source = a.newSource()
	}

	day := now.Truncate(24 * time.Hour)
	points, err := source.FetchPrices(ctx, day)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}
	if opts.PricesPath == "" {
		tomorrow, err := source.FetchPrices(ctx, day.Add(24*time.Hour))
		if err == nil {
			points = append(points, tomorrow...)
		}
	}

	engine := schedule.NewEngine(a.Logger)
	result, _, err := engine.Compute(schedule.Input{
		Series: points,
		Config: engineCfg,
		Now:    now,
	})
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Start (UTC)\tEnd (UTC)\tPrice\tStatus")
	for _, slot := range result.Slots {
		price := "-"
		if !result.EmergencyMode {
			price = slot.Price.StringFixed(2)
		}
		marker := ""
		if slot.Contains(now) {
			marker = "  <- now"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s%s\n",
			slot.Start.UTC().Format("2006-01-02 15:04"),
			slot.End.UTC().Format("2006-01-02 15:04"),
			price,
			slot.Status,
			marker,
		)
	}
	writer.Flush()

	fmt.Fprintf(os.Stdout, "\ncurrent status: %s\n", result.CurrentStatus)
	if result.EmergencyMode {
		fmt.Fprintln(os.Stdout, "emergency mode: price data unavailable, running continuously")
	}
	if result.NextChangeAt != nil {
		fmt.Fprintf(os.Stdout, "next change: %s\n", result.NextChangeAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(os.Stdout, "active hours in period: %.2f\n", result.ActiveHoursInPeriod)

	return nil
}
