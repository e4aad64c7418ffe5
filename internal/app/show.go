package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"power-saver/internal/service"
	"power-saver/internal/storage"
)

// Show prints the most recently persisted schedule snapshots.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show snapshots")
	}
	if closeStore != nil {
		defer closeStore()
	}

	instance := a.Config.Planner.Instance

	latest, found, err := store.LatestSnapshot(ctx, instance)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(os.Stdout, "no snapshots found")
		return nil
	}

	fmt.Fprintf(os.Stdout, "instance: %s\ncomputed: %s\nstatus: %s\nemergency: %t\n\n",
		latest.Instance,
		latest.ComputedAt.UTC().Format(time.RFC3339),
		latest.CurrentStatus,
		latest.Emergency,
	)

	var slots []service.SlotView
	if err := json.Unmarshal(latest.Slots, &slots); err != nil {
		return fmt.Errorf("decode snapshot slots: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 || limit > len(slots) {
		limit = len(slots)
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Start (UTC)\tEnd (UTC)\tPrice\tStatus")
	for _, slot := range slots[:limit] {
		price := "-"
		if slot.Price != nil {
			price = *slot.Price
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			slot.Start.UTC().Format("2006-01-02 15:04"),
			slot.End.UTC().Format("2006-01-02 15:04"),
			price,
			slot.Status,
		)
	}
	writer.Flush()

	if opts.Since > 0 {
		return a.showHistory(ctx, store, instance, opts.Since)
	}
	return nil
}

func (a *App) showHistory(ctx context.Context, store *storage.Store, instance string, since time.Duration) error {
	to := time.Now().UTC()
	from := to.Add(-since)

	snaps, err := store.ListSnapshotsBetween(ctx, instance, from, to)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(os.Stdout, "\nno snapshots in history window")
		return nil
	}

	fmt.Fprintln(os.Stdout)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Computed (UTC)\tStatus\tEmergency\tSlots")
	for _, snap := range snaps {
		fmt.Fprintf(writer, "%s\t%s\t%t\t%d\n",
			snap.ComputedAt.UTC().Format(time.RFC3339),
			snap.CurrentStatus,
			snap.Emergency,
			snap.SlotCount,
		)
	}
	writer.Flush()

	return nil
}
