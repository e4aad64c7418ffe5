package app

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"power-saver/internal/schedule"
	"power-saver/internal/service"
	"power-saver/internal/storage"
)

// Export renders stored prices and the latest schedule as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC().Add(48 * time.Hour)
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-7 * 24 * time.Hour)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	prices, err := store.ListPricesBetween(ctx, a.Config.Pricing.Area, from, to)
	if err != nil {
		return err
	}
	if len(prices) == 0 {
		a.Logger.Info().Msg("no price slots found for export window")
		return nil
	}

	statuses, err := a.latestStatuses(ctx, store)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("snapshot unavailable, exporting prices only")
		statuses = nil
	}

	downsampled := downsamplePrices(prices, opts.MaxPoints)
	a.Logger.Info().Int("total", len(prices)).Int("exported", len(downsampled)).Msg("exporting price slots")

	if opts.CSVPath != "" {
		if err := writePricesCSV(opts.CSVPath, downsampled, statuses); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePricesPNG(opts.PNGPath, downsampled, statuses); err != nil {
			return err
		}
	}

	return nil
}

// latestStatuses maps slot start times to the statuses of the most recent
// snapshot.
func (a *App) latestStatuses(ctx context.Context, store *storage.Store) (map[time.Time]schedule.Status, error) {
	snap, found, err := store.LatestSnapshot(ctx, a.Config.Planner.Instance)
	if err != nil || !found {
		return nil, err
	}

	var slots []service.SlotView
	if err := json.Unmarshal(snap.Slots, &slots); err != nil {
		return nil, err
	}

	statuses := make(map[time.Time]schedule.Status, len(slots))
	for _, slot := range slots {
		statuses[slot.Start.UTC()] = slot.Status
	}
	return statuses, nil
}

func downsamplePrices(recs []storage.PriceRecord, max int) []storage.PriceRecord {
	if max <= 0 || len(recs) <= max {
		return recs
	}

	result := make([]storage.PriceRecord, 0, max)
	step := float64(len(recs)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(recs) {
			idx = len(recs) - 1
		}
		result = append(result, recs[idx])
	}
	return result
}

func writePricesCSV(path string, recs []storage.PriceRecord, statuses map[time.Time]schedule.Status) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"start_ts", "end_ts", "area", "price", "currency", "status"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range recs {
		status := ""
		if s, ok := statuses[rec.Start.UTC()]; ok {
			status = string(s)
		}
		record := []string{
			rec.Start.Format(time.RFC3339),
			rec.End.Format(time.RFC3339),
			rec.Area,
			rec.Price,
			rec.Currency,
			status,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writePricesPNG(path string, recs []storage.PriceRecord, statuses map[time.Time]schedule.Status) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(recs))
	price := make([]float64, len(recs))
	active := make([]float64, len(recs))

	for i, rec := range recs {
		x[i] = rec.Start
		parsed, err := parseFloat(rec.Price)
		if err != nil {
			return err
		}
		price[i] = parsed
		switch statuses[rec.Start.UTC()] {
		case schedule.StatusActive, schedule.StatusForcedOn:
			active[i] = 1
		default:
			active[i] = 0
		}
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Active",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: price,
			},
			chart.TimeSeries{
				Name:    "Active",
				XValues: x,
				YValues: active,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseFloat(raw string) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
