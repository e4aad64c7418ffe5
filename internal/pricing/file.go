package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"power-saver/internal/schedule"
)

// FileSource reads a price series from a JSON file. Used by the offline plan
// command where no market connection is available.
type FileSource struct {
	Path string
}

type filePoint struct {
	Start time.Time   `json:"start"`
	End   time.Time   `json:"end"`
	Price json.Number `json:"price"`
}

// FetchPrices loads the whole file; the day argument is ignored because the
// file defines its own horizon.
func (f *FileSource) FetchPrices(_ context.Context, _ time.Time) ([]schedule.RawPoint, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read price file: %w", err)
	}

	var raw []filePoint
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode price file: %w", err)
	}

	points := make([]schedule.RawPoint, 0, len(raw))
	for i, p := range raw {
		price, err := decimal.NewFromString(p.Price.String())
		if err != nil {
			return nil, fmt.Errorf("price file entry %d: %w", i, err)
		}
		points = append(points, schedule.RawPoint{Start: p.Start, End: p.End, Price: price})
	}
	return points, nil
}

var _ Source = (*FileSource)(nil)
