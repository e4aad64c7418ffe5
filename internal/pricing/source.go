package pricing

import (
	"context"
	"time"

	"power-saver/internal/schedule"
)

// Source retrieves the raw price series covering a delivery day. Implementations
// return points in arbitrary order; normalisation happens downstream.
type Source interface {
	FetchPrices(ctx context.Context, day time.Time) ([]schedule.RawPoint, error)
}
