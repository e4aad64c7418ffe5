package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"power-saver/internal/schedule"
)

const dayAheadPath = "/DayAheadPrices"

// NordPoolOptions parameterise the day-ahead price fetcher.
type NordPoolOptions struct {
	BaseURL   string
	Area      string
	Currency  string
	Timeout   time.Duration
	UserAgent string
}

// NordPool fetches day-ahead prices from the Nord Pool data portal.
type NordPool struct {
	opts    NordPoolOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewNordPool constructs a day-ahead price fetcher.
func NewNordPool(opts NordPoolOptions, logger zerolog.Logger) *NordPool {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dataportal-api.nordpoolgroup.com/api"
	}

	return &NordPool{
		opts:    opts,
		logger:  logger.With().Str("component", "price_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchPrices retrieves the day-ahead series for one delivery day.
func (n *NordPool) FetchPrices(ctx context.Context, day time.Time) ([]schedule.RawPoint, error) {
	area := n.opts.Area
	if area == "" {
		return nil, fmt.Errorf("pricing area required")
	}
	currency := n.opts.Currency
	if currency == "" {
		currency = "EUR"
	}

	query := url.Values{}
	query.Set("date", day.UTC().Format("2006-01-02"))
	query.Set("market", "DayAhead")
	query.Set("deliveryArea", area)
	query.Set("currency", currency)

	endpoint := n.baseURL + dayAheadPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(n.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "powersaver/1.0")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// The portal answers 204 before the next day's auction results publish.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payloadBytes)
	}

	var payload dayAheadResponse
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("decode day-ahead payload: %w", err)
	}

	points := make([]schedule.RawPoint, 0, len(payload.MultiAreaEntries))
	for _, entry := range payload.MultiAreaEntries {
		raw, ok := entry.EntryPerArea[area]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(raw.String())
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", raw.String(), err)
		}
		points = append(points, schedule.RawPoint{
			Start: entry.DeliveryStart,
			End:   entry.DeliveryEnd,
			Price: price,
		})
	}

	n.logger.Debug().
		Str("area", area).
		Time("day", day).
		Int("points", len(points)).
		Msg("fetched day-ahead prices")

	return points, nil
}

type dayAheadResponse struct {
	DeliveryDateCET  string          `json:"deliveryDateCET"`
	Currency         string          `json:"currency"`
	MultiAreaEntries []dayAheadEntry `json:"multiAreaEntries"`
}

type dayAheadEntry struct {
	DeliveryStart time.Time              `json:"deliveryStart"`
	DeliveryEnd   time.Time              `json:"deliveryEnd"`
	EntryPerArea  map[string]json.Number `json:"entryPerArea"`
}

type errorResponse struct {
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Detail != "" {
			return fmt.Errorf("price api error (%d): %s", status, apiErr.Detail)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("price api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Title != "" {
			return fmt.Errorf("price api error (%d): %s", status, apiErr.Title)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("price api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("price api error (%d)", status)
}

var _ Source = (*NordPool)(nil)
