package control

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Switch drives the downstream appliance relay.
type Switch interface {
	Apply(ctx context.Context, active bool) error
}

// WebhookSwitch toggles a relay by calling per-state webhook URLs. Works with
// Shelly relays and Home Assistant webhook automations alike.
type WebhookSwitch struct {
	onURL  string
	offURL string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookSwitch constructs a webhook-driven switch.
func NewWebhookSwitch(onURL, offURL string, timeout time.Duration, logger zerolog.Logger) *WebhookSwitch {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSwitch{
		onURL:  onURL,
		offURL: offURL,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "switch_webhook").Logger(),
	}
}

// Apply calls the webhook matching the requested relay state.
func (w *WebhookSwitch) Apply(ctx context.Context, active bool) error {
	url := w.offURL
	if active {
		url = w.onURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create switch request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send switch request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("switch webhook status %d", resp.StatusCode)
	}

	w.logger.Info().Bool("active", active).Msg("relay state applied")
	return nil
}

var _ Switch = (*WebhookSwitch)(nil)

// NopSwitch ignores state changes. Used when control is disabled so the
// service still records transitions in its logs.
type NopSwitch struct{}

func (NopSwitch) Apply(context.Context, bool) error { return nil }

var _ Switch = NopSwitch{}
