package service

import (
	"time"

	"github.com/shopspring/decimal"

	"power-saver/internal/schedule"
)

// Snapshot is the externally visible view of one computed schedule. It feeds
// both the HTTP API and the persisted audit trail.
type Snapshot struct {
	Instance            string          `json:"instance"`
	ComputedAt          time.Time       `json:"computed_at"`
	CurrentStatus       schedule.Status `json:"current_status"`
	Emergency           bool            `json:"emergency"`
	CurrentPrice        *string         `json:"current_price,omitempty"`
	MinPrice            *string         `json:"min_price,omitempty"`
	MaxPrice            *string         `json:"max_price,omitempty"`
	NextChangeAt        *time.Time      `json:"next_change_at,omitempty"`
	LastOnTime          *time.Time      `json:"last_on_time,omitempty"`
	ActiveSlotCount     int             `json:"active_slot_count"`
	ActiveHoursInPeriod float64         `json:"active_hours_in_period"`
	Slots               []SlotView      `json:"slots"`
}

// SlotView is one slot of the published schedule.
type SlotView struct {
	Start  time.Time       `json:"start"`
	End    time.Time       `json:"end"`
	Price  *string         `json:"price,omitempty"`
	Status schedule.Status `json:"status"`
}

func (s *Service) buildSnapshot(tick time.Time, result schedule.Result) Snapshot {
	slots := make([]SlotView, 0, len(result.Slots))
	for _, slot := range result.Slots {
		view := SlotView{Start: slot.Start, End: slot.End, Status: slot.Status}
		if !result.EmergencyMode {
			price := slot.Price.String()
			view.Price = &price
		}
		slots = append(slots, view)
	}

	return Snapshot{
		Instance:            s.instance,
		ComputedAt:          tick,
		CurrentStatus:       result.CurrentStatus,
		Emergency:           result.EmergencyMode,
		CurrentPrice:        decimalString(result.CurrentPrice),
		MinPrice:            decimalString(result.MinPrice),
		MaxPrice:            decimalString(result.MaxPrice),
		NextChangeAt:        result.NextChangeAt,
		LastOnTime:          result.LastOnTime,
		ActiveSlotCount:     result.ActiveSlotCount,
		ActiveHoursInPeriod: result.ActiveHoursInPeriod,
		Slots:               slots,
	}
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parsePrice(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, errEmptyPrice
	}
	return decimal.NewFromString(raw)
}
