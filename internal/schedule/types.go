package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the resolved state of a schedule slot or of the appliance itself.
type Status string

const (
	StatusActive    Status = "active"
	StatusStandby   Status = "standby"
	StatusExcluded  Status = "excluded"
	StatusForcedOn  Status = "forced_on"
	StatusForcedOff Status = "forced_off"
)

// RawPoint is a price observation as delivered by a price source, before
// normalisation. Start/End are slot boundaries, Price the price for the slot.
type RawPoint struct {
	Start time.Time
	End   time.Time
	Price decimal.Decimal
}

// PriceSlot is a normalised, immutable priced time slot.
type PriceSlot struct {
	Start time.Time
	End   time.Time
	Price decimal.Decimal
}

// Duration returns the slot length.
func (p PriceSlot) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Contains reports whether t falls inside the half-open interval [Start, End).
func (p PriceSlot) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Slot is a PriceSlot annotated with its scheduling decision. A fresh sequence
// is produced on every computation; slots are never mutated afterwards.
type Slot struct {
	PriceSlot
	Status Status

	// Threshold tags computed before strategy selection. ForceInactive wins
	// over every other signal; ForceActive adds to the strategy selection
	// without counting against the quota.
	ForceActive   bool
	ForceInactive bool
}

// State is the minimal persisted scheduler state. It is owned by the caller,
// passed into every computation and returned updated. The zero value means
// "first run".
type State struct {
	// ActiveBlockStart is the start of the currently committed active block,
	// set on a standby-to-active transition and cleared when the appliance
	// returns to standby.
	ActiveBlockStart *time.Time
	// LastOnTime is the end of the most recent active slot at or before the
	// time of the last computation.
	LastOnTime *time.Time
}

// Input is one immutable computation snapshot. Now is injected by the caller
// so that computations stay deterministic and replayable.
type Input struct {
	Series []RawPoint
	Config Config
	State  State
	Now    time.Time

	// External override flags. ForceOff wins over ForceOn.
	ForceOn  bool
	ForceOff bool
}

// Result is the full outcome of one computation. It is derived read-only
// data, recomputed wholesale and never patched.
type Result struct {
	Slots []Slot

	CurrentStatus Status
	CurrentPrice  *decimal.Decimal
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal

	ActiveSlotCount     int
	ActiveHoursInPeriod float64
	NextChangeAt        *time.Time
	LastOnTime          *time.Time

	EmergencyMode bool
}

// ActiveNow reports whether the resolved current status keeps the appliance
// powered.
func (r Result) ActiveNow() bool {
	return r.CurrentStatus == StatusActive || r.CurrentStatus == StatusForcedOn
}
