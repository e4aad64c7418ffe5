package storage

import (
	"encoding/json"
	"time"
)

// StateRecord is the persisted per-instance scheduler state carried between
// recomputations.
type StateRecord struct {
	Instance         string
	ActiveBlockStart *time.Time
	LastOnTime       *time.Time
	UpdatedAt        time.Time
}

// SnapshotRecord captures one computed schedule for auditing and the API.
type SnapshotRecord struct {
	ID            int64
	Instance      string
	ComputedAt    time.Time
	CurrentStatus string
	Emergency     bool
	SlotCount     int
	Slots         json.RawMessage
	CreatedAt     time.Time
}

// PriceRecord is one persisted market price slot.
type PriceRecord struct {
	Area      string
	Start     time.Time
	End       time.Time
	Price     string
	Currency  string
	CreatedAt time.Time
}
