package schedule

import (
	"time"

	"github.com/rs/zerolog"
)

// applyCommitment protects an in-progress active run from being truncated by
// a recomputation before it has been on for min_consecutive_hours. While the
// committed duration has not elapsed, the current and remaining committed
// slots are forced active regardless of what the strategy just chose. The
// commitment never overrides exclusions or force-inactive thresholds: a
// price spike that hits always_expensive still breaks the block.
//
// The commitment requirement is capped at the quota, so a min_consecutive
// larger than the total requested runtime does not pin the appliance on
// longer than it was ever asked to run.
func applyCommitment(slots []Slot, cfg Config, st State, now time.Time, logger zerolog.Logger) {
	if cfg.MinConsecutiveHours == nil || st.ActiveBlockStart == nil {
		return
	}

	hours := *cfg.MinConsecutiveHours
	if quota := cfg.quotaHours(); quota > 0 && quota < hours {
		hours = quota
	}
	committedUntil := st.ActiveBlockStart.Add(time.Duration(hours * float64(time.Hour)))
	if !now.Before(committedUntil) {
		return
	}

	forced := 0
	for i := range slots {
		s := slots[i]
		if !s.End.After(now) || !s.Start.Before(committedUntil) {
			continue
		}
		if s.Status != StatusStandby || s.ForceInactive {
			continue
		}
		slots[i].Status = StatusActive
		forced++
	}
	if forced > 0 {
		logger.Debug().
			Time("block_start", *st.ActiveBlockStart).
			Time("committed_until", committedUntil).
			Int("slots", forced).
			Msg("protected committed active block")
	}
}

// quotaHours returns the configured active-hours quota of the active strategy.
func (c Config) quotaHours() float64 {
	if c.Strategy == StrategyMinimumRuntime {
		return c.MinHoursOn
	}
	return c.HoursPerPeriod
}

// nextBlockStart derives the persisted commitment anchor for the next
// computation: set on a standby-to-active transition, carried while the
// appliance stays active, cleared when it stops.
func nextBlockStart(prev *time.Time, currentActive bool, currentSlotStart time.Time) *time.Time {
	if !currentActive {
		return nil
	}
	if prev != nil {
		return prev
	}
	start := currentSlotStart
	return &start
}
