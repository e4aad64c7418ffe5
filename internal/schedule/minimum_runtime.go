package schedule

import (
	"time"

	"github.com/rs/zerolog"
)

// applyMinimumRuntime walks the series forward tracking the time since the
// last activation. Whenever the gap would exceed max_hours_off before the next
// quota is met, the cheapest candidates inside the permissible look-ahead
// window (gap clock to deadline) are activated until min_hours_on is scheduled
// for that cycle. Force-active slots reset the gap clock as bonus activation
// without reducing a later cycle's quota. On a first run the gap clock starts
// at now, so an empty state never forces immediate activation.
func applyMinimumRuntime(slots []Slot, cfg Config, st State, now time.Time, logger zerolog.Logger) {
	if len(slots) == 0 {
		return
	}
	quantum := quantumOf(slots)
	quota := hoursToSlots(cfg.MinHoursOn, quantum)
	if quota <= 0 {
		return
	}
	maxOff := time.Duration(cfg.MaxHoursOff() * float64(time.Hour))
	seriesEnd := slots[len(slots)-1].End

	cursor := now
	if st.LastOnTime != nil {
		cursor = *st.LastOnTime
	}

	for {
		deadline := cursor.Add(maxOff)
		if deadline.Before(now) {
			// The permissible gap has already been exceeded while the
			// appliance was off; activate as soon as possible.
			deadline = now
		}
		if deadline.After(seriesEnd) {
			// No window inside the known series can violate the constraint;
			// the next recomputation sees fresh data and continues from here.
			break
		}

		if idx, ok := firstActivationIn(slots, cursor, deadline); ok {
			cursor = endOfActiveRun(slots, idx)
			continue
		}

		cands := make([]candidate, 0, quota)
		for i := range slots {
			s := slots[i]
			if s.Status != StatusStandby || s.ForceInactive || s.ForceActive {
				continue
			}
			if !s.End.After(now) || !s.End.After(cursor) || s.Start.After(deadline) {
				continue
			}
			cands = append(cands, candidate{index: i, slot: s.PriceSlot})
		}
		if len(cands) == 0 {
			// Everything before the deadline is excluded or forbidden; skip
			// past it rather than spin. Degraded coverage is a policy branch,
			// not a failure.
			cursor = deadline.Add(quantum)
			continue
		}

		rankCandidates(cands, cfg.Inverted())
		picked := selectQuota(cands, quota, cfg.PriceSimilarityPct)

		next := cursor
		for _, idx := range picked {
			slots[idx].Status = StatusActive
			if slots[idx].End.After(next) {
				next = slots[idx].End
			}
		}
		logger.Debug().
			Time("deadline", deadline).
			Int("selected", len(picked)).
			Int("quota", quota).
			Msg("scheduled runtime cycle before gap deadline")

		if !next.After(cursor) {
			next = cursor.Add(quantum)
		}
		cursor = next
	}
}

// firstActivationIn locates the first slot in (after, deadline] that is
// already active or tagged force-active: bonus activation that resets the gap
// clock.
func firstActivationIn(slots []Slot, after, deadline time.Time) (int, bool) {
	for i := range slots {
		if slots[i].Status != StatusActive && !slots[i].ForceActive {
			continue
		}
		if slots[i].End.After(after) && !slots[i].Start.After(deadline) {
			return i, true
		}
	}
	return 0, false
}

// endOfActiveRun returns the end instant of the contiguous active run that
// begins at index idx.
func endOfActiveRun(slots []Slot, idx int) time.Time {
	end := slots[idx].End
	for j := idx + 1; j < len(slots); j++ {
		if slots[j].Status != StatusActive && !slots[j].ForceActive {
			break
		}
		if !slots[j].Start.Equal(end) {
			break
		}
		end = slots[j].End
	}
	return end
}
