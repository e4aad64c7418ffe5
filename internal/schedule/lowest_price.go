package schedule

import (
	"time"

	"github.com/rs/zerolog"
)

// applyLowestPrice partitions the series into repeating periods and solves a
// cheapest-N quota in each one independently. A period truncated by the series
// boundary activates whatever candidates it has; deficits never carry over.
func applyLowestPrice(slots []Slot, cfg Config, logger zerolog.Logger) {
	quantum := quantumOf(slots)
	quota := hoursToSlots(cfg.HoursPerPeriod, quantum)
	if quota <= 0 {
		return
	}

	for _, period := range partitionPeriods(slots, cfg) {
		cands := make([]candidate, 0, len(period))
		for _, idx := range period {
			s := slots[idx]
			if s.Status != StatusStandby || s.ForceInactive {
				continue
			}
			cands = append(cands, candidate{index: idx, slot: s.PriceSlot})
		}
		if len(cands) == 0 {
			continue
		}

		rankCandidates(cands, cfg.Inverted())
		picked := selectQuota(cands, quota, cfg.PriceSimilarityPct)
		for _, idx := range picked {
			slots[idx].Status = StatusActive
		}
		logger.Debug().
			Int("candidates", len(cands)).
			Int("quota", quota).
			Int("selected", len(picked)).
			Time("period_first_slot", slots[period[0]].Start).
			Msg("solved period quota")
	}
}

// partitionPeriods groups slot indices by the period instance containing each
// slot's start. Slots outside every period (possible when period boundaries do
// not span the whole day) belong to no group and stay standby. Groups are
// returned in series order.
func partitionPeriods(slots []Slot, cfg Config) [][]int {
	var groups [][]int
	var currentKey time.Time
	for i := range slots {
		key, ok := periodStart(slots[i].Start, cfg.PeriodFrom, cfg.PeriodTo)
		if !ok {
			continue
		}
		if len(groups) == 0 || !key.Equal(currentKey) {
			groups = append(groups, nil)
			currentKey = key
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], i)
	}
	return groups
}

// activeHoursInCurrentPeriod sums the active slot time inside the period
// containing now, for the period diagnostics exposed alongside the schedule.
func activeHoursInCurrentPeriod(slots []Slot, cfg Config, now time.Time) float64 {
	key, ok := periodStart(now, cfg.PeriodFrom, cfg.PeriodTo)
	if !ok {
		return 0
	}
	var total time.Duration
	for i := range slots {
		if slots[i].Status != StatusActive {
			continue
		}
		slotKey, ok := periodStart(slots[i].Start, cfg.PeriodFrom, cfg.PeriodTo)
		if ok && slotKey.Equal(key) {
			total += slots[i].Duration()
		}
	}
	return total.Hours()
}
