package schedule

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// run is a maximal sequence of contiguous active slots, as [start, end) slot
// indices.
type run struct {
	start int
	end   int
}

func activeRuns(slots []Slot) []run {
	var runs []run
	i := 0
	for i < len(slots) {
		if slots[i].Status != StatusActive {
			i++
			continue
		}
		r := run{start: i}
		for i < len(slots) && slots[i].Status == StatusActive {
			i++
		}
		r.end = i
		runs = append(runs, r)
	}
	return runs
}

// enforceMinConsecutive extends every active run shorter than the configured
// minimum by absorbing adjacent standby slots, preferring the better-priced
// neighbour and the forward direction on ties, until the run is long enough or
// no neighbour remains (series boundary, exclusion, or forbidden price). The
// extra activations may push total active time past the nominal quota; that is
// the accepted cost of avoiding short on/off cycles.
func enforceMinConsecutive(slots []Slot, cfg Config, logger zerolog.Logger) {
	if cfg.MinConsecutiveHours == nil || *cfg.MinConsecutiveHours <= 0 {
		return
	}
	quantum := quantumOf(slots)
	required := hoursToSlots(*cfg.MinConsecutiveHours, quantum)
	if required <= 1 {
		return
	}

	extended := 0
	for {
		grew := false
		for _, r := range activeRuns(slots) {
			length := r.end - r.start
			for length < required {
				fwd := absorbable(slots, r.end)
				bwd := absorbable(slots, r.start-1)
				pick := -1
				switch {
				case fwd >= 0 && bwd >= 0:
					if betterPrice(slots[bwd].Price, slots[fwd].Price, cfg.Inverted()) {
						pick = bwd
					} else {
						pick = fwd
					}
				case fwd >= 0:
					pick = fwd
				case bwd >= 0:
					pick = bwd
				}
				if pick < 0 {
					break
				}
				slots[pick].Status = StatusActive
				extended++
				grew = true
				if pick == r.end {
					r.end++
				} else {
					r.start--
				}
				length++
			}
		}
		// Extensions can merge neighbouring runs; re-scan until stable.
		if !grew {
			break
		}
	}

	if extended > 0 {
		logger.Debug().Int("slots", extended).Msg("extended short active runs to minimum length")
	}
}

// absorbable returns idx when the slot at idx may join an active run, -1
// otherwise.
func absorbable(slots []Slot, idx int) int {
	if idx < 0 || idx >= len(slots) {
		return -1
	}
	s := slots[idx]
	if s.Status != StatusStandby || s.ForceInactive {
		return -1
	}
	return idx
}

// betterPrice reports whether a is preferable to b under the selection mode.
// Equal prices are not "better", which keeps the forward preference on ties.
func betterPrice(a, b decimal.Decimal, inverted bool) bool {
	if inverted {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}
