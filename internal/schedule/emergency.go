package schedule

import "time"

// defaultQuantum is the slot length used when no price data exists to infer
// one from.
const defaultQuantum = 15 * time.Minute

// emergencyHorizon is how far ahead the synthetic all-active schedule reaches.
const emergencyHorizon = 24 * time.Hour

// emergencyResult builds the fallback schedule used when no usable price data
// exists: a full horizon of quantum-aligned slots, all active, with price
// diagnostics left undefined. Losing price visibility keeps the appliance
// running rather than off.
func emergencyResult(now time.Time, forceOn, forceOff bool) Result {
	start := now.Truncate(defaultQuantum)
	count := int(emergencyHorizon / defaultQuantum)

	slots := make([]Slot, 0, count)
	for i := 0; i < count; i++ {
		s := start.Add(time.Duration(i) * defaultQuantum)
		slots = append(slots, Slot{
			PriceSlot: PriceSlot{Start: s, End: s.Add(defaultQuantum)},
			Status:    StatusActive,
		})
	}

	status := StatusActive
	if forceOff {
		status = StatusForcedOff
	} else if forceOn {
		status = StatusForcedOn
	}

	return Result{
		Slots:               slots,
		CurrentStatus:       status,
		ActiveSlotCount:     count,
		ActiveHoursInPeriod: emergencyHorizon.Hours(),
		EmergencyMode:       true,
	}
}
