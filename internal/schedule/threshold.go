package schedule

// classifyThresholds tags every non-excluded slot with its threshold overrides
// before strategy selection runs. In cheapest mode a price strictly below
// always_cheap forces activation and a price at or above always_expensive
// forbids it; most_expensive mode swaps the roles of the two thresholds.
// ForceInactive beats every other signal and is applied as the last override;
// ForceActive adds bonus activations that never count against a quota.
func classifyThresholds(slots []Slot, cfg Config) {
	cheap := cfg.AlwaysCheapPrice
	expensive := cfg.AlwaysExpensivePrice
	if cheap == nil && expensive == nil {
		return
	}

	for i := range slots {
		if slots[i].Status == StatusExcluded {
			continue
		}
		price := slots[i].Price
		if cfg.Inverted() {
			if expensive != nil && price.GreaterThan(*expensive) {
				slots[i].ForceActive = true
			}
			if cheap != nil && !price.GreaterThan(*cheap) {
				slots[i].ForceInactive = true
			}
		} else {
			if cheap != nil && price.LessThan(*cheap) {
				slots[i].ForceActive = true
			}
			if expensive != nil && !price.LessThan(*expensive) {
				slots[i].ForceInactive = true
			}
		}
		if slots[i].ForceInactive {
			slots[i].ForceActive = false
		}
	}
}

// applyForceActive activates tagged bonus slots on top of the strategy
// selection.
func applyForceActive(slots []Slot) {
	for i := range slots {
		if slots[i].ForceActive && slots[i].Status == StatusStandby {
			slots[i].Status = StatusActive
		}
	}
}

// applyForceInactive is the final override pass: no force-inactive slot stays
// active, regardless of strategy, enforcer, or commitment decisions.
func applyForceInactive(slots []Slot) {
	for i := range slots {
		if slots[i].ForceInactive && slots[i].Status == StatusActive {
			slots[i].Status = StatusStandby
		}
	}
}
