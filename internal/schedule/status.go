package schedule

import "time"

// currentSlotIndex locates the slot containing now using the half-open
// convention [start, end), so an instant exactly on a boundary belongs to the
// slot that starts there.
func currentSlotIndex(slots []Slot, now time.Time) (int, bool) {
	for i := range slots {
		if slots[i].Contains(now) {
			return i, true
		}
	}
	return 0, false
}

// resolveStatus applies the final precedence forced_off > forced_on >
// excluded > active/standby for the slot containing now. The forced flags
// originate outside the engine; the resolver only honours them.
func resolveStatus(slots []Slot, now time.Time, forceOn, forceOff bool) (Status, int, bool) {
	if forceOff {
		idx, ok := currentSlotIndex(slots, now)
		return StatusForcedOff, idx, ok
	}
	if forceOn {
		idx, ok := currentSlotIndex(slots, now)
		return StatusForcedOn, idx, ok
	}
	idx, ok := currentSlotIndex(slots, now)
	if !ok {
		return StatusStandby, 0, false
	}
	return slots[idx].Status, idx, true
}

// nextChange returns the start of the nearest following slot whose scheduled
// status differs from the current slot's, or nil when the remainder of the
// series is uniform. Transitions are derived from the schedule itself, which
// is what drives the appliance once any external override clears.
func nextChange(slots []Slot, currentIdx int) *time.Time {
	current := slots[currentIdx].Status
	for i := currentIdx + 1; i < len(slots); i++ {
		if slots[i].Status != current {
			t := slots[i].Start
			return &t
		}
	}
	return nil
}

// lastActiveEnd returns the end of the most recent active slot at or before
// now, feeding the persisted last_on_time.
func lastActiveEnd(slots []Slot, now time.Time) *time.Time {
	var latest *time.Time
	for i := range slots {
		if slots[i].Status != StatusActive {
			continue
		}
		if slots[i].Start.After(now) {
			break
		}
		end := slots[i].End
		if end.After(now) {
			end = now
		}
		e := end
		latest = &e
	}
	return latest
}
