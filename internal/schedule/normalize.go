package schedule

import (
	"fmt"
	"sort"
	"time"
)

// normalize merges raw price points into a sorted, deduplicated, gap-checked
// slot sequence. Duplicate start times keep the last point seen, so a fresh
// "tomorrow" payload overrides a stale overlap from "today". An empty input
// yields an empty sequence, which the caller turns into the emergency schedule.
func normalize(points []RawPoint) ([]Slot, error) {
	if len(points) == 0 {
		return nil, nil
	}

	byStart := make(map[time.Time]RawPoint, len(points))
	for _, p := range points {
		byStart[p.Start.UTC()] = p
	}

	slots := make([]Slot, 0, len(byStart))
	for _, p := range byStart {
		if !p.Start.Before(p.End) {
			return nil, fmt.Errorf("%w: slot start %s not before end %s", ErrData, p.Start, p.End)
		}
		slots = append(slots, Slot{
			PriceSlot: PriceSlot{Start: p.Start, End: p.End, Price: p.Price},
			Status:    StatusStandby,
		})
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })

	quantum := slots[0].Duration()
	for i := range slots {
		if slots[i].Duration() != quantum {
			return nil, fmt.Errorf("%w: slot duration %s differs from series quantum %s",
				ErrData, slots[i].Duration(), quantum)
		}
		if i == 0 {
			continue
		}
		prevEnd := slots[i-1].End
		if slots[i].Start.Before(prevEnd) {
			return nil, fmt.Errorf("%w: slot starting %s overlaps previous slot", ErrData, slots[i].Start)
		}
		if slots[i].Start.After(prevEnd) {
			return nil, fmt.Errorf("%w: gap between %s and %s", ErrData, prevEnd, slots[i].Start)
		}
	}

	return slots, nil
}

// quantumOf returns the uniform slot duration of a normalised series.
func quantumOf(slots []Slot) time.Duration {
	if len(slots) == 0 {
		return defaultQuantum
	}
	return slots[0].Duration()
}

// hoursToSlots converts an hour quota into a slot count for the given quantum.
func hoursToSlots(hours float64, quantum time.Duration) int {
	if quantum <= 0 {
		return 0
	}
	n := int(hours*float64(time.Hour)/float64(quantum) + 0.5)
	if n < 0 {
		return 0
	}
	return n
}
