package schedule

import "time"

// secondOfDay returns the wall-clock offset of t within its own day, in the
// location t carries.
func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// inClockRange reports membership of t in the half-open time-of-day interval
// [from, until). A range with until < from wraps across midnight (22:00-06:00
// matches late evening and early morning). Equal boundaries match nothing.
func inClockRange(t time.Time, from, until ClockTime) bool {
	s := secondOfDay(t)
	lo, hi := from.SecondOfDay(), until.SecondOfDay()
	if lo == hi {
		return false
	}
	if lo < hi {
		return s >= lo && s < hi
	}
	return s >= lo || s < hi
}

// markExclusions assigns StatusExcluded to every slot inside the configured
// exclusion range. Excluded slots leave the candidate pool entirely: they can
// never become active and do not count toward any quota.
func markExclusions(slots []Slot, cfg Config) {
	if cfg.ExcludeFrom == nil || cfg.ExcludeUntil == nil {
		return
	}
	for i := range slots {
		if inClockRange(slots[i].Start, *cfg.ExcludeFrom, *cfg.ExcludeUntil) {
			slots[i].Status = StatusExcluded
		}
	}
}

// periodStart returns the start instant of the lowest-price period containing
// t, or false when t lies outside every period. Equal boundaries mean the
// natural calendar day, so every instant belongs to a period.
func periodStart(t time.Time, from, until ClockTime) (time.Time, bool) {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	lo, hi := from.SecondOfDay(), until.SecondOfDay()

	if lo == hi {
		return midnight, true
	}

	s := secondOfDay(t)
	switch {
	case lo < hi:
		if s < lo || s >= hi {
			return time.Time{}, false
		}
		return midnight.Add(from.Offset()), true
	default: // wraparound, e.g. 20:00-08:00
		if s >= lo {
			return midnight.Add(from.Offset()), true
		}
		if s < hi {
			return midnight.AddDate(0, 0, -1).Add(from.Offset()), true
		}
		return time.Time{}, false
	}
}
