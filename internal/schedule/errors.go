package schedule

import "errors"

var (
	// ErrData marks a malformed price series. Compute recovers from it by
	// switching to the emergency schedule instead of propagating.
	ErrData = errors.New("schedule: invalid price data")

	// ErrConfig marks an invalid option combination. It is surfaced to the
	// caller before any schedule is computed and never silently clamped.
	ErrConfig = errors.New("schedule: invalid configuration")

	// ErrState marks corrupt persisted state. Compute recovers from it by
	// discarding the state and treating the computation as a first run.
	ErrState = errors.New("schedule: invalid persisted state")
)
