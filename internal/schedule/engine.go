package schedule

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Engine computes appliance schedules. It holds no mutable state: every
// Compute call works on its own input snapshot, so concurrent use is safe as
// long as the caller serialises access to each instance's persisted State.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "engine").Logger()}
}

// Compute maps one immutable snapshot (price series, configuration, persisted
// state, now) to an annotated schedule, the current status, and the state to
// persist for the next run.
//
// An invalid configuration is rejected before anything is computed. A
// malformed or empty price series degrades to the emergency schedule instead
// of failing. Corrupt persisted state is discarded and the computation
// proceeds as a first run.
func (e *Engine) Compute(in Input) (Result, State, error) {
	if err := in.Config.Validate(); err != nil {
		return Result{}, in.State, err
	}

	st := e.sanitizeState(in.State, in.Now)

	slots, err := normalize(in.Series)
	if err != nil {
		e.logger.Error().Err(err).Msg("price series unusable, switching to emergency schedule")
		return emergencyResult(in.Now, in.ForceOn, in.ForceOff), st, nil
	}
	if len(slots) == 0 {
		e.logger.Error().Msg("no price data available, switching to emergency schedule")
		return emergencyResult(in.Now, in.ForceOn, in.ForceOff), st, nil
	}

	markExclusions(slots, in.Config)
	classifyThresholds(slots, in.Config)

	switch in.Config.Strategy {
	case StrategyLowestPrice:
		applyLowestPrice(slots, in.Config, e.logger)
	case StrategyMinimumRuntime:
		applyMinimumRuntime(slots, in.Config, st, in.Now, e.logger)
	}

	applyForceActive(slots)
	enforceMinConsecutive(slots, in.Config, e.logger)
	if !in.ForceOn && !in.ForceOff {
		applyCommitment(slots, in.Config, st, in.Now, e.logger)
	}
	applyForceInactive(slots)

	status, currentIdx, haveCurrent := resolveStatus(slots, in.Now, in.ForceOn, in.ForceOff)

	res := Result{
		Slots:         slots,
		CurrentStatus: status,
	}
	res.MinPrice, res.MaxPrice = priceExtremes(slots)
	if haveCurrent {
		p := slots[currentIdx].Price
		res.CurrentPrice = &p
		res.NextChangeAt = nextChange(slots, currentIdx)
	}
	for i := range slots {
		if slots[i].Status == StatusActive {
			res.ActiveSlotCount++
		}
	}
	if in.Config.Strategy == StrategyLowestPrice {
		res.ActiveHoursInPeriod = activeHoursInCurrentPeriod(slots, in.Config, in.Now)
	} else {
		res.ActiveHoursInPeriod = (time.Duration(res.ActiveSlotCount) * quantumOf(slots)).Hours()
	}

	next := e.nextState(st, slots, in, currentIdx, haveCurrent)
	res.LastOnTime = next.LastOnTime

	return res, next, nil
}

// sanitizeState discards corrupt persisted state, logging the recovery. A
// state value from the future cannot describe appliance history; the
// computation restarts from a clean slate as if it were a first run.
func (e *Engine) sanitizeState(st State, now time.Time) State {
	if st.ActiveBlockStart != nil && st.ActiveBlockStart.After(now) {
		e.logger.Warn().
			Time("active_block_start", *st.ActiveBlockStart).
			Msg(fmt.Sprintf("%v: active block start in the future, discarding state", ErrState))
		st.ActiveBlockStart = nil
	}
	if st.LastOnTime != nil && st.LastOnTime.After(now) {
		e.logger.Warn().
			Time("last_on_time", *st.LastOnTime).
			Msg(fmt.Sprintf("%v: last on time in the future, discarding state", ErrState))
		st.LastOnTime = nil
	}
	return st
}

// nextState derives the state to persist after this computation.
func (e *Engine) nextState(prev State, slots []Slot, in Input, currentIdx int, haveCurrent bool) State {
	next := State{LastOnTime: prev.LastOnTime}

	if end := lastActiveEnd(slots, in.Now); end != nil {
		if next.LastOnTime == nil || end.After(*next.LastOnTime) {
			next.LastOnTime = end
		}
	}

	if in.ForceOn || in.ForceOff || !haveCurrent {
		// External overrides suspend the commitment; it restarts on the next
		// organic standby-to-active transition.
		return next
	}
	active := slots[currentIdx].Status == StatusActive
	next.ActiveBlockStart = nextBlockStart(prev.ActiveBlockStart, active, slots[currentIdx].Start)
	return next
}

func priceExtremes(slots []Slot) (*decimal.Decimal, *decimal.Decimal) {
	if len(slots) == 0 {
		return nil, nil
	}
	min, max := slots[0].Price, slots[0].Price
	for _, s := range slots[1:] {
		if s.Price.LessThan(min) {
			min = s.Price
		}
		if s.Price.GreaterThan(max) {
			max = s.Price
		}
	}
	return &min, &max
}
