package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"power-saver/internal/config"
	"power-saver/internal/control"
	"power-saver/internal/pricing"
	"power-saver/internal/schedule"
	"power-saver/internal/scheduler"
	"power-saver/internal/storage"
)

// Service orchestrates price fetching, schedule computation, persistence, and
// relay control.
type Service struct {
	scheduler *scheduler.Scheduler
	engine    *schedule.Engine
	source    pricing.Source
	states    storage.StateStore
	snapshots storage.SnapshotStore
	prices    storage.PriceStore
	sw        control.Switch
	logger    zerolog.Logger

	instance  string
	area      string
	currency  string
	engineCfg schedule.Config
	locker    storage.AdvisoryLocker
	lockKey   int64
	retention time.Duration

	mu        sync.RWMutex
	forceOn   bool
	forceOff  bool
	latest    *Snapshot
	lastApply *bool
}

// Options bundle the collaborators of the service.
type Options struct {
	Scheduler *scheduler.Scheduler
	Engine    *schedule.Engine
	Source    pricing.Source
	States    storage.StateStore
	Snapshots storage.SnapshotStore
	Prices    storage.PriceStore
	Switch    control.Switch
}

// New constructs the scheduling service. The planner section must already be
// validated by config loading.
func New(cfg *config.Config, opts Options, logger zerolog.Logger) (*Service, error) {
	engineCfg, err := cfg.Planner.EngineConfig()
	if err != nil {
		return nil, err
	}

	var locker storage.AdvisoryLocker
	if l, ok := opts.States.(storage.AdvisoryLocker); ok {
		locker = l
	}

	sw := opts.Switch
	if sw == nil {
		sw = control.NopSwitch{}
	}

	return &Service{
		scheduler: opts.Scheduler,
		engine:    opts.Engine,
		source:    opts.Source,
		states:    opts.States,
		snapshots: opts.Snapshots,
		prices:    opts.Prices,
		sw:        sw,
		logger:    logger.With().Str("component", "service").Logger(),
		instance:  cfg.Planner.Instance,
		area:      cfg.Pricing.Area,
		currency:  cfg.Pricing.Currency,
		engineCfg: engineCfg,
		locker:    locker,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
		retention: cfg.Scheduler.Retention,
	}, nil
}

// Run begins the aligned recomputation loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// SetOverride flips the manual force flags. They take effect on the next tick.
func (s *Service) SetOverride(forceOn, forceOff bool) {
	s.mu.Lock()
	s.forceOn = forceOn
	s.forceOff = forceOff
	s.mu.Unlock()
	s.logger.Info().Bool("force_on", forceOn).Bool("force_off", forceOff).Msg("manual override updated")
}

// Latest returns the most recently computed snapshot, nil before the first tick.
func (s *Service) Latest() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// ProcessTick recomputes the schedule for one aligned tick.
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeTick(ctx, tick)
}

func (s *Service) executeTick(ctx context.Context, tick time.Time) error {
	points, err := s.collectPrices(ctx, tick)
	if err != nil {
		s.logger.Error().Err(err).Time("tick", tick).Msg("price collection failed, computing from empty series")
		points = nil
	}

	state, err := s.loadState(ctx)
	if err != nil {
		// ErrState semantics: a broken stored state never blocks scheduling.
		s.logger.Warn().Err(err).Msg("stored state unusable, treating as first run")
		state = schedule.State{}
	}

	s.mu.RLock()
	forceOn, forceOff := s.forceOn, s.forceOff
	s.mu.RUnlock()

	result, nextState, err := s.engine.Compute(schedule.Input{
		Series:   points,
		Config:   s.engineCfg,
		State:    state,
		Now:      tick,
		ForceOn:  forceOn,
		ForceOff: forceOff,
	})
	if err != nil {
		return fmt.Errorf("compute schedule: %w", err)
	}

	if err := s.persistState(ctx, nextState); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist scheduler state")
	}

	snap := s.buildSnapshot(tick, result)
	if err := s.persistSnapshot(ctx, snap); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist snapshot")
	}

	s.mu.Lock()
	s.latest = &snap
	s.mu.Unlock()

	s.applyRelay(ctx, tick, result)
	s.pruneHistory(ctx, tick)

	s.logger.Info().Time("tick", tick).
		Str("status", string(result.CurrentStatus)).
		Bool("emergency", result.EmergencyMode).
		Int("active_slots", result.ActiveSlotCount).
		Msg("schedule recomputed")

	return nil
}

// collectPrices fetches today's and tomorrow's series and persists them, then
// falls back to stored prices when the feed is unreachable.
func (s *Service) collectPrices(ctx context.Context, tick time.Time) ([]schedule.RawPoint, error) {
	day := tick.UTC().Truncate(24 * time.Hour)

	var points []schedule.RawPoint
	var fetchErr error
	for _, d := range []time.Time{day, day.Add(24 * time.Hour)} {
		batch, err := s.source.FetchPrices(ctx, d)
		if err != nil {
			fetchErr = err
			continue
		}
		points = append(points, batch...)
	}

	if len(points) > 0 {
		if s.prices != nil {
			if err := s.prices.UpsertPrices(ctx, toPriceRecords(points, s.area, s.currency)); err != nil {
				s.logger.Error().Err(err).Msg("failed to persist price slots")
			}
		}
		return points, nil
	}

	if s.prices != nil {
		stored, err := s.prices.ListPricesBetween(ctx, s.area, day, day.Add(48*time.Hour))
		if err == nil && len(stored) > 0 {
			s.logger.Warn().Int("points", len(stored)).Msg("price feed unavailable, using stored prices")
			return fromPriceRecords(stored)
		}
	}

	if fetchErr != nil {
		return nil, fetchErr
	}
	return nil, nil
}

// loadState reads the persisted state. An unreadable row is discarded so the
// next computation starts from a clean first run.
func (s *Service) loadState(ctx context.Context) (schedule.State, error) {
	if s.states == nil {
		return schedule.State{}, nil
	}
	rec, found, err := s.states.LoadState(ctx, s.instance)
	if err != nil {
		if delErr := s.states.DeleteState(ctx, s.instance); delErr != nil {
			s.logger.Error().Err(delErr).Msg("failed to discard unreadable state")
		}
		return schedule.State{}, err
	}
	if !found {
		return schedule.State{}, nil
	}
	return schedule.State{
		ActiveBlockStart: rec.ActiveBlockStart,
		LastOnTime:       rec.LastOnTime,
	}, nil
}

func (s *Service) persistState(ctx context.Context, state schedule.State) error {
	if s.states == nil {
		return nil
	}
	return s.states.UpsertState(ctx, storage.StateRecord{
		Instance:         s.instance,
		ActiveBlockStart: state.ActiveBlockStart,
		LastOnTime:       state.LastOnTime,
	})
}

func (s *Service) persistSnapshot(ctx context.Context, snap Snapshot) error {
	if s.snapshots == nil {
		return nil
	}
	slots, err := json.Marshal(snap.Slots)
	if err != nil {
		return fmt.Errorf("marshal snapshot slots: %w", err)
	}
	_, err = s.snapshots.InsertSnapshot(ctx, storage.SnapshotRecord{
		Instance:      snap.Instance,
		ComputedAt:    snap.ComputedAt,
		CurrentStatus: string(snap.CurrentStatus),
		Emergency:     snap.Emergency,
		SlotCount:     len(snap.Slots),
		Slots:         slots,
	})
	return err
}

// applyRelay pushes the resolved state to the switch on every tick. Repeating
// the current state keeps flaky relays converged.
func (s *Service) applyRelay(ctx context.Context, tick time.Time, result schedule.Result) {
	active := result.ActiveNow()

	s.mu.Lock()
	changed := s.lastApply == nil || *s.lastApply != active
	s.lastApply = &active
	s.mu.Unlock()

	if changed {
		s.logger.Info().Time("tick", tick).Bool("active", active).Msg("relay transition")
	}

	if err := s.sw.Apply(ctx, active); err != nil {
		s.logger.Error().Err(err).Bool("active", active).Msg("failed to apply relay state")
	}
}

// pruneHistory drops snapshots and price slots older than the retention
// window. Retention 0 keeps everything.
func (s *Service) pruneHistory(ctx context.Context, tick time.Time) {
	if s.retention <= 0 {
		return
	}
	cutoff := tick.Add(-s.retention)

	if s.snapshots != nil {
		if err := s.snapshots.DeleteSnapshotsBefore(ctx, cutoff); err != nil {
			s.logger.Error().Err(err).Time("cutoff", cutoff).Msg("failed to prune snapshots")
		}
	}
	if s.prices != nil {
		if err := s.prices.DeletePricesBefore(ctx, cutoff); err != nil {
			s.logger.Error().Err(err).Time("cutoff", cutoff).Msg("failed to prune price slots")
		}
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func toPriceRecords(points []schedule.RawPoint, area, currency string) []storage.PriceRecord {
	recs := make([]storage.PriceRecord, 0, len(points))
	for _, p := range points {
		recs = append(recs, storage.PriceRecord{
			Area:     area,
			Start:    p.Start,
			End:      p.End,
			Price:    p.Price.String(),
			Currency: currency,
		})
	}
	return recs
}

func fromPriceRecords(recs []storage.PriceRecord) ([]schedule.RawPoint, error) {
	points := make([]schedule.RawPoint, 0, len(recs))
	for _, rec := range recs {
		price, err := parsePrice(rec.Price)
		if err != nil {
			return nil, err
		}
		points = append(points, schedule.RawPoint{Start: rec.Start, End: rec.End, Price: price})
	}
	return points, nil
}

var errEmptyPrice = errors.New("empty stored price")
