package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertStateSQL = `INSERT INTO scheduler_state (
        instance,
        active_block_start,
        last_on_time,
        updated_at
    ) VALUES (
        $1,$2,$3,NOW()
    )
    ON CONFLICT (instance) DO UPDATE
    SET
        active_block_start = EXCLUDED.active_block_start,
        last_on_time       = EXCLUDED.last_on_time,
        updated_at         = NOW();`

	loadStateSQL = `SELECT
        instance,
        active_block_start,
        last_on_time,
        updated_at
    FROM scheduler_state
    WHERE instance = $1;`

	deleteStateSQL = `DELETE FROM scheduler_state WHERE instance = $1;`

	insertSnapshotSQL = `INSERT INTO schedule_snapshots (
        instance,
        computed_at,
        current_status,
        emergency,
        slot_count,
        slots
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id, created_at;`

	latestSnapshotSQL = `SELECT
        id,
        instance,
        computed_at,
        current_status,
        emergency,
        slot_count,
        slots,
        created_at
    FROM schedule_snapshots
    WHERE instance = $1
    ORDER BY computed_at DESC
    LIMIT 1;`

	listSnapshotsBetweenSQL = `SELECT
        id,
        instance,
        computed_at,
        current_status,
        emergency,
        slot_count,
        slots,
        created_at
    FROM schedule_snapshots
    WHERE instance = $1
      AND computed_at >= $2
      AND computed_at < $3
    ORDER BY computed_at;`

	deleteSnapshotsBeforeSQL = `DELETE FROM schedule_snapshots WHERE computed_at < $1;`

	upsertPriceSQL = `INSERT INTO price_slots (
        area,
        start_ts,
        end_ts,
        price,
        currency
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (area, start_ts) DO UPDATE
    SET
        end_ts   = EXCLUDED.end_ts,
        price    = EXCLUDED.price,
        currency = EXCLUDED.currency;`

	listPricesBetweenSQL = `SELECT
        area,
        start_ts,
        end_ts,
        price,
        currency,
        created_at
    FROM price_slots
    WHERE area = $1
      AND start_ts >= $2
      AND start_ts < $3
    ORDER BY start_ts;`

	deletePricesBeforeSQL = `DELETE FROM price_slots WHERE end_ts < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// StateStore defines operations for scheduler state persistence.
type StateStore interface {
	UpsertState(ctx context.Context, rec StateRecord) error
	LoadState(ctx context.Context, instance string) (StateRecord, bool, error)
	DeleteState(ctx context.Context, instance string) error
}

// SnapshotStore defines operations for schedule snapshot auditing.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, snap SnapshotRecord) (SnapshotRecord, error)
	LatestSnapshot(ctx context.Context, instance string) (SnapshotRecord, bool, error)
	ListSnapshotsBetween(ctx context.Context, instance string, from, to time.Time) ([]SnapshotRecord, error)
	DeleteSnapshotsBefore(ctx context.Context, olderThan time.Time) error
}

// PriceStore defines operations for market price persistence.
type PriceStore interface {
	UpsertPrices(ctx context.Context, recs []PriceRecord) error
	ListPricesBetween(ctx context.Context, area string, from, to time.Time) ([]PriceRecord, error)
	DeletePricesBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to scheduler state, snapshots, and prices.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertState persists or updates the scheduler state of an instance.
func (s *Store) UpsertState(ctx context.Context, rec StateRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var blockStart, lastOn interface{}
	if rec.ActiveBlockStart != nil {
		blockStart = *rec.ActiveBlockStart
	}
	if rec.LastOnTime != nil {
		lastOn = *rec.LastOnTime
	}

	if _, execErr := pool.Exec(ctx, upsertStateSQL, rec.Instance, blockStart, lastOn); execErr != nil {
		return fmt.Errorf("upsert scheduler state: %w", execErr)
	}
	return nil
}

// LoadState loads the scheduler state of an instance. The second return value
// is false when no state has been stored yet.
func (s *Store) LoadState(ctx context.Context, instance string) (StateRecord, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return StateRecord{}, false, err
	}

	var (
		rec        StateRecord
		blockStart sql.NullTime
		lastOn     sql.NullTime
	)
	row := pool.QueryRow(ctx, loadStateSQL, instance)
	if scanErr := row.Scan(&rec.Instance, &blockStart, &lastOn, &rec.UpdatedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return StateRecord{}, false, nil
		}
		return StateRecord{}, false, fmt.Errorf("load scheduler state: %w", scanErr)
	}

	if blockStart.Valid {
		value := blockStart.Time
		rec.ActiveBlockStart = &value
	}
	if lastOn.Valid {
		value := lastOn.Time
		rec.LastOnTime = &value
	}
	return rec, true, nil
}

// DeleteState discards the stored state of an instance.
func (s *Store) DeleteState(ctx context.Context, instance string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteStateSQL, instance); execErr != nil {
		return fmt.Errorf("delete scheduler state: %w", execErr)
	}
	return nil
}

// InsertSnapshot persists a computed schedule.
func (s *Store) InsertSnapshot(ctx context.Context, snap SnapshotRecord) (SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SnapshotRecord{}, err
	}

	row := pool.QueryRow(ctx, insertSnapshotSQL,
		snap.Instance,
		snap.ComputedAt,
		snap.CurrentStatus,
		snap.Emergency,
		snap.SlotCount,
		[]byte(snap.Slots),
	)
	if scanErr := row.Scan(&snap.ID, &snap.CreatedAt); scanErr != nil {
		return SnapshotRecord{}, fmt.Errorf("insert snapshot: %w", scanErr)
	}
	return snap, nil
}

// LatestSnapshot returns the most recently computed schedule of an instance.
func (s *Store) LatestSnapshot(ctx context.Context, instance string) (SnapshotRecord, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return SnapshotRecord{}, false, err
	}

	row := pool.QueryRow(ctx, latestSnapshotSQL, instance)
	snap, scanErr := scanSnapshot(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return SnapshotRecord{}, false, nil
		}
		return SnapshotRecord{}, false, fmt.Errorf("latest snapshot: %w", scanErr)
	}
	return snap, true, nil
}

// ListSnapshotsBetween lists snapshots computed within a time window.
func (s *Store) ListSnapshotsBetween(ctx context.Context, instance string, from, to time.Time) ([]SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, instance, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	snaps := make([]SnapshotRecord, 0)
	for rows.Next() {
		snap, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

// DeleteSnapshotsBefore deletes historical snapshots.
func (s *Store) DeleteSnapshotsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteSnapshotsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete snapshots before: %w", execErr)
	}
	return nil
}

// UpsertPrices persists a batch of market price slots.
func (s *Store) UpsertPrices(ctx context.Context, recs []PriceRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if _, execErr := pool.Exec(ctx, upsertPriceSQL,
			rec.Area,
			rec.Start,
			rec.End,
			rec.Price,
			rec.Currency,
		); execErr != nil {
			return fmt.Errorf("upsert price slot: %w", execErr)
		}
	}
	return nil
}

// ListPricesBetween lists price slots starting within a time window.
func (s *Store) ListPricesBetween(ctx context.Context, area string, from, to time.Time) ([]PriceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPricesBetweenSQL, area, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list prices between: %w", queryErr)
	}
	defer rows.Close()

	recs := make([]PriceRecord, 0)
	for rows.Next() {
		var rec PriceRecord
		if err := rows.Scan(
			&rec.Area,
			&rec.Start,
			&rec.End,
			&rec.Price,
			&rec.Currency,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return recs, nil
}

// DeletePricesBefore deletes price slots that ended before the cutoff.
func (s *Store) DeletePricesBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deletePricesBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete prices before: %w", execErr)
	}
	return nil
}

func scanSnapshot(row pgx.Row) (SnapshotRecord, error) {
	var (
		snap  SnapshotRecord
		slots json.RawMessage
	)
	if err := row.Scan(
		&snap.ID,
		&snap.Instance,
		&snap.ComputedAt,
		&snap.CurrentStatus,
		&snap.Emergency,
		&snap.SlotCount,
		&slots,
		&snap.CreatedAt,
	); err != nil {
		return SnapshotRecord{}, err
	}
	snap.Slots = slots
	return snap, nil
}
