package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/pool-booking/internal/database"
	"github.com/iliyamo/pool-booking/internal/model"
)

// SessionRepo provides access to the sessions table.  remaining_capacity
// is only ever changed through DecrementTx and IncrementTx, each a single
// guarded UPDATE, never a read followed by a write.
type SessionRepo struct{ db *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionSelect = `SELECT s.id, s.pool_id, p.name, p.address, p.max_capacity, s.start_time, s.end_time, s.remaining_capacity
	FROM sessions s
	JOIN pools p ON p.id = s.pool_id`

func scanSession(row interface{ Scan(...any) error }) (model.Session, error) {
	var (
		s          model.Session
		start, end dbTime
	)
	if err := row.Scan(&s.ID, &s.PoolID, &s.PoolName, &s.PoolAddress, &s.MaxCapacity, &start, &end, &s.RemainingCapacity); err != nil {
		return model.Session{}, err
	}
	s.StartTime = start.Time
	s.EndTime = end.Time
	return s, nil
}

// FindByPoolAndStart returns the session of poolName starting exactly at start.
func (r *SessionRepo) FindByPoolAndStart(ctx context.Context, poolName string, start time.Time) (model.Session, error) {
	return findSession(ctx, r.db, poolName, start)
}

// FindByPoolAndStartTx is FindByPoolAndStart inside the caller's transaction.
func (r *SessionRepo) FindByPoolAndStartTx(ctx context.Context, tx *sql.Tx, poolName string, start time.Time) (model.Session, error) {
	return findSession(ctx, tx, poolName, start)
}

func findSession(ctx context.Context, q querier, poolName string, start time.Time) (model.Session, error) {
	s, err := scanSession(q.QueryRowContext(ctx,
		sessionSelect+` WHERE p.name = ? AND s.start_time = ? LIMIT 1`,
		poolName, formatTime(start)))
	if err != nil {
		return model.Session{}, noRows(err)
	}
	return s, nil
}

// GetByIDTx re-reads a session inside the caller's transaction.
func (r *SessionRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Session, error) {
	s, err := scanSession(tx.QueryRowContext(ctx, sessionSelect+` WHERE s.id = ?`, id))
	if err != nil {
		return model.Session{}, noRows(err)
	}
	return s, nil
}

// Create inserts a session with remaining capacity set by the caller and
// returns its ID.  A second session at the same (pool, start) yields
// ErrDuplicate.
func (r *SessionRepo) Create(ctx context.Context, s model.Session) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (pool_id, start_time, end_time, remaining_capacity) VALUES (?, ?, ?, ?)`,
		s.PoolID, formatTime(s.StartTime), formatTime(s.EndTime), s.RemainingCapacity)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ListByPool returns the sessions of poolName starting in [from, to).
func (r *SessionRepo) ListByPool(ctx context.Context, poolName string, from, to time.Time) ([]model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		sessionSelect+` WHERE p.name = ? AND s.start_time >= ? AND s.start_time < ? ORDER BY s.start_time`,
		poolName, formatTime(from), formatTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DecrementTx takes one seat from the session.  The WHERE guard makes the
// check and the write one statement, so concurrent callers can never take
// the count below zero; a zero row count means no seat was left.
func (r *SessionRepo) DecrementTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET remaining_capacity = remaining_capacity - 1 WHERE id = ? AND remaining_capacity > 0`,
		id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCapacityExhausted
	}
	return nil
}

// IncrementTx gives n seats back to the session.
func (r *SessionRepo) IncrementTx(ctx context.Context, tx *sql.Tx, id uint64, n int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET remaining_capacity = remaining_capacity + ? WHERE id = ?`,
		n, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
