package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/pool-booking/internal/model"
)

// PoolRepo reads pools and their weekly schedules.  Writes belong to
// catalog management and are not exposed here.
type PoolRepo struct{ db *sql.DB }

func NewPoolRepo(db *sql.DB) *PoolRepo { return &PoolRepo{db: db} }

const poolColumns = `id, name, address, max_capacity, session_duration_minutes, created_at`

func scanPool(row interface{ Scan(...any) error }) (model.Pool, error) {
	var (
		p       model.Pool
		minutes int
		created dbTime
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Address, &p.MaxCapacity, &minutes, &created); err != nil {
		return model.Pool{}, err
	}
	p.SessionDuration = time.Duration(minutes) * time.Minute
	p.CreatedAt = created.Time
	return p, nil
}

// GetByName returns the pool with the given unique name.
func (r *PoolRepo) GetByName(ctx context.Context, name string) (model.Pool, error) {
	p, err := scanPool(r.db.QueryRowContext(ctx,
		`SELECT `+poolColumns+` FROM pools WHERE name = ? LIMIT 1`, name))
	if err != nil {
		return model.Pool{}, noRows(err)
	}
	return p, nil
}

// List returns all pools ordered by name.
func (r *PoolRepo) List(ctx context.Context) ([]model.Pool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+poolColumns+` FROM pools ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Schedule returns the opening window of poolID on an ISO weekday.
func (r *PoolRepo) Schedule(ctx context.Context, poolID uint64, day int) (model.PoolSchedule, error) {
	var opening, closing string
	err := r.db.QueryRowContext(ctx,
		`SELECT opening_time, closing_time FROM pool_schedules WHERE pool_id = ? AND day_of_week = ?`,
		poolID, day).Scan(&opening, &closing)
	if err != nil {
		return model.PoolSchedule{}, noRows(err)
	}
	return buildSchedule(poolID, day, opening, closing)
}

// Schedules returns the week of poolID ordered by day.
func (r *PoolRepo) Schedules(ctx context.Context, poolID uint64) ([]model.PoolSchedule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT day_of_week, opening_time, closing_time FROM pool_schedules WHERE pool_id = ? ORDER BY day_of_week`,
		poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PoolSchedule
	for rows.Next() {
		var (
			day              int
			opening, closing string
		)
		if err := rows.Scan(&day, &opening, &closing); err != nil {
			return nil, err
		}
		s, err := buildSchedule(poolID, day, opening, closing)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func buildSchedule(poolID uint64, day int, opening, closing string) (model.PoolSchedule, error) {
	open, err := parseClock(opening)
	if err != nil {
		return model.PoolSchedule{}, fmt.Errorf("pool %d day %d: %w", poolID, day, err)
	}
	closeAt, err := parseClock(closing)
	if err != nil {
		return model.PoolSchedule{}, fmt.Errorf("pool %d day %d: %w", poolID, day, err)
	}
	return model.PoolSchedule{PoolID: poolID, DayOfWeek: day, Opening: open, Closing: closeAt}, nil
}
