package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/repository"
)

// PoolSchedules answers read-only questions about pools and their opening
// hours.  Hours are interpreted in UTC.
type PoolSchedules struct {
	pools *repository.PoolRepo
}

func NewPoolSchedules(pools *repository.PoolRepo) *PoolSchedules {
	return &PoolSchedules{pools: pools}
}

// Pool returns the pool called name.
func (p *PoolSchedules) Pool(ctx context.Context, name string) (model.Pool, error) {
	pool, err := p.pools.GetByName(ctx, name)
	if err != nil {
		return model.Pool{}, translate(err, "pool", name)
	}
	return pool, nil
}

// ListPools returns every pool.
func (p *PoolSchedules) ListPools(ctx context.Context) ([]model.Pool, error) {
	return p.pools.List(ctx)
}

// Schedule returns the weekly opening hours of the pool called name.
func (p *PoolSchedules) Schedule(ctx context.Context, name string) (model.Pool, []model.PoolSchedule, error) {
	pool, err := p.Pool(ctx, name)
	if err != nil {
		return model.Pool{}, nil, err
	}
	week, err := p.pools.Schedules(ctx, pool.ID)
	if err != nil {
		return model.Pool{}, nil, err
	}
	return pool, week, nil
}

// Window returns the opening window of poolID on an ISO weekday; ok is
// false when the pool is closed all day.
func (p *PoolSchedules) Window(ctx context.Context, poolID uint64, day int) (model.PoolSchedule, bool, error) {
	s, err := p.pools.Schedule(ctx, poolID, day)
	if errors.Is(err, repository.ErrNotFound) {
		return model.PoolSchedule{}, false, nil
	}
	if err != nil {
		return model.PoolSchedule{}, false, err
	}
	return s, true, nil
}

// IsOpenAt reports whether the pool is open at the given instant.
func (p *PoolSchedules) IsOpenAt(ctx context.Context, poolID uint64, at time.Time) (bool, error) {
	s, ok, err := p.Window(ctx, poolID, model.ISOWeekday(at))
	if err != nil || !ok {
		return false, err
	}
	return s.OpenAt(at), nil
}
