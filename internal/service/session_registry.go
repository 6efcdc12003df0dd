package service

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/repository"
)

// SessionRegistry owns session records and is the only writer of
// remaining_capacity.
type SessionRegistry struct {
	sessions  *repository.SessionRepo
	schedules *PoolSchedules
	log       *zap.Logger
}

func NewSessionRegistry(store *repository.Store, schedules *PoolSchedules, logger *zap.Logger) *SessionRegistry {
	return &SessionRegistry{sessions: store.Sessions, schedules: schedules, log: logger.Named("sessions")}
}

// Lookup returns the session of poolName starting exactly at start.
func (r *SessionRegistry) Lookup(ctx context.Context, poolName string, start time.Time) (model.Session, error) {
	s, err := r.sessions.FindByPoolAndStart(ctx, poolName, start)
	if err != nil {
		return model.Session{}, translate(err, "session", sessionKey(poolName, start))
	}
	return s, nil
}

// LookupTx is Lookup inside the caller's transaction.
func (r *SessionRegistry) LookupTx(ctx context.Context, tx *sql.Tx, poolName string, start time.Time) (model.Session, error) {
	s, err := r.sessions.FindByPoolAndStartTx(ctx, tx, poolName, start)
	if err != nil {
		return model.Session{}, translate(err, "session", sessionKey(poolName, start))
	}
	return s, nil
}

// Decrement takes one seat from s and returns the updated session.  It
// fails with ErrCapacityExhausted when no seat is left.
func (r *SessionRegistry) Decrement(ctx context.Context, tx *sql.Tx, s model.Session) (model.Session, error) {
	key := sessionKey(s.PoolName, s.StartTime)
	if err := r.sessions.DecrementTx(ctx, tx, s.ID); err != nil {
		return model.Session{}, translate(err, "session", key)
	}
	updated, err := r.sessions.GetByIDTx(ctx, tx, s.ID)
	if err != nil {
		return model.Session{}, translate(err, "session", key)
	}
	return updated, nil
}

// Increment gives n seats back to s and returns the updated session.  A
// result above the pool's capacity means a booking was released twice
// somewhere upstream; it is logged, not clamped.
func (r *SessionRegistry) Increment(ctx context.Context, tx *sql.Tx, s model.Session, n int) (model.Session, error) {
	key := sessionKey(s.PoolName, s.StartTime)
	if n <= 0 {
		return s, nil
	}
	if err := r.sessions.IncrementTx(ctx, tx, s.ID, n); err != nil {
		return model.Session{}, translate(err, "session", key)
	}
	updated, err := r.sessions.GetByIDTx(ctx, tx, s.ID)
	if err != nil {
		return model.Session{}, translate(err, "session", key)
	}
	if updated.RemainingCapacity > updated.MaxCapacity {
		r.log.Warn("remaining capacity exceeds pool capacity",
			zap.Uint64("session_id", updated.ID),
			zap.String("pool", updated.PoolName),
			zap.Time("start", updated.StartTime),
			zap.Int("remaining", updated.RemainingCapacity),
			zap.Int("max", updated.MaxCapacity),
		)
	}
	return updated, nil
}

// CreateSession schedules a session of poolName at start.  The session
// lasts the pool's default duration, must fit inside the opening window of
// its day and starts with the pool's full capacity.
func (r *SessionRegistry) CreateSession(ctx context.Context, poolName string, start time.Time) (s model.Session, err error) {
	ctx, span := tracer.Start(ctx, "SessionRegistry.CreateSession")
	span.SetAttributes(attribute.String("pool", poolName), attribute.String("start", start.UTC().Format(time.RFC3339)))
	defer func() { endSpan(span, err) }()

	start = start.UTC().Truncate(time.Second)
	key := sessionKey(poolName, start)

	pool, err := r.schedules.Pool(ctx, poolName)
	if err != nil {
		return model.Session{}, err
	}
	window, ok, err := r.schedules.Window(ctx, pool.ID, model.ISOWeekday(start))
	if err != nil {
		return model.Session{}, err
	}
	end := start.Add(pool.SessionDuration)
	if !ok || !window.Covers(start, end) {
		return model.Session{}, fail(ErrInvalidArgument, "session", key)
	}

	id, err := r.sessions.Create(ctx, model.Session{
		PoolID:            pool.ID,
		StartTime:         start,
		EndTime:           end,
		RemainingCapacity: pool.MaxCapacity,
	})
	if err != nil {
		return model.Session{}, translate(err, "session", key)
	}
	r.log.Info("session created", zap.Uint64("session_id", id), zap.String("pool", poolName), zap.Time("start", start))
	return r.Lookup(ctx, poolName, start)
}

// ListSessions returns the sessions of poolName starting in [from, to).
func (r *SessionRegistry) ListSessions(ctx context.Context, poolName string, from, to time.Time) ([]model.Session, error) {
	if _, err := r.schedules.Pool(ctx, poolName); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, fail(ErrInvalidArgument, "range", from.UTC().Format(time.RFC3339)+"/"+to.UTC().Format(time.RFC3339))
	}
	return r.sessions.ListByPool(ctx, poolName, from, to)
}
