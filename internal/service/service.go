// Package service implements the booking capacity-control core: the
// session registry, subscription ledger, validator chain, booking engine
// and expiration sweeper.
package service

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/pool-booking/internal/repository"
)

var tracer = otel.Tracer("github.com/iliyamo/pool-booking/internal/service")

// Services is the wired core.
type Services struct {
	Schedules *PoolSchedules
	Registry  *SessionRegistry
	Ledger    *SubscriptionLedger
	Engine    *BookingEngine
	Sweeper   *Sweeper
}

type options struct {
	now func() time.Time
}

// Option customises New.
type Option func(*options)

// WithClock replaces time.Now; the returned times are used in UTC.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New wires the core over store.  A nil notifier falls back to logging.
func New(store *repository.Store, notifier Notifier, logger *zap.Logger, opts ...Option) *Services {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	now := func() time.Time { return o.now().UTC() }
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}

	schedules := NewPoolSchedules(store.Pools)
	registry := NewSessionRegistry(store, schedules, logger)
	ledger := NewSubscriptionLedger(store, logger, now)
	engine := NewBookingEngine(store, registry, ledger, notifier, logger, now)
	sweeper := NewSweeper(store, ledger, logger, now)

	return &Services{
		Schedules: schedules,
		Registry:  registry,
		Ledger:    ledger,
		Engine:    engine,
		Sweeper:   sweeper,
	}
}

func sessionKey(poolName string, start time.Time) string {
	return fmt.Sprintf("%s@%s", poolName, start.UTC().Format(time.RFC3339))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
