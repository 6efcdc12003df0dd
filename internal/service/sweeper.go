package service

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/pool-booking/internal/database"
	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/repository"
)

// Sweeper reconciles state that goes stale with time: bookings of sessions
// that have started and subscriptions past their duration.
type Sweeper struct {
	db       *sql.DB
	bookings *repository.BookingRepo
	history  *repository.HistoryRepo
	ledger   *SubscriptionLedger
	log      *zap.Logger
	now      func() time.Time
}

func NewSweeper(store *repository.Store, ledger *SubscriptionLedger, logger *zap.Logger, now func() time.Time) *Sweeper {
	return &Sweeper{
		db:       store.DB(),
		bookings: store.Bookings,
		history:  store.History,
		ledger:   ledger,
		log:      logger.Named("sweeper"),
		now:      now,
	}
}

// SweepResult summarises one sweep.
type SweepResult struct {
	AsOf                 time.Time `json:"as_of"`
	CompletedBookings    int       `json:"completed_bookings"`
	ExpiredSubscriptions int       `json:"expired_subscriptions"`
}

// ExpirePastBookings marks every ACTIVE booking whose session started
// before asOf as COMPLETED.  Capacity is left alone.  Running it again
// with the same asOf changes nothing.
func (s *Sweeper) ExpirePastBookings(ctx context.Context, asOf time.Time) (completed int, err error) {
	ctx, span := tracer.Start(ctx, "Sweeper.ExpirePastBookings")
	defer func() {
		span.SetAttributes(attribute.Int("completed", completed))
		endSpan(span, err)
	}()

	asOf = asOf.UTC()
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		keys, err := s.bookings.ListActiveStartedBeforeTx(ctx, tx, asOf)
		if err != nil {
			return err
		}
		done := make([]model.BookingKey, 0, len(keys))
		for _, k := range keys {
			ok, err := s.bookings.TransitionTx(ctx, tx, k, model.BookingActive, model.BookingCompleted)
			if err != nil {
				return err
			}
			if ok {
				done = append(done, k)
			}
		}
		completed = len(done)
		return appendHistory(ctx, tx, s.history, model.ActionCompleted, model.SystemActor, s.now(), done...)
	})
	if err != nil {
		return 0, translate(err, "bookings", asOf.Format(time.RFC3339))
	}
	return completed, nil
}

// ExpireSubscriptions flags subscriptions whose duration ran out by asOf.
func (s *Sweeper) ExpireSubscriptions(ctx context.Context, asOf time.Time) (int, error) {
	return s.ledger.ExpireSubscriptions(ctx, asOf)
}

// Run performs both sweeps as of asOf.
func (s *Sweeper) Run(ctx context.Context, asOf time.Time) (SweepResult, error) {
	res := SweepResult{AsOf: asOf.UTC()}
	var err error
	if res.CompletedBookings, err = s.ExpirePastBookings(ctx, asOf); err != nil {
		return res, err
	}
	if res.ExpiredSubscriptions, err = s.ExpireSubscriptions(ctx, asOf); err != nil {
		return res, err
	}
	if res.CompletedBookings > 0 || res.ExpiredSubscriptions > 0 {
		s.log.Info("sweep finished",
			zap.Time("as_of", res.AsOf),
			zap.Int("completed_bookings", res.CompletedBookings),
			zap.Int("expired_subscriptions", res.ExpiredSubscriptions),
		)
	}
	return res, nil
}

// RunNow performs a sweep as of the current time.
func (s *Sweeper) RunNow(ctx context.Context) (SweepResult, error) {
	return s.Run(ctx, s.now())
}
