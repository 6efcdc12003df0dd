package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/pool-booking/internal/database"
	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/repository"
)

// SubscriptionLedger decides whether a user's subscription entitles a
// booking and keeps the remaining-bookings counters.
type SubscriptionLedger struct {
	db       *sql.DB
	users    *repository.UserRepo
	subs     *repository.SubscriptionRepo
	bookings *repository.BookingRepo
	log      *zap.Logger
	now      func() time.Time
}

func NewSubscriptionLedger(store *repository.Store, logger *zap.Logger, now func() time.Time) *SubscriptionLedger {
	return &SubscriptionLedger{
		db:       store.DB(),
		users:    store.Users,
		subs:     store.Subscriptions,
		bookings: store.Bookings,
		log:      logger.Named("subscriptions"),
		now:      now,
	}
}

// FindActiveSubscription returns the user's ACTIVE subscription with
// bookings left, or nil when there is none.
func (l *SubscriptionLedger) FindActiveSubscription(ctx context.Context, email string) (*model.UserSubscription, error) {
	u, err := l.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, translate(err, "user", email)
	}
	us, err := l.subs.FindActive(ctx, u.ID)
	return optional(us, err, email)
}

func (l *SubscriptionLedger) findActiveTx(ctx context.Context, tx *sql.Tx, user model.User) (*model.UserSubscription, error) {
	us, err := l.subs.FindActiveTx(ctx, tx, user.ID)
	return optional(us, err, user.Email)
}

func optional(us model.UserSubscription, err error, email string) (*model.UserSubscription, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "subscription", email)
	}
	return &us, nil
}

// IsExpired reports whether us is past its duration as of asOf.
func (l *SubscriptionLedger) IsExpired(us model.UserSubscription, asOf time.Time) bool {
	return us.Expired(asOf)
}

// ValidateForBooking applies the subscription rules to a booking attempt
// by the user called email.  Without an active subscription the user may
// hold at most one future booking; with one, it must not have expired.
// The returned subscription is nil on the pay-per-booking path.
func (l *SubscriptionLedger) ValidateForBooking(ctx context.Context, tx *sql.Tx, email string) (*model.UserSubscription, error) {
	u, err := l.users.GetByEmailTx(ctx, tx, email)
	if err != nil {
		return nil, translate(err, "user", email)
	}
	return l.validateForUser(ctx, tx, u)
}

func (l *SubscriptionLedger) validateForUser(ctx context.Context, tx *sql.Tx, u model.User) (*model.UserSubscription, error) {
	now := l.now()
	us, err := l.findActiveTx(ctx, tx, u)
	if err != nil {
		return nil, err
	}
	if us == nil {
		busy, err := l.bookings.HasFutureActiveTx(ctx, tx, u.ID, now)
		if err != nil {
			return nil, translate(err, "user", u.Email)
		}
		if busy {
			return nil, fail(ErrBookingAlreadyActive, "user", u.Email)
		}
		return nil, nil
	}
	if l.IsExpired(*us, now) {
		return nil, fail(ErrSubscriptionExpired, "subscription", us.Type.Name)
	}
	return us, nil
}

// ConsumeTx takes one booking from the allowance of us.
func (l *SubscriptionLedger) ConsumeTx(ctx context.Context, tx *sql.Tx, us model.UserSubscription) error {
	err := l.subs.ConsumeTx(ctx, tx, us.UserID, us.SubscriptionID)
	if errors.Is(err, repository.ErrAllowanceExhausted) {
		// another booking used the last slot after validation
		return fail(ErrCapacityExhausted, "subscription", us.Type.Name)
	}
	if err != nil {
		return translate(err, "subscription", us.Type.Name)
	}
	return nil
}

// RefundTx gives one booking back to the subscription a released booking
// was paid with.  Nothing is refunded when that assignment has expired or
// been renewed since the booking was made.
func (l *SubscriptionLedger) RefundTx(ctx context.Context, tx *sql.Tx, b model.Booking) error {
	if b.SubscriptionID == nil {
		return nil
	}
	ok, err := l.subs.RefundTx(ctx, tx, b.Key.UserID, *b.SubscriptionID, b.BookedAt)
	if err != nil {
		return translate(err, "subscription", b.UserEmail)
	}
	if !ok {
		l.log.Debug("refund skipped, booking predates current assignment",
			zap.String("user", b.UserEmail), zap.Uint64("subscription_id", *b.SubscriptionID))
	}
	return nil
}

// Grant assigns the ACTIVE subscription of typeName to the user with a full
// allowance.  Granting the same type again renews it.
func (l *SubscriptionLedger) Grant(ctx context.Context, email, typeName string) (us *model.UserSubscription, err error) {
	ctx, span := tracer.Start(ctx, "SubscriptionLedger.Grant")
	span.SetAttributes(attribute.String("subscription_type", typeName))
	defer func() { endSpan(span, err) }()

	now := l.now().Truncate(time.Second)
	var user model.User
	err = database.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		u, err := l.users.GetByEmailTx(ctx, tx, email)
		if err != nil {
			return translate(err, "user", email)
		}
		user = u
		typ, err := l.subs.GetTypeByNameTx(ctx, tx, typeName)
		if err != nil {
			return translate(err, "subscription_type", typeName)
		}
		subID, err := l.subs.EnsureTx(ctx, tx, typ.ID, model.SubscriptionActive)
		if err != nil {
			return translate(err, "subscription", typeName)
		}
		if err := l.subs.AssignTx(ctx, tx, u.ID, subID, now, typ.MaxBookingsPerMonth); err != nil {
			return translate(err, "subscription", typeName)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, "subscription", typeName)
	}
	l.log.Info("subscription granted", zap.String("user", user.Email), zap.String("type", typeName))
	return l.FindActiveSubscription(ctx, email)
}

// ExpireSubscriptions moves every ACTIVE assignment whose duration has run
// out as of asOf onto the EXPIRED subscription of the same type and
// returns how many were moved.
func (l *SubscriptionLedger) ExpireSubscriptions(ctx context.Context, asOf time.Time) (moved int, err error) {
	ctx, span := tracer.Start(ctx, "SubscriptionLedger.ExpireSubscriptions")
	defer func() {
		span.SetAttributes(attribute.Int("expired", moved))
		endSpan(span, err)
	}()

	asOf = asOf.UTC()
	err = database.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		active, err := l.subs.ListByStatusTx(ctx, tx, model.SubscriptionActive)
		if err != nil {
			return err
		}
		expiredIDs := map[uint64]uint64{}
		for _, us := range active {
			if !l.IsExpired(us, asOf) {
				continue
			}
			target, ok := expiredIDs[us.Type.ID]
			if !ok {
				target, err = l.subs.EnsureTx(ctx, tx, us.Type.ID, model.SubscriptionExpired)
				if err != nil {
					return err
				}
				expiredIDs[us.Type.ID] = target
			}
			if err := l.subs.MoveTx(ctx, tx, us.UserID, us.SubscriptionID, target); err != nil {
				return err
			}
			moved++
		}
		return nil
	})
	if err != nil {
		return 0, translate(err, "subscriptions", asOf.Format(time.RFC3339))
	}
	return moved, nil
}
