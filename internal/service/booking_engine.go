package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/pool-booking/internal/database"
	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/repository"
)

// BookingEngine orchestrates booking transitions.  Each operation runs the
// validator chain, the capacity mutation and the booking write in one
// transaction; confirmations go out only after commit.
type BookingEngine struct {
	db         *sql.DB
	users      *repository.UserRepo
	bookings   *repository.BookingRepo
	history    *repository.HistoryRepo
	registry   *SessionRegistry
	ledger     *SubscriptionLedger
	validators validatorChain
	notifier   Notifier
	log        *zap.Logger
	now        func() time.Time
}

func NewBookingEngine(store *repository.Store, registry *SessionRegistry, ledger *SubscriptionLedger, notifier Notifier, logger *zap.Logger, now func() time.Time) *BookingEngine {
	return &BookingEngine{
		db:       store.DB(),
		users:    store.Users,
		bookings: store.Bookings,
		history:  store.History,
		registry: registry,
		ledger:   ledger,
		validators: newValidatorChain(
			duplicateActiveBookingValidator{bookings: store.Bookings},
			sessionAvailabilityValidator{sessions: store.Sessions},
			subscriptionValidator{ledger: ledger},
		),
		notifier: notifier,
		log:      logger.Named("bookings"),
		now:      now,
	}
}

func refKey(ref model.BookingRef) string {
	return repository.NormalizeEmail(ref.UserEmail) + "/" + sessionKey(ref.PoolName, ref.SessionStart)
}

func refAttrs(ref model.BookingRef) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("pool", ref.PoolName),
		attribute.String("session_start", ref.SessionStart.UTC().Format(time.RFC3339)),
	}
}

// authorize lets admins act on any booking and users only on their own.
func authorize(actor model.Actor, ref model.BookingRef) error {
	if actor.Admin || repository.NormalizeEmail(actor.Email) == repository.NormalizeEmail(ref.UserEmail) {
		return nil
	}
	return fail(ErrForbidden, "booking", refKey(ref))
}

func requireAdmin(actor model.Actor, entity, key string) error {
	if actor.Admin {
		return nil
	}
	return fail(ErrForbidden, entity, key)
}

// CreateBooking books a seat of the session of ref for ref's user.  A user
// booking for themself declares the subscription context; an admin
// booking on someone else's behalf does not.
func (e *BookingEngine) CreateBooking(ctx context.Context, actor model.Actor, ref model.BookingRef) (b model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "BookingEngine.CreateBooking")
	span.SetAttributes(refAttrs(ref)...)
	defer func() { endSpan(span, err) }()

	if err := authorize(actor, ref); err != nil {
		return model.Booking{}, err
	}

	var session model.Session
	err = database.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		var err error
		b, session, err = e.createTx(ctx, tx, actor, ref)
		return err
	})
	if err != nil {
		return model.Booking{}, translate(err, "booking", refKey(ref))
	}

	e.log.Info("booking created",
		zap.String("user", b.UserEmail),
		zap.String("pool", b.PoolName),
		zap.Time("start", b.SessionStart),
		zap.Int("remaining", session.RemainingCapacity),
	)
	e.notify(ctx, b, session)
	return b, nil
}

func (e *BookingEngine) createTx(ctx context.Context, tx *sql.Tx, actor model.Actor, ref model.BookingRef) (model.Booking, model.Session, error) {
	user, err := e.users.GetByEmailTx(ctx, tx, ref.UserEmail)
	if err != nil {
		return model.Booking{}, model.Session{}, translate(err, "user", ref.UserEmail)
	}
	// serializes the user's bookings so the one-forward-booking rule holds
	if err := e.users.LockTx(ctx, tx, user.ID); err != nil {
		return model.Booking{}, model.Session{}, translate(err, "user", ref.UserEmail)
	}
	session, err := e.registry.LookupTx(ctx, tx, ref.PoolName, ref.SessionStart)
	if err != nil {
		return model.Booking{}, model.Session{}, err
	}

	req := &BookingRequest{
		User:                user,
		Session:             session,
		SubscriptionContext: repository.NormalizeEmail(actor.Email) == user.Email,
	}
	if err := e.validators.run(ctx, tx, req); err != nil {
		return model.Booking{}, model.Session{}, err
	}

	session, err = e.registry.Decrement(ctx, tx, req.Session)
	if err != nil {
		return model.Booking{}, model.Session{}, err
	}

	b := model.Booking{
		Key:          model.BookingKey{UserID: user.ID, SessionID: session.ID},
		UserEmail:    user.Email,
		PoolName:     session.PoolName,
		SessionStart: session.StartTime,
		SessionEnd:   session.EndTime,
		BookedAt:     e.now().Truncate(time.Second),
		Status:       model.BookingActive,
	}
	if us := req.Subscription; us != nil {
		if err := e.ledger.ConsumeTx(ctx, tx, *us); err != nil {
			return model.Booking{}, model.Session{}, err
		}
		id := us.SubscriptionID
		b.SubscriptionID = &id
	}

	if err := e.bookings.InsertTx(ctx, tx, b); err != nil {
		return model.Booking{}, model.Session{}, translate(err, "booking", refKey(ref))
	}
	if err := e.record(ctx, tx, model.ActionCreated, actor.Email, b.Key); err != nil {
		return model.Booking{}, model.Session{}, err
	}
	return b, session, nil
}

// CancelBooking moves an ACTIVE booking to CANCELLED and gives its seat
// back.  Any other status fails, so a repeated cancel never releases the
// seat twice.
func (e *BookingEngine) CancelBooking(ctx context.Context, actor model.Actor, ref model.BookingRef) (b model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "BookingEngine.CancelBooking")
	span.SetAttributes(refAttrs(ref)...)
	defer func() { endSpan(span, err) }()

	if err := authorize(actor, ref); err != nil {
		return model.Booking{}, err
	}

	err = database.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		current, session, err := e.resolveTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		if current.Status != model.BookingActive {
			return fail(ErrInvalidStateTransition, "booking", refKey(ref))
		}
		ok, err := e.bookings.TransitionTx(ctx, tx, current.Key, model.BookingActive, model.BookingCancelled)
		if err != nil {
			return translate(err, "booking", refKey(ref))
		}
		if !ok {
			return fail(ErrInvalidStateTransition, "booking", refKey(ref))
		}
		if _, err := e.registry.Increment(ctx, tx, session, 1); err != nil {
			return err
		}
		if err := e.ledger.RefundTx(ctx, tx, current); err != nil {
			return err
		}
		current.Status = model.BookingCancelled
		b = current
		return e.record(ctx, tx, model.ActionCancelled, actor.Email, current.Key)
	})
	if err != nil {
		return model.Booking{}, translate(err, "booking", refKey(ref))
	}
	e.log.Info("booking cancelled", zap.String("user", b.UserEmail), zap.String("pool", b.PoolName), zap.Time("start", b.SessionStart))
	return b, nil
}

// DeleteBooking removes a booking row outright.  Only an ACTIVE booking
// still holds a seat, so only then is capacity restored.
func (e *BookingEngine) DeleteBooking(ctx context.Context, actor model.Actor, ref model.BookingRef) (b model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "BookingEngine.DeleteBooking")
	span.SetAttributes(refAttrs(ref)...)
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(actor, "booking", refKey(ref)); err != nil {
		return model.Booking{}, err
	}

	err = database.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		var err error
		b, err = e.deleteTx(ctx, tx, actor, ref)
		return err
	})
	if err != nil {
		return model.Booking{}, translate(err, "booking", refKey(ref))
	}
	e.log.Info("booking deleted", zap.String("user", b.UserEmail), zap.String("pool", b.PoolName), zap.Time("start", b.SessionStart))
	return b, nil
}

func (e *BookingEngine) deleteTx(ctx context.Context, tx *sql.Tx, actor model.Actor, ref model.BookingRef) (model.Booking, error) {
	current, session, err := e.resolveTx(ctx, tx, ref)
	if err != nil {
		return model.Booking{}, err
	}
	if err := e.bookings.DeleteTx(ctx, tx, current.Key); err != nil {
		return model.Booking{}, translate(err, "booking", refKey(ref))
	}
	if current.Status == model.BookingActive {
		if _, err := e.registry.Increment(ctx, tx, session, 1); err != nil {
			return model.Booking{}, err
		}
		if err := e.ledger.RefundTx(ctx, tx, current); err != nil {
			return model.Booking{}, err
		}
	}
	if err := e.record(ctx, tx, model.ActionDeleted, actor.Email, current.Key); err != nil {
		return model.Booking{}, err
	}
	return current, nil
}

// UpdateBooking replaces current with next: the delete and the create run
// in one transaction, so a failed create leaves current and the session
// capacity exactly as they were.
func (e *BookingEngine) UpdateBooking(ctx context.Context, actor model.Actor, current, next model.BookingRef) (b model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "BookingEngine.UpdateBooking")
	span.SetAttributes(refAttrs(next)...)
	defer func() { endSpan(span, err) }()

	if err := authorize(actor, current); err != nil {
		return model.Booking{}, err
	}
	if err := authorize(actor, next); err != nil {
		return model.Booking{}, err
	}

	var session model.Session
	err = database.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		if _, err := e.deleteTx(ctx, tx, actor, current); err != nil {
			return err
		}
		var err error
		b, session, err = e.createTx(ctx, tx, actor, next)
		return err
	})
	if err != nil {
		return model.Booking{}, translate(err, "booking", refKey(next))
	}
	e.log.Info("booking updated",
		zap.String("user", b.UserEmail),
		zap.Time("from", current.SessionStart),
		zap.String("pool", b.PoolName),
		zap.Time("to", b.SessionStart),
	)
	e.notify(ctx, b, session)
	return b, nil
}

// FindBookings returns bookings matching f.  Non-admin actors only ever
// see their own bookings.
func (e *BookingEngine) FindBookings(ctx context.Context, actor model.Actor, f model.BookingFilter) ([]model.Booking, error) {
	if !actor.Admin {
		f.UserEmail = actor.Email
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fail(ErrInvalidArgument, "status", string(f.Status))
	}
	out, err := e.bookings.Find(ctx, f)
	if err != nil {
		return nil, translate(err, "bookings", f.UserEmail)
	}
	return out, nil
}

// CountBookingsBySession counts every booking row of the session,
// whatever its status.
func (e *BookingEngine) CountBookingsBySession(ctx context.Context, poolName string, start time.Time) (int, error) {
	session, err := e.registry.Lookup(ctx, poolName, start)
	if err != nil {
		return 0, err
	}
	n, err := e.bookings.CountBySession(ctx, session.ID)
	if err != nil {
		return 0, translate(err, "session", sessionKey(poolName, start))
	}
	return n, nil
}

// DeleteBookingsBySession removes every booking of the session and gives
// back the seats the ACTIVE ones held.
func (e *BookingEngine) DeleteBookingsBySession(ctx context.Context, actor model.Actor, poolName string, start time.Time) (deleted int, err error) {
	ctx, span := tracer.Start(ctx, "BookingEngine.DeleteBookingsBySession")
	span.SetAttributes(attribute.String("pool", poolName), attribute.String("session_start", start.UTC().Format(time.RFC3339)))
	defer func() { endSpan(span, err) }()

	key := sessionKey(poolName, start)
	if err := requireAdmin(actor, "session", key); err != nil {
		return 0, err
	}

	err = database.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		session, err := e.registry.LookupTx(ctx, tx, poolName, start)
		if err != nil {
			return err
		}
		rows, err := e.bookings.ListBySessionTx(ctx, tx, session.ID)
		if err != nil {
			return err
		}
		if deleted, err = e.bookings.DeleteBySessionTx(ctx, tx, session.ID); err != nil {
			return err
		}

		active := 0
		keys := make([]model.BookingKey, 0, len(rows))
		for _, b := range rows {
			keys = append(keys, b.Key)
			if b.Status != model.BookingActive {
				continue
			}
			active++
			if err := e.ledger.RefundTx(ctx, tx, b); err != nil {
				return err
			}
		}
		if _, err := e.registry.Increment(ctx, tx, session, active); err != nil {
			return err
		}
		return e.record(ctx, tx, model.ActionDeleted, actor.Email, keys...)
	})
	if err != nil {
		return 0, translate(err, "session", key)
	}
	e.log.Info("session bookings deleted", zap.String("pool", poolName), zap.Time("start", start), zap.Int("deleted", deleted))
	return deleted, nil
}

// resolveTx loads the booking of ref together with its session.
func (e *BookingEngine) resolveTx(ctx context.Context, tx *sql.Tx, ref model.BookingRef) (model.Booking, model.Session, error) {
	user, err := e.users.GetByEmailTx(ctx, tx, ref.UserEmail)
	if err != nil {
		return model.Booking{}, model.Session{}, translate(err, "user", ref.UserEmail)
	}
	// same lock order as createTx: user row, then session
	if err := e.users.LockTx(ctx, tx, user.ID); err != nil {
		return model.Booking{}, model.Session{}, translate(err, "user", ref.UserEmail)
	}
	session, err := e.registry.LookupTx(ctx, tx, ref.PoolName, ref.SessionStart)
	if err != nil {
		return model.Booking{}, model.Session{}, err
	}
	b, err := e.bookings.GetTx(ctx, tx, model.BookingKey{UserID: user.ID, SessionID: session.ID})
	if err != nil {
		return model.Booking{}, model.Session{}, translate(err, "booking", refKey(ref))
	}
	return b, session, nil
}

func (e *BookingEngine) record(ctx context.Context, tx *sql.Tx, action model.BookingAction, actor string, keys ...model.BookingKey) error {
	return appendHistory(ctx, tx, e.history, action, actor, e.now(), keys...)
}

func appendHistory(ctx context.Context, tx *sql.Tx, history *repository.HistoryRepo, action model.BookingAction, actor string, at time.Time, keys ...model.BookingKey) error {
	entries := make([]model.BookingHistory, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, model.BookingHistory{
			EventID:    uuid.NewString(),
			UserID:     k.UserID,
			SessionID:  k.SessionID,
			Action:     action,
			Actor:      actor,
			OccurredAt: at,
		})
	}
	if err := history.AppendTx(ctx, tx, entries...); err != nil {
		return translate(err, "booking_history", string(action))
	}
	return nil
}

// notify dispatches the confirmation of a committed booking.  Failures are
// logged; the booking stands.
func (e *BookingEngine) notify(ctx context.Context, b model.Booking, s model.Session) {
	if err := e.notifier.SendBookingConfirmation(ctx, b.UserEmail, s.Info()); err != nil {
		e.log.Warn("booking confirmation not sent",
			zap.String("user", b.UserEmail),
			zap.String("pool", b.PoolName),
			zap.Time("start", b.SessionStart),
			zap.Error(err),
		)
	}
}
