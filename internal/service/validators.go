package service

import (
	"context"
	"database/sql"
	"sort"

	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/repository"
)

// BookingRequest is what the validator chain inspects.  The subscription
// validator fills Subscription for the engine to consume.
type BookingRequest struct {
	User                model.User
	Session             model.Session
	SubscriptionContext bool
	Subscription        *model.UserSubscription
}

func (r *BookingRequest) key() string { return r.User.Email + "/" + sessionKey(r.Session.PoolName, r.Session.StartTime) }

// BookingValidator is one pre-flight check run before a booking is
// created.  Validators run inside the booking transaction.
type BookingValidator interface {
	Name() string
	Order() int
	Validate(ctx context.Context, tx *sql.Tx, req *BookingRequest) error
}

// validatorChain is a fixed, ordered list; the first failure aborts.
type validatorChain []BookingValidator

func newValidatorChain(vs ...BookingValidator) validatorChain {
	chain := append(validatorChain(nil), vs...)
	sort.SliceStable(chain, func(i, j int) bool { return chain[i].Order() < chain[j].Order() })
	return chain
}

func (c validatorChain) run(ctx context.Context, tx *sql.Tx, req *BookingRequest) error {
	for _, v := range c {
		if err := v.Validate(ctx, tx, req); err != nil {
			return err
		}
	}
	return nil
}

// names lists the validators in execution order.
func (c validatorChain) names() []string {
	out := make([]string, len(c))
	for i, v := range c {
		out[i] = v.Name()
	}
	return out
}

// duplicateActiveBookingValidator rejects a second ACTIVE booking for the
// same (user, session).  The primary key is the final guard; this check
// only fails fast.
type duplicateActiveBookingValidator struct {
	bookings *repository.BookingRepo
}

func (duplicateActiveBookingValidator) Name() string { return "duplicate-active-booking" }
func (duplicateActiveBookingValidator) Order() int   { return 1 }

func (v duplicateActiveBookingValidator) Validate(ctx context.Context, tx *sql.Tx, req *BookingRequest) error {
	active, err := v.bookings.HasActiveTx(ctx, tx, model.BookingKey{UserID: req.User.ID, SessionID: req.Session.ID})
	if err != nil {
		return translate(err, "booking", req.key())
	}
	if active {
		return fail(ErrAlreadyExists, "booking", req.key())
	}
	return nil
}

// sessionAvailabilityValidator rejects sessions with no seat left.
type sessionAvailabilityValidator struct {
	sessions *repository.SessionRepo
}

func (sessionAvailabilityValidator) Name() string { return "session-availability" }
func (sessionAvailabilityValidator) Order() int   { return 2 }

func (v sessionAvailabilityValidator) Validate(ctx context.Context, tx *sql.Tx, req *BookingRequest) error {
	key := sessionKey(req.Session.PoolName, req.Session.StartTime)
	current, err := v.sessions.GetByIDTx(ctx, tx, req.Session.ID)
	if err != nil {
		return translate(err, "session", key)
	}
	req.Session = current
	if current.RemainingCapacity <= 0 {
		return fail(ErrCapacityExhausted, "session", key)
	}
	return nil
}

// subscriptionValidator applies the ledger rules when the request declares
// a subscription context.
type subscriptionValidator struct {
	ledger *SubscriptionLedger
}

func (subscriptionValidator) Name() string { return "subscription" }
func (subscriptionValidator) Order() int   { return 3 }

func (v subscriptionValidator) Validate(ctx context.Context, tx *sql.Tx, req *BookingRequest) error {
	if !req.SubscriptionContext {
		return nil
	}
	us, err := v.ledger.ValidateForBooking(ctx, tx, req.User.Email)
	if err != nil {
		return err
	}
	req.Subscription = us
	return nil
}
