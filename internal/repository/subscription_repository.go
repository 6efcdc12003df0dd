package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/pool-booking/internal/database"
	"github.com/iliyamo/pool-booking/internal/model"
)

// SubscriptionRepo covers subscription_types, subscriptions and
// user_subscriptions.
type SubscriptionRepo struct{ db *sql.DB }

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

// GetTypeByNameTx returns the subscription type called name.
func (r *SubscriptionRepo) GetTypeByNameTx(ctx context.Context, tx *sql.Tx, name string) (model.SubscriptionType, error) {
	var t model.SubscriptionType
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, price_cents, max_bookings_per_month, duration_days FROM subscription_types WHERE name = ?`,
		name).Scan(&t.ID, &t.Name, &t.PriceCents, &t.MaxBookingsPerMonth, &t.DurationDays)
	if err != nil {
		return model.SubscriptionType{}, noRows(err)
	}
	return t, nil
}

// EnsureTx returns the ID of the (type, status) subscription row, creating
// it on first use.  The pair is unique, so a concurrent creator loses with
// a duplicate and the row is simply read again.
func (r *SubscriptionRepo) EnsureTx(ctx context.Context, tx *sql.Tx, typeID uint64, status model.SubscriptionStatus) (uint64, error) {
	var id uint64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM subscriptions WHERE subscription_type_id = ? AND status = ?`,
		typeID, string(status)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO subscriptions (subscription_type_id, status) VALUES (?, ?)`,
		typeID, string(status))
	if err != nil {
		if database.IsDuplicateKey(err) {
			return r.EnsureTx(ctx, tx, typeID, status)
		}
		return 0, err
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(newID), nil
}

const userSubscriptionSelect = `SELECT us.user_id, us.subscription_id, s.status, us.assigned_at, us.remaining_bookings,
		t.id, t.name, t.price_cents, t.max_bookings_per_month, t.duration_days
	FROM user_subscriptions us
	JOIN subscriptions s      ON s.id = us.subscription_id
	JOIN subscription_types t ON t.id = s.subscription_type_id`

func scanUserSubscription(row interface{ Scan(...any) error }) (model.UserSubscription, error) {
	var (
		us       model.UserSubscription
		status   string
		assigned dbTime
	)
	err := row.Scan(&us.UserID, &us.SubscriptionID, &status, &assigned, &us.RemainingBookings,
		&us.Type.ID, &us.Type.Name, &us.Type.PriceCents, &us.Type.MaxBookingsPerMonth, &us.Type.DurationDays)
	if err != nil {
		return model.UserSubscription{}, err
	}
	us.Status = model.SubscriptionStatus(status)
	us.AssignedAt = assigned.Time
	return us, nil
}

// FindActive returns the user's most recently assigned ACTIVE subscription
// with bookings left, or ErrNotFound.
func (r *SubscriptionRepo) FindActive(ctx context.Context, userID uint64) (model.UserSubscription, error) {
	return findActive(ctx, r.db, userID)
}

// FindActiveTx is FindActive inside the caller's transaction.
func (r *SubscriptionRepo) FindActiveTx(ctx context.Context, tx *sql.Tx, userID uint64) (model.UserSubscription, error) {
	return findActive(ctx, tx, userID)
}

func findActive(ctx context.Context, q querier, userID uint64) (model.UserSubscription, error) {
	us, err := scanUserSubscription(q.QueryRowContext(ctx,
		userSubscriptionSelect+`
	WHERE us.user_id = ? AND s.status = ? AND us.remaining_bookings > 0
	ORDER BY us.assigned_at DESC
	LIMIT 1`,
		userID, string(model.SubscriptionActive)))
	if err != nil {
		return model.UserSubscription{}, noRows(err)
	}
	return us, nil
}

// ListByStatusTx returns every assignment whose subscription has status.
func (r *SubscriptionRepo) ListByStatusTx(ctx context.Context, tx *sql.Tx, status model.SubscriptionStatus) ([]model.UserSubscription, error) {
	rows, err := tx.QueryContext(ctx,
		userSubscriptionSelect+` WHERE s.status = ? ORDER BY us.user_id, us.subscription_id`,
		string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.UserSubscription
	for rows.Next() {
		us, err := scanUserSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, us)
	}
	return out, rows.Err()
}

// AssignTx grants subscriptionID to userID with a fresh allowance.  An
// existing assignment of the same subscription is renewed in place.
func (r *SubscriptionRepo) AssignTx(ctx context.Context, tx *sql.Tx, userID, subscriptionID uint64, assignedAt time.Time, allowance int) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_subscriptions WHERE user_id = ? AND subscription_id = ?`,
		userID, subscriptionID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE user_subscriptions SET assigned_at = ?, remaining_bookings = ? WHERE user_id = ? AND subscription_id = ?`,
			formatTime(assignedAt), allowance, userID, subscriptionID)
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_subscriptions (user_id, subscription_id, assigned_at, remaining_bookings) VALUES (?, ?, ?, ?)`,
		userID, subscriptionID, formatTime(assignedAt), allowance)
	if err != nil && database.IsDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// ConsumeTx takes one booking from the allowance with a guarded UPDATE.
func (r *SubscriptionRepo) ConsumeTx(ctx context.Context, tx *sql.Tx, userID, subscriptionID uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE user_subscriptions SET remaining_bookings = remaining_bookings - 1
		WHERE user_id = ? AND subscription_id = ? AND remaining_bookings > 0`,
		userID, subscriptionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAllowanceExhausted
	}
	return nil
}

// RefundTx gives one booking back to the assignment that was current at
// bookedAt.  It reports false when there is nothing to refund into: the
// assignment was moved to EXPIRED, renewed after bookedAt, or is already
// at the plan's monthly maximum.
func (r *SubscriptionRepo) RefundTx(ctx context.Context, tx *sql.Tx, userID, subscriptionID uint64, bookedAt time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE user_subscriptions SET remaining_bookings = remaining_bookings + 1
		WHERE user_id = ? AND subscription_id = ? AND assigned_at <= ?
		  AND remaining_bookings < (
			SELECT t.max_bookings_per_month
			FROM subscriptions s
			JOIN subscription_types t ON t.id = s.subscription_type_id
			WHERE s.id = user_subscriptions.subscription_id)`,
		userID, subscriptionID, formatTime(bookedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MoveTx re-points an assignment from one subscription row to another,
// replacing any assignment the user already had on the target.
func (r *SubscriptionRepo) MoveTx(ctx context.Context, tx *sql.Tx, userID, fromID, toID uint64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_subscriptions WHERE user_id = ? AND subscription_id = ?`,
		userID, toID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE user_subscriptions SET subscription_id = ? WHERE user_id = ? AND subscription_id = ?`,
		toID, userID, fromID)
	return err
}
