package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/pool-booking/internal/database"
	"github.com/iliyamo/pool-booking/internal/model"
)

// BookingRepo provides data access to the bookings table.  Rows are keyed
// by (user_id, session_id); the primary key is the final guard against
// duplicate bookings under concurrent inserts.
type BookingRepo struct{ db *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingSelect = `SELECT b.user_id, b.session_id, u.email, p.name, s.start_time, s.end_time, b.booked_at, b.status, b.subscription_id
	FROM bookings b
	JOIN users u    ON u.id = b.user_id
	JOIN sessions s ON s.id = b.session_id
	JOIN pools p    ON p.id = s.pool_id`

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
	var (
		b                  model.Booking
		start, end, booked dbTime
		status             string
		subID              sql.NullInt64
	)
	err := row.Scan(&b.Key.UserID, &b.Key.SessionID, &b.UserEmail, &b.PoolName, &start, &end, &booked, &status, &subID)
	if err != nil {
		return model.Booking{}, err
	}
	b.SessionStart = start.Time
	b.SessionEnd = end.Time
	b.BookedAt = booked.Time
	b.Status = model.BookingStatus(status)
	if subID.Valid {
		id := uint64(subID.Int64)
		b.SubscriptionID = &id
	}
	return b, nil
}

func collectBookings(rows *sql.Rows) ([]model.Booking, error) {
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetTx loads one booking by composite key.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, key model.BookingKey) (model.Booking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx,
		bookingSelect+` WHERE b.user_id = ? AND b.session_id = ?`,
		key.UserID, key.SessionID))
	if err != nil {
		return model.Booking{}, noRows(err)
	}
	return b, nil
}

// HasActiveTx reports whether an ACTIVE booking exists for key.
func (r *BookingRepo) HasActiveTx(ctx context.Context, tx *sql.Tx, key model.BookingKey) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE user_id = ? AND session_id = ? AND status = ?`,
		key.UserID, key.SessionID, string(model.BookingActive)).Scan(&n)
	return n > 0, err
}

// HasFutureActiveTx reports whether the user holds an ACTIVE booking for a
// session that starts after asOf.
func (r *BookingRepo) HasFutureActiveTx(ctx context.Context, tx *sql.Tx, userID uint64, asOf time.Time) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*)
		FROM bookings b
		JOIN sessions s ON s.id = b.session_id
		WHERE b.user_id = ? AND b.status = ? AND s.start_time > ?`,
		userID, string(model.BookingActive), formatTime(asOf)).Scan(&n)
	return n > 0, err
}

// InsertTx persists a new booking.  A row for the same key, whatever its
// status, yields ErrDuplicate.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b model.Booking) error {
	var subID sql.NullInt64
	if b.SubscriptionID != nil {
		subID = sql.NullInt64{Int64: int64(*b.SubscriptionID), Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, session_id, booked_at, status, subscription_id) VALUES (?, ?, ?, ?, ?)`,
		b.Key.UserID, b.Key.SessionID, formatTime(b.BookedAt), string(b.Status), subID)
	if err != nil && database.IsDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// TransitionTx moves a booking from one status to another.  It reports
// false when the row was not in the expected status.
func (r *BookingRepo) TransitionTx(ctx context.Context, tx *sql.Tx, key model.BookingKey, from, to model.BookingStatus) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE user_id = ? AND session_id = ? AND status = ?`,
		string(to), key.UserID, key.SessionID, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteTx removes the row for key.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, key model.BookingKey) error {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM bookings WHERE user_id = ? AND session_id = ?`,
		key.UserID, key.SessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Find returns bookings matching every set field of f, newest session
// first.
func (r *BookingRepo) Find(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	where := []string{}
	args := []any{}

	if f.UserEmail != "" {
		where = append(where, "u.email = ?")
		args = append(args, NormalizeEmail(f.UserEmail))
	}
	if f.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, string(f.Status))
	}
	if f.PoolName != "" {
		where = append(where, "p.name = ?")
		args = append(args, f.PoolName)
	}
	if f.SessionStart != nil {
		where = append(where, "s.start_time = ?")
		args = append(args, formatTime(*f.SessionStart))
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	rows, err := r.db.QueryContext(ctx,
		bookingSelect+` WHERE `+cond+` ORDER BY s.start_time DESC, u.email ASC`, args...)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// CountBySession counts every booking row of the session, whatever its
// status.
func (r *BookingRepo) CountBySession(ctx context.Context, sessionID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// ListBySessionTx returns every booking of the session.
func (r *BookingRepo) ListBySessionTx(ctx context.Context, tx *sql.Tx, sessionID uint64) ([]model.Booking, error) {
	rows, err := tx.QueryContext(ctx, bookingSelect+` WHERE b.session_id = ? ORDER BY u.email`, sessionID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// DeleteBySessionTx removes every booking of the session and returns how
// many rows went.
func (r *BookingRepo) DeleteBySessionTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (int, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListActiveStartedBeforeTx returns the keys of ACTIVE bookings whose
// session started before asOf.
func (r *BookingRepo) ListActiveStartedBeforeTx(ctx context.Context, tx *sql.Tx, asOf time.Time) ([]model.BookingKey, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT b.user_id, b.session_id
		FROM bookings b
		JOIN sessions s ON s.id = b.session_id
		WHERE b.status = ? AND s.start_time < ?
		ORDER BY b.session_id, b.user_id`,
		string(model.BookingActive), formatTime(asOf))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []model.BookingKey
	for rows.Next() {
		var k model.BookingKey
		if err := rows.Scan(&k.UserID, &k.SessionID); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
