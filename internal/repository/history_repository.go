package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/pool-booking/internal/model"
)

// HistoryRepo appends to booking_history.  Rows are never updated.
type HistoryRepo struct{ db *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// AppendTx writes entries inside the caller's transaction.
func (r *HistoryRepo) AppendTx(ctx context.Context, tx *sql.Tx, entries ...model.BookingHistory) error {
	if len(entries) == 0 {
		return nil
	}
	query := `INSERT INTO booking_history (event_id, user_id, session_id, action, actor, occurred_at) VALUES `
	args := make([]any, 0, len(entries)*6)
	for i, h := range entries {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, h.EventID, h.UserID, h.SessionID, string(h.Action), h.Actor, formatTime(h.OccurredAt))
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ListByBooking returns the audit trail of one booking, oldest first.
func (r *HistoryRepo) ListByBooking(ctx context.Context, key model.BookingKey) ([]model.BookingHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, user_id, session_id, action, actor, occurred_at
		FROM booking_history
		WHERE user_id = ? AND session_id = ?
		ORDER BY id`,
		key.UserID, key.SessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.BookingHistory{}
	for rows.Next() {
		var (
			h        model.BookingHistory
			action   string
			occurred dbTime
		)
		if err := rows.Scan(&h.ID, &h.EventID, &h.UserID, &h.SessionID, &action, &h.Actor, &occurred); err != nil {
			return nil, err
		}
		h.Action = model.BookingAction(action)
		h.OccurredAt = occurred.Time
		out = append(out, h)
	}
	return out, rows.Err()
}
