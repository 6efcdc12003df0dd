package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// querier is satisfied by *sql.DB and *sql.Tx so read helpers can run
// either inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store bundles every repository over one database handle.
type Store struct {
	db            *sql.DB
	Users         *UserRepo
	Pools         *PoolRepo
	Sessions      *SessionRepo
	Subscriptions *SubscriptionRepo
	Bookings      *BookingRepo
	History       *HistoryRepo
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:            db,
		Users:         NewUserRepo(db),
		Pools:         NewPoolRepo(db),
		Sessions:      NewSessionRepo(db),
		Subscriptions: NewSubscriptionRepo(db),
		Bookings:      NewBookingRepo(db),
		History:       NewHistoryRepo(db),
	}
}

// DB exposes the handle so callers can open transactions.
func (s *Store) DB() *sql.DB { return s.db }

const dbTimeLayout = "2006-01-02 15:04:05"

// formatTime renders t the way both dialects store DATETIME values.
func formatTime(t time.Time) string { return t.UTC().Format(dbTimeLayout) }

// dbTime scans DATETIME columns.  MySQL with parseTime and SQLite on
// DATETIME-declared columns hand back time.Time; expressions and older
// rows may come back as text.
type dbTime struct{ time.Time }

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		d.Time = v.UTC()
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into time", src)
}

func (d *dbTime) parse(s string) error {
	for _, layout := range []string{dbTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999999 -0700 MST"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", s)
}

// parseClock reads HH:MM[:SS] into an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	var h, m, sec int
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if len(parts) == 3 {
		if _, err := fmt.Sscanf(parts[2], "%d", &sec); err != nil {
			return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
		}
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// noRows maps sql.ErrNoRows to ErrNotFound and leaves other errors alone.
func noRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
