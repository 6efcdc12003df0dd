package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/pool-booking/internal/config"
	"github.com/iliyamo/pool-booking/internal/database"
	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/repository"
)

const mainPool = "Main Pool"

// 2025-06-30 is a Monday.
var (
	eveningSlot = time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC)
	dayBefore   = time.Date(2025, 6, 29, 12, 0, 0, 0, time.UTC)
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recordingNotifier remembers confirmations and whether the booking was
// already visible to other connections when the confirmation went out.
type recordingNotifier struct {
	store *repository.Store

	mu        sync.Mutex
	sent      []string
	committed []bool
	err       error
}

func (n *recordingNotifier) SendBookingConfirmation(ctx context.Context, email string, info model.SessionInfo) error {
	start := info.StartTime
	found, _ := n.store.Bookings.Find(ctx, model.BookingFilter{UserEmail: email, PoolName: info.PoolName, SessionStart: &start, Status: model.BookingActive})

	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, email)
	n.committed = append(n.committed, len(found) == 1)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fixture struct {
	t        *testing.T
	store    *repository.Store
	svc      *Services
	clock    *testClock
	notifier *recordingNotifier
	admin    model.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DBConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "pool.db")}
	db, err := database.Connect(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := repository.NewStore(db)
	clock := &testClock{now: dayBefore}
	notifier := &recordingNotifier{store: store}
	f := &fixture{
		t:        t,
		store:    store,
		svc:      New(store, notifier, zap.NewNop(), WithClock(clock.Now)),
		clock:    clock,
		notifier: notifier,
		admin:    model.Actor{Email: "admin@example.com", Admin: true},
	}
	f.exec(`INSERT INTO users (email, role) VALUES ('admin@example.com', 'ADMIN')`)
	return f
}

func (f *fixture) exec(query string, args ...any) {
	f.t.Helper()
	if _, err := f.store.DB().Exec(query, args...); err != nil {
		f.t.Fatalf("exec %q: %v", query, err)
	}
}

// pool seeds a pool open 06:00-22:00 every day with one-hour sessions.
func (f *fixture) pool(name string, capacity int) {
	f.t.Helper()
	f.exec(`INSERT INTO pools (name, address, max_capacity, session_duration_minutes) VALUES (?, 'Harbour Road 1', ?, 60)`, name, capacity)
	for day := 1; day <= 7; day++ {
		f.exec(`INSERT INTO pool_schedules (pool_id, day_of_week, opening_time, closing_time)
			SELECT id, ?, '06:00:00', '22:00:00' FROM pools WHERE name = ?`, day, name)
	}
}

// session seeds a session directly with the given remaining capacity.
func (f *fixture) session(poolName string, start time.Time, remaining int) {
	f.t.Helper()
	f.exec(`INSERT INTO sessions (pool_id, start_time, end_time, remaining_capacity)
		SELECT id, ?, ?, ? FROM pools WHERE name = ?`,
		start.Format("2006-01-02 15:04:05"), start.Add(time.Hour).Format("2006-01-02 15:04:05"), remaining, poolName)
}

func (f *fixture) user(email string) model.Actor {
	f.t.Helper()
	if _, err := f.store.Users.Create(context.Background(), email, model.RoleUser); err != nil {
		f.t.Fatalf("create user %s: %v", email, err)
	}
	return model.Actor{Email: email}
}

func (f *fixture) subscriptionType(name string, allowance, days int) {
	f.t.Helper()
	f.exec(`INSERT INTO subscription_types (name, price_cents, max_bookings_per_month, duration_days) VALUES (?, 4500, ?, ?)`, name, allowance, days)
}

func (f *fixture) remaining(poolName string, start time.Time) int {
	f.t.Helper()
	s, err := f.svc.Registry.Lookup(context.Background(), poolName, start)
	if err != nil {
		f.t.Fatalf("lookup session: %v", err)
	}
	return s.RemainingCapacity
}

func (f *fixture) activeCount(poolName string, start time.Time) int {
	f.t.Helper()
	out, err := f.svc.Engine.FindBookings(context.Background(), f.admin, model.BookingFilter{PoolName: poolName, SessionStart: &start, Status: model.BookingActive})
	if err != nil {
		f.t.Fatalf("find bookings: %v", err)
	}
	return len(out)
}

func (f *fixture) status(email, poolName string, start time.Time) model.BookingStatus {
	f.t.Helper()
	out, err := f.svc.Engine.FindBookings(context.Background(), f.admin, model.BookingFilter{UserEmail: email, PoolName: poolName, SessionStart: &start})
	if err != nil {
		f.t.Fatalf("find bookings: %v", err)
	}
	if len(out) != 1 {
		f.t.Fatalf("bookings for %s = %d, want 1", email, len(out))
	}
	return out[0].Status
}

func ref(email, poolName string, start time.Time) model.BookingRef {
	return model.BookingRef{UserEmail: email, PoolName: poolName, SessionStart: start}
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("error = %v, want %v", err, kind)
	}
	var typed *Error
	if !errors.As(err, &typed) {
		t.Fatalf("error %v is not *Error", err)
	}
}
