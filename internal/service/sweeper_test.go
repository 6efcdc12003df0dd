package service

import (
	"context"
	"testing"
	"time"

	"github.com/iliyamo/pool-booking/internal/model"
)

func TestExpirePastBookingsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	later := eveningSlot.Add(24 * time.Hour)
	f.pool(mainPool, 5)
	f.session(mainPool, eveningSlot, 5)
	f.session(mainPool, later, 5)
	a := f.user("a@example.com")
	b := f.user("b@example.com")

	if _, err := f.svc.Engine.CreateBooking(ctx, a, ref(a.Email, mainPool, eveningSlot)); err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := f.svc.Engine.CreateBooking(ctx, b, ref(b.Email, mainPool, later)); err != nil {
		t.Fatalf("book: %v", err)
	}

	asOf := eveningSlot.Add(30 * time.Minute)
	n, err := f.svc.Sweeper.ExpirePastBookings(ctx, asOf)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("completed = %d, want 1", n)
	}
	if got := f.status(a.Email, mainPool, eveningSlot); got != model.BookingCompleted {
		t.Fatalf("past booking status = %s, want COMPLETED", got)
	}
	if got := f.status(b.Email, mainPool, later); got != model.BookingActive {
		t.Fatalf("future booking status = %s, want ACTIVE", got)
	}
	// completion does not free a seat
	if got := f.remaining(mainPool, eveningSlot); got != 4 {
		t.Fatalf("remaining = %d, want 4", got)
	}

	n, err = f.svc.Sweeper.ExpirePastBookings(ctx, asOf)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep completed = %d, want 0", n)
	}
}

func TestExpirePastBookingsRecordsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pool(mainPool, 5)
	f.session(mainPool, eveningSlot, 5)
	a := f.user("a@example.com")

	b, err := f.svc.Engine.CreateBooking(ctx, a, ref(a.Email, mainPool, eveningSlot))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := f.svc.Sweeper.ExpirePastBookings(ctx, eveningSlot.Add(time.Hour)); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	rows, err := f.store.History.ListByBooking(ctx, b.Key)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	last := rows[len(rows)-1]
	if last.Action != model.ActionCompleted || last.Actor != model.SystemActor {
		t.Fatalf("last history row = %+v", last)
	}
}

func TestSweeperRunExpiresSubscriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscriptionType("Monthly", 8, 30)
	f.subscriptionType("Yearly", 100, 365)
	a := f.user("a@example.com")
	b := f.user("b@example.com")

	if _, err := f.svc.Ledger.Grant(ctx, a.Email, "Monthly"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := f.svc.Ledger.Grant(ctx, b.Email, "Yearly"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	f.clock.Set(dayBefore.AddDate(0, 0, 40))
	res, err := f.svc.Sweeper.RunNow(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExpiredSubscriptions != 1 || res.CompletedBookings != 0 {
		t.Fatalf("result = %+v, want 1 expired subscription", res)
	}
	if !res.AsOf.Equal(dayBefore.AddDate(0, 0, 40)) {
		t.Fatalf("as of = %v", res.AsOf)
	}

	us, err := f.svc.Ledger.FindActiveSubscription(ctx, a.Email)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if us != nil {
		t.Fatalf("expired subscription still active: %+v", us)
	}
	if us, _ := f.svc.Ledger.FindActiveSubscription(ctx, b.Email); us == nil {
		t.Fatal("yearly subscription expired early")
	}

	res, err = f.svc.Sweeper.RunNow(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.ExpiredSubscriptions != 0 {
		t.Fatalf("second run expired = %d, want 0", res.ExpiredSubscriptions)
	}
}
