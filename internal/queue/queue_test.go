package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/pool-booking/internal/model"
)

func sampleEvent() BookingConfirmedEvent {
	info := model.SessionInfo{
		PoolName:    "Main Pool",
		PoolAddress: "Harbour Road 1",
		StartTime:   time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 6, 30, 19, 0, 0, 0, time.UTC),
	}
	return NewBookingConfirmedEvent("a@example.com", info, time.Date(2025, 6, 29, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60)))
}

func TestNewBookingConfirmedEvent(t *testing.T) {
	ev := sampleEvent()
	if ev.EventID == "" {
		t.Fatal("event id is empty")
	}
	if ev.SessionStart != "2025-06-30T18:00:00Z" || ev.SessionEnd != "2025-06-30T19:00:00Z" {
		t.Fatalf("session = %s..%s", ev.SessionStart, ev.SessionEnd)
	}
	if ev.ConfirmedAt != "2025-06-29T10:00:00Z" {
		t.Fatalf("confirmed at = %s, want UTC", ev.ConfirmedAt)
	}
	if other := sampleEvent(); other.EventID == ev.EventID {
		t.Fatal("event ids repeat")
	}
}

func TestLogLine(t *testing.T) {
	line := sampleEvent().LogLine()
	for _, want := range []string{"Booking confirmed", "user=a@example.com", `pool="Main Pool"`, `address="Harbour Road 1"`, "start=2025-06-30T18:00:00Z"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q lacks %q", line, want)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("line %q not newline-terminated", line)
	}
}

func TestConsumerHandleAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "notifications.log")
	c := NewConsumer("amqp://unused", "booking.confirmed", path, zap.NewNop())

	for i := 0; i < 2; i++ {
		body, err := json.Marshal(sampleEvent())
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := c.Handle(body); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if n := strings.Count(string(data), "Booking confirmed"); n != 2 {
		t.Fatalf("lines = %d, want 2", n)
	}
}

func TestConsumerHandleRejectsBadMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.log")
	c := NewConsumer("amqp://unused", "booking.confirmed", path, zap.NewNop())

	cases := map[string]string{
		"not json":   "{",
		"no user":    `{"pool_name":"Main Pool"}`,
		"empty body": `{}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if err := c.Handle([]byte(body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("log file written for bad messages: %v", err)
	}
}

func TestPublisherBacksOffAfterFailedDial(t *testing.T) {
	refused := errors.New("connection refused")
	dials := 0
	now := time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC)

	p := newPublisher("amqp://localhost:5672/", "booking.confirmed", zap.NewNop())
	p.now = func() time.Time { return now }
	p.dial = func(string) (*amqp.Connection, error) {
		dials++
		return nil, refused
	}

	ctx := context.Background()
	if err := p.Publish(ctx, sampleEvent()); !errors.Is(err, refused) {
		t.Fatalf("first publish error = %v, want %v", err, refused)
	}
	if err := p.Publish(ctx, sampleEvent()); !errors.Is(err, refused) {
		t.Fatalf("second publish error = %v, want %v", err, refused)
	}
	if dials != 1 {
		t.Fatalf("dials within backoff = %d, want 1", dials)
	}

	now = now.Add(redialBackoff)
	if err := p.Publish(ctx, sampleEvent()); !errors.Is(err, refused) {
		t.Fatalf("publish after backoff error = %v", err)
	}
	if dials != 2 {
		t.Fatalf("dials after backoff = %d, want 2", dials)
	}
}
