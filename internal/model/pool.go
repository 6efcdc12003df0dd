package model

import (
	"fmt"
	"time"
)

// Pool is a swimming facility as stored in the `pools` table.  Pools are
// maintained by catalog management; the booking core only reads them.
type Pool struct {
	ID              uint64        // pools.id
	Name            string        // pools.name (unique)
	Address         string        // pools.address
	MaxCapacity     int           // pools.max_capacity, the seat count of every new session
	SessionDuration time.Duration // pools.session_duration_minutes
	CreatedAt       time.Time     // pools.created_at
}

// PoolSchedule is the opening window of a pool on one ISO weekday
// (Monday=1 ... Sunday=7).  Opening and Closing are offsets from midnight
// UTC; the store guarantees Opening < Closing.
type PoolSchedule struct {
	PoolID    uint64
	DayOfWeek int
	Opening   time.Duration
	Closing   time.Duration
}

// ISOWeekday returns the ISO day of week of t in UTC.
func ISOWeekday(t time.Time) int {
	d := int(t.UTC().Weekday())
	if d == 0 {
		return 7
	}
	return d
}

// TimeOfDay returns the offset of t from midnight UTC on the same day.
func TimeOfDay(t time.Time) time.Duration {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return t.Sub(midnight)
}

// OpenAt reports whether at falls inside the window: opening inclusive,
// closing exclusive.
func (s PoolSchedule) OpenAt(at time.Time) bool {
	if ISOWeekday(at) != s.DayOfWeek {
		return false
	}
	tod := TimeOfDay(at)
	return tod >= s.Opening && tod < s.Closing
}

// Covers reports whether the whole interval [start, end) fits inside the
// window of start's day.
func (s PoolSchedule) Covers(start, end time.Time) bool {
	if !s.OpenAt(start) || !end.After(start) {
		return false
	}
	return TimeOfDay(start)+end.Sub(start) <= s.Closing
}

// FormatClock renders an offset from midnight as HH:MM:SS.
func FormatClock(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}
