package model

import "time"

// Session is a time-boxed swim slot.  RemainingCapacity is owned by the
// session registry and only changes through its atomic increment and
// decrement primitives.
type Session struct {
	ID                uint64    // sessions.id
	PoolID            uint64    // sessions.pool_id
	PoolName          string    // pools.name, joined for display and logging
	PoolAddress       string    // pools.address, joined for notifications
	MaxCapacity       int       // pools.max_capacity, joined for capacity checks
	StartTime         time.Time // sessions.start_time (UTC)
	EndTime           time.Time // sessions.end_time (UTC)
	RemainingCapacity int       // sessions.remaining_capacity
}

// SessionInfo is what a confirmation notification needs to know about the
// booked session.
type SessionInfo struct {
	PoolName    string
	PoolAddress string
	StartTime   time.Time
	EndTime     time.Time
}

// Info returns the notification view of s.
func (s Session) Info() SessionInfo {
	return SessionInfo{PoolName: s.PoolName, PoolAddress: s.PoolAddress, StartTime: s.StartTime, EndTime: s.EndTime}
}
