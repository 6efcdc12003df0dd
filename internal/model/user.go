package model

import "time"

// Role names as carried in the JWT "role" claim and the users.role column.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User mirrors the `users` table.  Credentials live with the auth service;
// this service only needs the identity and role.
type User struct {
	ID        uint64
	Email     string
	Role      string
	CreatedAt time.Time
}

// Actor is the authenticated caller of a core operation.  It is passed
// explicitly so permission checks never depend on request-scoped state.
type Actor struct {
	Email string
	Admin bool
}

// SystemActor is recorded in history rows written by background jobs.
const SystemActor = "system:sweeper"
