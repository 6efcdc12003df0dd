package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

// SubscriptionType is a catalog entry describing a plan.
type SubscriptionType struct {
	ID                  uint64
	Name                string
	PriceCents          int64
	MaxBookingsPerMonth int
	DurationDays        int
}

// Subscription pairs a type with a status.  There is exactly one row per
// (type, status) combination.
type Subscription struct {
	ID     uint64
	TypeID uint64
	Status SubscriptionStatus
}

// UserSubscription is the assignment of a subscription to a user.
type UserSubscription struct {
	UserID            uint64
	SubscriptionID    uint64
	Status            SubscriptionStatus
	Type              SubscriptionType
	AssignedAt        time.Time
	RemainingBookings int
}

// ExpiresAt is the instant after which the assignment is no longer valid.
func (us UserSubscription) ExpiresAt() time.Time {
	return us.AssignedAt.AddDate(0, 0, us.Type.DurationDays)
}

// Expired reports whether asOf is strictly after ExpiresAt.
func (us UserSubscription) Expired(asOf time.Time) bool {
	return asOf.After(us.ExpiresAt())
}
