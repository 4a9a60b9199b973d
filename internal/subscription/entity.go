// AngelaMos | 2026
// entity.go

package subscription

import (
	"time"
)

const (
	// TypeLifetime keys never expire in practice; activation stamps the
	// far-future sentinel below instead of a null expiry so every reader
	// can treat subscription_expires uniformly.
	TypeLifetime = "lifetime"

	lifetimeYears = 1337
)

type Key struct {
	ID               int64      `db:"id"`
	KeyCode          string     `db:"key_code"`
	SubscriptionType string     `db:"subscription_type"`
	DurationDays     int        `db:"duration_days"`
	Used             bool       `db:"used"`
	UsedBy           *int64     `db:"used_by"`
	CreatedAt        time.Time  `db:"created_at"`
	UsedAt           *time.Time `db:"used_at"`
}

// Account is the subscription-facing projection of a user record,
// implemented by the user service.
type Account struct {
	UID                 int64
	Username            string
	PasswordHash        string
	HWID                *string
	SubscriptionType    *string
	SubscriptionExpires *time.Time
	CreatedAt           time.Time
}

// IsActive is the single subscription predicate: lifetime is always
// active, timed tiers are active strictly before their expiry.
func IsActive(
	subscriptionType *string,
	expires *time.Time,
	now time.Time,
) bool {
	if subscriptionType == nil || *subscriptionType == "" {
		return false
	}

	if *subscriptionType == TypeLifetime {
		return true
	}

	return expires != nil && expires.After(now)
}

// ExpiryFor computes the expiry stamped at activation. Calendar-day
// arithmetic, so a one-day key activated on Jan 31 expires Feb 1 and DST
// transitions do not shorten the grant.
func ExpiryFor(subscriptionType string, durationDays int, now time.Time) time.Time {
	if subscriptionType == TypeLifetime {
		return now.AddDate(lifetimeYears, 0, 0)
	}

	return now.AddDate(0, 0, durationDays)
}
