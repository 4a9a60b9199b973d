// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	UID                 int64      `db:"uid"`
	Username            string     `db:"username"`
	PasswordHash        string     `db:"password_hash"`
	HWID                *string    `db:"hwid"`
	HWIDSetAt           *time.Time `db:"hwid_set_at"`
	SubscriptionType    *string    `db:"subscription_type"`
	SubscriptionExpires *time.Time `db:"subscription_expires"`
	CreatedAt           time.Time  `db:"created_at"`
}
