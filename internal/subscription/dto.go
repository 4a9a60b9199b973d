// AngelaMos | 2026
// dto.go

package subscription

import (
	"time"
)

type ActivateKeyRequest struct {
	KeyCode string `json:"key" validate:"required"`
}

type ActivationResponse struct {
	Success          bool       `json:"success"`
	Message          string     `json:"message"`
	SubscriptionType string     `json:"subscription_type"`
	Expires          *time.Time `json:"expires,omitempty"`
}

type LauncherCheckRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	HWID     string `json:"hwid"`
}

type LauncherSubscription struct {
	Type    string     `json:"type"`
	Expires *time.Time `json:"expires,omitempty"`
	Active  bool       `json:"active"`
}

type LauncherUser struct {
	UID       int64     `json:"uid"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type LauncherView struct {
	Success         bool                  `json:"success"`
	Message         string                `json:"message,omitempty"`
	HasSubscription bool                  `json:"has_subscription"`
	User            *LauncherUser         `json:"user,omitempty"`
	Subscription    *LauncherSubscription `json:"subscription,omitempty"`
	HWID            *string               `json:"hwid,omitempty"`
}

// LauncherFailure is the launcher error envelope; unlike the plain API
// envelope it always carries has_subscription so older clients that read
// the flag unconditionally keep working.
type LauncherFailure struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	HasSubscription bool   `json:"has_subscription"`
}

type GenerateKeyRequest struct {
	SubscriptionType string `json:"subscription_type" validate:"required,min=1,max=64"`
	DurationDays     int    `json:"duration_days"     validate:"gte=0"`
}

type KeyAdminView struct {
	ID               int64      `json:"id"`
	KeyCode          string     `json:"key"`
	SubscriptionType string     `json:"subscription_type"`
	DurationDays     int        `json:"duration_days"`
	Used             bool       `json:"used"`
	UsedBy           *int64     `json:"used_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UsedAt           *time.Time `json:"used_at,omitempty"`
}

func (k *Key) ToAdminView() KeyAdminView {
	return KeyAdminView{
		ID:               k.ID,
		KeyCode:          k.KeyCode,
		SubscriptionType: k.SubscriptionType,
		DurationDays:     k.DurationDays,
		Used:             k.Used,
		UsedBy:           k.UsedBy,
		CreatedAt:        k.CreatedAt,
		UsedAt:           k.UsedAt,
	}
}

func ToAdminViewList(keys []Key) []KeyAdminView {
	views := make([]KeyAdminView, 0, len(keys))
	for i := range keys {
		views = append(views, keys[i].ToAdminView())
	}
	return views
}
