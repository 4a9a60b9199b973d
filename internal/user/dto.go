// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	UID      int64  `json:"uid"`
	Username string `json:"username"`
}

type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CheckAuthResponse struct {
	Authenticated       bool       `json:"authenticated"`
	UID                 int64      `json:"uid,omitempty"`
	Username            string     `json:"username,omitempty"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
	SubscriptionType    *string    `json:"subscription_type,omitempty"`
	SubscriptionExpires *time.Time `json:"subscription_expires,omitempty"`
	SubscriptionActive  bool       `json:"subscription_active"`
}

type AdminView struct {
	UID                 int64      `json:"uid"`
	Username            string     `json:"username"`
	HWID                *string    `json:"hwid"`
	SubscriptionType    *string    `json:"subscription_type"`
	SubscriptionExpires *time.Time `json:"subscription_expires"`
	CreatedAt           time.Time  `json:"created_at"`
}

func ToAdminView(u *User) AdminView {
	return AdminView{
		UID:                 u.UID,
		Username:            u.Username,
		HWID:                u.HWID,
		SubscriptionType:    u.SubscriptionType,
		SubscriptionExpires: u.SubscriptionExpires,
		CreatedAt:           u.CreatedAt,
	}
}

func ToAdminViewList(users []User) []AdminView {
	views := make([]AdminView, 0, len(users))
	for _, u := range users {
		views = append(views, ToAdminView(&u))
	}
	return views
}
