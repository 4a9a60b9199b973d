// AngelaMos | 2026
// dto.go

package admin

import (
	"github.com/vodkaclient/keyserver/internal/subscription"
	"github.com/vodkaclient/keyserver/internal/user"
)

type DeleteUserRequest struct {
	UID int64 `json:"uid" validate:"required,gte=1"`
}

type ResetHWIDRequest struct {
	UID int64 `json:"uid" validate:"required,gte=1"`
}

type ResetDatabaseRequest struct {
	Confirm string `json:"confirm" validate:"required"`
}

type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type UserListResponse struct {
	Success bool             `json:"success"`
	Users   []user.AdminView `json:"users"`
}

type KeyListResponse struct {
	Success bool                        `json:"success"`
	Keys    []subscription.KeyAdminView `json:"keys"`
}

type GeneratedKeyResponse struct {
	Success          bool   `json:"success"`
	Key              string `json:"key"`
	SubscriptionType string `json:"subscription_type"`
	DurationDays     int    `json:"duration_days"`
}
