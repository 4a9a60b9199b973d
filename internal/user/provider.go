// AngelaMos | 2026
// provider.go

package user

import (
	"context"

	"github.com/vodkaclient/keyserver/internal/subscription"
)

var _ subscription.AccountProvider = (*Service)(nil)

func (s *Service) AccountByID(
	ctx context.Context,
	uid int64,
) (*subscription.Account, error) {
	u, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return toAccount(u), nil
}

func (s *Service) AccountByUsername(
	ctx context.Context,
	username string,
) (*subscription.Account, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return toAccount(u), nil
}

func toAccount(u *User) *subscription.Account {
	return &subscription.Account{
		UID:                 u.UID,
		Username:            u.Username,
		PasswordHash:        u.PasswordHash,
		HWID:                u.HWID,
		SubscriptionType:    u.SubscriptionType,
		SubscriptionExpires: u.SubscriptionExpires,
		CreatedAt:           u.CreatedAt,
	}
}
