// AngelaMos | 2026
// service.go

package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vodkaclient/keyserver/internal/core"
)

var (
	// ErrHWIDMismatch means the account is locked to a different machine.
	ErrHWIDMismatch = errors.New("hwid mismatch")

	// ErrInvalidCredentials deliberately does not distinguish unknown
	// usernames from wrong passwords.
	ErrInvalidCredentials = errors.New("invalid login or password")
)

const maxKeyAttempts = 5

// AccountProvider is the slice of the user service the subscription
// flow needs. Keeps this package decoupled from user storage.
type AccountProvider interface {
	AccountByID(ctx context.Context, uid int64) (*Account, error)
	AccountByUsername(ctx context.Context, username string) (*Account, error)
	BindHWID(ctx context.Context, uid int64, hwid string) (bool, error)
}

type Service struct {
	repo         Repository
	accounts     AccountProvider
	hwidEnforced bool
}

func NewService(
	repo Repository,
	accounts AccountProvider,
	hwidEnforced bool,
) *Service {
	return &Service{
		repo:         repo,
		accounts:     accounts,
		hwidEnforced: hwidEnforced,
	}
}

// GenerateKey mints a fresh key, retrying on the astronomically unlikely
// code collision rather than surfacing it to the operator.
func (s *Service) GenerateKey(
	ctx context.Context,
	subscriptionType string,
	durationDays int,
) (*Key, error) {
	subscriptionType = strings.TrimSpace(subscriptionType)
	if subscriptionType == "" {
		return nil, fmt.Errorf("generate key: %w", core.ErrInvalidInput)
	}
	if subscriptionType != TypeLifetime && durationDays <= 0 {
		return nil, fmt.Errorf("generate key: %w", core.ErrInvalidInput)
	}

	var lastErr error
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		code, err := NewKeyCode()
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}

		key := &Key{
			KeyCode:          code,
			SubscriptionType: subscriptionType,
			DurationDays:     durationDays,
		}

		err = s.repo.CreateKey(ctx, key)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, core.ErrDuplicateKey) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("generate key: exhausted attempts: %w", lastErr)
}

func (s *Service) ListKeys(ctx context.Context) ([]Key, error) {
	return s.repo.ListKeys(ctx)
}

// Activate redeems a key for the given account. The returned expiry is
// what activation stamped on the user row.
func (s *Service) Activate(
	ctx context.Context,
	uid int64,
	keyCode string,
) (*Key, time.Time, error) {
	keyCode = strings.TrimSpace(keyCode)
	if keyCode == "" {
		return nil, time.Time{}, fmt.Errorf(
			"activate: %w", core.ErrInvalidInput,
		)
	}

	return s.repo.Activate(ctx, uid, keyCode, time.Now().UTC())
}

// CheckSubscription authenticates a launcher client and applies the
// hardware lock. Credentials are verified before any HWID state is read
// or written, so an attacker cannot probe bindings without a valid
// password.
func (s *Service) CheckSubscription(
	ctx context.Context,
	username string,
	password string,
	hwid string,
) (*Account, error) {
	hwid = strings.TrimSpace(hwid)
	if s.hwidEnforced && hwid == "" {
		return nil, fmt.Errorf("check subscription: %w", core.ErrInvalidInput)
	}

	account, err := s.accounts.AccountByUsername(ctx, username)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	var storedHash *string
	if account != nil {
		storedHash = &account.PasswordHash
	}

	ok, err := core.VerifyPasswordTimingSafe(password, storedHash)
	if err != nil {
		return nil, fmt.Errorf("check subscription: %w", err)
	}
	if account == nil || !ok {
		return nil, ErrInvalidCredentials
	}

	if s.hwidEnforced {
		if err := s.enforceHWID(ctx, account, hwid); err != nil {
			return nil, err
		}
	}

	return account, nil
}

// enforceHWID implements first-write-wins binding. A fresh account binds
// to the presented hwid; a bound account must present the stored one.
func (s *Service) enforceHWID(
	ctx context.Context,
	account *Account,
	hwid string,
) error {
	if account.HWID == nil {
		won, err := s.accounts.BindHWID(ctx, account.UID, hwid)
		if err != nil {
			return err
		}
		if won {
			account.HWID = &hwid
			return nil
		}

		// Lost the race to a concurrent first login. Re-read and
		// compare against whatever actually won.
		fresh, err := s.accounts.AccountByID(ctx, account.UID)
		if err != nil {
			return err
		}
		account.HWID = fresh.HWID
	}

	if account.HWID == nil || *account.HWID != hwid {
		return ErrHWIDMismatch
	}

	return nil
}

// CheckByUID is the unauthenticated existence probe used by launcher
// bootstrap. It never exposes credential or hardware state.
func (s *Service) CheckByUID(ctx context.Context, uid int64) (*Account, error) {
	return s.accounts.AccountByID(ctx, uid)
}
