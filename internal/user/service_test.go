// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodkaclient/keyserver/internal/core"
)

type fakeRepo struct {
	mu     sync.Mutex
	users  map[int64]*User
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[int64]*User)}
}

func (f *fakeRepo) Create(ctx context.Context, user *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.users {
		if existing.Username == user.Username {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
	}

	f.nextID++
	user.UID = f.nextID
	user.CreatedAt = time.Now()

	stored := *user
	f.users[user.UID] = &stored
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, uid int64) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[uid]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	copied := *user
	return &copied, nil
}

func (f *fakeRepo) GetByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, user := range f.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("get user by username: %w", core.ErrNotFound)
}

func (f *fakeRepo) List(ctx context.Context) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	users := make([]User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, *user)
	}
	return users, nil
}

func (f *fakeRepo) Delete(ctx context.Context, uid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[uid]; !ok {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}
	delete(f.users, uid)
	return nil
}

func (f *fakeRepo) BindHWID(
	ctx context.Context,
	uid int64,
	hwid string,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[uid]
	if !ok {
		return false, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if user.HWID != nil {
		return false, nil
	}
	now := time.Now()
	user.HWID = &hwid
	user.HWIDSetAt = &now
	return true, nil
}

func (f *fakeRepo) ResetHWID(ctx context.Context, uid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[uid]
	if !ok {
		return fmt.Errorf("reset hwid: %w", core.ErrNotFound)
	}
	user.HWID = nil
	user.HWIDSetAt = nil
	return nil
}

func TestRegisterHashesPassword(t *testing.T) {
	svc := NewService(newFakeRepo())

	user, err := svc.Register(context.Background(), "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.UID)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$argon2id$"))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Register(context.Background(), "alice", "secret123")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "alice", "different456")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepo())

	registered, err := svc.Register(ctx, "alice", "secret123")
	require.NoError(t, err)

	user, err := svc.Login(ctx, "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, registered.UID, user.UID)

	_, err = svc.Login(ctx, "alice", "wrongpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown usernames produce the same error as wrong passwords.
	_, err = svc.Login(ctx, "nobody", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAccountProviderProjection(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepo())

	registered, err := svc.Register(ctx, "alice", "secret123")
	require.NoError(t, err)

	account, err := svc.AccountByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, registered.UID, account.UID)
	assert.Equal(t, registered.PasswordHash, account.PasswordHash)
	assert.Nil(t, account.HWID)

	won, err := svc.BindHWID(ctx, registered.UID, "machine-a")
	require.NoError(t, err)
	assert.True(t, won)

	// Second bind loses the first-write-wins race.
	won, err = svc.BindHWID(ctx, registered.UID, "machine-b")
	require.NoError(t, err)
	assert.False(t, won)

	account, err = svc.AccountByID(ctx, registered.UID)
	require.NoError(t, err)
	require.NotNil(t, account.HWID)
	assert.Equal(t, "machine-a", *account.HWID)
}
