// AngelaMos | 2026
// service_test.go

package subscription

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodkaclient/keyserver/internal/core"
)

// fakeRepo mirrors the database guards in memory: unique key codes and a
// compare-and-set on the used flag.
type fakeRepo struct {
	mu       sync.Mutex
	keys     map[string]*Key
	accounts *fakeAccounts
	nextID   int64

	createFailures int
}

func newFakeRepo(accounts *fakeAccounts) *fakeRepo {
	return &fakeRepo{
		keys:     make(map[string]*Key),
		accounts: accounts,
	}
}

func (f *fakeRepo) CreateKey(ctx context.Context, key *Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createFailures > 0 {
		f.createFailures--
		return fmt.Errorf("create key: %w", core.ErrDuplicateKey)
	}

	if _, exists := f.keys[key.KeyCode]; exists {
		return fmt.Errorf("create key: %w", core.ErrDuplicateKey)
	}

	f.nextID++
	key.ID = f.nextID
	key.CreatedAt = time.Now()

	stored := *key
	f.keys[key.KeyCode] = &stored
	return nil
}

func (f *fakeRepo) ListKeys(ctx context.Context) ([]Key, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]Key, 0, len(f.keys))
	for _, key := range f.keys {
		keys = append(keys, *key)
	}
	return keys, nil
}

func (f *fakeRepo) Activate(
	ctx context.Context,
	uid int64,
	keyCode string,
	now time.Time,
) (*Key, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, ok := f.keys[keyCode]
	if !ok {
		return nil, time.Time{}, fmt.Errorf(
			"activate key: %w", core.ErrNotFound,
		)
	}
	if key.Used {
		return nil, time.Time{}, fmt.Errorf(
			"activate key: %w", ErrKeyAlreadyUsed,
		)
	}

	key.Used = true
	key.UsedBy = &uid
	usedAt := now
	key.UsedAt = &usedAt

	expires := ExpiryFor(key.SubscriptionType, key.DurationDays, now)
	f.accounts.grant(uid, key.SubscriptionType, expires)

	copied := *key
	return &copied, expires, nil
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[int64]*Account
}

func newFakeAccounts(accounts ...*Account) *fakeAccounts {
	f := &fakeAccounts{accounts: make(map[int64]*Account)}
	for _, a := range accounts {
		f.accounts[a.UID] = a
	}
	return f
}

func (f *fakeAccounts) AccountByID(
	ctx context.Context,
	uid int64,
) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[uid]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	copied := *account
	return &copied, nil
}

func (f *fakeAccounts) AccountByUsername(
	ctx context.Context,
	username string,
) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, account := range f.accounts {
		if account.Username == username {
			copied := *account
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
}

func (f *fakeAccounts) BindHWID(
	ctx context.Context,
	uid int64,
	hwid string,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[uid]
	if !ok {
		return false, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if account.HWID != nil {
		return false, nil
	}
	account.HWID = &hwid
	return true, nil
}

func (f *fakeAccounts) grant(
	uid int64,
	subscriptionType string,
	expires time.Time,
) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if account, ok := f.accounts[uid]; ok {
		account.SubscriptionType = &subscriptionType
		account.SubscriptionExpires = &expires
	}
}

func (f *fakeAccounts) resetHWID(uid int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if account, ok := f.accounts[uid]; ok {
		account.HWID = nil
	}
}

func testAccount(t *testing.T, uid int64, username, password string) *Account {
	t.Helper()

	hash, err := core.HashPassword(password)
	require.NoError(t, err)

	return &Account{
		UID:          uid,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
}

func TestGenerateKey(t *testing.T) {
	accounts := newFakeAccounts()
	repo := newFakeRepo(accounts)
	svc := NewService(repo, accounts, true)

	key, err := svc.GenerateKey(context.Background(), "monthly", 30)
	require.NoError(t, err)
	assert.Regexp(t, keyCodePattern, key.KeyCode)
	assert.Equal(t, "monthly", key.SubscriptionType)
	assert.Equal(t, 30, key.DurationDays)
	assert.False(t, key.Used)
}

func TestGenerateKeyRetriesOnCollision(t *testing.T) {
	accounts := newFakeAccounts()
	repo := newFakeRepo(accounts)
	repo.createFailures = 2
	svc := NewService(repo, accounts, true)

	key, err := svc.GenerateKey(context.Background(), TypeLifetime, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, key.KeyCode)
}

func TestGenerateKeyExhaustsAttempts(t *testing.T) {
	accounts := newFakeAccounts()
	repo := newFakeRepo(accounts)
	repo.createFailures = maxKeyAttempts
	svc := NewService(repo, accounts, true)

	_, err := svc.GenerateKey(context.Background(), TypeLifetime, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestGenerateKeyRejectsInvalidInput(t *testing.T) {
	accounts := newFakeAccounts()
	svc := NewService(newFakeRepo(accounts), accounts, true)

	_, err := svc.GenerateKey(context.Background(), "", 30)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.GenerateKey(context.Background(), "monthly", 0)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.GenerateKey(context.Background(), "monthly", -5)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestActivateValidations(t *testing.T) {
	accounts := newFakeAccounts(testAccount(t, 1, "alice", "secret123"))
	repo := newFakeRepo(accounts)
	svc := NewService(repo, accounts, true)

	_, _, err := svc.Activate(context.Background(), 1, "   ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, _, err = svc.Activate(context.Background(), 1, "VDK-NOPE-NOPE")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestActivateGrantsSubscription(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(testAccount(t, 1, "alice", "secret123"))
	repo := newFakeRepo(accounts)
	svc := NewService(repo, accounts, true)

	key, err := svc.GenerateKey(ctx, "monthly", 30)
	require.NoError(t, err)

	activated, expires, err := svc.Activate(ctx, 1, key.KeyCode)
	require.NoError(t, err)
	assert.True(t, activated.Used)
	require.NotNil(t, activated.UsedBy)
	assert.Equal(t, int64(1), *activated.UsedBy)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), expires, 5*time.Second)

	account, err := accounts.AccountByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, account.SubscriptionType)
	assert.Equal(t, "monthly", *account.SubscriptionType)
}

func TestActivateIsOneShot(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(
		testAccount(t, 1, "alice", "secret123"),
		testAccount(t, 2, "bob", "secret123"),
	)
	repo := newFakeRepo(accounts)
	svc := NewService(repo, accounts, true)

	key, err := svc.GenerateKey(ctx, TypeLifetime, 0)
	require.NoError(t, err)

	_, _, err = svc.Activate(ctx, 1, key.KeyCode)
	require.NoError(t, err)

	_, _, err = svc.Activate(ctx, 2, key.KeyCode)
	assert.ErrorIs(t, err, ErrKeyAlreadyUsed)
}

func TestActivateConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()

	accounts := newFakeAccounts()
	for uid := int64(1); uid <= 16; uid++ {
		accounts.accounts[uid] = testAccount(
			t, uid, fmt.Sprintf("user%d", uid), "secret123",
		)
	}
	repo := newFakeRepo(accounts)
	svc := NewService(repo, accounts, true)

	key, err := svc.GenerateKey(ctx, "monthly", 30)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 16)
	for uid := int64(1); uid <= 16; uid++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			_, _, err := svc.Activate(ctx, uid, key.KeyCode)
			results <- err
		}(uid)
	}
	wg.Wait()
	close(results)

	var successes, alreadyUsed int
	for err := range results {
		switch {
		case err == nil:
			successes++
		default:
			assert.ErrorIs(t, err, ErrKeyAlreadyUsed)
			alreadyUsed++
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 15, alreadyUsed)
}

func TestCheckSubscriptionCredentials(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(testAccount(t, 1, "alice", "secret123"))
	svc := NewService(newFakeRepo(accounts), accounts, true)

	_, err := svc.CheckSubscription(ctx, "alice", "wrong", "machine-a")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.CheckSubscription(ctx, "nobody", "secret123", "machine-a")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	account, err := svc.CheckSubscription(ctx, "alice", "secret123", "machine-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), account.UID)
}

func TestCheckSubscriptionRequiresHWIDWhenEnforced(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(testAccount(t, 1, "alice", "secret123"))
	svc := NewService(newFakeRepo(accounts), accounts, true)

	_, err := svc.CheckSubscription(ctx, "alice", "secret123", "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCheckSubscriptionHWIDLifecycle(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(testAccount(t, 1, "alice", "secret123"))
	svc := NewService(newFakeRepo(accounts), accounts, true)

	// First login binds the machine.
	account, err := svc.CheckSubscription(ctx, "alice", "secret123", "machine-a")
	require.NoError(t, err)
	require.NotNil(t, account.HWID)
	assert.Equal(t, "machine-a", *account.HWID)

	// Same machine keeps working.
	_, err = svc.CheckSubscription(ctx, "alice", "secret123", "machine-a")
	require.NoError(t, err)

	// A different machine is rejected.
	_, err = svc.CheckSubscription(ctx, "alice", "secret123", "machine-b")
	assert.ErrorIs(t, err, ErrHWIDMismatch)

	// After an admin reset the next machine wins the binding.
	accounts.resetHWID(1)
	account, err = svc.CheckSubscription(ctx, "alice", "secret123", "machine-b")
	require.NoError(t, err)
	require.NotNil(t, account.HWID)
	assert.Equal(t, "machine-b", *account.HWID)
}

func TestCheckSubscriptionEnforcementDisabled(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(testAccount(t, 1, "alice", "secret123"))
	svc := NewService(newFakeRepo(accounts), accounts, false)

	// No hwid presented and none bound.
	account, err := svc.CheckSubscription(ctx, "alice", "secret123", "")
	require.NoError(t, err)
	assert.Nil(t, account.HWID)

	// Mismatching hwid is ignored when enforcement is off.
	_, err = svc.CheckSubscription(ctx, "alice", "secret123", "anything")
	require.NoError(t, err)
}
