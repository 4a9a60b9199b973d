// AngelaMos | 2026
// repository.go

package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/vodkaclient/keyserver/internal/core"
)

// ErrKeyAlreadyUsed reports a lost activation race: the key row existed
// but its used flag flipped before this transaction could claim it.
var ErrKeyAlreadyUsed = errors.New("key already used")

type Repository interface {
	CreateKey(ctx context.Context, key *Key) error
	ListKeys(ctx context.Context) ([]Key, error)
	Activate(
		ctx context.Context,
		uid int64,
		keyCode string,
		now time.Time,
	) (*Key, time.Time, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository takes the root handle rather than core.DBTX because
// Activate opens its own transaction.
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateKey(ctx context.Context, key *Key) error {
	query := `
		INSERT INTO keys (key_code, subscription_type, duration_days)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.GetContext(ctx, key, query,
		key.KeyCode,
		key.SubscriptionType,
		key.DurationDays,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create key: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create key: %w", err)
	}

	return nil
}

func (r *repository) ListKeys(ctx context.Context) ([]Key, error) {
	query := `
		SELECT id, key_code, subscription_type, duration_days,
		       used, used_by, created_at, used_at
		FROM keys
		ORDER BY id`

	var keys []Key
	if err := r.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	return keys, nil
}

// Activate consumes a key and grants its subscription in one
// transaction. The used = FALSE guard on the key update is the
// linearization point: under concurrent redemption of the same code
// exactly one transaction flips the flag, every other one sees zero
// rows and rolls back with ErrKeyAlreadyUsed.
func (r *repository) Activate(
	ctx context.Context,
	uid int64,
	keyCode string,
	now time.Time,
) (*Key, time.Time, error) {
	var key Key
	var expires time.Time

	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		selectQuery := `
			SELECT id, key_code, subscription_type, duration_days,
			       used, used_by, created_at, used_at
			FROM keys
			WHERE key_code = $1`

		if err := tx.GetContext(ctx, &key, selectQuery, keyCode); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("activate key: %w", core.ErrNotFound)
			}
			return fmt.Errorf("activate key: %w", err)
		}

		if key.Used {
			return fmt.Errorf("activate key: %w", ErrKeyAlreadyUsed)
		}

		claimQuery := `
			UPDATE keys
			SET used = TRUE, used_by = $2, used_at = $3
			WHERE key_code = $1 AND used = FALSE`

		result, err := tx.ExecContext(ctx, claimQuery, keyCode, uid, now)
		if err != nil {
			return fmt.Errorf("claim key: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim key: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("claim key: %w", ErrKeyAlreadyUsed)
		}

		expires = ExpiryFor(key.SubscriptionType, key.DurationDays, now)

		grantQuery := `
			UPDATE users
			SET subscription_type = $2, subscription_expires = $3
			WHERE uid = $1`

		result, err = tx.ExecContext(
			ctx,
			grantQuery,
			uid,
			key.SubscriptionType,
			expires,
		)
		if err != nil {
			return fmt.Errorf("grant subscription: %w", err)
		}

		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("grant subscription: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("grant subscription: %w", core.ErrNotFound)
		}

		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}

	key.Used = true
	key.UsedBy = &uid
	usedAt := now
	key.UsedAt = &usedAt

	return &key, expires, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
