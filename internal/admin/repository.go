// AngelaMos | 2026
// repository.go

package admin

import (
	"context"
	"fmt"

	"github.com/vodkaclient/keyserver/internal/core"
)

// Repository holds the destructive maintenance statements. They live
// apart from the user and key repositories so nothing on a request path
// can reach them by accident.
type Repository interface {
	ResetAll(ctx context.Context) error
	ResetUIDSequence(ctx context.Context) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// ResetAll wipes both tables and restarts their id sequences in a single
// statement, so a failure partway leaves everything intact.
func (r *repository) ResetAll(ctx context.Context) error {
	query := `TRUNCATE users, keys RESTART IDENTITY CASCADE`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("reset database: %w", err)
	}

	return nil
}

func (r *repository) ResetUIDSequence(ctx context.Context) error {
	query := `ALTER SEQUENCE users_uid_seq RESTART WITH 1`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("reset uid sequence: %w", err)
	}

	return nil
}
