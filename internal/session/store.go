// AngelaMos | 2026
// store.go

// Package session implements the server-side session store: an opaque
// cookie value keyed to a Redis record holding the authenticated identity.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vodkaclient/keyserver/internal/config"
	"github.com/vodkaclient/keyserver/internal/core"
)

const (
	keyPrefix = "session:"
	tokenLen  = 32
)

type Session struct {
	ID        string    `json:"-"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	client *redis.Client
	cfg    config.SessionConfig
}

func NewStore(client *redis.Client, cfg config.SessionConfig) *Store {
	return &Store{client: client, cfg: cfg}
}

func (s *Store) CookieName() string {
	return s.cfg.CookieName
}

func (s *Store) TTL() time.Duration {
	return s.cfg.TTL
}

// Create stores a new session with the fixed absolute lifetime. The id is
// opaque; nothing about the user is derivable from it.
func (s *Store) Create(
	ctx context.Context,
	userID int64,
	username string,
) (*Session, error) {
	id, err := core.GenerateSecureToken(tokenLen)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	sess := &Session{
		ID:        id,
		UserID:    userID,
		Username:  username,
		CreatedAt: time.Now(),
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(
		ctx,
		keyPrefix+id,
		payload,
		s.cfg.TTL,
	).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return sess, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("get session: %w", core.ErrNotFound)
	}

	payload, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get session: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	sess.ID = id

	return &sess, nil
}

// DestroyAll walks the session keyspace and deletes every record. Used
// after a full data reset so no cookie survives its account.
func (s *Store) DestroyAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("destroy sessions: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("destroy sessions: %w", err)
	}

	return nil
}

func (s *Store) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}

	return nil
}
