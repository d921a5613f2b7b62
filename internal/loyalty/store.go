// Package loyalty reads client point balances. Balances are written by an
// external back office; the bot only registers new clients at zero and
// displays the balance.
package loyalty

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store reads point balances. A user never seen before has balance 0.
type Store interface {
	// Balance returns the user's point balance, defaulting to zero.
	Balance(ctx context.Context, userID int64) (int64, error)
	// Touch registers a user with a zero balance on first contact. Existing
	// balances are left alone.
	Touch(ctx context.Context, userID int64) error
}

// RedisStore keeps balances as plain integer values.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed loyalty store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func (s *RedisStore) key(userID int64) string {
	return fmt.Sprintf("loyalty:points:%d", userID)
}

func (s *RedisStore) Balance(ctx context.Context, userID int64) (int64, error) {
	val, err := s.redis.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("loyalty: get balance: %w", err)
	}
	balance, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("loyalty: malformed balance %q: %w", val, err)
	}
	return balance, nil
}

func (s *RedisStore) Touch(ctx context.Context, userID int64) error {
	if err := s.redis.SetNX(ctx, s.key(userID), 0, 0).Err(); err != nil {
		return fmt.Errorf("loyalty: touch: %w", err)
	}
	return nil
}

// FileStore keeps balances in a single JSON file keyed by user id, matching
// the back office's exchange format.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed loyalty store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Balance(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return 0, err
	}
	return data[strconv.FormatInt(userID, 10)], nil
}

func (s *FileStore) Touch(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	key := strconv.FormatInt(userID, 10)
	if _, ok := data[key]; ok {
		return nil
	}
	data[key] = 0
	return s.save(data)
}

func (s *FileStore) load() (map[string]int64, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loyalty: read %s: %w", s.path, err)
	}
	var data map[string]int64
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("loyalty: parse %s: %w", s.path, err)
	}
	if data == nil {
		data = map[string]int64{}
	}
	return data, nil
}

func (s *FileStore) save(data map[string]int64) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("loyalty: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("loyalty: write %s: %w", s.path, err)
	}
	return nil
}
