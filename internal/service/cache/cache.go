package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Slot is the server-side copy of one session's board-encoding slot. It is
// overwritten on every applied analysis and dropped when the session
// uploads a new document.
type Slot struct {
	FEN        string    `json:"fen"`
	CropRef    string    `json:"crop_ref"`
	Page       int       `json:"page"`
	DetectedAt time.Time `json:"detected_at"`
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to redis using a redis:// URL.
func New(redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return NewWithClient(redis.NewClient(opts), ttl), nil
}

func NewWithClient(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) keySlot(session string) string { return "snap:slot:" + strings.TrimSpace(session) }

// SaveSlot overwrites the session's slot and refreshes its TTL.
func (s *Store) SaveSlot(ctx context.Context, session string, slot *Slot) error {
	raw, err := json.Marshal(slot)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.keySlot(session), raw, s.ttl).Err()
}

// LoadSlot returns nil without error when the session has no slot.
func (s *Store) LoadSlot(ctx context.Context, session string) (*Slot, error) {
	raw, err := s.rdb.Get(ctx, s.keySlot(session)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var slot Slot
	if err := json.Unmarshal(raw, &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ClearSlot drops the session's slot, e.g. when a new document replaces the
// previews the slot was detected from.
func (s *Store) ClearSlot(ctx context.Context, session string) error {
	return s.rdb.Del(ctx, s.keySlot(session)).Err()
}

// Ping verifies connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
