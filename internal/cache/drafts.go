package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dpup/ridemap/internal/lib/draft"
	"github.com/dpup/ridemap/internal/metrics"
)

// ErrDraftNotFound is returned when no live draft exists for an id
var ErrDraftNotFound = errors.New("draft not found")

// DraftStore persists boundary draft snapshots so a host can resume one
type DraftStore interface {
	SaveDraft(ctx context.Context, snap draft.Snapshot) error
	LoadDraft(ctx context.Context, id string) (draft.Snapshot, error)
	DeleteDraft(ctx context.Context, id string) error
}

const draftKeyPrefix = "draft:"

func draftKey(id string) string {
	return draftKeyPrefix + id
}

// MemoryDraftStore keeps drafts in a Cache
type MemoryDraftStore struct {
	cache *Cache
	ttl   time.Duration
}

var _ DraftStore = (*MemoryDraftStore)(nil)

// NewMemoryDraftStore stores drafts in c for ttl
func NewMemoryDraftStore(c *Cache, ttl time.Duration) *MemoryDraftStore {
	return &MemoryDraftStore{cache: c, ttl: ttl}
}

// SaveDraft implements DraftStore
func (s *MemoryDraftStore) SaveDraft(_ context.Context, snap draft.Snapshot) error {
	if snap.ID == "" {
		return errors.New("draft snapshot has no id")
	}
	return s.cache.Set(draftKey(snap.ID), snap, s.ttl, "draft")
}

// LoadDraft implements DraftStore
func (s *MemoryDraftStore) LoadDraft(_ context.Context, id string) (draft.Snapshot, error) {
	var snap draft.Snapshot
	found, err := s.cache.Get(draftKey(id), &snap)
	if err != nil {
		return draft.Snapshot{}, err
	}
	if !found {
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return draft.Snapshot{}, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	metrics.CacheHits.WithLabelValues("memory").Inc()
	return snap, nil
}

// DeleteDraft implements DraftStore
func (s *MemoryDraftStore) DeleteDraft(_ context.Context, id string) error {
	s.cache.Delete(draftKey(id))
	return nil
}

// RedisDraftStore keeps drafts in Redis so several server instances share them
type RedisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ DraftStore = (*RedisDraftStore)(nil)

// NewRedisDraftStore stores drafts through client for ttl
func NewRedisDraftStore(client *redis.Client, ttl time.Duration) *RedisDraftStore {
	return &RedisDraftStore{client: client, ttl: ttl}
}

// SaveDraft implements DraftStore
func (s *RedisDraftStore) SaveDraft(ctx context.Context, snap draft.Snapshot) error {
	if snap.ID == "" {
		return errors.New("draft snapshot has no id")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKey(snap.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", snap.ID, err)
	}
	return nil
}

// LoadDraft implements DraftStore
func (s *RedisDraftStore) LoadDraft(ctx context.Context, id string) (draft.Snapshot, error) {
	data, err := s.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return draft.Snapshot{}, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	if err != nil {
		return draft.Snapshot{}, fmt.Errorf("redis get %s: %w", id, err)
	}

	var snap draft.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return draft.Snapshot{}, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	metrics.CacheHits.WithLabelValues("redis").Inc()
	return snap, nil
}

// DeleteDraft implements DraftStore
func (s *RedisDraftStore) DeleteDraft(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, draftKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", id, err)
	}
	return nil
}
