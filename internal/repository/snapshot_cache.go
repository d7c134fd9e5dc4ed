package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StratEngine/internal/domain/models"
	domrepo "StratEngine/internal/domain/repository"
	"StratEngine/pkg/cache"
)

// ErrSnapshotNotFound is returned when no snapshot is cached for a symbol.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// CachedSnapshotStore keeps the latest continuity snapshot per symbol.
type CachedSnapshotStore struct {
	c   cache.Service
	ttl time.Duration
}

var _ domrepo.SnapshotCache = (*CachedSnapshotStore)(nil)

func NewCachedSnapshotStore(c cache.Service, ttl time.Duration) *CachedSnapshotStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedSnapshotStore{c: c, ttl: ttl}
}

func snapshotKey(symbol string) string {
	return cache.GenerateKey("continuity", symbol)
}

func (s *CachedSnapshotStore) SetContinuity(ctx context.Context, snap *models.ContinuitySnapshot) error {
	if snap == nil || snap.Symbol == "" {
		return nil
	}
	if err := s.c.Set(ctx, snapshotKey(snap.Symbol), snap, s.ttl); err != nil {
		return fmt.Errorf("cache continuity %s: %w", snap.Symbol, err)
	}
	return nil
}

func (s *CachedSnapshotStore) GetContinuity(ctx context.Context, symbol string) (*models.ContinuitySnapshot, error) {
	var snap models.ContinuitySnapshot
	if err := s.c.Get(ctx, snapshotKey(symbol), &snap); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return &snap, nil
}
