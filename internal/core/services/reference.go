// internal/core/services/reference.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
)

// ReferenceKeyPrefix prefixes cached reference lists
const ReferenceKeyPrefix = "ref"

// ReferenceService reads collections through the cache. Only reference
// collections are cached; sales and the queue always hit the store.
type ReferenceService struct {
	store  ports.Store
	cache  ports.CacheRepository
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.ReferenceService = (*ReferenceService)(nil)

// NewReferenceService creates a reference service. A nil cache disables caching.
func NewReferenceService(store ports.Store, cache ports.CacheRepository, ttl time.Duration, logger *slog.Logger) *ReferenceService {
	return &ReferenceService{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("service", "reference")),
	}
}

// ReferenceKey returns the cache key of c
func ReferenceKey(c domain.Collection) string {
	return ReferenceKeyPrefix + ":" + c.String()
}

// List returns every record of c
func (s *ReferenceService) List(ctx context.Context, c domain.Collection) ([]domain.Record, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCollection, c)
	}
	if s.cache == nil || !c.IsReference() {
		return s.store.GetAll(ctx, c)
	}

	key := ReferenceKey(c)
	records, err := s.cached(ctx, c, key)
	if err == nil {
		return records, nil
	}
	if !errors.Is(err, ports.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "cache read failed, using store",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}

	records, err = s.store.GetAll(ctx, c)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetWithTTL(ctx, key, records, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "failed to cache reference list",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	return records, nil
}

// Count returns the number of records in c
func (s *ReferenceService) Count(ctx context.Context, c domain.Collection) (int, error) {
	return s.store.Count(ctx, c)
}

// Add inserts r into a reference collection and drops its cached list
func (s *ReferenceService) Add(ctx context.Context, c domain.Collection, r domain.Record) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCollection, c)
	}
	if !c.IsReference() {
		return fmt.Errorf("%w: %s is written by the sales workflow only", domain.ErrReadOnlyCollection, c)
	}

	if err := s.store.Add(ctx, c, r); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, ReferenceKey(c)); err != nil {
			s.logger.WarnContext(ctx, "failed to drop cached list",
				slog.String("collection", c.String()),
				slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "reference record added",
		slog.String("collection", c.String()),
		slog.String("key", r.Key()))
	return nil
}

// Invalidate drops every cached reference list
func (s *ReferenceService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeletePattern(ctx, ReferenceKeyPrefix+":*"); err != nil {
		return fmt.Errorf("failed to invalidate reference cache: %w", err)
	}
	return nil
}

func (s *ReferenceService) cached(ctx context.Context, c domain.Collection, key string) ([]domain.Record, error) {
	switch c {
	case domain.CollectionCustomers:
		return cachedList[*domain.Customer](ctx, s.cache, key)
	case domain.CollectionInventory:
		return cachedList[*domain.InventoryItem](ctx, s.cache, key)
	case domain.CollectionPackages:
		return cachedList[*domain.Package](ctx, s.cache, key)
	case domain.CollectionDevices:
		return cachedList[*domain.Device](ctx, s.cache, key)
	}
	return nil, ports.ErrCacheMiss
}

func cachedList[T domain.Record](ctx context.Context, cache ports.CacheRepository, key string) ([]domain.Record, error) {
	var items []T
	if err := cache.Get(ctx, key, &items); err != nil {
		return nil, err
	}

	records := make([]domain.Record, len(items))
	for i, item := range items {
		records[i] = item
	}
	return records, nil
}
