// Package cache holds the short-lived reference-data cache used by the
// ticket service for categories and assignable users.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/helpdeskpro/helpdesk-service/internal/domain"
)

// Clock returns the current time. Injectable for tests.
type Clock func() time.Time

// ReferenceCache keeps categories and user profiles behind one shared
// timestamp with a fixed TTL. On loader failure the last good value is
// returned alongside the error so callers can render stale data.
type ReferenceCache struct {
	mu  sync.Mutex
	ttl time.Duration
	now Clock

	categories       []domain.Category
	categoriesLoaded bool
	users            []domain.Profile
	usersLoaded      bool
	fetchedAt        time.Time
}

// New builds a cache with the given TTL. A nil clock defaults to time.Now.
func New(ttl time.Duration, now Clock) *ReferenceCache {
	if now == nil {
		now = time.Now
	}
	return &ReferenceCache{ttl: ttl, now: now}
}

// CategoryLoader fetches the category collection from the backing store.
type CategoryLoader func(ctx context.Context) ([]domain.Category, error)

// UserLoader fetches the profile collection from the backing store.
type UserLoader func(ctx context.Context) ([]domain.Profile, error)

// Categories returns cached categories when fresh, otherwise re-fetches via
// load. force bypasses the freshness check.
func (c *ReferenceCache) Categories(ctx context.Context, force bool, load CategoryLoader) ([]domain.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.categoriesLoaded && c.fresh() {
		return c.categories, nil
	}

	data, err := load(ctx)
	if err != nil {
		return c.categories, err
	}
	c.categories = data
	c.categoriesLoaded = true
	c.fetchedAt = c.now()
	return c.categories, nil
}

// Users returns cached profiles when fresh, otherwise re-fetches via load.
func (c *ReferenceCache) Users(ctx context.Context, force bool, load UserLoader) ([]domain.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.usersLoaded && c.fresh() {
		return c.users, nil
	}

	data, err := load(ctx)
	if err != nil {
		return c.users, err
	}
	c.users = data
	c.usersLoaded = true
	c.fetchedAt = c.now()
	return c.users, nil
}

// Invalidate drops both collections and the shared timestamp.
func (c *ReferenceCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = nil
	c.categoriesLoaded = false
	c.users = nil
	c.usersLoaded = false
	c.fetchedAt = time.Time{}
}

// Both collections share a single timestamp: a refresh of either resets the
// freshness window for both, mirroring how the cache is consumed (forms load
// categories and users together).
func (c *ReferenceCache) fresh() bool {
	return !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl
}
