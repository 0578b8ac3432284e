package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdeskpro/helpdesk-service/internal/domain"
)

type fakeClock struct {
	current time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.current
}

func (f *fakeClock) Advance(d time.Duration) {
	f.current = f.current.Add(d)
}

func countingCategoryLoader(calls *int, data []domain.Category, err error) CategoryLoader {
	return func(context.Context) ([]domain.Category, error) {
		*calls++
		if err != nil {
			return nil, err
		}
		return data, nil
	}
}

func TestReferenceCache_ServesFreshValueWithoutReload(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New(5*time.Minute, clock.Now)

	calls := 0
	loader := countingCategoryLoader(&calls, []domain.Category{{ID: "c1", Name: "Hardware"}}, nil)

	first, err := c.Categories(context.Background(), false, loader)
	require.NoError(t, err)
	require.Len(t, first, 1)

	clock.Advance(4 * time.Minute)
	second, err := c.Categories(context.Background(), false, loader)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestReferenceCache_ReloadsAfterTTL(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New(5*time.Minute, clock.Now)

	calls := 0
	loader := countingCategoryLoader(&calls, nil, nil)

	_, err := c.Categories(context.Background(), false, loader)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	_, err = c.Categories(context.Background(), false, loader)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestReferenceCache_ForceBypassesFreshness(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New(5*time.Minute, clock.Now)

	calls := 0
	loader := countingCategoryLoader(&calls, nil, nil)

	_, err := c.Categories(context.Background(), false, loader)
	require.NoError(t, err)
	_, err = c.Categories(context.Background(), true, loader)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestReferenceCache_StaleValueOnLoaderFailure(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New(5*time.Minute, clock.Now)

	calls := 0
	good := countingCategoryLoader(&calls, []domain.Category{{ID: "c1", Name: "Software"}}, nil)
	_, err := c.Categories(context.Background(), false, good)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	broken := countingCategoryLoader(&calls, nil, errors.New("db unavailable"))
	stale, err := c.Categories(context.Background(), false, broken)
	assert.Error(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "Software", stale[0].Name)
}

func TestReferenceCache_SharedTimestamp(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New(5*time.Minute, clock.Now)

	categoryCalls := 0
	userCalls := 0
	catLoader := countingCategoryLoader(&categoryCalls, nil, nil)
	userLoader := func(context.Context) ([]domain.Profile, error) {
		userCalls++
		return []domain.Profile{{ID: "u1"}}, nil
	}

	_, err := c.Categories(context.Background(), false, catLoader)
	require.NoError(t, err)

	// a users fetch inside the window resets the shared timestamp,
	// extending freshness for categories as well
	clock.Advance(4 * time.Minute)
	_, err = c.Users(context.Background(), false, userLoader)
	require.NoError(t, err)

	clock.Advance(4 * time.Minute)
	_, err = c.Categories(context.Background(), false, catLoader)
	require.NoError(t, err)
	assert.Equal(t, 1, categoryCalls)
	assert.Equal(t, 1, userCalls)
}

func TestReferenceCache_InvalidateDropsBoth(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New(5*time.Minute, clock.Now)

	calls := 0
	loader := countingCategoryLoader(&calls, nil, nil)

	_, err := c.Categories(context.Background(), false, loader)
	require.NoError(t, err)

	c.Invalidate()
	_, err = c.Categories(context.Background(), false, loader)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
