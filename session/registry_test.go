package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swahilipot/hubauth/memstore"
	"github.com/swahilipot/hubauth/session"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newRegistry(t *testing.T) (*session.Registry, *memstore.Sessions, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)}
	store := memstore.NewSessions()
	reg, err := session.NewRegistry(store, session.Config{
		TTL:           24 * time.Hour,
		TouchInterval: 5 * time.Minute,
	}, session.WithClock(clock.Now))
	require.NoError(t, err)
	return reg, store, clock
}

func TestRegistryCreateAndResolve(t *testing.T) {
	ctx := context.Background()
	reg, _, clock := newRegistry(t)

	s, token, err := reg.Create(ctx, 7, session.Device{UserAgent: "Firefox", IP: "10.1.1.1:443"})
	require.NoError(t, err)
	assert.Len(t, token, 96)
	assert.NotEqual(t, token, s.TokenHash)
	assert.Equal(t, "10.1.1.1", s.IPAddress)
	assert.Equal(t, clock.now.Add(24*time.Hour), s.ExpiresAt)

	resolved, err := reg.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, resolved.ID)

	_, err = reg.Resolve(ctx, "not-a-token")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRegistryListOrdersByLastActive(t *testing.T) {
	ctx := context.Background()
	reg, _, clock := newRegistry(t)

	first, _, err := reg.Create(ctx, 1, session.Device{UserAgent: "a"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, _, err := reg.Create(ctx, 1, session.Device{UserAgent: "b"})
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	require.NoError(t, reg.Touch(ctx, first.ID))

	list, err := reg.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestRegistryTouchIsRateBounded(t *testing.T) {
	ctx := context.Background()
	reg, store, clock := newRegistry(t)

	s, _, err := reg.Create(ctx, 1, session.Device{})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, reg.Touch(ctx, s.ID))
	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.LastActive, got.LastActive, "touch inside interval must not write")

	clock.Advance(5 * time.Minute)
	require.NoError(t, reg.Touch(ctx, s.ID))
	got, err = store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.now, got.LastActive)
}

func TestRegistryRevokeIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newRegistry(t)

	s, _, err := reg.Create(ctx, 1, session.Device{})
	require.NoError(t, err)

	assert.ErrorIs(t, reg.Revoke(ctx, 2, s.ID), session.ErrNotFound)
	require.NoError(t, reg.Revoke(ctx, 1, s.ID))
	assert.ErrorIs(t, reg.Revoke(ctx, 1, s.ID), session.ErrNotFound, "revoked sessions stay revoked")

	active, err := reg.Active(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRegistryRevokeAllLeavesOtherAccounts(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newRegistry(t)

	for i := 0; i < 3; i++ {
		_, _, err := reg.Create(ctx, 1, session.Device{})
		require.NoError(t, err)
	}
	other, _, err := reg.Create(ctx, 2, session.Device{})
	require.NoError(t, err)

	n, err := reg.RevokeAll(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	list, err := reg.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	active, err := reg.Active(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestRegistryPurgeRemovesDeadRows(t *testing.T) {
	ctx := context.Background()
	reg, store, clock := newRegistry(t)

	revoked, _, err := reg.Create(ctx, 1, session.Device{})
	require.NoError(t, err)
	require.NoError(t, reg.Revoke(ctx, 1, revoked.ID))
	expiring, _, err := reg.Create(ctx, 1, session.Device{})
	require.NoError(t, err)

	clock.Advance(12 * time.Hour)
	live, _, err := reg.Create(ctx, 1, session.Device{})
	require.NoError(t, err)

	clock.Advance(13 * time.Hour)
	n, err := reg.Purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = store.Get(ctx, expiring.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = store.Get(ctx, live.ID)
	assert.NoError(t, err)
}

func TestJanitorSweep(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newRegistry(t)

	s, _, err := reg.Create(ctx, 1, session.Device{})
	require.NoError(t, err)
	require.NoError(t, reg.Revoke(ctx, 1, s.ID))

	j := session.NewJanitor(reg, time.Hour, nil)
	assert.EqualValues(t, 1, j.Sweep(ctx))
	assert.EqualValues(t, 0, j.Sweep(ctx))
}

func TestNewRegistryValidates(t *testing.T) {
	_, err := session.NewRegistry(nil, session.Config{TTL: time.Hour})
	assert.Error(t, err)
	_, err = session.NewRegistry(memstore.NewSessions(), session.Config{})
	assert.Error(t, err)
}
