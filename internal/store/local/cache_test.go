package local

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewireapp/rewire-server/internal/domain"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDeviceID_MissingThenSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	id, err := c.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, c.SetDeviceID(ctx, "0b8f3c2e-device"))

	id, err = c.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0b8f3c2e-device", id)
}

func TestDeviceID_RejectsEmpty(t *testing.T) {
	c := newTestCache(t)

	err := c.SetDeviceID(context.Background(), "")
	assert.Error(t, err)
}

func TestDeviceID_SurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	ctx := context.Background()

	c, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, c.SetDeviceID(ctx, "stable-id"))
	require.NoError(t, c.Close())

	c2, err := Open(dir, nil)
	require.NoError(t, err)
	defer c2.Close()

	id, err := c2.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stable-id", id)
}

func TestAchievements_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	got, err := c.GetAchievements(ctx, "device-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	catalog := domain.DefaultCatalog()
	unlockedAt := time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)
	catalog[0].ForceUnlock(unlockedAt)

	require.NoError(t, c.SetAchievements(ctx, "device-1", catalog))

	got, err = c.GetAchievements(ctx, "device-1")
	require.NoError(t, err)
	require.Len(t, got, len(catalog))
	assert.True(t, got[0].IsUnlocked)
	require.NotNil(t, got[0].UnlockedAt)
	assert.True(t, got[0].UnlockedAt.Equal(unlockedAt))
	assert.False(t, got[1].IsUnlocked)
	assert.Nil(t, got[1].UnlockedAt)

	other, err := c.GetAchievements(ctx, "device-2")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestInMemoryCache(t *testing.T) {
	c, err := OpenInMemory(nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.SetDeviceID(context.Background(), "mem"))
	id, err := c.GetDeviceID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mem", id)
}
