package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T, ttl time.Duration) *BoltCache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutGet(t *testing.T) {
	c := openTestCache(t, time.Hour)

	_, ok := c.Get("paper:P1")
	assert.False(t, ok)

	require.NoError(t, c.Put("paper:P1", []byte(`{"paperId":"P1"}`)))
	got, ok := c.Get("paper:P1")
	require.True(t, ok)
	assert.JSONEq(t, `{"paperId":"P1"}`, string(got))
	assert.Equal(t, 1, c.Len())
}

func TestPutRejectsInvalidJSON(t *testing.T) {
	c := openTestCache(t, time.Hour)
	assert.Error(t, c.Put("k", []byte("not json")))
}

func TestExpiryAndPurge(t *testing.T) {
	c := openTestCache(t, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Put("old", []byte(`1`)))
	now = now.Add(30 * time.Second)
	require.NoError(t, c.Put("new", []byte(`2`)))
	now = now.Add(45 * time.Second)

	_, ok := c.Get("old")
	assert.False(t, ok, "older than ttl")
	_, ok = c.Get("new")
	assert.True(t, ok)

	removed, err := c.Purge()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}

func TestNoExpiry(t *testing.T) {
	c := openTestCache(t, 0)
	c.now = func() time.Time { return time.Unix(0, 0) }
	require.NoError(t, c.Put("k", []byte(`true`)))
	c.now = func() time.Time { return time.Unix(0, 0).Add(24 * 365 * time.Hour) }

	_, ok := c.Get("k")
	assert.True(t, ok)
	removed, err := c.Purge()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestClear(t *testing.T) {
	c := openTestCache(t, time.Hour)
	require.NoError(t, c.Put("a", []byte(`1`)))
	require.NoError(t, c.Put("b", []byte(`2`)))
	require.NoError(t, c.Clear())
	assert.Zero(t, c.Len())
}
