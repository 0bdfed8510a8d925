package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	data map[string]string
}

func (m *memStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memStore) DelIfValue(_ context.Context, key, value string) (bool, error) {
	if v, ok := m.data[key]; ok && v == value {
		delete(m.data, key)
		return true, nil
	}
	return false, nil
}

func TestRedisLockExclusive(t *testing.T) {
	ctx := context.Background()
	store := &memStore{data: map[string]string{}}
	a, err := NewRedisLock(store, "ltv:lock:ltv-pipeline", "api-1", time.Minute)
	require.NoError(t, err)
	b, err := NewRedisLock(store, "ltv:lock:ltv-pipeline", "api-2", time.Minute)
	require.NoError(t, err)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(store.data["ltv:lock:ltv-pipeline"], "api-1/"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// a non-owner release leaves the lock in place
	require.NoError(t, b.Release(ctx))
	assert.Contains(t, store.data, "ltv:lock:ltv-pipeline")

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	ctx := context.Background()
	store := &memStore{data: map[string]string{}}
	l, err := NewRedisLock(store, "k", "", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, l.ttl)

	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	// expired and re-acquired by another worker
	store.data["k"] = "other/token"
	assert.NoError(t, l.Release(ctx))
	assert.Equal(t, "other/token", store.data["k"])
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", "", time.Second)
	assert.Error(t, err)
	_, err = NewRedisLock(&memStore{}, "", "", time.Second)
	assert.Error(t, err)
}

func TestLocalLock(t *testing.T) {
	var l LocalLock
	ok, _ := l.Acquire(context.Background())
	assert.True(t, ok)
	ok, _ = l.Acquire(context.Background())
	assert.False(t, ok)
	require.NoError(t, l.Release(context.Background()))
	ok, _ = l.Acquire(context.Background())
	assert.True(t, ok)
}
