package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	pkgerrors "sjsage522/pepperworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu      sync.Mutex
	failSet bool
	items map[string][]byte
	ttl   map[string]time.Duration
}

func newMapCache() *mapCache {
	return &mapCache{items: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (m *mapCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.items[key]; ok {
		return v, nil
	}
	return nil, errors.New("cache miss")
}

func (m *mapCache) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("connection refused")
	}
	m.items[key] = value
	m.ttl[key] = expiration
	return nil
}

func (m *mapCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func TestCooldown(t *testing.T) {
	svc := newMapCache()
	c := NewCooldown(svc, "pepper_rate_limited", 5*time.Minute)

	assert.False(t, c.Active())
	require.NoError(t, c.Start())
	assert.True(t, c.Active())
	assert.Equal(t, "300", string(svc.items["pepper_rate_limited"]))
	assert.Equal(t, 5*time.Minute, svc.ttl["pepper_rate_limited"])
	assert.Equal(t, 5*time.Minute, c.Duration())
}

func TestNilCooldownIsInactive(t *testing.T) {
	var c *Cooldown
	assert.False(t, c.Active())
	assert.NoError(t, c.Start())
	assert.Equal(t, time.Duration(0), c.Duration())

	noBackend := NewCooldown(nil, "key", time.Minute)
	assert.False(t, noBackend.Active())
	assert.NoError(t, noBackend.Start())
}

func TestCooldownStartFailure(t *testing.T) {
	svc := newMapCache()
	svc.failSet = true
	c := NewCooldown(svc, "pepper_rate_limited", time.Minute)

	err := c.Start()
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrorTypeCache))
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, c.Active())
}
