package cache

import (
	"strconv"
	"time"

	"sjsage522/pepperworker/logger"
	"sjsage522/pepperworker/pkg/errors"
)

// Cooldown blocks outgoing requests to a source for a while after it rate limited us.
// A nil Cooldown or one without a backing cache is never active.
type Cooldown struct {
	svc   CacheService
	key   string
	block time.Duration
}

// NewCooldown creates a cooldown stored under key
func NewCooldown(svc CacheService, key string, block time.Duration) *Cooldown {
	return &Cooldown{svc: svc, key: key, block: block}
}

// Active reports whether the cooldown is currently in effect
func (c *Cooldown) Active() bool {
	if c == nil || c.svc == nil || c.key == "" {
		return false
	}
	_, err := c.svc.Get(c.key)
	return err == nil
}

// Start begins a cooldown period. A nil or unbacked Cooldown does nothing.
func (c *Cooldown) Start() error {
	if c == nil || c.svc == nil || c.key == "" || c.block <= 0 {
		return nil
	}
	value := []byte(strconv.Itoa(int(c.block / time.Second)))
	if err := c.svc.Set(c.key, value, c.block); err != nil {
		return errors.NewCache("cooldown", "failed to store rate limit cooldown", err)
	}
	logger.ForCache().Info().Str("key", c.key).Dur("block", c.block).Msg("Rate limit cooldown started")
	return nil
}

// Duration returns the configured block time
func (c *Cooldown) Duration() time.Duration {
	if c == nil {
		return 0
	}
	return c.block
}
