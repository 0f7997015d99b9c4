package publisher

import (
	"context"
	"encoding/json"

	"sjsage522/pepperworker/internal/category"
	"sjsage522/pepperworker/internal/matcher"
	"sjsage522/pepperworker/logger"
	"sjsage522/pepperworker/pkg/errors"
)

// Dispatcher hands sweep results to the delivery layer through a Publisher
type Dispatcher struct {
	pub Publisher
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(pub Publisher) *Dispatcher {
	return &Dispatcher{pub: pub}
}

// PublishNotifications publishes every notification as its own message.
// It keeps going after a failure and returns how many were published plus the first error.
func (d *Dispatcher) PublishNotifications(ctx context.Context, notifications []matcher.Notification) (int, error) {
	var firstErr error
	published := 0
	for _, n := range notifications {
		if err := d.publishJSON(ctx, KeyAlert, n); err != nil {
			logger.ForPublisher().Error().Err(err).
				Str("user_id", n.UserID).
				Str("link", n.Deal.Link).
				Msg("Failed to publish notification")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		published++
	}
	return published, firstErr
}

// PublishDigest publishes one category or flight digest
func (d *Dispatcher) PublishDigest(ctx context.Context, digest category.Digest) error {
	if err := d.publishJSON(ctx, KeyDigest, digest); err != nil {
		logger.ForPublisher().Error().Err(err).
			Str("kind", digest.Kind).
			Str("title", digest.Title).
			Msg("Failed to publish digest")
		return err
	}
	return nil
}

func (d *Dispatcher) publishJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewPublisher("publisher", "failed to encode message", err)
	}
	return d.pub.Publish(ctx, key, data)
}
