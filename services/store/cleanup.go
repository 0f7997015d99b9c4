package store

import (
	"context"
	"time"

	"sjsage522/pepperworker/logger"
	"sjsage522/pepperworker/pkg/errors"
)

// CleanupResult counts the ledger rows removed by Cleanup
type CleanupResult struct {
	Category int64
	Flights  int64
}

// Cleanup removes category and flight ledger rows recorded before cutoff.
// The per-alert seen ledger is never pruned: card deals carry no timestamp,
// so a pruned key could be notified again.
func (s *Store) Cleanup(ctx context.Context, cutoff time.Time) (*CleanupResult, error) {
	ts := cutoff.Unix()
	result := &CleanupResult{}

	steps := []struct {
		query string
		count *int64
	}{
		{`DELETE FROM category_sent_deals WHERE sent_at < ?`, &result.Category},
		{`DELETE FROM sent_deals WHERE sent_at < ?`, &result.Flights},
	}

	for _, step := range steps {
		res, err := s.db.ExecContext(ctx, step.query, ts)
		if err != nil {
			return result, errors.NewStore("store", "cleanup failed", err)
		}
		*step.count, _ = res.RowsAffected()
	}

	logger.ForStore().Info().
		Int64("category", result.Category).
		Int64("flights", result.Flights).
		Msg("Ledger cleanup complete")

	return result, nil
}
