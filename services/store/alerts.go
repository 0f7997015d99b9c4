package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"sjsage522/pepperworker/internal/deal"
	"sjsage522/pepperworker/pkg/errors"
)

// MaxAlertsPerUser caps the watch queries one user may hold
const MaxAlertsPerUser = 10

// ErrAlertLimit is returned when a user already holds MaxAlertsPerUser alerts
var ErrAlertLimit = stderrors.New("alert limit reached")

// NormalizeQuery trims and lowercases a watch query so equal searches share one entry
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// AddAlert creates a watch query for userID. Re-adding an existing query updates its price cap.
func (s *Store) AddAlert(ctx context.Context, userID, query string, maxPrice *float64) (*deal.Alert, error) {
	query = NormalizeQuery(query)
	if query == "" {
		return nil, errors.NewStore("store", "empty alert query", nil)
	}

	var alert *deal.Alert
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		var exists bool
		row := tx.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(SUM(query = ?), 0) > 0 FROM alerts WHERE user_id = ?`, query, userID)
		if err := row.Scan(&count, &exists); err != nil {
			return errors.NewStore("store", "failed to count alerts", err)
		}
		if !exists && count >= MaxAlertsPerUser {
			return ErrAlertLimit
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO alerts (user_id, query, max_price, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (user_id, query) DO UPDATE SET max_price = excluded.max_price`,
			userID, query, nullFloat(maxPrice), s.now().Unix())
		if err != nil {
			return errors.NewStore("store", "failed to save alert", err)
		}

		var id int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM alerts WHERE user_id = ? AND query = ?`, userID, query).Scan(&id); err != nil {
			return errors.NewStore("store", "failed to read alert id", err)
		}
		alert = &deal.Alert{ID: id, UserID: userID, Query: query, MaxPrice: maxPrice}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// RemoveAlert deletes a watch query and its ledger. It reports whether anything was removed.
func (s *Store) RemoveAlert(ctx context.Context, userID, query string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE user_id = ? AND query = ?`, userID, NormalizeQuery(query))
	if err != nil {
		return false, errors.NewStore("store", "failed to remove alert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewStore("store", "failed to remove alert", err)
	}
	return n > 0, nil
}

// UserAlerts lists the alerts of one user, oldest first
func (s *Store) UserAlerts(ctx context.Context, userID string) ([]deal.Alert, error) {
	return s.queryAlerts(ctx, `SELECT id, user_id, query, max_price FROM alerts WHERE user_id = ? ORDER BY id`, userID)
}

// AlertsByQuery lists every subscriber of a query
func (s *Store) AlertsByQuery(ctx context.Context, query string) ([]deal.Alert, error) {
	return s.queryAlerts(ctx, `SELECT id, user_id, query, max_price FROM alerts WHERE query = ? ORDER BY id`, query)
}

// UniqueQueries lists every distinct watched query in sorted order
func (s *Store) UniqueQueries(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT query FROM alerts ORDER BY query`)
	if err != nil {
		return nil, errors.NewStore("store", "failed to list queries", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, errors.NewStore("store", "failed to scan query", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// IsDealSeenByAlert reports whether the pair is already in the seen ledger
func (s *Store) IsDealSeenByAlert(ctx context.Context, alertID int64, link string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM seen_deals WHERE alert_id = ? AND link = ?`, alertID, link).Scan(&one)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewStore("store", fmt.Sprintf("failed to check seen deal for alert %d", alertID), err)
	}
	return true, nil
}

// MarkDealsSeen records all keys in one transaction. Existing keys are left as they are.
func (s *Store) MarkDealsSeen(ctx context.Context, keys []deal.SeenKey) error {
	if len(keys) == 0 {
		return nil
	}
	now := s.now().Unix()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO seen_deals (alert_id, link, seen_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`)
		if err != nil {
			return errors.NewStore("store", "failed to prepare seen insert", err)
		}
		defer stmt.Close()

		for _, k := range keys {
			if _, err := stmt.ExecContext(ctx, k.AlertID, k.Link, now); err != nil {
				return errors.NewStore("store", "failed to mark deal seen", err)
			}
		}
		return nil
	})
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]deal.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStore("store", "failed to list alerts", err)
	}
	defer rows.Close()

	var alerts []deal.Alert
	for rows.Next() {
		var a deal.Alert
		var maxPrice sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.UserID, &a.Query, &maxPrice); err != nil {
			return nil, errors.NewStore("store", "failed to scan alert", err)
		}
		a.MaxPrice = floatPtr(maxPrice)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
