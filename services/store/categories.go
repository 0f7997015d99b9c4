package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"sjsage522/pepperworker/internal/category"
	"sjsage522/pepperworker/pkg/errors"
)

// ErrCategoryNotFound is returned when no category matches guild and slug
var ErrCategoryNotFound = stderrors.New("category not found")

const categoryColumns = `id, guild_id, channel_id, slug, name, status, min_temperature, max_price,
	last_run, total_checked, total_sent, errors`

// AddCategory subscribes a channel to a group page. The slug is unique per guild.
func (s *Store) AddCategory(ctx context.Context, c category.Category) (*category.Category, error) {
	c.Slug = strings.ToLower(strings.TrimSpace(c.Slug))
	if c.Slug == "" {
		return nil, errors.NewStore("store", "empty category slug", nil)
	}
	if c.Status == "" {
		c.Status = category.StatusActive
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (guild_id, channel_id, slug, name, status, min_temperature, max_price, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.GuildID, c.ChannelID, c.Slug, c.Name, string(c.Status), c.MinTemperature, nullFloat(c.MaxPrice), s.now().Unix())
	if err != nil {
		return nil, errors.NewStore("store", "failed to add category", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.NewStore("store", "failed to read category id", err)
	}
	c.ID = id
	return &c, nil
}

// RemoveCategory deletes a category and its sent ledger
func (s *Store) RemoveCategory(ctx context.Context, guildID, slug string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM categories WHERE guild_id = ? AND slug = ?`, guildID, strings.ToLower(slug))
	if err != nil {
		return false, errors.NewStore("store", "failed to remove category", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewStore("store", "failed to remove category", err)
	}
	return n > 0, nil
}

// CategoryBySlug returns one category of a guild
func (s *Store) CategoryBySlug(ctx context.Context, guildID, slug string) (*category.Category, error) {
	cats, err := s.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE guild_id = ? AND slug = ?`, guildID, strings.ToLower(slug))
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return nil, ErrCategoryNotFound
	}
	return &cats[0], nil
}

// GuildCategories lists every category of a guild
func (s *Store) GuildCategories(ctx context.Context, guildID string) ([]category.Category, error) {
	return s.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE guild_id = ? ORDER BY slug`, guildID)
}

// ActiveCategories lists the categories eligible for scheduled runs
func (s *Store) ActiveCategories(ctx context.Context) ([]category.Category, error) {
	return s.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE status = ? ORDER BY id`, string(category.StatusActive))
}

// UpdateCategoryStatus pauses, resumes or disables a category
func (s *Store) UpdateCategoryStatus(ctx context.Context, guildID, slug string, status category.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE categories SET status = ? WHERE guild_id = ? AND slug = ?`, string(status), guildID, strings.ToLower(slug))
	if err != nil {
		return errors.NewStore("store", "failed to update category status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// UpdateCategoryStats adds to the running counters of a category
func (s *Store) UpdateCategoryStats(ctx context.Context, categoryID int64, checked, sent, errs int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE categories SET total_checked = total_checked + ?, total_sent = total_sent + ?, errors = errors + ?
		 WHERE id = ?`, checked, sent, errs, categoryID)
	if err != nil {
		return errors.NewStore("store", "failed to update category stats", err)
	}
	return nil
}

// UpdateCategoryLastRun records when a category last produced a digest
func (s *Store) UpdateCategoryLastRun(ctx context.Context, categoryID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE categories SET last_run = ? WHERE id = ?`, at.Unix(), categoryID)
	if err != nil {
		return errors.NewStore("store", "failed to update category last run", err)
	}
	return nil
}

// IsCategoryDealSent reports whether a link was already sent for a category
func (s *Store) IsCategoryDealSent(ctx context.Context, categoryID int64, link string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM category_sent_deals WHERE category_id = ? AND link = ?`, categoryID, link)
}

// MarkCategoryDealsSent records links for a category in one transaction
func (s *Store) MarkCategoryDealsSent(ctx context.Context, categoryID int64, links []string) error {
	if len(links) == 0 {
		return nil
	}
	now := s.now().Unix()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO category_sent_deals (category_id, link, sent_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`)
		if err != nil {
			return errors.NewStore("store", "failed to prepare category insert", err)
		}
		defer stmt.Close()

		for _, link := range links {
			if _, err := stmt.ExecContext(ctx, categoryID, link, now); err != nil {
				return errors.NewStore("store", "failed to mark category deal sent", err)
			}
		}
		return nil
	})
}

// IsDealSent reports whether a link is in the global flight ledger
func (s *Store) IsDealSent(ctx context.Context, link string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM sent_deals WHERE link = ?`, link)
}

// MarkDealsSent records links in the global flight ledger
func (s *Store) MarkDealsSent(ctx context.Context, links []string) error {
	if len(links) == 0 {
		return nil
	}
	now := s.now().Unix()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO sent_deals (link, sent_at) VALUES (?, ?) ON CONFLICT DO NOTHING`)
		if err != nil {
			return errors.NewStore("store", "failed to prepare sent insert", err)
		}
		defer stmt.Close()

		for _, link := range links {
			if _, err := stmt.ExecContext(ctx, link, now); err != nil {
				return errors.NewStore("store", "failed to mark deal sent", err)
			}
		}
		return nil
	})
}

func (s *Store) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewStore("store", "ledger lookup failed", err)
	}
	return true, nil
}

func (s *Store) queryCategories(ctx context.Context, query string, args ...interface{}) ([]category.Category, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStore("store", "failed to list categories", err)
	}
	defer rows.Close()

	var out []category.Category
	for rows.Next() {
		var c category.Category
		var status string
		var maxPrice sql.NullFloat64
		var lastRun sql.NullInt64
		if err := rows.Scan(&c.ID, &c.GuildID, &c.ChannelID, &c.Slug, &c.Name, &status, &c.MinTemperature,
			&maxPrice, &lastRun, &c.TotalChecked, &c.TotalSent, &c.Errors); err != nil {
			return nil, errors.NewStore("store", "failed to scan category", err)
		}
		c.Status = category.Status(status)
		c.MaxPrice = floatPtr(maxPrice)
		c.LastRun = timePtr(lastRun)
		out = append(out, c)
	}
	return out, rows.Err()
}
