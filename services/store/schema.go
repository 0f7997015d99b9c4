package store

// Timestamps are unix seconds.
const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT    NOT NULL,
	query      TEXT    NOT NULL,
	max_price  REAL,
	created_at INTEGER NOT NULL,
	UNIQUE (user_id, query)
);
CREATE INDEX IF NOT EXISTS idx_alerts_query ON alerts (query);

CREATE TABLE IF NOT EXISTS seen_deals (
	alert_id INTEGER NOT NULL REFERENCES alerts (id) ON DELETE CASCADE,
	link     TEXT    NOT NULL,
	seen_at  INTEGER NOT NULL,
	PRIMARY KEY (alert_id, link)
);
CREATE INDEX IF NOT EXISTS idx_seen_deals_seen_at ON seen_deals (seen_at);

CREATE TABLE IF NOT EXISTS categories (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id        TEXT    NOT NULL,
	channel_id      TEXT    NOT NULL,
	slug            TEXT    NOT NULL,
	name            TEXT    NOT NULL DEFAULT '',
	status          TEXT    NOT NULL DEFAULT 'active',
	min_temperature INTEGER NOT NULL DEFAULT 0,
	max_price       REAL,
	last_run        INTEGER,
	total_checked   INTEGER NOT NULL DEFAULT 0,
	total_sent      INTEGER NOT NULL DEFAULT 0,
	errors          INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL,
	UNIQUE (guild_id, slug)
);

CREATE TABLE IF NOT EXISTS category_sent_deals (
	category_id INTEGER NOT NULL REFERENCES categories (id) ON DELETE CASCADE,
	link        TEXT    NOT NULL,
	sent_at     INTEGER NOT NULL,
	PRIMARY KEY (category_id, link)
);
CREATE INDEX IF NOT EXISTS idx_category_sent_deals_sent_at ON category_sent_deals (sent_at);

CREATE TABLE IF NOT EXISTS sent_deals (
	link    TEXT    PRIMARY KEY,
	sent_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sent_deals_sent_at ON sent_deals (sent_at);
`
