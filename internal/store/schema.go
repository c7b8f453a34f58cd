package store

const Schema = `
CREATE TABLE IF NOT EXISTS track_state (
	track_id TEXT PRIMARY KEY,
	last_seen_play_count INTEGER NOT NULL DEFAULT 0,
	last_seen_at DATETIME NOT NULL,
	current_weight REAL NOT NULL DEFAULT 1.0,
	hot_zone_entered_at DATETIME,
	last_played_at DATETIME,
	in_library BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_track_state_weight ON track_state(current_weight);

CREATE TABLE IF NOT EXISTS cycle_results (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	duration_seconds REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	track_ids TEXT NOT NULL,
	counts TEXT NOT NULL,
	errors TEXT,
	artists_discovered INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_cycle_results_started ON cycle_results(started_at);

CREATE TABLE IF NOT EXISTS seed_set (
	name TEXT NOT NULL COLLATE NOCASE,
	kind TEXT NOT NULL,
	added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (name, kind)
);

CREATE TABLE IF NOT EXISTS playlist_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	playlist_id TEXT NOT NULL,
	playlist_name TEXT NOT NULL,
	track_count INTEGER NOT NULL DEFAULT 0,
	last_refresh_at DATETIME
);

CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	data BLOB,
	expires_at DATETIME
);
`
