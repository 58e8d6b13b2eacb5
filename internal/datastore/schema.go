package datastore

const schema = `
CREATE TABLE IF NOT EXISTS monitors (
	tenant_id        TEXT    NOT NULL,
	name             TEXT    NOT NULL,
	url              TEXT    NOT NULL,
	destination      TEXT    NOT NULL,
	interval_ms      INTEGER NOT NULL,
	last_fingerprint TEXT,
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL,
	PRIMARY KEY (tenant_id, name)
);

CREATE TABLE IF NOT EXISTS dispatch_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id   TEXT    NOT NULL,
	name        TEXT    NOT NULL,
	fingerprint TEXT    NOT NULL,
	title       TEXT    NOT NULL,
	link        TEXT    NOT NULL,
	image       TEXT,
	delivered   INTEGER NOT NULL,
	error       TEXT,
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatch_history_monitor
	ON dispatch_history (tenant_id, name, id DESC);
`
