package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	account        TEXT NOT NULL,
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME NOT NULL,
	messages_seen  INTEGER NOT NULL DEFAULT 0,
	auto_responded INTEGER NOT NULL DEFAULT 0,
	failed         INTEGER NOT NULL DEFAULT 0,
	fallbacks      INTEGER NOT NULL DEFAULT 0,
	per_category   TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS run_outcomes (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	message_id    TEXT NOT NULL,
	category      TEXT NOT NULL,
	subject       TEXT NOT NULL DEFAULT '',
	outcome       TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	used_fallback INTEGER NOT NULL DEFAULT 0 CHECK(used_fallback IN (0, 1)),
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_runs_account_started
	ON runs(account, started_at);

CREATE INDEX IF NOT EXISTS idx_run_outcomes_outcome
	ON run_outcomes(outcome);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
