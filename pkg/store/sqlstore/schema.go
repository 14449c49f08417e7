package sqlstore

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS api_tokens (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		user_id    TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		revoked_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_tokens_user ON api_tokens(user_id)`,
	`CREATE TABLE IF NOT EXISTS provider_credentials (
		id             TEXT PRIMARY KEY,
		provider       TEXT NOT NULL,
		key_ciphertext TEXT NOT NULL,
		key_iv         TEXT NOT NULL,
		key_auth_tag   TEXT NOT NULL,
		user_id        TEXT,
		created_at     DATETIME NOT NULL,
		updated_at     DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_provider_credentials_lookup ON provider_credentials(provider, user_id)`,
	`CREATE TABLE IF NOT EXISTS blacklist_terms (
		id        TEXT PRIMARY KEY,
		term      TEXT NOT NULL,
		risk_type TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS log_entries (
		id                    TEXT PRIMARY KEY,
		created_at            DATETIME NOT NULL,
		triggered_by_user_id  TEXT NOT NULL,
		end_user_id           TEXT,
		client_id             TEXT,
		metadata              TEXT,
		decision              TEXT NOT NULL,
		risk_types            TEXT NOT NULL,
		risk_score            INTEGER NOT NULL,
		prompt_ciphertext     TEXT NOT NULL,
		prompt_iv             TEXT NOT NULL,
		prompt_auth_tag       TEXT NOT NULL,
		response_ciphertext   TEXT,
		response_iv           TEXT,
		response_auth_tag     TEXT,
		model                 TEXT,
		prompt_tokens         INTEGER,
		completion_tokens     INTEGER,
		total_tokens          INTEGER,
		is_false_positive     INTEGER NOT NULL DEFAULT 0,
		failure               TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_log_entries_created ON log_entries(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_log_entries_decision ON log_entries(decision)`,
	`CREATE INDEX IF NOT EXISTS idx_log_entries_user ON log_entries(triggered_by_user_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS api_tokens (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		user_id    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_tokens_user ON api_tokens(user_id)`,
	`CREATE TABLE IF NOT EXISTS provider_credentials (
		id             TEXT PRIMARY KEY,
		provider       TEXT NOT NULL,
		key_ciphertext TEXT NOT NULL,
		key_iv         TEXT NOT NULL,
		key_auth_tag   TEXT NOT NULL,
		user_id        TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_provider_credentials_lookup ON provider_credentials(provider, user_id)`,
	`CREATE TABLE IF NOT EXISTS blacklist_terms (
		id        TEXT PRIMARY KEY,
		term      TEXT NOT NULL,
		risk_type TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS log_entries (
		id                    TEXT PRIMARY KEY,
		created_at            TIMESTAMPTZ NOT NULL,
		triggered_by_user_id  TEXT NOT NULL,
		end_user_id           TEXT,
		client_id             TEXT,
		metadata              TEXT,
		decision              TEXT NOT NULL,
		risk_types            TEXT NOT NULL,
		risk_score            INTEGER NOT NULL,
		prompt_ciphertext     TEXT NOT NULL,
		prompt_iv             TEXT NOT NULL,
		prompt_auth_tag       TEXT NOT NULL,
		response_ciphertext   TEXT,
		response_iv           TEXT,
		response_auth_tag     TEXT,
		model                 TEXT,
		prompt_tokens         INTEGER,
		completion_tokens     INTEGER,
		total_tokens          INTEGER,
		is_false_positive     BOOLEAN NOT NULL DEFAULT FALSE,
		failure               TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_log_entries_created ON log_entries(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_log_entries_decision ON log_entries(decision)`,
	`CREATE INDEX IF NOT EXISTS idx_log_entries_user ON log_entries(triggered_by_user_id)`,
}
