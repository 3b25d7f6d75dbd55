package db

// sqliteSchema is the DDL for the SQLite backend.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS emails (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    external_id        TEXT NOT NULL UNIQUE,
    sender             TEXT NOT NULL,
    subject            TEXT NOT NULL,
    body               TEXT,
    received_at        TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'pending',
    sentiment          TEXT,
    priority           TEXT,
    customer_request   TEXT,
    contact_info       TEXT,
    generated_response TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status, received_at)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_received ON emails(received_at DESC)`,
}

// postgresSchema is the DDL for the PostgreSQL backend. Timestamps stay
// TEXT so both backends share every query.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS emails (
    id                 BIGSERIAL PRIMARY KEY,
    external_id        TEXT NOT NULL UNIQUE,
    sender             TEXT NOT NULL,
    subject            TEXT NOT NULL,
    body               TEXT,
    received_at        TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'pending',
    sentiment          TEXT,
    priority           TEXT,
    customer_request   TEXT,
    contact_info       TEXT,
    generated_response TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status, received_at)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_received ON emails(received_at DESC)`,
}
