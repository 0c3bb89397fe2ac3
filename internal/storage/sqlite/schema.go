// Package sqlite persists scopes, pages, staged URLs, events, and frontier
// snapshots. Grounded on the teacher's internal/storage/sqlite/connection.go
// (sql.Open("sqlite", ...), pragma configuration, single-writer connection
// pool) and schema.go (IF NOT EXISTS DDL, applied eagerly at open), adapted to
// SPEC_FULL.md §11's table set.
package sqlite

const schemaDDL = `
CREATE TABLE IF NOT EXISTS scopes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pattern TEXT NOT NULL,
    method TEXT NOT NULL DEFAULT 'DEFAULT',
    keywords TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    last_crawled_at TEXT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL UNIQUE,
    canonical_url TEXT,
    title TEXT,
    text_hash TEXT,
    sim_hash TEXT,
    fetched_at TEXT NOT NULL,
    status_code INTEGER,
    content_length INTEGER,
    meta_json TEXT,
    etag TEXT,
    last_modified TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_text_hash ON pages(text_hash);

CREATE TABLE IF NOT EXISTS staged_urls (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    scope_id INTEGER NOT NULL,
    url TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    lastmod TEXT,
    priority REAL,
    discovered_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_staged_urls_status ON staged_urls(status);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    scope_id INTEGER,
    url TEXT,
    detail TEXT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS frontier_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    blob BLOB NOT NULL,
    saved_at TEXT NOT NULL
);
`
