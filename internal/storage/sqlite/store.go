package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/webfrontier/internal/domain"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339

// Store is the crawler's relational store: scopes, pages, staged URLs,
// events, and a single-row frontier snapshot. One connection, matching the
// teacher's connection.go rationale that SQLite serializes writers anyway.
type Store struct {
	db     *sql.DB
	logger arbor.ILogger
}

// New opens (creating if absent) the SQLite database at path and applies the
// schema in schema.go, matching the teacher's NewSQLiteDB idiom.
func New(path string, logger arbor.ILogger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database opened and schema applied")
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Scopes -----------------------------------------------------------

func (s *Store) GetActiveScopes(ctx context.Context) ([]domain.Scope, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pattern, method, keywords, is_active, last_crawled_at, created_at FROM scopes WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("query active scopes: %w", err)
	}
	defer rows.Close()
	return scanScopes(rows)
}

func (s *Store) ListScopes(ctx context.Context) ([]domain.Scope, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pattern, method, keywords, is_active, last_crawled_at, created_at FROM scopes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	defer rows.Close()
	return scanScopes(rows)
}

func scanScopes(rows *sql.Rows) ([]domain.Scope, error) {
	var scopes []domain.Scope
	for rows.Next() {
		var sc domain.Scope
		var keywords sql.NullString
		var lastCrawled sql.NullString
		var createdAt string
		var isActive int
		if err := rows.Scan(&sc.ID, &sc.Pattern, &sc.Method, &keywords, &isActive, &lastCrawled, &createdAt); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		sc.Keywords = keywords.String
		sc.IsActive = isActive != 0
		sc.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		if lastCrawled.Valid {
			if t, err := time.Parse(timeLayout, lastCrawled.String); err == nil {
				sc.LastCrawledAt = &t
			}
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}

func (s *Store) CreateScope(ctx context.Context, pattern string) (domain.Scope, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scopes (pattern, method, is_active, created_at) VALUES (?, ?, 1, ?)`,
		pattern, string(domain.MethodDefault), now.Format(timeLayout))
	if err != nil {
		return domain.Scope{}, fmt.Errorf("insert scope: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Scope{}, fmt.Errorf("read inserted scope id: %w", err)
	}
	return domain.Scope{ID: id, Pattern: pattern, Method: domain.MethodDefault, IsActive: true, CreatedAt: now}, nil
}

func (s *Store) DeleteScope(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scopes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scope %d: %w", id, err)
	}
	return nil
}

func (s *Store) UpdateScopeMethod(ctx context.Context, id int64, method domain.ScopeMethod) error {
	_, err := s.db.ExecContext(ctx, `UPDATE scopes SET method = ? WHERE id = ?`, string(method), id)
	if err != nil {
		return fmt.Errorf("update scope %d method: %w", id, err)
	}
	return nil
}

func (s *Store) TouchScopeLastCrawled(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE scopes SET last_crawled_at = ? WHERE id = ?`, at.UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("touch scope %d last_crawled_at: %w", id, err)
	}
	return nil
}

// --- Pages --------------------------------------------------------------

func (s *Store) GetAllPages(ctx context.Context) ([]domain.Page, error) {
	rows, err := s.db.QueryContext(ctx, pageSelectColumns+` FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

const pageSelectColumns = `SELECT id, url, canonical_url, title, text_hash, sim_hash, fetched_at, status_code, content_length, meta_json, etag, last_modified, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPage(row rowScanner) (domain.Page, error) {
	var p domain.Page
	var canonical, title, textHash, simHash, metaJSON, etag, lastModified sql.NullString
	var statusCode sql.NullInt64
	var contentLength sql.NullInt64
	var fetchedAt, createdAt string

	err := row.Scan(&p.ID, &p.URL, &canonical, &title, &textHash, &simHash, &fetchedAt,
		&statusCode, &contentLength, &metaJSON, &etag, &lastModified, &createdAt)
	if err != nil {
		return domain.Page{}, fmt.Errorf("scan page: %w", err)
	}

	p.CanonicalURL = canonical.String
	p.Title = title.String
	p.TextHash = textHash.String
	p.SimHash = simHash.String
	p.MetaJSON = metaJSON.String
	p.ETag = etag.String
	p.LastModified = lastModified.String
	p.StatusCode = int(statusCode.Int64)
	p.ContentLength = contentLength.Int64
	p.FetchedAt, _ = time.Parse(timeLayout, fetchedAt)
	p.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return p, nil
}

// GetPageByURL implements httpclient.PageLookup for conditional-GET support.
func (s *Store) GetPageByURL(ctx context.Context, url string) (*domain.Page, bool, error) {
	row := s.db.QueryRowContext(ctx, pageSelectColumns+` FROM pages WHERE url = ?`, url)
	p, err := scanPage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &p, true, nil
}

// UpsertPage inserts or, on URL conflict, updates the Page row and returns its id.
func (s *Store) UpsertPage(ctx context.Context, p domain.Page) (int64, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.FetchedAt.IsZero() {
		p.FetchedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (url, canonical_url, title, text_hash, sim_hash, fetched_at, status_code, content_length, meta_json, etag, last_modified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			canonical_url = excluded.canonical_url,
			title = excluded.title,
			text_hash = excluded.text_hash,
			sim_hash = excluded.sim_hash,
			fetched_at = excluded.fetched_at,
			status_code = excluded.status_code,
			content_length = excluded.content_length,
			meta_json = excluded.meta_json,
			etag = excluded.etag,
			last_modified = excluded.last_modified`,
		p.URL, p.CanonicalURL, p.Title, p.TextHash, p.SimHash, p.FetchedAt.Format(timeLayout),
		p.StatusCode, p.ContentLength, p.MetaJSON, p.ETag, p.LastModified, p.CreatedAt.Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("upsert page %s: %w", p.URL, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM pages WHERE url = ?`, p.URL).Scan(&id); err != nil {
		return 0, fmt.Errorf("read upserted page id for %s: %w", p.URL, err)
	}
	return id, nil
}

func (s *Store) FindPageByTextHash(ctx context.Context, hash string) (*domain.Page, bool, error) {
	if hash == "" {
		return nil, false, nil
	}
	row := s.db.QueryRowContext(ctx, pageSelectColumns+` FROM pages WHERE text_hash = ? LIMIT 1`, hash)
	p, err := scanPage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &p, true, nil
}

// FindNearDuplicate scans existing sim_hash values for one within threshold
// Hamming distance of simHash. An exact-match lookup (threshold 0 via simple
// equality) is acceptable when this index is absent, per SPEC_FULL.md §4.7;
// this implementation does the full scan since the table is small enough for
// a single-node crawler.
func (s *Store) FindNearDuplicate(ctx context.Context, simHash string, threshold int) (*domain.Page, bool, error) {
	if simHash == "" {
		return nil, false, nil
	}
	rows, err := s.db.QueryContext(ctx, pageSelectColumns+` FROM pages WHERE sim_hash IS NOT NULL AND sim_hash != ''`)
	if err != nil {
		return nil, false, fmt.Errorf("scan pages for near-duplicate: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, false, err
		}
		if hammingDistanceHex(p.SimHash, simHash) <= threshold {
			return &p, true, nil
		}
	}
	return nil, false, rows.Err()
}

func hammingDistanceHex(a, b string) int {
	av, aok := parseHex64(a)
	bv, bok := parseHex64(b)
	if !aok || !bok {
		return 64
	}
	return bits.OnesCount64(av ^ bv)
}

func parseHex64(s string) (uint64, bool) {
	if len(s) != 16 {
		return 0, false
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint64(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint64(c-'a') + 10
		default:
			return 0, false
		}
	}
	return v, true
}

// --- Staged URLs ----------------------------------------------------------

func (s *Store) AddStagedURL(ctx context.Context, su domain.StagedURL) (int64, error) {
	var lastmod sql.NullString
	if su.LastMod != nil {
		lastmod = sql.NullString{String: su.LastMod.Format(timeLayout), Valid: true}
	}
	var priority sql.NullFloat64
	if su.Priority != nil {
		priority = sql.NullFloat64{Float64: *su.Priority, Valid: true}
	}
	discoveredAt := su.DiscoveredAt
	if discoveredAt.IsZero() {
		discoveredAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO staged_urls (scope_id, url, status, lastmod, priority, discovered_at) VALUES (?, ?, ?, ?, ?, ?)`,
		su.ScopeID, su.URL, string(su.Status), lastmod, priority, discoveredAt.Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("insert staged url %s: %w", su.URL, err)
	}
	return res.LastInsertId()
}

func (s *Store) GetPendingStagedURLs(ctx context.Context) ([]domain.StagedURL, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scope_id, url, status, lastmod, priority, discovered_at FROM staged_urls WHERE status = ?`,
		string(domain.StagedPending))
	if err != nil {
		return nil, fmt.Errorf("query pending staged urls: %w", err)
	}
	defer rows.Close()

	var urls []domain.StagedURL
	for rows.Next() {
		var su domain.StagedURL
		var lastmod sql.NullString
		var priority sql.NullFloat64
		var discoveredAt string
		if err := rows.Scan(&su.ID, &su.ScopeID, &su.URL, &su.Status, &lastmod, &priority, &discoveredAt); err != nil {
			return nil, fmt.Errorf("scan staged url: %w", err)
		}
		if lastmod.Valid {
			if t, err := time.Parse(timeLayout, lastmod.String); err == nil {
				su.LastMod = &t
			}
		}
		if priority.Valid {
			p := priority.Float64
			su.Priority = &p
		}
		su.DiscoveredAt, _ = time.Parse(timeLayout, discoveredAt)
		urls = append(urls, su)
	}
	return urls, rows.Err()
}

func (s *Store) UpdateStagedURLStatus(ctx context.Context, id int64, status domain.StagedURLStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE staged_urls SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update staged url %d status: %w", id, err)
	}
	return nil
}

// --- Frontier snapshot ------------------------------------------------

func (s *Store) SaveFrontierState(ctx context.Context, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO frontier_state (id, blob, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET blob = excluded.blob, saved_at = excluded.saved_at`,
		blob, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save frontier state: %w", err)
	}
	return nil
}

func (s *Store) LoadFrontierState(ctx context.Context) ([]byte, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM frontier_state WHERE id = 1`).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load frontier state: %w", err)
	}
	return blob, true, nil
}

// --- Events -------------------------------------------------------------

func (s *Store) AppendEvent(ctx context.Context, ev domain.Event) error {
	var scopeID sql.NullInt64
	if ev.ScopeID != nil {
		scopeID = sql.NullInt64{Int64: *ev.ScopeID, Valid: true}
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (kind, scope_id, url, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(ev.Kind), scopeID, ev.URL, ev.Detail, createdAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("append event %s: %w", ev.Kind, err)
	}
	return nil
}
