// Package state manages the durable local cache: a SQLite database holding
// photo metadata, the sync state record, and the OAuth credentials, plus a
// photos directory holding the downloaded content files.
//
// Only this package may open or query the database. All other packages
// receive a [*Store] and call its methods. The store is the single source of
// truth for the slideshow: every mutation is durable before the call returns,
// and each upsert/delete is atomic per record so concurrent readers never
// observe a half-written photo.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"golang.org/x/oauth2"

	"github.com/mboard/photoboard/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS photos (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    extra_lines TEXT NOT NULL DEFAULT '[]',
    fingerprint TEXT NOT NULL DEFAULT '',
    file_name   TEXT NOT NULL,
    fetched_at  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sync_state (
    id           INTEGER PRIMARY KEY CHECK (id = 1),
    last_sync_at TEXT NOT NULL DEFAULT '',
    last_error   TEXT NOT NULL DEFAULT '',
    known_ids    TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS credentials (
    id    INTEGER PRIMARY KEY CHECK (id = 1),
    token TEXT NOT NULL
);
`

// SyncState is the singleton record describing the outcome of sync passes.
// Created on first run; mutated only by the sync engine.
type SyncState struct {
	// LastSyncAt is when the last fully successful pass committed.
	LastSyncAt time.Time

	// LastError holds the most recent pass failure, empty after a
	// successful pass.
	LastError string

	// KnownIDs is the set of photo IDs committed by the last successful
	// pass.
	KnownIDs []string
}

// Store is the SQLite-backed cache. The photos directory next to the
// database holds one content file per cached photo.
type Store struct {
	db        *sql.DB
	photosDir string
}

// DefaultDataDir returns the default data directory:
// ~/.local/share/photoboard
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "photoboard"), nil
}

// Open opens (or creates) the cache under dataDir, applies the schema, and
// configures WAL mode so slideshow reads can run concurrently with a sync
// pass. synchronous=FULL keeps the write-then-acknowledge guarantee.
func Open(dataDir string) (*Store, error) {
	photosDir := filepath.Join(dataDir, "photos")
	if err := os.MkdirAll(photosDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating photos directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "photoboard.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=FULL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", dbPath, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, photosDir: photosDir}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// --- photos ------------------------------------------------------------------

// Photos returns every cached photo in insertion order. The order is stable
// across calls absent mutation; the slideshow renderer owns rotation on top
// of it.
func (s *Store) Photos(ctx context.Context) ([]*model.Photo, error) {
	const q = `
		SELECT id, name, extra_lines, fingerprint, file_name, fetched_at
		FROM photos ORDER BY rowid`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying photos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var photos []*model.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// Photo returns the cached photo with the given ID, or (nil, nil) if absent.
func (s *Store) Photo(ctx context.Context, id string) (*model.Photo, error) {
	const q = `
		SELECT id, name, extra_lines, fingerprint, file_name, fetched_at
		FROM photos WHERE id = ?`
	return scanPhoto(s.db.QueryRowContext(ctx, q, id))
}

// UpsertPhoto inserts or replaces the photo record. When content is non-nil
// it is written to the photo's content file first (temp file, fsync, rename)
// so the row never references missing bytes; a nil content leaves the
// existing file untouched. Idempotent: re-upserting the same record is a
// no-op beyond rewriting identical data, and an update keeps the photo's
// original position in the display order.
func (s *Store) UpsertPhoto(ctx context.Context, p *model.Photo, content []byte) error {
	if content != nil {
		if err := s.writeContent(p.FileName, content); err != nil {
			return fmt.Errorf("writing content for photo %s: %w", p.ID, err)
		}
	}

	const q = `
		INSERT INTO photos (id, name, extra_lines, fingerprint, file_name, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    name        = excluded.name,
		    extra_lines = excluded.extra_lines,
		    fingerprint = excluded.fingerprint,
		    file_name   = excluded.file_name,
		    fetched_at  = excluded.fetched_at`

	extra, err := json.Marshal(emptyAsList(p.ExtraLines))
	if err != nil {
		return fmt.Errorf("encoding extra lines for photo %s: %w", p.ID, err)
	}

	_, err = s.db.ExecContext(ctx, q,
		p.ID,
		p.Name,
		string(extra),
		p.Fingerprint,
		p.FileName,
		formatTime(p.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting photo %s: %w", p.ID, err)
	}
	return nil
}

// DeletePhoto removes the photo record and its content file. No-op if the
// photo is absent.
func (s *Store) DeletePhoto(ctx context.Context, id string) error {
	var fileName string
	err := s.db.QueryRowContext(ctx, `SELECT file_name FROM photos WHERE id = ?`, id).Scan(&fileName)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up photo %s: %w", id, err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting photo %s: %w", id, err)
	}

	// Content removal after the row is gone: a reader can no longer reach
	// the file, and a leftover file is harmless if the remove fails.
	if err := os.Remove(filepath.Join(s.photosDir, fileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing content for photo %s: %w", id, err)
	}
	return nil
}

// ContentPath returns the absolute path of a photo's content file. This is
// the content reference handed to the slideshow renderer.
func (s *Store) ContentPath(p *model.Photo) string {
	return filepath.Join(s.photosDir, p.FileName)
}

// writeContent writes bytes to photosDir/fileName atomically: temp file in
// the same directory, fsync, rename.
func (s *Store) writeContent(fileName string, content []byte) error {
	f, err := os.CreateTemp(s.photosDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("setting content permissions: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.photosDir, fileName)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// --- sync state --------------------------------------------------------------

// SyncState returns the singleton sync state record. A fresh store yields a
// zero-valued state (never synced, no error, no known IDs).
func (s *Store) SyncState(ctx context.Context) (*SyncState, error) {
	const q = `SELECT last_sync_at, last_error, known_ids FROM sync_state WHERE id = 1`

	var at, lastErr, knownJSON string
	err := s.db.QueryRowContext(ctx, q).Scan(&at, &lastErr, &knownJSON)
	if err == sql.ErrNoRows {
		return &SyncState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying sync state: %w", err)
	}

	st := &SyncState{LastError: lastErr}
	st.LastSyncAt, _ = parseTime(at)
	if err := json.Unmarshal([]byte(knownJSON), &st.KnownIDs); err != nil {
		return nil, fmt.Errorf("decoding known ids: %w", err)
	}
	return st, nil
}

// SetSyncSuccess records a fully committed pass: timestamp and known ID set
// are replaced and the last error is cleared. Called only after every cache
// write of the pass has succeeded.
func (s *Store) SetSyncSuccess(ctx context.Context, knownIDs []string, at time.Time) error {
	known, err := json.Marshal(emptyAsList(knownIDs))
	if err != nil {
		return fmt.Errorf("encoding known ids: %w", err)
	}

	const q = `
		INSERT INTO sync_state (id, last_sync_at, last_error, known_ids)
		VALUES (1, ?, '', ?)
		ON CONFLICT(id) DO UPDATE SET
		    last_sync_at = excluded.last_sync_at,
		    last_error   = '',
		    known_ids    = excluded.known_ids`
	if _, err := s.db.ExecContext(ctx, q, formatTime(at), string(known)); err != nil {
		return fmt.Errorf("recording sync success: %w", err)
	}
	return nil
}

// SetSyncError records a failed pass. Only the error column changes; the
// last successful timestamp and known ID set stay as they were so the next
// pass diffs from the prior known state.
func (s *Store) SetSyncError(ctx context.Context, message string) error {
	const q = `
		INSERT INTO sync_state (id, last_error)
		VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_error = excluded.last_error`
	if _, err := s.db.ExecContext(ctx, q, message); err != nil {
		return fmt.Errorf("recording sync error: %w", err)
	}
	return nil
}

// --- credentials -------------------------------------------------------------

// Credentials returns the stored OAuth2 token, or (nil, nil) when setup has
// not run yet.
func (s *Store) Credentials(ctx context.Context) (*oauth2.Token, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM credentials WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not configured" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	return &tok, nil
}

// SetCredentials replaces the stored OAuth2 token.
func (s *Store) SetCredentials(ctx context.Context, tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	const q = `
		INSERT INTO credentials (id, token) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token`
	if _, err := s.db.ExecContext(ctx, q, string(raw)); err != nil {
		return fmt.Errorf("storing credentials: %w", err)
	}
	return nil
}

// --- helpers -----------------------------------------------------------------

// scanner matches both *sql.Row and *sql.Rows so scanPhoto can be reused.
type scanner interface {
	Scan(dest ...any) error
}

func scanPhoto(sc scanner) (*model.Photo, error) {
	var p model.Photo
	var extraJSON, fetchedAt string

	err := sc.Scan(&p.ID, &p.Name, &extraJSON, &p.Fingerprint, &p.FileName, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning photo row: %w", err)
	}

	if err := json.Unmarshal([]byte(extraJSON), &p.ExtraLines); err != nil {
		return nil, fmt.Errorf("decoding extra lines for photo %s: %w", p.ID, err)
	}
	if len(p.ExtraLines) == 0 {
		p.ExtraLines = nil
	}
	p.FetchedAt, _ = parseTime(fetchedAt)

	return &p, nil
}

// emptyAsList keeps nil slices encoding as [] instead of null.
func emptyAsList(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
