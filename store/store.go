// Package store caches compiled .ifab artifacts in a SQLite database.
//
// Artifacts are content addressed: the key is the SHA-256 of the
// serialized bytecode, so storing the same program twice is a no-op.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/ifa/pkg/bytecode"
)

// ErrArtifactNotFound indicates the requested artifact doesn't exist
var ErrArtifactNotFound = errors.New("artifact not found")

var log = commonlog.GetLogger("ifa.store")

// Entry describes one cached artifact.
type Entry struct {
	Hash       string // SHA-256 of the serialized artifact
	ID         string // random id assigned when first stored
	SourceName string
	SourceHash string // SHA-256 of the program the artifact was compiled from
	Version    uint16
	Size       int
	Created    time.Time
}

// Store is a SQLite-backed artifact cache safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

const schema = `CREATE TABLE IF NOT EXISTS artifacts (
	hash        TEXT PRIMARY KEY,
	id          TEXT NOT NULL,
	source      TEXT NOT NULL,
	source_hash TEXT NOT NULL,
	version     INTEGER NOT NULL,
	data        BLOB NOT NULL,
	created     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS artifacts_source ON artifacts (source, created);
CREATE INDEX IF NOT EXISTS artifacts_source_hash ON artifacts (source_hash);
CREATE TABLE IF NOT EXISTS sources (
	source_hash TEXT PRIMARY KEY,
	hash        TEXT NOT NULL
);`

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put stores bc and returns its entry. sourceHash identifies the program
// text it was compiled from and may be empty. Several sources may map to
// the same artifact; each is remembered for FindBySource.
func (s *Store) Put(bc *bytecode.Bytecode, sourceHash string) (Entry, error) {
	data, err := bc.Marshal()
	if err != nil {
		return Entry{}, fmt.Errorf("serializing artifact: %w", err)
	}
	hash := Hash(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return Entry{}, fmt.Errorf("saving artifact: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT OR IGNORE INTO artifacts (hash, id, source, source_hash, version, data, created)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		hash, uuid.New().String(), bc.SourceName, sourceHash, int(bc.Version), data, time.Now().UnixNano(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("saving artifact: %w", err)
	}
	if sourceHash != "" {
		if _, err := tx.Exec("INSERT OR REPLACE INTO sources (source_hash, hash) VALUES (?, ?)", sourceHash, hash); err != nil {
			return Entry{}, fmt.Errorf("saving source mapping: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("saving artifact: %w", err)
	}
	log.Debugf("stored %s (%s, %d bytes)", hash[:12], bc.SourceName, len(data))

	e, err := s.entry("WHERE hash = ?", hash)
	if err == nil && sourceHash != "" {
		e.SourceHash = sourceHash
	}
	return e, err
}

// Get loads the artifact with the given hash.
func (s *Store) Get(hash string) (*bytecode.Bytecode, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM artifacts WHERE hash = ?", hash).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}
	return decode(hash, data)
}

// Latest loads the most recently stored artifact for a source name.
func (s *Store) Latest(sourceName string) (*bytecode.Bytecode, Entry, error) {
	e, err := s.entry("WHERE source = ? ORDER BY created DESC, rowid DESC LIMIT 1", sourceName)
	if err != nil {
		return nil, Entry{}, err
	}
	bc, err := s.Get(e.Hash)
	return bc, e, err
}

// FindBySource loads an artifact compiled from the program with the given
// source hash. The returned entry carries sourceHash.
func (s *Store) FindBySource(sourceHash string) (*bytecode.Bytecode, Entry, error) {
	if sourceHash == "" {
		return nil, Entry{}, ErrArtifactNotFound
	}
	var hash string
	err := s.db.QueryRow(`SELECT hash FROM sources WHERE source_hash = ?
		UNION ALL
		SELECT hash FROM (SELECT hash FROM artifacts WHERE source_hash = ? ORDER BY created DESC, rowid DESC)
		LIMIT 1`, sourceHash, sourceHash).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Entry{}, ErrArtifactNotFound
		}
		return nil, Entry{}, fmt.Errorf("querying source %s: %w", sourceHash, err)
	}
	e, err := s.entry("WHERE hash = ?", hash)
	if err != nil {
		return nil, Entry{}, err
	}
	e.SourceHash = sourceHash
	bc, err := s.Get(hash)
	return bc, e, err
}

// Resolve expands a unique hash prefix to the full hash.
func (s *Store) Resolve(prefix string) (string, error) {
	if prefix == "" {
		return "", ErrArtifactNotFound
	}
	rows, err := s.db.Query("SELECT hash FROM artifacts WHERE substr(hash, 1, ?) = ? LIMIT 2", len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", prefix, err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return "", fmt.Errorf("resolving %s: %w", prefix, err)
		}
		matches = append(matches, h)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolving %s: %w", prefix, err)
	}
	switch len(matches) {
	case 0:
		return "", ErrArtifactNotFound
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("hash prefix %s is ambiguous", prefix)
}

// List returns every entry, oldest first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT hash, id, source, source_hash, version, length(data), created
		FROM artifacts ORDER BY created, rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes an artifact.
func (s *Store) Delete(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM artifacts WHERE hash = ?", hash)
	if err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM sources WHERE hash = ?", hash); err != nil {
		return fmt.Errorf("deleting source mappings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	if n == 0 {
		return ErrArtifactNotFound
	}
	return nil
}

func (s *Store) entry(where string, args ...any) (Entry, error) {
	row := s.db.QueryRow(`SELECT hash, id, source, source_hash, version, length(data), created
		FROM artifacts `+where, args...)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrArtifactNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e       Entry
		version int
		created int64
	)
	if err := row.Scan(&e.Hash, &e.ID, &e.SourceName, &e.SourceHash, &version, &e.Size, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning artifact: %w", err)
	}
	e.Version = uint16(version)
	e.Created = time.Unix(0, created)
	return e, nil
}

func decode(hash string, data []byte) (*bytecode.Bytecode, error) {
	if Hash(data) != hash {
		return nil, fmt.Errorf("artifact %s is corrupt: content hash mismatch", hash)
	}
	bc, err := bytecode.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decoding artifact %s: %w", hash, err)
	}
	return bc, nil
}
