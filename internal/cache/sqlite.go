package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// DefaultPath returns the shared cache database location.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_CACHE_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(dataDir, "taskweave", "cache.db")
}

// SQLiteStore is a Store persisted in an SQLite database so results survive
// between runs.
type SQLiteStore struct {
	conn *sql.DB
	path string
	ttl  time.Duration
	now  func() time.Time
}

// OpenSQLite opens (and migrates) the cache database at path.
// It creates the parent directories if they don't exist.
func OpenSQLite(path string, ttl time.Duration) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets concurrent runs read while one writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{conn: conn, path: path, ttl: ttl, now: time.Now}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the path to the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

const migrationV1Entries = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	capability TEXT NOT NULL,
	payload TEXT NOT NULL,
	confidence REAL NOT NULL,
	confidence_reasoning TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_created_at ON cache_entries(created_at);
`

// migrate applies all pending schema migrations.
func (s *SQLiteStore) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Entries},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}
	return nil
}

func (s *SQLiteStore) cutoff() int64 {
	return s.now().Add(-s.ttl).UnixNano()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		e          Entry
		capability string
		payload    string
		created    int64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT capability, payload, confidence, confidence_reasoning, created_at
		 FROM cache_entries WHERE key = ? AND created_at > ?`, key, s.cutoff()).
		Scan(&capability, &payload, &e.Confidence, &e.ConfidenceReasoning, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get cache entry: %w", err)
	}
	e.Capability = models.Capability(capability)
	e.Payload = []byte(payload)
	e.CreatedAt = time.Unix(0, created)
	return e, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, e Entry) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO cache_entries (key, capability, payload, confidence, confidence_reasoning, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			capability = excluded.capability,
			payload = excluded.payload,
			confidence = excluded.confidence,
			confidence_reasoning = excluded.confidence_reasoning,
			created_at = excluded.created_at`,
		key, string(e.Capability), string(e.Payload), e.Confidence, e.ConfidenceReasoning, e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Prune(ctx context.Context) (int, error) {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM cache_entries WHERE created_at <= ?", s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM cache_entries"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
