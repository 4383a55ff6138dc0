package session

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteCache persists sessions in a SQLite file so resumption survives
// process restarts. Suitable for single-instance deployments.
type SQLiteCache struct {
	db        *sql.DB
	dbPath    string
	ttl       time.Duration
	closeOnce sync.Once

	getStmt     *sql.Stmt
	putStmt     *sql.Stmt
	deleteStmt  *sql.Stmt
	cleanupStmt *sql.Stmt
}

// DefaultSessionTTL bounds how long a persisted session stays usable.
const DefaultSessionTTL = 24 * time.Hour

// NewSQLiteCache opens (or creates) the session cache at dbPath.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &SQLiteCache{
		db:     db,
		dbPath: dbPath,
		ttl:    DefaultSessionTTL,
	}

	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := c.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	if _, err := c.cleanupStmt.Exec(time.Now().Add(-c.ttl).Unix()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to clean up expired sessions: %w", err)
	}

	return c, nil
}

func (c *SQLiteCache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tls_sessions (
		session_key TEXT PRIMARY KEY,
		value       BLOB NOT NULL,
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON tls_sessions(created_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

func (c *SQLiteCache) prepareStatements() error {
	var err error
	if c.getStmt, err = c.db.Prepare(
		`SELECT value, created_at FROM tls_sessions WHERE session_key = ?`); err != nil {
		return err
	}
	if c.putStmt, err = c.db.Prepare(
		`INSERT INTO tls_sessions (session_key, value, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_key) DO UPDATE SET
		   value = excluded.value,
		   created_at = excluded.created_at`); err != nil {
		return err
	}
	if c.deleteStmt, err = c.db.Prepare(
		`DELETE FROM tls_sessions WHERE session_key = ?`); err != nil {
		return err
	}
	if c.cleanupStmt, err = c.db.Prepare(
		`DELETE FROM tls_sessions WHERE created_at < ?`); err != nil {
		return err
	}
	return nil
}

// Get returns the stored value for a session key.
func (c *SQLiteCache) Get(key string) ([]byte, bool) {
	var (
		value     []byte
		createdAt int64
	)
	if err := c.getStmt.QueryRow(key).Scan(&value, &createdAt); err != nil {
		return nil, false
	}
	if time.Since(time.Unix(createdAt, 0)) > c.ttl {
		return nil, false
	}
	return value, true
}

// Put stores a session value.
func (c *SQLiteCache) Put(key string, value []byte) error {
	if _, err := c.putStmt.Exec(key, value, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Remove deletes a session entry.
func (c *SQLiteCache) Remove(key string) {
	c.deleteStmt.Exec(key)
}

// Close releases the database handle.
func (c *SQLiteCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{c.getStmt, c.putStmt, c.deleteStmt, c.cleanupStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = c.db.Close()
	})
	return err
}
