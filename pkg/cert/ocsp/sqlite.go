package ocsp

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCache persists OCSP responses in a SQLite file so freshly
// started processes can staple immediately, before the first refresh
// cycle completes.
type SQLiteCache struct {
	db        *sql.DB
	dbPath    string
	closeOnce sync.Once

	getStmt    *sql.Stmt
	putStmt    *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewSQLiteCache opens (or creates) the response cache at dbPath.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &SQLiteCache{db: db, dbPath: dbPath}

	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := c.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return c, nil
}

func (c *SQLiteCache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ocsp_responses (
		key_id       TEXT PRIMARY KEY,
		der          BLOB NOT NULL,
		next_update  INTEGER NOT NULL,
		retrieved_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ocsp_next_update ON ocsp_responses(next_update);
	`
	_, err := c.db.Exec(schema)
	return err
}

func (c *SQLiteCache) prepareStatements() error {
	var err error
	if c.getStmt, err = c.db.Prepare(
		`SELECT der, next_update, retrieved_at FROM ocsp_responses WHERE key_id = ?`); err != nil {
		return err
	}
	if c.putStmt, err = c.db.Prepare(
		`INSERT INTO ocsp_responses (key_id, der, next_update, retrieved_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key_id) DO UPDATE SET
		   der = excluded.der,
		   next_update = excluded.next_update,
		   retrieved_at = excluded.retrieved_at`); err != nil {
		return err
	}
	if c.deleteStmt, err = c.db.Prepare(
		`DELETE FROM ocsp_responses WHERE key_id = ?`); err != nil {
		return err
	}
	return nil
}

// Response returns the cached response for a key id, or nil.
func (c *SQLiteCache) Response(keyID string) *Response {
	var (
		der         []byte
		nextUpdate  int64
		retrievedAt int64
	)
	err := c.getStmt.QueryRow(keyID).Scan(&der, &nextUpdate, &retrievedAt)
	if err != nil {
		return nil
	}
	resp := &Response{
		KeyID:       keyID,
		DER:         der,
		NextUpdate:  time.Unix(nextUpdate, 0),
		RetrievedAt: time.Unix(retrievedAt, 0),
	}
	if resp.Expired(time.Now()) {
		return nil
	}
	return resp
}

// Put stores a response.
func (c *SQLiteCache) Put(resp *Response) error {
	_, err := c.putStmt.Exec(resp.KeyID, resp.DER, resp.NextUpdate.Unix(), resp.RetrievedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store ocsp response for %s: %w", resp.KeyID, err)
	}
	return nil
}

// Remove deletes the response for a key id.
func (c *SQLiteCache) Remove(keyID string) error {
	_, err := c.deleteStmt.Exec(keyID)
	return err
}

// Close releases the database handle.
func (c *SQLiteCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{c.getStmt, c.putStmt, c.deleteStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = c.db.Close()
	})
	return err
}
