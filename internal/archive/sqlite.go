package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection with initialization logic.
type DB struct {
	*sql.DB
}

// Open creates or opens the SQLite database at the given path, runs schema
// initialization, and configures WAL mode for concurrent reads.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS chronicles (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  start_year INTEGER,
  entry_count INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chronicles_created_at ON chronicles(created_at);

CREATE TABLE IF NOT EXISTS chronicle_entries (
  chronicle_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  narrative TEXT NOT NULL,
  choice TEXT,
  year INTEGER,
  PRIMARY KEY (chronicle_id, seq),
  FOREIGN KEY (chronicle_id) REFERENCES chronicles(id) ON DELETE CASCADE
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema changes. Each migration is
// idempotent so it is safe to call on every open.
func runMigrations(db *sql.DB) error {
	// v1: finished flag, so in-progress exports can be told apart.
	hasFinished, err := columnExists(db, "chronicles", "finished")
	if err != nil {
		return fmt.Errorf("check finished column: %w", err)
	}
	if !hasFinished {
		if _, err := db.Exec(`ALTER TABLE chronicles ADD COLUMN finished INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("run migration v1: %w", err)
		}
	}
	return nil
}

// ChronicleCount returns the number of archived timelines.
func (db *DB) ChronicleCount() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM chronicles").Scan(&count)
	return count, err
}

// columnExists checks if a column exists in a table. It closes the rows
// cursor before returning, avoiding deadlocks with MaxOpenConns(1).
func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(
		fmt.Sprintf("SELECT name FROM pragma_table_info('%s') WHERE name = ?", table),
		column,
	)
	if err != nil {
		return false, err
	}
	found := rows.Next()
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}
	return found, nil
}
