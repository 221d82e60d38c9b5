package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores named blobs as rows in a single SQLite table. It satisfies
// the same Blob contract as File and exists for installs that already keep
// their state in SQLite.
type SQLite struct {
	db   *sql.DB
	name string
}

// NewSQLite opens the SQLite database at dbPath and creates the blobs
// table if it doesn't exist. name identifies the blob this handle reads
// and writes.
func NewSQLite(dbPath, name string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS blobs (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLite{db: db, name: name}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load reads the named blob. A missing row yields (nil, nil).
func (s *SQLite) Load() ([]byte, error) {
	row := s.db.QueryRow(`SELECT data FROM blobs WHERE name = ?`, s.name)

	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan blob: %w", err)
	}
	return data, nil
}

// Save writes the named blob, replacing any previous contents.
func (s *SQLite) Save(data []byte) error {
	now := time.Now()

	// Try to update the existing row first.
	result, err := s.db.Exec(
		`UPDATE blobs SET data = ?, updated_at = ? WHERE name = ?`,
		data, now, s.name,
	)
	if err != nil {
		return fmt.Errorf("update blob: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	// If no rows were updated, insert a new record.
	if rowsAffected == 0 {
		_, err = s.db.Exec(
			`INSERT INTO blobs (name, data, updated_at) VALUES (?, ?, ?)`,
			s.name, data, now,
		)
		if err != nil {
			return fmt.Errorf("insert blob: %w", err)
		}
	}

	return nil
}
