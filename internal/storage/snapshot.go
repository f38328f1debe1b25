// Package storage writes local SQLite snapshots of the tabular store.
// A snapshot is a self-contained backup of every data worksheet, taken
// by the export command.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS sheets (
	name TEXT PRIMARY KEY,
	headers TEXT NOT NULL,
	row_count INTEGER NOT NULL DEFAULT 0,
	exported_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS rows (
	sheet TEXT NOT NULL,
	position INTEGER NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (sheet, position),
	FOREIGN KEY (sheet) REFERENCES sheets(name) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_rows_sheet ON rows(sheet);
`

// Snapshot is a SQLite-backed worksheet dump. Headers and row values are
// stored as JSON arrays so arbitrary column sets round-trip unchanged.
type Snapshot struct {
	db   *sql.DB
	path string
}

// Open creates or opens a snapshot file and ensures the schema exists.
func Open(dbPath string) (*Snapshot, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping snapshot database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create snapshot schema: %w", err)
	}
	return &Snapshot{db: db, path: dbPath}, nil
}

// Close closes the underlying database.
func (s *Snapshot) Close() error {
	return s.db.Close()
}

// Path returns the snapshot file location.
func (s *Snapshot) Path() string {
	return s.path
}

// WriteSheet replaces the stored copy of one worksheet. rows excludes the
// header row. The write is transactional so a failed export never leaves
// a half-written sheet behind.
func (s *Snapshot) WriteSheet(ctx context.Context, name string, headers []string, rows [][]string) error {
	if name == "" {
		return fmt.Errorf("sheet name is required")
	}
	headerJSON, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("failed to encode headers for %s: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rows WHERE sheet = ?`, name); err != nil {
		return fmt.Errorf("failed to clear old rows for %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sheets (name, headers, row_count, exported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			headers = excluded.headers,
			row_count = excluded.row_count,
			exported_at = excluded.exported_at`,
		name, string(headerJSON), len(rows), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert sheet %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO rows (sheet, position, data) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to encode row %d of %s: %w", i+1, name, err)
		}
		if _, err := stmt.ExecContext(ctx, name, i+1, string(payload)); err != nil {
			return fmt.Errorf("failed to insert row %d of %s: %w", i+1, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot of %s: %w", name, err)
	}
	return nil
}

// SheetInfo describes one exported worksheet.
type SheetInfo struct {
	ExportedAt time.Time
	Name       string
	RowCount   int
}

// Sheets lists the exported worksheets, newest export first.
func (s *Snapshot) Sheets(ctx context.Context) ([]SheetInfo, error) {
	query := `SELECT name, row_count, exported_at FROM sheets ORDER BY exported_at DESC, name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot sheets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []SheetInfo
	for rows.Next() {
		var info SheetInfo
		if err := rows.Scan(&info.Name, &info.RowCount, &info.ExportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sheet info: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating snapshot sheets: %w", err)
	}
	return infos, nil
}

// ReadSheet returns the stored headers and rows of one worksheet.
func (s *Snapshot) ReadSheet(ctx context.Context, name string) ([]string, [][]string, error) {
	var headerJSON string
	err := s.db.QueryRowContext(ctx, `SELECT headers FROM sheets WHERE name = ?`, name).Scan(&headerJSON)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("sheet %s is not in the snapshot", name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
	}
	var headers []string
	if err := json.Unmarshal([]byte(headerJSON), &headers); err != nil {
		return nil, nil, fmt.Errorf("failed to decode headers of %s: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM rows WHERE sheet = ? ORDER BY position`, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows of %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	var out [][]string
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row of %s: %w", name, err)
		}
		var row []string
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			return nil, nil, fmt.Errorf("failed to decode row of %s: %w", name, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed iterating rows of %s: %w", name, err)
	}
	return headers, out, nil
}
