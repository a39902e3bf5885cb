package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// A single connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", types.ErrStorage, err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to apply migrations: %w", types.ErrStorage, err)
	}

	return &SQLiteStorage{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// UpsertFramework inserts or replaces a framework. CreatedAt is kept on
// update; fw's timestamps are set from the stored row.
func (s *SQLiteStorage) UpsertFramework(ctx context.Context, fw *types.Framework) error {
	if err := fw.Validate(); err != nil {
		return err
	}
	typ, payload, err := types.EncodeSource(fw.Source)
	if err != nil {
		return err
	}

	name := normalizeName(fw.Name)
	now := s.now().UTC().Format(time.RFC3339Nano)
	query := `
		INSERT INTO frameworks (name, display_name, source_type, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			source_type = excluded.source_type,
			source = excluded.source,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, name, fw.DisplayName, string(typ), string(payload), now, now); err != nil {
		return fmt.Errorf("%w: upsert framework %q: %w", types.ErrStorage, name, err)
	}

	stored, err := s.GetFramework(ctx, name)
	if err != nil {
		return err
	}
	fw.Name = stored.Name
	fw.CreatedAt = stored.CreatedAt
	fw.UpdatedAt = stored.UpdatedAt
	return nil
}

// GetFramework returns the framework registered under name.
func (s *SQLiteStorage) GetFramework(ctx context.Context, name string) (*types.Framework, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, display_name, source_type, source, created_at, updated_at
		FROM frameworks WHERE name = ?
	`, normalizeName(name))

	fw, err := scanFramework(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: framework %q", types.ErrNotFound, name)
	}
	return fw, err
}

// ListFrameworks returns registered frameworks ordered by name.
func (s *SQLiteStorage) ListFrameworks(ctx context.Context, filter ListFilter) ([]*types.Framework, error) {
	query := `SELECT name, display_name, source_type, source, created_at, updated_at FROM frameworks`
	var args []any
	if filter.SourceType != "" {
		query += ` WHERE source_type = ?`
		args = append(args, string(filter.SourceType))
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list frameworks: %w", types.ErrStorage, err)
	}
	defer rows.Close()

	var frameworks []*types.Framework
	for rows.Next() {
		fw, err := scanFramework(rows)
		if err != nil {
			return nil, err
		}
		frameworks = append(frameworks, fw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list frameworks: %w", types.ErrStorage, err)
	}
	return frameworks, nil
}

// DeleteFramework removes a framework. It reports whether one existed.
func (s *SQLiteStorage) DeleteFramework(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM frameworks WHERE name = ?", normalizeName(name))
	if err != nil {
		return false, fmt.Errorf("%w: delete framework %q: %w", types.ErrStorage, name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: delete framework %q: %w", types.ErrStorage, name, err)
	}
	return n > 0, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanFramework(row scanner) (*types.Framework, error) {
	var (
		fw                   types.Framework
		displayName          sql.NullString
		sourceType, source   string
		createdAt, updatedAt string
	)
	if err := row.Scan(&fw.Name, &displayName, &sourceType, &source, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan framework: %w", types.ErrStorage, err)
	}

	src, err := types.DecodeSource(types.SourceType(sourceType), []byte(source))
	if err != nil {
		return nil, fmt.Errorf("%w: framework %q: %w", types.ErrStorage, fw.Name, err)
	}
	fw.DisplayName = displayName.String
	fw.Source = src
	if fw.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("%w: framework %q created_at: %w", types.ErrStorage, fw.Name, err)
	}
	if fw.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("%w: framework %q updated_at: %w", types.ErrStorage, fw.Name, err)
	}
	return &fw, nil
}
