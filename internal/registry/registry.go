// Package registry keeps the relational record of every uploaded resource.
package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jerkytreats/cdnhealth/internal/logging"
)

const RegistryPathKey = "registry.path"

//go:embed schema.sql
var schemaFS embed.FS

var ErrResourceNotFound = errors.New("resource not found")

// ResourceRecord is one uploaded asset. StoragePath is unique.
type ResourceRecord struct {
	ID           int64     `json:"id"`
	OriginalName string    `json:"originalName"`
	StoragePath  string    `json:"storagePath"`
	PublicURL    string    `json:"publicUrl"`
	Hash         string    `json:"hash"`
	Size         int64     `json:"size"`
	Width        *int      `json:"width"`
	Height       *int      `json:"height"`
	Format       string    `json:"format,omitempty"`
	MimeType     string    `json:"mimeType"`
	Type         string    `json:"type"`
	Category     string    `json:"category"`
	UploaderID   string    `json:"uploaderId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Filter narrows List. Zero values match everything; Limit <= 0 means no limit.
type Filter struct {
	Type     string
	Category string
	Limit    int
}

// Registry stores ResourceRecords in SQLite.
type Registry struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the SQLite database at path and applies the schema.
func Open(path string) (*Registry, error) {
	if path == "" {
		return nil, fmt.Errorf("registry path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure registry dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			logging.Warn("Registry pragma %q failed: %v", p, err)
		}
	}

	reg, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	logging.Info("Resource registry opened at %s", path)
	return reg, nil
}

// New wraps an existing database handle and runs migrations from schema.sql.
func New(db *sql.DB) (*Registry, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &Registry{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable.
func (r *Registry) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create inserts rec and fills in its ID and CreatedAt.
func (r *Registry) Create(ctx context.Context, rec *ResourceRecord) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}
	if rec.StoragePath == "" {
		return fmt.Errorf("storage path is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO resources (original_name, storage_path, public_url, hash, size, width, height,
                                format, mime_type, type, category, uploader_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OriginalName, rec.StoragePath, rec.PublicURL, rec.Hash, rec.Size,
		nullInt(rec.Width), nullInt(rec.Height),
		rec.Format, rec.MimeType, rec.Type, rec.Category, rec.UploaderID, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("resource id: %w", err)
	}
	rec.ID = id
	return nil
}

const selectColumns = `SELECT id, original_name, storage_path, public_url, hash, size, width, height,
       format, mime_type, type, category, uploader_id, created_at
  FROM resources`

// Get returns a record by id.
func (r *Registry) Get(ctx context.Context, id int64) (*ResourceRecord, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ? LIMIT 1`, id)
	return scanOne(row)
}

// GetByPath returns a record by storage path.
func (r *Registry) GetByPath(ctx context.Context, storagePath string) (*ResourceRecord, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE storage_path = ? LIMIT 1`, storagePath)
	return scanOne(row)
}

// List returns records matching f, newest first.
func (r *Registry) List(ctx context.Context, f Filter) ([]ResourceRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	out := []ResourceRecord{}
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ListURLs returns every public URL in insertion order.
func (r *Registry) ListURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT public_url FROM resources ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list resource urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Delete removes a record by id.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if n == 0 {
		return ErrResourceNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*ResourceRecord, error) {
	rec, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResourceNotFound
	}
	return rec, err
}

func scan(s scanner) (*ResourceRecord, error) {
	var (
		rec           ResourceRecord
		width, height sql.NullInt64
		createdAt     int64
	)
	if err := s.Scan(&rec.ID, &rec.OriginalName, &rec.StoragePath, &rec.PublicURL, &rec.Hash, &rec.Size,
		&width, &height, &rec.Format, &rec.MimeType, &rec.Type, &rec.Category, &rec.UploaderID, &createdAt); err != nil {
		return nil, err
	}
	rec.Width = intPtr(width)
	rec.Height = intPtr(height)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &rec, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
