package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		pages INTEGER NOT NULL DEFAULT 0,
		chunks INTEGER NOT NULL DEFAULT 0,
		source_path TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_name ON documents(name);

	CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

const documentColumns = `id, name, size, pages, chunks, COALESCE(source_path, ''), created_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var doc models.Document
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Size, &doc.Pages, &doc.Chunks, &doc.SourcePath, &doc.CreatedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}

// CreateDocument inserts a document, assigning an ID and CreatedAt when unset.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, size, pages, chunks, source_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.Size, doc.Pages, doc.Chunks, doc.SourcePath, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return doc, err
}

// FindDocumentByName returns the most recent document with the given name.
func (s *SQLiteStorage) FindDocumentByName(ctx context.Context, name string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE name = ? ORDER BY rowid DESC LIMIT 1`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %q: %w", name, ErrNotFound)
	}
	return doc, err
}

// ListDocuments returns documents in upload order with offset and limit.
// A limit of zero or less returns all documents from offset.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY rowid LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document by ID.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// CreateExchange records a question and its answer, assigning an ID and CreatedAt when unset.
func (s *SQLiteStorage) CreateExchange(ctx context.Context, ex *models.Exchange) error {
	if ex.ID == "" {
		ex.ID = uuid.New().String()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, question, answer, degraded, created_at) VALUES (?, ?, ?, ?, ?)`,
		ex.ID, ex.Question, ex.Answer, ex.Degraded, ex.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// ListExchanges returns the most recent limit exchanges, oldest first.
// A limit of zero or less returns the whole history.
func (s *SQLiteStorage) ListExchanges(ctx context.Context, limit int) ([]*models.Exchange, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, answer, degraded, created_at FROM (
			SELECT rowid AS seq, id, question, answer, degraded, created_at
			FROM exchanges ORDER BY seq DESC LIMIT ?
		) ORDER BY seq`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exchanges := make([]*models.Exchange, 0)
	for rows.Next() {
		var ex models.Exchange
		if err := rows.Scan(&ex.ID, &ex.Question, &ex.Answer, &ex.Degraded, &ex.CreatedAt); err != nil {
			return nil, err
		}
		exchanges = append(exchanges, &ex)
	}
	return exchanges, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// SumChunks returns the total number of chunks across all documents.
func (s *SQLiteStorage) SumChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(chunks), 0) FROM documents`).Scan(&count)
	return count, err
}

// Reset removes every document and exchange in one transaction.
func (s *SQLiteStorage) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"documents", "exchanges"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
