// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"docsentry/internal/docparse"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id                 TEXT PRIMARY KEY,
	file_name          TEXT NOT NULL,
	file_type          TEXT NOT NULL,
	file_size          BIGINT NOT NULL DEFAULT 0,
	status             TEXT NOT NULL,
	total_sections     INTEGER NOT NULL DEFAULT 0,
	sensitive_sections INTEGER NOT NULL DEFAULT 0,
	metadata           JSONB,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS document_sections (
	document_id   TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	id            TEXT NOT NULL,
	type          TEXT NOT NULL,
	idx           INTEGER NOT NULL,
	page_number   INTEGER,
	content       TEXT NOT NULL,
	preview       TEXT NOT NULL,
	length        INTEGER NOT NULL,
	has_sensitive BOOLEAN NOT NULL DEFAULT FALSE,
	patterns      TEXT[],
	confidence    DOUBLE PRECISION NOT NULL,
	bounding_box  JSONB,
	metadata      JSONB,
	selected      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (document_id, id)
);

CREATE INDEX IF NOT EXISTS idx_sections_document ON document_sections (document_id, idx);
`

// Config holds database connection settings.
type Config struct {
	DatabaseURL     string        `yaml:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// PostgresStore is the database-backed Store.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresStore connects, applies the schema and returns the store.
func NewPostgresStore(cfg Config, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, &PersistenceError{Op: "connect", Err: err}
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, &PersistenceError{Op: "apply schema", Err: err}
	}
	logger.Info("document store ready",
		zap.Int("max_open_conns", cfg.MaxOpenConns))
	return &PostgresStore{db: db, logger: logger}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) CreateDocument(ctx context.Context, rec *DocumentRecord) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return &PersistenceError{Op: "encode document metadata", Err: err}
	}
	query := `
		INSERT INTO documents (id, file_name, file_type, file_size, status, total_sections, sensitive_sections, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	err = s.db.QueryRowContext(ctx, query,
		rec.ID, rec.FileName, rec.FileType, rec.FileSize,
		rec.Status, rec.TotalSections, rec.SensitiveSections, meta,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return &PersistenceError{Op: "create document", Err: err}
	}
	return nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, documentID string, status DocumentStatus, totalSections, sensitiveSections int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status = $2, total_sections = $3, sensitive_sections = $4, updated_at = now()
		WHERE id = $1`,
		documentID, status, totalSections, sensitiveSections)
	if err != nil {
		return &PersistenceError{Op: "update document status", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (*DocumentRecord, error) {
	var rec DocumentRecord
	var meta []byte
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, file_name, file_type, file_size, status, total_sections, sensitive_sections, metadata, created_at, updated_at
		FROM documents WHERE id = $1`, documentID,
	).Scan(&rec.ID, &rec.FileName, &rec.FileType, &rec.FileSize, &rec.Status,
		&rec.TotalSections, &rec.SensitiveSections, &meta, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get document", Err: err}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return nil, &PersistenceError{Op: "decode document metadata", Err: err}
		}
	}
	return &rec, nil
}

func (s *PostgresStore) CreateSection(ctx context.Context, rec *SectionRecord) error {
	box, err := nullableJSON(rec.BoundingBox)
	if err != nil {
		return &PersistenceError{Op: "encode bounding box", Err: err}
	}
	meta, err := nullableJSON(rec.Section.Metadata)
	if err != nil {
		return &PersistenceError{Op: "encode section metadata", Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO document_sections
			(document_id, id, type, idx, page_number, content, preview, length,
			 has_sensitive, patterns, confidence, bounding_box, metadata, selected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.DocumentID, rec.Section.ID, rec.Type, rec.Index, rec.PageNumber,
		rec.Content, rec.Preview, rec.Length, rec.HasSensitiveContent,
		pq.StringArray(rec.SensitivePatterns), rec.Confidence, box, meta, rec.Selected)
	if err != nil {
		return &PersistenceError{Op: "create section", Err: err}
	}
	return nil
}

func (s *PostgresStore) GetSections(ctx context.Context, documentID string) ([]SectionRecord, error) {
	return s.querySections(ctx, documentID, false)
}

func (s *PostgresStore) GetSelectedSections(ctx context.Context, documentID string) ([]SectionRecord, error) {
	return s.querySections(ctx, documentID, true)
}

func (s *PostgresStore) querySections(ctx context.Context, documentID string, selectedOnly bool) ([]SectionRecord, error) {
	query := `
		SELECT document_id, id, type, idx, page_number, content, preview, length,
		       has_sensitive, patterns, confidence, bounding_box, metadata, selected, created_at
		FROM document_sections
		WHERE document_id = $1`
	if selectedOnly {
		query += ` AND selected`
	}
	query += ` ORDER BY idx`

	rows, err := s.db.QueryxContext(ctx, query, documentID)
	if err != nil {
		return nil, &PersistenceError{Op: "query sections", Err: err}
	}
	defer rows.Close()

	var out []SectionRecord
	for rows.Next() {
		var rec SectionRecord
		var pagePtr sql.NullInt64
		var pats pq.StringArray
		var box, meta []byte
		if err := rows.Scan(&rec.DocumentID, &rec.Section.ID, &rec.Type, &rec.Index,
			&pagePtr, &rec.Content, &rec.Preview, &rec.Length, &rec.HasSensitiveContent,
			&pats, &rec.Confidence, &box, &meta, &rec.Selected, &rec.CreatedAt); err != nil {
			return nil, &PersistenceError{Op: "scan section", Err: err}
		}
		if pagePtr.Valid {
			page := int(pagePtr.Int64)
			rec.PageNumber = &page
		}
		rec.SensitivePatterns = []string(pats)
		if len(box) > 0 {
			var bb docparse.BoundingBox
			if err := json.Unmarshal(box, &bb); err == nil {
				rec.BoundingBox = &bb
			}
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &rec.Section.Metadata)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate sections", Err: err}
	}
	return out, nil
}

// UpdateSelectionBulk applies the whole batch inside one transaction. A
// failure on any row rolls back every flag; ids with no matching row are
// not an error.
func (s *PostgresStore) UpdateSelectionBulk(ctx context.Context, documentID string, flags map[string]bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "begin selection update", Err: err}
	}
	defer tx.Rollback()

	for sectionID, selected := range flags {
		if _, err := tx.ExecContext(ctx, `
			UPDATE document_sections SET selected = $3
			WHERE document_id = $1 AND id = $2`,
			documentID, sectionID, selected); err != nil {
			return &PersistenceError{Op: fmt.Sprintf("update selection %s", sectionID), Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "commit selection update", Err: err}
	}
	return nil
}

func nullableJSON(v any) ([]byte, error) {
	switch t := v.(type) {
	case *docparse.BoundingBox:
		if t == nil {
			return nil, nil
		}
	case map[string]string:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*MemoryStore)(nil)
