// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package store persists document analyses, their sections and the user's
// per-section selection flags.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docsentry/internal/sections"
)

// DocumentStatus is the analysis lifecycle state.
type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusAnalyzing DocumentStatus = "analyzing"
	StatusCompleted DocumentStatus = "completed"
	StatusFailed    DocumentStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// PersistenceError wraps a storage failure. Fatal for the operation that
// hit it; bulk selection updates roll back as a whole.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DocumentRecord is one analyzed document.
type DocumentRecord struct {
	ID                string            `db:"id" json:"documentId"`
	FileName          string            `db:"file_name" json:"fileName"`
	FileType          string            `db:"file_type" json:"fileType"`
	FileSize          int64             `db:"file_size" json:"fileSize"`
	Status            DocumentStatus    `db:"status" json:"analysisStatus"`
	TotalSections     int               `db:"total_sections" json:"totalSections"`
	SensitiveSections int               `db:"sensitive_sections" json:"sensitiveSections"`
	Metadata          map[string]string `db:"-" json:"metadata,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updatedAt"`
}

// SectionRecord is one persisted section row with its selection flag. The
// flag is logically external to the section's content identity: every
// section starts selected and only the user flips it.
type SectionRecord struct {
	DocumentID string `json:"documentId"`
	sections.Section
	Selected  bool      `json:"selected"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistence capability consumed by the analyzer and the
// selection service. Writes are atomic and isolated per document.
type Store interface {
	CreateDocument(ctx context.Context, rec *DocumentRecord) error
	UpdateDocumentStatus(ctx context.Context, documentID string, status DocumentStatus, totalSections, sensitiveSections int) error
	GetDocument(ctx context.Context, documentID string) (*DocumentRecord, error)

	CreateSection(ctx context.Context, rec *SectionRecord) error
	GetSections(ctx context.Context, documentID string) ([]SectionRecord, error)

	// UpdateSelectionBulk applies all flags atomically. Ids that do not
	// exist are tolerated; every valid id in the batch is applied.
	UpdateSelectionBulk(ctx context.Context, documentID string, flags map[string]bool) error
	GetSelectedSections(ctx context.Context, documentID string) ([]SectionRecord, error)
}
