// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same atomicity guarantees as
// the database-backed one. Used by tests and single-shot CLI runs.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*DocumentRecord
	sections  map[string][]*SectionRecord // keyed by document id, insertion order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*DocumentRecord),
		sections:  make(map[string][]*SectionRecord),
	}
}

func (m *MemoryStore) CreateDocument(_ context.Context, rec *DocumentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	cp := *rec
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.documents[rec.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateDocumentStatus(_ context.Context, documentID string, status DocumentStatus, totalSections, sensitiveSections int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.Status = status
	doc.TotalSections = totalSections
	doc.SensitiveSections = sensitiveSections
	doc.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) GetDocument(_ context.Context, documentID string) (*DocumentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *MemoryStore) CreateSection(_ context.Context, rec *SectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.CreatedAt = time.Now()
	m.sections[rec.DocumentID] = append(m.sections[rec.DocumentID], &cp)
	return nil
}

func (m *MemoryStore) GetSections(_ context.Context, documentID string) ([]SectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(documentID, false), nil
}

func (m *MemoryStore) UpdateSelectionBulk(_ context.Context, documentID string, flags map[string]bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[documentID]; !ok {
		return ErrNotFound
	}
	// Single critical section: the whole batch becomes visible at once.
	// Unknown section ids are tolerated and simply skipped.
	for _, rec := range m.sections[documentID] {
		if selected, ok := flags[rec.Section.ID]; ok {
			rec.Selected = selected
		}
	}
	return nil
}

func (m *MemoryStore) GetSelectedSections(_ context.Context, documentID string) ([]SectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(documentID, true), nil
}

func (m *MemoryStore) snapshot(documentID string, selectedOnly bool) []SectionRecord {
	recs := m.sections[documentID]
	out := make([]SectionRecord, 0, len(recs))
	for _, rec := range recs {
		if selectedOnly && !rec.Selected {
			continue
		}
		out = append(out, *rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
