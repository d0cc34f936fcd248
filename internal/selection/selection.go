// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package selection tracks which sections the user has approved for
// release. Every new section starts selected: the system is permissive by
// default and relies on classification plus human review to opt sections
// out. Selection is independent of sensitivity: a flagged section may stay
// selected and a clean one may be deselected.
package selection

import (
	"context"

	"go.uber.org/zap"

	"docsentry/internal/store"
)

// Service exposes the selection workflow over the persistence capability.
// Construct one per store; it holds no state of its own.
type Service struct {
	store  store.Store
	logger *zap.Logger
}

// NewService creates a selection service.
func NewService(st store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger}
}

// SetSelection flips one section's flag.
func (s *Service) SetSelection(ctx context.Context, documentID, sectionID string, selected bool) error {
	return s.BulkSetSelection(ctx, documentID, map[string]bool{sectionID: selected})
}

// BulkSetSelection applies a batch of flags atomically: either every flag in
// the batch lands or none does. Ids that reference no section are tolerated
// without disturbing the valid entries.
func (s *Service) BulkSetSelection(ctx context.Context, documentID string, flags map[string]bool) error {
	if len(flags) == 0 {
		return nil
	}
	if err := s.store.UpdateSelectionBulk(ctx, documentID, flags); err != nil {
		return err
	}
	s.logger.Debug("selection updated",
		zap.String("document_id", documentID),
		zap.Int("flags", len(flags)))
	return nil
}

// GetSelected returns the sections currently approved for release, in
// document order.
func (s *Service) GetSelected(ctx context.Context, documentID string) ([]store.SectionRecord, error) {
	return s.store.GetSelectedSections(ctx, documentID)
}
