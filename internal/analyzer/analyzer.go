// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package analyzer runs the end-to-end document analysis pipeline: load,
// extract sections page by page, classify, persist and report.
package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docsentry/internal/classifier"
	"docsentry/internal/docparse"
	"docsentry/internal/observability"
	"docsentry/internal/sections"
	"docsentry/internal/store"
)

// Analysis is the full pipeline output for one document: its ordered
// sections plus aggregate counts and status.
type Analysis struct {
	store.DocumentRecord
	Sections []store.SectionRecord `json:"sections"`
}

// Analyzer orchestrates document analyses. All collaborators are injected;
// analyses of different documents are independent and may run concurrently.
type Analyzer struct {
	store      store.Store
	classifier *classifier.Classifier
	opts       classifier.Options
	logger     *zap.Logger
	observer   *observability.Observer

	// open is the document loader, swappable in tests.
	open func(buf []byte, mimeType string) (docparse.Document, error)
}

// New creates an analyzer that classifies sections with cls under opts.
func New(st store.Store, cls *classifier.Classifier, opts classifier.Options, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		store:      st,
		classifier: cls,
		opts:       opts,
		logger:     logger,
		observer:   observability.NewObserver(logger),
		open:       docparse.Open,
	}
}

// Analyze runs the pipeline for one document buffer. The persisted record
// always reaches a terminal state: completed on success, failed on any
// error. "analyzing" is never left behind as an observed end state. There
// is no cancellation beyond ctx; callers wanting abandonment discard the
// result and re-query status later.
func (a *Analyzer) Analyze(ctx context.Context, buf []byte, fileName, fileType string) (*Analysis, error) {
	rec := &store.DocumentRecord{
		ID:       uuid.NewString(),
		FileName: fileName,
		FileType: fileType,
		FileSize: int64(len(buf)),
		Status:   store.StatusPending,
	}
	if err := a.store.CreateDocument(ctx, rec); err != nil {
		return nil, err
	}
	if err := a.store.UpdateDocumentStatus(ctx, rec.ID, store.StatusAnalyzing, 0, 0); err != nil {
		return nil, err
	}
	rec.Status = store.StatusAnalyzing

	done := a.observer.StartTiming("analyzer", "analyze")
	analysis, err := a.run(ctx, rec, buf, fileType)
	done(err == nil, zap.String("document_id", rec.ID), zap.String("file_type", fileType))
	if err != nil {
		a.markFailed(ctx, rec.ID)
		rec.Status = store.StatusFailed
		return &Analysis{DocumentRecord: *rec}, err
	}
	return analysis, nil
}

func (a *Analyzer) run(ctx context.Context, rec *store.DocumentRecord, buf []byte, fileType string) (analysis *Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("analysis panicked",
				zap.String("document_id", rec.ID),
				zap.Any("panic", r))
			analysis = nil
			err = fmt.Errorf("analysis failed: %v", r)
		}
	}()

	if !docparse.Supported(fileType) {
		return nil, fmt.Errorf("%w: %s", docparse.ErrUnsupportedFormat, fileType)
	}

	doc, err := a.open(buf, fileType)
	if err != nil {
		if errors.Is(err, docparse.ErrEncryptedDocument) {
			return nil, err
		}
		return nil, fmt.Errorf("opening document: %w", err)
	}

	extractor := sections.NewExtractor(a.classifier, a.opts, a.logger)
	var all []sections.Section

	if meta := extractor.MetadataSection(doc); meta != nil {
		all = append(all, *meta)
	}
	for i := 0; i < doc.PageCount(); i++ {
		page, err := doc.LoadPage(i)
		if err != nil {
			// One unreadable page never aborts the document.
			a.logger.Warn("page load failed, skipping",
				zap.String("document_id", rec.ID),
				zap.Int("page", i),
				zap.Error(err))
			continue
		}
		all = append(all, extractor.PageSections(page, i)...)
	}

	recs := make([]store.SectionRecord, 0, len(all))
	sensitive := 0
	for _, s := range all {
		if s.HasSensitiveContent {
			sensitive++
		}
		sr := store.SectionRecord{
			DocumentID: rec.ID,
			Section:    s,
			Selected:   true,
		}
		if err := a.store.CreateSection(ctx, &sr); err != nil {
			return nil, err
		}
		recs = append(recs, sr)
	}

	if err := a.store.UpdateDocumentStatus(ctx, rec.ID, store.StatusCompleted, len(all), sensitive); err != nil {
		return nil, err
	}
	rec.Status = store.StatusCompleted
	rec.TotalSections = len(all)
	rec.SensitiveSections = sensitive

	a.logger.Info("analysis completed",
		zap.String("document_id", rec.ID),
		zap.String("file_name", rec.FileName),
		zap.Int("sections", len(all)),
		zap.Int("sensitive", sensitive))

	return &Analysis{DocumentRecord: *rec, Sections: recs}, nil
}

func (a *Analyzer) markFailed(ctx context.Context, documentID string) {
	if err := a.store.UpdateDocumentStatus(ctx, documentID, store.StatusFailed, 0, 0); err != nil {
		a.logger.Error("failed to mark document failed",
			zap.String("document_id", documentID),
			zap.Error(err))
	}
}

// GetAnalysis returns the persisted analysis for a document.
func (a *Analyzer) GetAnalysis(ctx context.Context, documentID string) (*Analysis, error) {
	rec, err := a.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	secs, err := a.store.GetSections(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &Analysis{DocumentRecord: *rec, Sections: secs}, nil
}

// GetSections returns a document's sections, optionally restricted to one
// 0-based page.
func (a *Analyzer) GetSections(ctx context.Context, documentID string, pageNumber *int) ([]store.SectionRecord, error) {
	secs, err := a.store.GetSections(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if pageNumber == nil {
		return secs, nil
	}
	var out []store.SectionRecord
	for _, s := range secs {
		if s.PageNumber != nil && *s.PageNumber == *pageNumber {
			out = append(out, s)
		}
	}
	return out, nil
}
