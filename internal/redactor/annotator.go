// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactor

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docsentry/internal/docparse"
)

// Annotator drives document redaction as a two-phase protocol: an annotate
// phase that is pure with respect to the document structure, and a single
// irreversible commit. Commit refuses to run until every page has been
// annotated, which keeps annotation creation strictly ahead of any
// structural edit: applying redactions page by page while still annotating
// could invalidate the coordinate space of pages not yet visited.
type Annotator struct {
	engine *Engine
	doc    docparse.Document
	opts   Options

	annotated map[int]bool
	areas     []RedactedArea
	pageTexts []string
	committed bool
}

// NewAnnotator starts a redaction run over doc.
func (e *Engine) NewAnnotator(doc docparse.Document, opts Options) *Annotator {
	return &Annotator{
		engine:    e,
		doc:       doc,
		opts:      opts,
		annotated: make(map[int]bool),
		pageTexts: make([]string, doc.PageCount()),
	}
}

// AnnotatePage extracts and classifies one page, records its redaction
// areas and creates redaction annotations for every located match. Safe to
// call for different pages concurrently only if the backend allows it;
// sequential use is the norm. pageNumber is 0-based.
func (a *Annotator) AnnotatePage(pageNumber int) error {
	if a.committed {
		return fmt.Errorf("page %d: annotate after commit", pageNumber)
	}
	if a.annotated[pageNumber] {
		return nil
	}

	page, err := a.doc.LoadPage(pageNumber)
	if err != nil {
		return fmt.Errorf("loading page %d: %w", pageNumber, err)
	}
	text, err := page.ExtractText(true)
	if err != nil {
		return fmt.Errorf("extracting page %d text: %w", pageNumber, err)
	}
	a.pageTexts[pageNumber] = text

	pn := pageNumber
	pageAreas := a.engine.textAreas(text, a.opts, &pn)

	locator, _ := page.(docparse.TextLocator)
	for i := range pageAreas {
		if locator == nil {
			continue
		}
		boxes := locator.LocateText(pageAreas[i].OriginalContent)
		if len(boxes) == 0 {
			continue
		}
		pageAreas[i].BoundingBox = &boxes[0]
		for _, box := range boxes {
			if err := page.CreateRedactionAnnotation(box); err != nil {
				a.engine.logger.Warn("redaction annotation failed",
					zap.Int("page", pageNumber),
					zap.Error(err))
			}
		}
	}

	a.areas = append(a.areas, pageAreas...)
	a.annotated[pageNumber] = true
	return nil
}

// AnnotateAll annotates every page in order.
func (a *Annotator) AnnotateAll() error {
	for i := 0; i < a.doc.PageCount(); i++ {
		if err := a.AnnotatePage(i); err != nil {
			return err
		}
	}
	return nil
}

// Annotated reports whether every page of the document has been annotated.
func (a *Annotator) Annotated() bool {
	return len(a.annotated) == a.doc.PageCount()
}

// Commit applies the recorded redactions page by page, scrubs metadata when
// enabled and returns the run result. The structural edits run strictly
// sequentially across pages. Commit can run once; the annotator is spent
// afterwards.
func (a *Annotator) Commit() (*Result, error) {
	if a.committed {
		return nil, fmt.Errorf("redaction already committed")
	}
	if !a.Annotated() {
		return nil, fmt.Errorf("commit before all pages annotated: %d of %d done",
			len(a.annotated), a.doc.PageCount())
	}
	a.committed = true

	for i := 0; i < a.doc.PageCount(); i++ {
		page, err := a.doc.LoadPage(i)
		if err != nil {
			return nil, fmt.Errorf("loading page %d for commit: %w", i, err)
		}
		if err := page.ApplyRedactions(); err != nil {
			return nil, fmt.Errorf("applying page %d redactions: %w", i, err)
		}
	}

	areas := a.areas
	if a.opts.EnableMetadataRedaction {
		areas = append(areas, scrubMetadata(a.doc, a.engine.logger)...)
	}

	original := strings.Join(a.pageTexts, "\n")
	result := &Result{
		OriginalText:  original,
		RedactedText:  ApplyAreas(original, areas),
		RedactedAreas: areas,
		ExtractedText: original,
		Confidence:    meanConfidence(areas),
	}
	result.Summary = Summarize(areas)
	return result, nil
}

// RedactDocument runs the full two-phase protocol over doc.
func (e *Engine) RedactDocument(doc docparse.Document, opts Options) (*Result, error) {
	done := e.observer.StartTiming("redactor", "redact_document")
	a := e.NewAnnotator(doc, opts)
	if err := a.AnnotateAll(); err != nil {
		done(false, zap.Error(err))
		return nil, err
	}
	result, err := a.Commit()
	if err != nil {
		done(false, zap.Error(err))
		return nil, err
	}
	done(true, zap.Int("areas", len(result.RedactedAreas)))
	return result, nil
}
