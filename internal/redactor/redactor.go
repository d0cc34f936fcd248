// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package redactor computes replacement content for classified matches,
// mutates documents through the parsing capability and produces verifiable
// redaction summaries.
package redactor

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docsentry/internal/classifier"
	"docsentry/internal/docparse"
	"docsentry/internal/observability"
	"docsentry/internal/patterns"
)

// AreaType says which layer of the document an area was redacted from.
type AreaType string

const (
	AreaText     AreaType = "text"
	AreaImage    AreaType = "image"
	AreaMetadata AreaType = "metadata"
)

// metadataPlaceholder replaces scrubbed metadata values. Like the category
// placeholders it contains no digits and can never re-match a pattern.
const metadataPlaceholder = "[METADATA_REDACTED]"

// RedactedArea is one applied redaction. Never mutated after creation.
type RedactedArea struct {
	ID              string                `json:"id"`
	Type            AreaType              `json:"type"`
	OriginalContent string                `json:"originalContent"`
	RedactedContent string                `json:"redactedContent"`
	BoundingBox     *docparse.BoundingBox `json:"boundingBox,omitempty"`
	PageNumber      *int                  `json:"pageNumber,omitempty"`
	Confidence      float64               `json:"confidence"`
	Category        patterns.Category     `json:"category"`
}

// Options gate each redaction category independently.
type Options struct {
	EnablePIIRedaction       bool
	EnableFinancialRedaction bool
	EnableMedicalRedaction   bool
	EnableLegalRedaction     bool
	EnableMetadataRedaction  bool

	// ConfidenceThreshold is the minimum match confidence acted upon.
	// Zero means classifier.DefaultThreshold.
	ConfidenceThreshold float64
}

// DefaultOptions enables every category at the default threshold.
func DefaultOptions() Options {
	return Options{
		EnablePIIRedaction:       true,
		EnableFinancialRedaction: true,
		EnableMedicalRedaction:   true,
		EnableLegalRedaction:     true,
		EnableMetadataRedaction:  true,
		ConfidenceThreshold:      classifier.DefaultThreshold,
	}
}

// enabledCategories translates the toggles into a classifier category set.
// Uncategorized detectors ("other") are never gated.
func (o Options) enabledCategories() map[patterns.Category]bool {
	return map[patterns.Category]bool{
		patterns.CategoryPII:       o.EnablePIIRedaction,
		patterns.CategoryFinancial: o.EnableFinancialRedaction,
		patterns.CategoryMedical:   o.EnableMedicalRedaction,
		patterns.CategoryLegal:     o.EnableLegalRedaction,
		patterns.CategoryOther:     true,
	}
}

func (o Options) threshold() float64 {
	if o.ConfidenceThreshold == 0 {
		return classifier.DefaultThreshold
	}
	return o.ConfidenceThreshold
}

// Result is the outcome of one redaction run.
type Result struct {
	OriginalText  string         `json:"originalText"`
	RedactedText  string         `json:"redactedText"`
	RedactedAreas []RedactedArea `json:"redactedAreas"`
	ExtractedText string         `json:"extractedText"`

	// Confidence is the mean confidence across all areas, or 1.0 when
	// nothing was redacted: an unredacted document is reported as
	// maximally confident, not as untested.
	Confidence float64 `json:"confidence"`

	Summary Summary `json:"redactionSummary"`
}

// Engine performs text and document redaction.
type Engine struct {
	classifier *classifier.Classifier
	logger     *zap.Logger
	observer   *observability.Observer
}

// NewEngine creates a redaction engine over cls.
func NewEngine(cls *classifier.Classifier, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		classifier: cls,
		logger:     logger,
		observer:   observability.NewObserver(logger),
	}
}

// RedactText classifies text with the enabled categories and substitutes a
// category-tagged placeholder for every surviving hit. Substitution is
// first-match-wins: once an original substring has been replaced, later
// identical occurrences are already gone.
func (e *Engine) RedactText(text string, opts Options) *Result {
	areas := e.textAreas(text, opts, nil)
	redacted := ApplyAreas(text, areas)
	result := &Result{
		OriginalText:  text,
		RedactedText:  redacted,
		RedactedAreas: areas,
		ExtractedText: text,
		Confidence:    meanConfidence(areas),
	}
	result.Summary = Summarize(areas)
	return result
}

// textAreas builds one RedactedArea per surviving hit within text.
func (e *Engine) textAreas(text string, opts Options, pageNumber *int) []RedactedArea {
	classified := e.classifier.Classify(text, classifier.Options{
		EnabledCategories: opts.enabledCategories(),
		Threshold:         opts.threshold(),
	})

	areas := make([]RedactedArea, 0, len(classified.Hits))
	for _, hit := range classified.Hits {
		areas = append(areas, RedactedArea{
			ID:              uuid.NewString(),
			Type:            AreaText,
			OriginalContent: hit.Matched,
			RedactedContent: patterns.PlaceholderFor(hit.Category),
			PageNumber:      pageNumber,
			Confidence:      hit.Confidence,
			Category:        hit.Category,
		})
	}
	return areas
}

// ApplyAreas substitutes every area's replacement into a working copy of
// text. Identical substrings beyond the first match are replaced too.
func ApplyAreas(text string, areas []RedactedArea) string {
	out := text
	for _, a := range areas {
		if a.Type != AreaText || a.OriginalContent == "" {
			continue
		}
		out = strings.ReplaceAll(out, a.OriginalContent, a.RedactedContent)
	}
	return out
}

func meanConfidence(areas []RedactedArea) float64 {
	if len(areas) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, a := range areas {
		sum += a.Confidence
	}
	return sum / float64(len(areas))
}

// scrubMetadata clears every standard metadata field and removes any
// embedded XML metadata object, returning one area per cleared field.
func scrubMetadata(doc docparse.Document, logger *zap.Logger) []RedactedArea {
	var areas []RedactedArea
	for _, key := range docparse.StandardMetadataKeys() {
		value := doc.Metadata(key)
		if value == "" {
			continue
		}
		doc.SetMetadata(key, "")
		areas = append(areas, RedactedArea{
			ID:              uuid.NewString(),
			Type:            AreaMetadata,
			OriginalContent: key + ": " + value,
			RedactedContent: metadataPlaceholder,
			Confidence:      1.0,
			Category:        patterns.CategoryOther,
		})
	}
	if err := doc.DeleteMetadataObject(); err != nil {
		logger.Warn("embedded metadata object removal failed", zap.Error(err))
	}
	return areas
}
