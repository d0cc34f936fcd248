// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package sections

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docsentry/internal/classifier"
	"docsentry/internal/docparse"
)

// Extractor walks loaded pages and emits classified sections. One extractor
// serves one document analysis; Index and ID assignment are sequential
// across calls.
type Extractor struct {
	classifier *classifier.Classifier
	opts       classifier.Options
	logger     *zap.Logger

	next        int
	metaEmitted bool
}

// NewExtractor creates an extractor that classifies every emitted section
// with cls under opts.
func NewExtractor(cls *classifier.Classifier, opts classifier.Options, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{classifier: cls, opts: opts, logger: logger}
}

// MetadataSection emits the document-level metadata section. Emitted at most
// once per extractor; later calls return nil. Returns nil as well when the
// document carries no metadata.
func (e *Extractor) MetadataSection(doc docparse.Document) *Section {
	if e.metaEmitted {
		return nil
	}
	e.metaEmitted = true

	fields := make(map[string]string)
	for _, key := range docparse.StandardMetadataKeys() {
		if v := doc.Metadata(key); v != "" {
			fields[key] = v
		}
	}
	if len(fields) == 0 {
		return nil
	}
	s := e.newSection(MetadataBlock{Fields: fields}, nil, nil)
	s.Metadata = fields
	return &s
}

// PageSections emits every section of one page in the fixed order: text
// blocks, images, form fields, links, annotations. A failing unit is logged
// and skipped; it never aborts the page or the document.
func (e *Extractor) PageSections(page docparse.Page, pageNumber int) []Section {
	var out []Section

	text, err := page.ExtractText(true)
	if err != nil {
		e.logUnitFailure("text", pageNumber, err)
	} else {
		for _, block := range SegmentText(text) {
			out = append(out, e.newSection(TextBlock{Body: block}, &pageNumber, nil))
		}
	}

	images, err := page.ExtractImages()
	if err != nil {
		e.logUnitFailure("image", pageNumber, err)
	}
	for _, img := range images {
		box := img.Box
		out = append(out, e.newImageSection(ImageRegion{Box: box, Width: img.Width, Height: img.Height}, pageNumber, &box))
	}

	fields, err := page.ExtractFormFields()
	if err != nil {
		e.logUnitFailure("form", pageNumber, err)
	}
	for _, f := range fields {
		out = append(out, e.newSection(FormField{FieldType: f.Type, FieldName: f.Name, Value: f.Value}, &pageNumber, nil))
	}

	links, err := page.ExtractLinks()
	if err != nil {
		e.logUnitFailure("link", pageNumber, err)
	}
	for _, l := range links {
		box := l.Box
		out = append(out, e.newSection(LinkTarget{URI: l.URI, Box: box}, &pageNumber, &box))
	}

	annots, err := page.ExtractAnnotations()
	if err != nil {
		e.logUnitFailure("annotation", pageNumber, err)
	}
	for _, a := range annots {
		out = append(out, e.newSection(Note{AnnotationType: a.Type, Body: a.Text}, &pageNumber, nil))
	}

	return out
}

func (e *Extractor) logUnitFailure(unit string, pageNumber int, err error) {
	e.logger.Warn("extraction unit failed, skipping",
		zap.String("unit", unit),
		zap.Int("page", pageNumber),
		zap.Error(err))
}

// newSection builds a classified section from a payload.
func (e *Extractor) newSection(payload Content, pageNumber *int, box *docparse.BoundingBox) Section {
	content := payload.Text()
	result := e.classifier.Classify(content, e.opts)

	confidence := 1.0
	if result.HasSensitiveContent() {
		confidence = result.MaxConfidence()
	}

	index := e.next
	s := Section{
		ID:                  e.nextID(payload.Kind()),
		Type:                payload.Kind(),
		Index:               index,
		PageNumber:          pageNumber,
		Content:             content,
		Preview:             Preview(content),
		Length:              len(content),
		HasSensitiveContent: result.HasSensitiveContent(),
		SensitivePatterns:   result.PatternNames(),
		Confidence:          confidence,
		BoundingBox:         box,
		Payload:             payload,
	}
	return s
}

// newImageSection builds an image section. Images are inherently safe: only
// embedded text is ever scanned, never raster content, so they are never
// flagged and carry full confidence.
func (e *Extractor) newImageSection(payload ImageRegion, pageNumber int, box *docparse.BoundingBox) Section {
	content := payload.Text()
	index := e.next
	return Section{
		ID:          e.nextID(TypeImage),
		Type:        TypeImage,
		Index:       index,
		PageNumber:  &pageNumber,
		Content:     content,
		Preview:     Preview(content),
		Length:      len(content),
		Confidence:  1.0,
		BoundingBox: box,
		Payload:     payload,
	}
}

func (e *Extractor) nextID(t Type) string {
	id := fmt.Sprintf("%s-%03d", t, e.next)
	e.next++
	return id
}

// SegmentText splits page text into blocks at blank-line boundaries. When
// the text has no blank lines, each non-empty line becomes its own block.
func SegmentText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	normalized := strings.ReplaceAll(text, "\r\n", "\n")

	var blocks []string
	for _, raw := range strings.Split(normalized, "\n\n") {
		if b := strings.TrimSpace(raw); b != "" {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) > 1 {
		return blocks
	}

	// No blank-line boundaries: fall back to single-line segmentation.
	var lines []string
	for _, raw := range strings.Split(normalized, "\n") {
		if l := strings.TrimSpace(raw); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
