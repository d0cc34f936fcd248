// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package sections turns loaded document pages into typed, addressable
// content sections ready for classification and review.
package sections

import (
	"fmt"
	"sort"
	"strings"

	"docsentry/internal/docparse"
)

// Type identifies the kind of content a section carries.
type Type string

const (
	TypeText       Type = "text"
	TypeImage      Type = "image"
	TypeMetadata   Type = "metadata"
	TypeForm       Type = "form"
	TypeLink       Type = "link"
	TypeAnnotation Type = "annotation"
)

// Content is the closed set of section payloads. Exactly one implementation
// exists per section type, carrying only the fields that type needs.
type Content interface {
	Kind() Type
	// Text renders the payload as the scannable text representation.
	Text() string

	sealed()
}

// TextBlock is one paragraph-level block of page text.
type TextBlock struct {
	Body string
}

func (t TextBlock) Kind() Type   { return TypeText }
func (t TextBlock) Text() string { return t.Body }
func (TextBlock) sealed()        {}

// ImageRegion is one embedded image. Only dimensions and placement are
// carried; raster content is never scanned.
type ImageRegion struct {
	Box    docparse.BoundingBox
	Width  int
	Height int
}

func (i ImageRegion) Kind() Type { return TypeImage }
func (i ImageRegion) Text() string {
	return fmt.Sprintf("[image %dx%d]", i.Width, i.Height)
}
func (ImageRegion) sealed() {}

// MetadataBlock is the document-level metadata, one entry per field.
type MetadataBlock struct {
	Fields map[string]string
}

func (m MetadataBlock) Kind() Type { return TypeMetadata }
func (m MetadataBlock) Text() string {
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, m.Fields[k])
	}
	return b.String()
}
func (MetadataBlock) sealed() {}

// FormField is one interactive form field.
type FormField struct {
	FieldType string
	FieldName string
	Value     string
}

func (f FormField) Kind() Type { return TypeForm }
func (f FormField) Text() string {
	s := strings.TrimSpace(f.FieldType + " " + f.FieldName)
	if f.Value != "" {
		s += ": " + f.Value
	}
	return s
}
func (FormField) sealed() {}

// LinkTarget is one hyperlink annotation.
type LinkTarget struct {
	URI string
	Box docparse.BoundingBox
}

func (l LinkTarget) Kind() Type   { return TypeLink }
func (l LinkTarget) Text() string { return l.URI }
func (LinkTarget) sealed()        {}

// Note is one free-form annotation.
type Note struct {
	AnnotationType string
	Body           string
}

func (n Note) Kind() Type   { return TypeAnnotation }
func (n Note) Text() string { return n.Body }
func (Note) sealed()        {}

// previewLimit caps the display preview length.
const previewLimit = 100

// Section is one addressable unit of document content. All fields are fixed
// at creation; the user-facing selection flag lives outside the section, in
// the selection store.
type Section struct {
	ID                  string                `json:"id"`
	Type                Type                  `json:"type"`
	Index               int                   `json:"index"`
	PageNumber          *int                  `json:"pageNumber,omitempty"`
	Content             string                `json:"content"`
	Preview             string                `json:"preview"`
	Length              int                   `json:"length"`
	HasSensitiveContent bool                  `json:"hasSensitiveContent"`
	SensitivePatterns   []string              `json:"sensitivePatterns,omitempty"`
	Confidence          float64               `json:"confidence"`
	BoundingBox         *docparse.BoundingBox `json:"boundingBox,omitempty"`
	Metadata            map[string]string     `json:"metadata,omitempty"`

	// Payload is the typed variant behind Content. Not serialized; the
	// flat fields above are the persisted representation.
	Payload Content `json:"-"`
}

// Preview truncates s for display.
func Preview(s string) string {
	if len(s) <= previewLimit {
		return s
	}
	return s[:previewLimit] + "..."
}
