// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package docparse exposes loaded documents as pages with extractable text,
// images, form fields, links and annotations, plus the mutation calls the
// redaction engine needs. Backends exist for PDF and raster image input.
package docparse

import (
	"errors"
	"fmt"
	"strings"
)

// Standard metadata keys shared by all backends.
const (
	MetaTitle        = "title"
	MetaAuthor       = "author"
	MetaSubject      = "subject"
	MetaKeywords     = "keywords"
	MetaCreator      = "creator"
	MetaProducer     = "producer"
	MetaCreationDate = "creationDate"
	MetaModDate      = "modDate"
)

// StandardMetadataKeys lists every key cleared by a metadata scrub.
func StandardMetadataKeys() []string {
	return []string{
		MetaTitle, MetaAuthor, MetaSubject, MetaKeywords,
		MetaCreator, MetaProducer, MetaCreationDate, MetaModDate,
	}
}

var (
	// ErrUnsupportedFormat means the MIME type has no backend.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEncryptedDocument means the input requires a password.
	ErrEncryptedDocument = errors.New("document is password protected")
)

// BoundingBox is a rectangle in page coordinates.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Image is one embedded raster or vector image region on a page.
type Image struct {
	Box    BoundingBox
	Width  int
	Height int
	// Raw holds the embedded image bytes when the backend can surface
	// them. May be nil; only dimensions are guaranteed.
	Raw []byte
}

// FormField is one interactive form field.
type FormField struct {
	Type  string
	Name  string
	Value string
}

// Link is one hyperlink annotation.
type Link struct {
	URI string
	Box BoundingBox
}

// Annotation is one free-form annotation.
type Annotation struct {
	Type string
	Text string
}

// Page is a single loaded page.
type Page interface {
	// ExtractText returns the embedded text of the page. With
	// preserveWhitespace the raw layout spacing is kept; otherwise runs
	// of whitespace are normalized within lines.
	ExtractText(preserveWhitespace bool) (string, error)

	ExtractImages() ([]Image, error)
	ExtractFormFields() ([]FormField, error)
	ExtractLinks() ([]Link, error)
	ExtractAnnotations() ([]Annotation, error)

	// CreateRedactionAnnotation records a pending redaction over box.
	// Nothing is mutated until ApplyRedactions.
	CreateRedactionAnnotation(box BoundingBox) error

	// ApplyRedactions structurally applies every pending redaction on
	// this page. Irreversible.
	ApplyRedactions() error
}

// TextLocator is implemented by pages that can locate the bounding boxes of
// a text occurrence. Callers type-assert; pages without positional data
// simply yield no boxes.
type TextLocator interface {
	LocateText(s string) []BoundingBox
}

// Document is a loaded, mutable document.
type Document interface {
	PageCount() int
	LoadPage(index int) (Page, error)

	Metadata(key string) string
	SetMetadata(key, value string)

	// DeleteMetadataObject removes any embedded XML metadata object.
	DeleteMetadataObject() error

	// Save serializes the document including any applied mutations.
	Save() ([]byte, error)
}

// Open loads a document from an in-memory buffer. It returns
// ErrEncryptedDocument for password-protected input and
// ErrUnsupportedFormat for a MIME type with no backend.
func Open(buf []byte, mimeType string) (Document, error) {
	switch normalizeMIME(mimeType) {
	case "application/pdf":
		return openPDF(buf)
	case "image/jpeg", "image/tiff":
		return openImage(buf, normalizeMIME(mimeType))
	case "image/png":
		return openPNG(buf)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
}

// Supported reports whether a backend exists for mimeType.
func Supported(mimeType string) bool {
	switch normalizeMIME(mimeType) {
	case "application/pdf", "image/jpeg", "image/tiff", "image/png":
		return true
	}
	return false
}

func normalizeMIME(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.Index(m, ";"); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	if m == "image/jpg" {
		m = "image/jpeg"
	}
	return m
}
