// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package sections

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsentry/internal/classifier"
	"docsentry/internal/docparse"
	"docsentry/internal/patterns"
)

// fakePage implements docparse.Page with canned content.
type fakePage struct {
	text    string
	textErr error
	images  []docparse.Image
	fields  []docparse.FormField
	links   []docparse.Link
	annots  []docparse.Annotation
}

func (p *fakePage) ExtractText(bool) (string, error)                  { return p.text, p.textErr }
func (p *fakePage) ExtractImages() ([]docparse.Image, error)          { return p.images, nil }
func (p *fakePage) ExtractFormFields() ([]docparse.FormField, error)  { return p.fields, nil }
func (p *fakePage) ExtractLinks() ([]docparse.Link, error)            { return p.links, nil }
func (p *fakePage) ExtractAnnotations() ([]docparse.Annotation, error) {
	return p.annots, nil
}
func (p *fakePage) CreateRedactionAnnotation(docparse.BoundingBox) error { return nil }
func (p *fakePage) ApplyRedactions() error                               { return nil }

// fakeDoc implements docparse.Document over fake pages.
type fakeDoc struct {
	pages []*fakePage
	meta  map[string]string
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }
func (d *fakeDoc) LoadPage(i int) (docparse.Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, errors.New("page out of range")
	}
	return d.pages[i], nil
}
func (d *fakeDoc) Metadata(key string) string { return d.meta[key] }
func (d *fakeDoc) SetMetadata(key, value string) {
	if d.meta == nil {
		d.meta = make(map[string]string)
	}
	d.meta[key] = value
}
func (d *fakeDoc) DeleteMetadataObject() error { return nil }
func (d *fakeDoc) Save() ([]byte, error)       { return nil, nil }

func newTestExtractor() *Extractor {
	cls := classifier.New(patterns.DefaultCatalog(), nil, nil)
	return NewExtractor(cls, classifier.Options{}, nil)
}

func TestSegmentText(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"whitespace only", "  \n \n ", nil},
		{"paragraphs", "first block\n\nsecond block\n\nthird", []string{"first block", "second block", "third"}},
		{"windows line endings", "first\r\n\r\nsecond", []string{"first", "second"}},
		{"no blank lines falls back to lines", "alpha\nbravo\ncharlie", []string{"alpha", "bravo", "charlie"}},
		{"single line", "just one line", []string{"just one line"}},
		{"trims block whitespace", "  padded  \n\n next ", []string{"padded", "next"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SegmentText(tc.input))
		})
	}
}

func TestPageSectionsOrderAndIndexing(t *testing.T) {
	e := newTestExtractor()
	page := &fakePage{
		text:   "first paragraph\n\nsecond paragraph",
		images: []docparse.Image{{Width: 640, Height: 480}},
		fields: []docparse.FormField{{Type: "text", Name: "applicant"}},
		links:  []docparse.Link{{URI: "https://example.com"}},
		annots: []docparse.Annotation{{Type: "Text", Text: "reviewed"}},
	}

	secs := e.PageSections(page, 0)
	require.Len(t, secs, 6)

	wantTypes := []Type{TypeText, TypeText, TypeImage, TypeForm, TypeLink, TypeAnnotation}
	for i, s := range secs {
		assert.Equal(t, wantTypes[i], s.Type, "position %d", i)
		assert.Equal(t, i, s.Index)
		require.NotNil(t, s.PageNumber)
		assert.Equal(t, 0, *s.PageNumber)
	}

	// Ids embed the type and the sequential index.
	assert.Equal(t, "text-000", secs[0].ID)
	assert.Equal(t, "text-001", secs[1].ID)
	assert.Equal(t, "image-002", secs[2].ID)
}

func TestPageSectionsSensitiveText(t *testing.T) {
	e := newTestExtractor()
	page := &fakePage{text: "Contact john.doe@example.com\n\nNothing here"}

	secs := e.PageSections(page, 2)
	require.Len(t, secs, 2)

	assert.True(t, secs[0].HasSensitiveContent)
	assert.Equal(t, []string{"email"}, secs[0].SensitivePatterns)
	assert.InDelta(t, 0.9, secs[0].Confidence, 1e-9)

	assert.False(t, secs[1].HasSensitiveContent)
	assert.Equal(t, 1.0, secs[1].Confidence)
}

func TestImageSectionsNeverFlagged(t *testing.T) {
	e := newTestExtractor()
	page := &fakePage{images: []docparse.Image{{Width: 100, Height: 50}}}

	secs := e.PageSections(page, 0)
	require.Len(t, secs, 1)
	assert.Equal(t, TypeImage, secs[0].Type)
	assert.False(t, secs[0].HasSensitiveContent)
	assert.Equal(t, 1.0, secs[0].Confidence)
	assert.Equal(t, "[image 100x50]", secs[0].Content)
}

func TestPageSectionsTextFailureSkipsUnit(t *testing.T) {
	e := newTestExtractor()
	page := &fakePage{
		textErr: errors.New("corrupt stream"),
		links:   []docparse.Link{{URI: "https://example.com"}},
	}

	secs := e.PageSections(page, 0)
	require.Len(t, secs, 1)
	assert.Equal(t, TypeLink, secs[0].Type)
}

func TestMetadataSection(t *testing.T) {
	e := newTestExtractor()
	doc := &fakeDoc{meta: map[string]string{
		docparse.MetaAuthor: "Jane Smith",
		docparse.MetaTitle:  "Q3 Report",
	}}

	s := e.MetadataSection(doc)
	require.NotNil(t, s)
	assert.Equal(t, TypeMetadata, s.Type)
	assert.Nil(t, s.PageNumber)
	assert.Contains(t, s.Content, "author: Jane Smith")
	assert.Contains(t, s.Content, "title: Q3 Report")
	assert.Equal(t, doc.meta, s.Metadata)

	// Emitted at most once per extractor.
	assert.Nil(t, e.MetadataSection(doc))
}

func TestMetadataSectionEmpty(t *testing.T) {
	e := newTestExtractor()
	assert.Nil(t, e.MetadataSection(&fakeDoc{}))
}

func TestPreviewTruncation(t *testing.T) {
	short := "short content"
	assert.Equal(t, short, Preview(short))

	long := strings.Repeat("a", 150)
	got := Preview(long)
	assert.Len(t, got, 103)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestContentVariantRendering(t *testing.T) {
	cases := []struct {
		name    string
		payload Content
		kind    Type
		text    string
	}{
		{"text", TextBlock{Body: "hello"}, TypeText, "hello"},
		{"image", ImageRegion{Width: 10, Height: 20}, TypeImage, "[image 10x20]"},
		{"form with value", FormField{FieldType: "text", FieldName: "name", Value: "Ann"}, TypeForm, "text name: Ann"},
		{"form without value", FormField{FieldType: "button", FieldName: "submit"}, TypeForm, "button submit"},
		{"link", LinkTarget{URI: "https://example.com"}, TypeLink, "https://example.com"},
		{"annotation", Note{AnnotationType: "Text", Body: "comment"}, TypeAnnotation, "comment"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, tc.payload.Kind())
			assert.Equal(t, tc.text, tc.payload.Text())
		})
	}
}
