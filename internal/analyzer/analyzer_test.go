// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"docsentry/internal/classifier"
	"docsentry/internal/docparse"
	"docsentry/internal/patterns"
	"docsentry/internal/sections"
	"docsentry/internal/store"
)

// fakePage implements docparse.Page with fixed text.
type fakePage struct {
	text string
}

func (p *fakePage) ExtractText(bool) (string, error)                    { return p.text, nil }
func (p *fakePage) ExtractImages() ([]docparse.Image, error)            { return nil, nil }
func (p *fakePage) ExtractFormFields() ([]docparse.FormField, error)    { return nil, nil }
func (p *fakePage) ExtractLinks() ([]docparse.Link, error)              { return nil, nil }
func (p *fakePage) ExtractAnnotations() ([]docparse.Annotation, error)  { return nil, nil }
func (p *fakePage) CreateRedactionAnnotation(docparse.BoundingBox) error { return nil }
func (p *fakePage) ApplyRedactions() error                              { return nil }

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
func (d *fakeDoc) Metadata(key string) string    { return d.meta[key] }
func (d *fakeDoc) SetMetadata(key, value string) {}
func (d *fakeDoc) DeleteMetadataObject() error   { return nil }
func (d *fakeDoc) Save() ([]byte, error)         { return nil, nil }

func newTestAnalyzer(t *testing.T, doc docparse.Document, openErr error) (*Analyzer, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	cls := classifier.New(patterns.DefaultCatalog(), nil, nil)
	a := New(st, cls, classifier.Options{}, nil)
	a.open = func([]byte, string) (docparse.Document, error) {
		if openErr != nil {
			return nil, openErr
		}
		return doc, nil
	}
	return a, st
}

func TestAnalyzeCompletes(t *testing.T) {
	doc := &fakeDoc{
		pages: []*fakePage{
			{text: "Contact john.doe@example.com\n\nClean paragraph"},
			{text: "call 415-555-0100"},
		},
		meta: map[string]string{docparse.MetaAuthor: "Jane Smith"},
	}
	a, st := newTestAnalyzer(t, doc, nil)
	ctx := context.Background()

	analysis, err := a.Analyze(ctx, []byte("%PDF"), "report.pdf", "application/pdf")
	require.NoError(t, err)

	assert.NoError(t, uuid.Validate(analysis.ID))
	assert.Equal(t, store.StatusCompleted, analysis.Status)
	assert.Equal(t, "report.pdf", analysis.FileName)

	// metadata + 2 text blocks on page 0 + 1 on page 1
	require.Len(t, analysis.Sections, 4)
	assert.Equal(t, 4, analysis.TotalSections)
	assert.Equal(t, 2, analysis.SensitiveSections)

	// Everything persists selected by default.
	for _, s := range analysis.Sections {
		assert.True(t, s.Selected)
	}

	persisted, err := st.GetDocument(ctx, analysis.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, persisted.Status)
	assert.Equal(t, 2, persisted.SensitiveSections)
}

func TestAnalyzeUnsupportedType(t *testing.T) {
	a, st := newTestAnalyzer(t, &fakeDoc{}, nil)
	ctx := context.Background()

	analysis, err := a.Analyze(ctx, []byte("hello"), "notes.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	require.ErrorIs(t, err, docparse.ErrUnsupportedFormat)

	// The record still reaches a terminal state.
	require.NotNil(t, analysis)
	persisted, err := st.GetDocument(ctx, analysis.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, persisted.Status)
	assert.True(t, persisted.Status.Terminal())
}

func TestAnalyzeEncryptedDocument(t *testing.T) {
	a, st := newTestAnalyzer(t, nil, docparse.ErrEncryptedDocument)
	ctx := context.Background()

	analysis, err := a.Analyze(ctx, []byte("%PDF"), "locked.pdf", "application/pdf")
	require.ErrorIs(t, err, docparse.ErrEncryptedDocument)

	persisted, err := st.GetDocument(ctx, analysis.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, persisted.Status)
}

func TestAnalyzeSurvivesPanic(t *testing.T) {
	a, st := newTestAnalyzer(t, &fakeDoc{}, nil)
	a.open = func([]byte, string) (docparse.Document, error) {
		panic("backend exploded")
	}
	ctx := context.Background()

	analysis, err := a.Analyze(ctx, []byte("%PDF"), "bad.pdf", "application/pdf")
	require.Error(t, err)

	persisted, err := st.GetDocument(ctx, analysis.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, persisted.Status)
}

func TestGetSectionsByPage(t *testing.T) {
	doc := &fakeDoc{pages: []*fakePage{
		{text: "page zero"},
		{text: "page one"},
	}}
	a, _ := newTestAnalyzer(t, doc, nil)
	ctx := context.Background()

	analysis, err := a.Analyze(ctx, []byte("%PDF"), "r.pdf", "application/pdf")
	require.NoError(t, err)

	all, err := a.GetSections(ctx, analysis.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	page := 1
	one, err := a.GetSections(ctx, analysis.ID, &page)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "page one", one[0].Content)
}

func TestExportJSON(t *testing.T) {
	doc := &fakeDoc{pages: []*fakePage{{text: "mail a.b@example.com"}}}
	a, _ := newTestAnalyzer(t, doc, nil)
	ctx := context.Background()

	analysis, err := a.Analyze(ctx, []byte("%PDF"), "r.pdf", "application/pdf")
	require.NoError(t, err)

	data, err := a.ExportJSON(ctx, analysis.ID)
	require.NoError(t, err)

	var export Export
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, analysis.ID, export.DocumentID)
	assert.Equal(t, "r.pdf", export.FileName)
	require.Len(t, export.Sections, 1)
	assert.Equal(t, 1, export.Summary.TotalSections)
	assert.Equal(t, 1, export.Summary.SensitiveSections)
	assert.Equal(t, 1, export.Summary.SelectedSections)
	assert.Equal(t, "completed", export.Summary.Status)
	assert.Equal(t, 1, export.Summary.ByType[string(sections.TypeText)])
}

func TestExportJSONUnknownDocument(t *testing.T) {
	a, _ := newTestAnalyzer(t, &fakeDoc{}, nil)
	_, err := a.ExportJSON(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetTextHierarchy(t *testing.T) {
	doc := &fakeDoc{pages: []*fakePage{{
		text: "INTRODUCTION\n\nThis is the opening paragraph.\n\n1.1 Background\n\nDetails of the background.\n\nCONCLUSION\n\nFinal words.",
	}}}
	a, _ := newTestAnalyzer(t, doc, nil)
	ctx := context.Background()

	analysis, err := a.Analyze(ctx, []byte("%PDF"), "r.pdf", "application/pdf")
	require.NoError(t, err)

	nodes, err := a.GetTextHierarchy(ctx, analysis.ID, 0)
	require.NoError(t, err)

	// Two top-level ALL-CAPS headings.
	require.Len(t, nodes, 2)
	assert.Equal(t, "INTRODUCTION", nodes[0].Content)
	assert.True(t, nodes[0].Heading)
	assert.Equal(t, "CONCLUSION", nodes[1].Content)

	// Under the introduction: a paragraph, then a level-2 numbered heading
	// with its own paragraph.
	intro := nodes[0]
	require.Len(t, intro.Children, 2)
	assert.False(t, intro.Children[0].Heading)
	assert.Equal(t, "1.1 Background", intro.Children[1].Content)
	assert.True(t, intro.Children[1].Heading)
	require.Len(t, intro.Children[1].Children, 1)
	assert.Equal(t, "Details of the background.", intro.Children[1].Children[0].Content)
}

func TestHeadingLevel(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		level   int
		heading bool
	}{
		{"markdown h1", "# Title", 1, true},
		{"markdown h3", "### Deep", 3, true},
		{"hash without space", "#hashtag", bodyLevel, false},
		{"numbered top", "2 Scope of work", 1, true},
		{"numbered nested", "2.1.3 Details", 3, true},
		{"all caps", "EXECUTIVE SUMMARY", 1, true},
		{"all caps too long", "THIS HEADING IS FAR TOO LONG TO BE TREATED AS A SECTION HEADING BY ANYONE", bodyLevel, false},
		{"body", "A normal sentence.", bodyLevel, false},
		{"multi line", "ALL CAPS\nbut two lines", bodyLevel, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			level, heading := headingLevel(tc.input)
			assert.Equal(t, tc.level, level)
			assert.Equal(t, tc.heading, heading)
		})
	}
}

func TestAnalyzeTimesRuns(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	st := store.NewMemoryStore()
	cls := classifier.New(patterns.DefaultCatalog(), nil, nil)

	a := New(st, cls, classifier.Options{}, zap.New(core))
	a.open = func([]byte, string) (docparse.Document, error) {
		return &fakeDoc{pages: []*fakePage{{text: "clean"}}}, nil
	}

	_, err := a.Analyze(context.Background(), []byte("%PDF"), "x.pdf", "application/pdf")
	require.NoError(t, err)

	timed := logs.FilterMessage("operation completed").All()
	require.NotEmpty(t, timed)
	fields := timed[0].ContextMap()
	assert.Equal(t, "analyzer", fields["component"])
	assert.Equal(t, "analyze", fields["operation"])
	assert.Equal(t, true, fields["success"])
}

func TestAnalyzeTimesFailures(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	st := store.NewMemoryStore()
	cls := classifier.New(patterns.DefaultCatalog(), nil, nil)

	a := New(st, cls, classifier.Options{}, zap.New(core))
	a.open = func([]byte, string) (docparse.Document, error) {
		return nil, docparse.ErrEncryptedDocument
	}

	_, err := a.Analyze(context.Background(), []byte("%PDF"), "x.pdf", "application/pdf")
	require.Error(t, err)

	failed := logs.FilterMessage("operation failed").All()
	require.NotEmpty(t, failed)
	assert.Equal(t, false, failed[0].ContextMap()["success"])
}
