// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package docparse

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	ltpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// infoKeyFor maps the portable metadata keys to PDF info dictionary keys.
var infoKeyFor = map[string]string{
	MetaTitle:        "Title",
	MetaAuthor:       "Author",
	MetaSubject:      "Subject",
	MetaKeywords:     "Keywords",
	MetaCreator:      "Creator",
	MetaProducer:     "Producer",
	MetaCreationDate: "CreationDate",
	MetaModDate:      "ModDate",
}

// pdfDocument combines pdfcpu for document structure and mutation with
// ledongthuc/pdf for page-level content extraction.
type pdfDocument struct {
	buf  []byte
	conf *model.Configuration
	ctx  *model.Context
	lt   *ltpdf.Reader

	meta      map[string]string
	metaDirty map[string]string
	xmpGone   bool

	// pending redaction boxes per 1-based page number
	pending map[int][]BoundingBox
}

func openPDF(buf []byte) (Document, error) {
	conf := model.NewDefaultConfiguration()

	ctx, err := api.ReadContext(bytes.NewReader(buf), conf)
	if err != nil {
		if isPasswordErr(err) {
			return nil, fmt.Errorf("%w: %v", ErrEncryptedDocument, err)
		}
		return nil, fmt.Errorf("reading PDF: %w", err)
	}
	if ctx.Encrypt != nil {
		return nil, ErrEncryptedDocument
	}
	// Read alone leaves the page count unset; resolve it from the page
	// tree root before anyone asks.
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("reading PDF page tree: %w", err)
	}

	d := &pdfDocument{
		buf:       buf,
		conf:      conf,
		ctx:       ctx,
		meta:      make(map[string]string),
		metaDirty: make(map[string]string),
		pending:   make(map[int][]BoundingBox),
	}
	d.readInfoDict()

	// The extraction reader is optional: a structurally odd but readable
	// PDF still exposes structure and metadata through pdfcpu.
	if lt, err := ltpdf.NewReader(bytes.NewReader(buf), int64(len(buf))); err == nil {
		d.lt = lt
	}
	return d, nil
}

func isPasswordErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}

func (d *pdfDocument) PageCount() int { return d.ctx.PageCount }

func (d *pdfDocument) LoadPage(index int) (Page, error) {
	if index < 0 || index >= d.ctx.PageCount {
		return nil, fmt.Errorf("page index %d out of range [0,%d)", index, d.ctx.PageCount)
	}
	return &pdfPage{doc: d, pageNr: index + 1}, nil
}

// readInfoDict pulls the standard fields out of the PDF info dictionary.
func (d *pdfDocument) readInfoDict() {
	if d.ctx.Info == nil {
		return
	}
	dict, err := d.ctx.DereferenceDict(*d.ctx.Info)
	if err != nil || dict == nil {
		return
	}
	for key, pdfKey := range infoKeyFor {
		if s := stringFromObject(dict[pdfKey]); s != "" {
			d.meta[key] = s
		}
	}
}

func stringFromObject(o types.Object) string {
	switch v := o.(type) {
	case types.StringLiteral:
		return v.Value()
	case types.HexLiteral:
		return v.Value()
	}
	return ""
}

func (d *pdfDocument) Metadata(key string) string {
	if v, ok := d.metaDirty[key]; ok {
		return v
	}
	return d.meta[key]
}

func (d *pdfDocument) SetMetadata(key, value string) {
	d.metaDirty[key] = value
}

func (d *pdfDocument) DeleteMetadataObject() error {
	root, err := d.ctx.Catalog()
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	delete(root, "Metadata")
	d.xmpGone = true
	return nil
}

// Save applies pending metadata writes and serializes the document.
func (d *pdfDocument) Save() ([]byte, error) {
	if len(d.metaDirty) > 0 {
		if err := d.flushInfoDict(); err != nil {
			return nil, err
		}
	}
	var w bytes.Buffer
	if err := api.WriteContext(d.ctx, &w); err != nil {
		return nil, fmt.Errorf("writing PDF: %w", err)
	}
	return w.Bytes(), nil
}

func (d *pdfDocument) flushInfoDict() error {
	var dict types.Dict
	if d.ctx.Info != nil {
		var err error
		dict, err = d.ctx.DereferenceDict(*d.ctx.Info)
		if err != nil {
			return fmt.Errorf("reading info dict: %w", err)
		}
	}
	if dict == nil {
		dict = types.NewDict()
		ref, err := d.ctx.IndRefForNewObject(dict)
		if err != nil {
			return fmt.Errorf("allocating info dict: %w", err)
		}
		d.ctx.Info = ref
	}
	for key, value := range d.metaDirty {
		pdfKey, ok := infoKeyFor[key]
		if !ok {
			pdfKey = key
		}
		if value == "" {
			delete(dict, pdfKey)
			continue
		}
		dict[pdfKey] = types.StringLiteral(value)
	}
	d.meta = mergeMeta(d.meta, d.metaDirty)
	d.metaDirty = make(map[string]string)
	return nil
}

func mergeMeta(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// pdfPage is one loaded PDF page. pageNr is 1-based, matching pdfcpu.
type pdfPage struct {
	doc    *pdfDocument
	pageNr int
}

// textRow is one horizontal row of text with its source runs retained so
// substring matches can be located on the page.
type textRow struct {
	y     float64
	text  string
	runs  []*ltpdf.Text // one entry per byte of text; nil for inserted spacing
	maxFS float64
}

func (p *pdfPage) ltPage() (ltpdf.Page, error) {
	if p.doc.lt == nil {
		return ltpdf.Page{}, fmt.Errorf("page %d: no content reader available", p.pageNr)
	}
	pg := p.doc.lt.Page(p.pageNr)
	if pg.V.IsNull() {
		return ltpdf.Page{}, fmt.Errorf("page %d: null page object", p.pageNr)
	}
	return pg, nil
}

// rows extracts the page text as top-to-bottom rows with per-byte run
// provenance.
func (p *pdfPage) rows() ([]textRow, error) {
	pg, err := p.ltPage()
	if err != nil {
		return nil, err
	}
	raw, err := pg.GetTextByRow()
	if err != nil {
		return nil, fmt.Errorf("page %d: row extraction: %w", p.pageNr, err)
	}

	var rows []textRow
	for _, r := range raw {
		if r == nil || len(r.Content) == 0 {
			continue
		}
		row := textRow{y: float64(r.Position)}
		var prev *ltpdf.Text
		for i := range r.Content {
			t := &r.Content[i]
			if t.S == "" {
				continue
			}
			// Insert a space when there is a visible horizontal gap
			// between runs.
			if prev != nil && t.X-(prev.X+prev.W) > prev.FontSize*0.2 {
				row.text += " "
				row.runs = append(row.runs, nil)
			}
			for range []byte(t.S) {
				row.runs = append(row.runs, t)
			}
			row.text += t.S
			if t.FontSize > row.maxFS {
				row.maxFS = t.FontSize
			}
			prev = t
		}
		if strings.TrimSpace(row.text) == "" {
			continue
		}
		rows = append(rows, row)
	}

	// Top of page first. PDF y grows upward.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })
	return rows, nil
}

func (p *pdfPage) ExtractText(preserveWhitespace bool) (string, error) {
	rows, err := p.rows()
	if err != nil {
		// Fall back to the plain extractor before giving up.
		if pg, perr := p.ltPage(); perr == nil {
			if s, terr := pg.GetPlainText(nil); terr == nil {
				return s, nil
			}
		}
		return "", err
	}

	var b strings.Builder
	var prevY, prevFS float64
	for i, r := range rows {
		if i > 0 {
			b.WriteString("\n")
			// A vertical gap well beyond the line height marks a
			// paragraph boundary.
			gap := prevY - r.y
			lineHeight := prevFS
			if lineHeight == 0 {
				lineHeight = 12
			}
			if gap > lineHeight*1.8 {
				b.WriteString("\n")
			}
		}
		line := r.text
		if !preserveWhitespace {
			line = collapseSpaces(line)
		}
		b.WriteString(line)
		prevY, prevFS = r.y, r.maxFS
	}
	return b.String(), nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// LocateText returns the bounding boxes of every row-contained occurrence of
// s on the page. Matches spanning rows are not located.
func (p *pdfPage) LocateText(s string) []BoundingBox {
	if s == "" {
		return nil
	}
	rows, err := p.rows()
	if err != nil {
		return nil
	}
	var boxes []BoundingBox
	for _, r := range rows {
		from := 0
		for {
			i := strings.Index(r.text[from:], s)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(s)
			box, ok := runSpanBox(r, start, end)
			if ok {
				boxes = append(boxes, box)
			}
			from = end
		}
	}
	return boxes
}

func runSpanBox(r textRow, start, end int) (BoundingBox, bool) {
	x1, x2 := 0.0, 0.0
	found := false
	for i := start; i < end && i < len(r.runs); i++ {
		t := r.runs[i]
		if t == nil {
			continue
		}
		if !found {
			x1, x2 = t.X, t.X+t.W
			found = true
			continue
		}
		if t.X < x1 {
			x1 = t.X
		}
		if t.X+t.W > x2 {
			x2 = t.X + t.W
		}
	}
	if !found {
		return BoundingBox{}, false
	}
	height := r.maxFS
	if height == 0 {
		height = 12
	}
	return BoundingBox{X1: x1, Y1: r.y, X2: x2, Y2: r.y + height}, true
}

func (p *pdfPage) ExtractImages() ([]Image, error) {
	pg, err := p.ltPage()
	if err != nil {
		return nil, err
	}
	xobj := pg.V.Key("Resources").Key("XObject")
	if xobj.Kind() != ltpdf.Dict {
		return nil, nil
	}

	var images []Image
	for _, name := range xobj.Keys() {
		v := xobj.Key(name)
		if v.Kind() != ltpdf.Stream || v.Key("Subtype").Name() != "Image" {
			continue
		}
		img := Image{
			Width:  int(v.Key("Width").Int64()),
			Height: int(v.Key("Height").Int64()),
		}
		img.Box = BoundingBox{X2: float64(img.Width), Y2: float64(img.Height)}
		if rc := v.Reader(); rc != nil {
			if raw, err := io.ReadAll(rc); err == nil {
				img.Raw = raw
			}
			rc.Close()
		}
		images = append(images, img)
	}
	return images, nil
}

// annots returns the page's annotation dictionaries.
func (p *pdfPage) annots() ([]ltpdf.Value, error) {
	pg, err := p.ltPage()
	if err != nil {
		return nil, err
	}
	arr := pg.V.Key("Annots")
	if arr.Kind() != ltpdf.Array {
		return nil, nil
	}
	var out []ltpdf.Value
	for i := 0; i < arr.Len(); i++ {
		if v := arr.Index(i); v.Kind() == ltpdf.Dict {
			out = append(out, v)
		}
	}
	return out, nil
}

func (p *pdfPage) ExtractFormFields() ([]FormField, error) {
	annots, err := p.annots()
	if err != nil {
		return nil, err
	}
	var fields []FormField
	for _, a := range annots {
		if a.Key("Subtype").Name() != "Widget" {
			continue
		}
		f := FormField{
			Type: fieldTypeName(a.Key("FT").Name()),
			Name: a.Key("T").Text(),
		}
		if v := a.Key("V"); !v.IsNull() {
			switch v.Kind() {
			case ltpdf.String:
				f.Value = v.Text()
			case ltpdf.Name:
				f.Value = v.Name()
			}
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func fieldTypeName(ft string) string {
	switch ft {
	case "Tx":
		return "text"
	case "Btn":
		return "button"
	case "Ch":
		return "choice"
	case "Sig":
		return "signature"
	case "":
		return "field"
	}
	return strings.ToLower(ft)
}

func (p *pdfPage) ExtractLinks() ([]Link, error) {
	annots, err := p.annots()
	if err != nil {
		return nil, err
	}
	var links []Link
	for _, a := range annots {
		if a.Key("Subtype").Name() != "Link" {
			continue
		}
		uri := a.Key("A").Key("URI")
		if uri.Kind() != ltpdf.String {
			continue
		}
		links = append(links, Link{URI: uri.Text(), Box: rectBox(a.Key("Rect"))})
	}
	return links, nil
}

func rectBox(v ltpdf.Value) BoundingBox {
	if v.Kind() != ltpdf.Array || v.Len() != 4 {
		return BoundingBox{}
	}
	return BoundingBox{
		X1: v.Index(0).Float64(),
		Y1: v.Index(1).Float64(),
		X2: v.Index(2).Float64(),
		Y2: v.Index(3).Float64(),
	}
}

func (p *pdfPage) ExtractAnnotations() ([]Annotation, error) {
	annots, err := p.annots()
	if err != nil {
		return nil, err
	}
	var out []Annotation
	for _, a := range annots {
		sub := a.Key("Subtype").Name()
		switch sub {
		case "Widget", "Link", "":
			continue
		}
		ann := Annotation{Type: strings.ToLower(sub)}
		if c := a.Key("Contents"); c.Kind() == ltpdf.String {
			ann.Text = c.Text()
		}
		if ann.Text == "" {
			ann.Text = "[" + ann.Type + " annotation]"
		}
		out = append(out, ann)
	}
	return out, nil
}

func (p *pdfPage) CreateRedactionAnnotation(box BoundingBox) error {
	p.doc.pending[p.pageNr] = append(p.doc.pending[p.pageNr], box)
	return nil
}

// ApplyRedactions draws an opaque rectangle over every pending box by
// appending a content stream to the page. Irreversible with respect to the
// rendered output; callers sequence this after all annotation passes.
func (p *pdfPage) ApplyRedactions() error {
	boxes := p.doc.pending[p.pageNr]
	if len(boxes) == 0 {
		return nil
	}
	delete(p.doc.pending, p.pageNr)

	var b bytes.Buffer
	b.WriteString("q\n0 0 0 rg\n")
	for _, bb := range boxes {
		fmt.Fprintf(&b, "%.2f %.2f %.2f %.2f re f\n", bb.X1, bb.Y1, bb.X2-bb.X1, bb.Y2-bb.Y1)
	}
	b.WriteString("Q\n")

	sd, err := p.doc.ctx.NewStreamDictForBuf(b.Bytes())
	if err != nil {
		return fmt.Errorf("page %d: building redaction stream: %w", p.pageNr, err)
	}
	if err := sd.Encode(); err != nil {
		return fmt.Errorf("page %d: encoding redaction stream: %w", p.pageNr, err)
	}
	ref, err := p.doc.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return fmt.Errorf("page %d: allocating redaction stream: %w", p.pageNr, err)
	}

	pageDict, _, _, err := p.doc.ctx.PageDict(p.pageNr, false)
	if err != nil {
		return fmt.Errorf("page %d: loading page dict: %w", p.pageNr, err)
	}
	switch contents := pageDict["Contents"].(type) {
	case types.IndirectRef:
		pageDict["Contents"] = types.Array{contents, *ref}
	case types.Array:
		pageDict["Contents"] = append(contents, *ref)
	default:
		pageDict["Contents"] = *ref
	}
	return nil
}
