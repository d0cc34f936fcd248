// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package docparse

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"sort"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/tiff"
)

// exifKeyFor maps EXIF field names to the portable metadata keys.
var exifKeyFor = map[exif.FieldName]string{
	exif.ImageDescription: MetaSubject,
	exif.XPTitle:          MetaTitle,
	exif.Artist:           MetaAuthor,
	exif.Copyright:        MetaKeywords,
	exif.Software:         MetaProducer,
	exif.Make:             MetaCreator,
	exif.DateTime:         MetaModDate,
	exif.DateTimeOriginal: MetaCreationDate,
}

// imageDocument is the single-page backend for JPEG and TIFF input. Embedded
// text is whatever the EXIF block carries; raster content is never read for
// text.
type imageDocument struct {
	buf      []byte
	mimeType string

	meta      map[string]string
	metaDirty map[string]string
	scrubbed  bool

	pending []BoundingBox
	applied []BoundingBox
}

func openImage(buf []byte, mimeType string) (Document, error) {
	d := &imageDocument{
		buf:       buf,
		mimeType:  mimeType,
		meta:      make(map[string]string),
		metaDirty: make(map[string]string),
	}

	// A missing or unreadable EXIF block is not an error; the image just
	// has no embedded metadata.
	if x, err := exif.Decode(bytes.NewReader(buf)); err == nil {
		for field, key := range exifKeyFor {
			if tag, err := x.Get(field); err == nil {
				if s, err := tag.StringVal(); err == nil && s != "" {
					d.meta[key] = strings.TrimSpace(s)
				}
			}
		}
	}
	return d, nil
}

func (d *imageDocument) PageCount() int { return 1 }

func (d *imageDocument) LoadPage(index int) (Page, error) {
	if index != 0 {
		return nil, fmt.Errorf("page index %d out of range for single-page image", index)
	}
	return &imagePage{doc: d}, nil
}

func (d *imageDocument) Metadata(key string) string {
	if v, ok := d.metaDirty[key]; ok {
		return v
	}
	return d.meta[key]
}

func (d *imageDocument) SetMetadata(key, value string) {
	d.metaDirty[key] = value
	d.scrubbed = true
}

func (d *imageDocument) DeleteMetadataObject() error {
	d.scrubbed = true
	return nil
}

// Save re-encodes the image when metadata was scrubbed or redactions were
// applied; otherwise the original bytes pass through unchanged.
func (d *imageDocument) Save() ([]byte, error) {
	if d.scrubbed {
		d.meta = mergeMeta(d.meta, d.metaDirty)
		d.metaDirty = make(map[string]string)
	}
	if !d.scrubbed && len(d.applied) == 0 {
		return d.buf, nil
	}

	out := d.buf
	if d.mimeType == "image/jpeg" && d.scrubbed {
		out = stripJPEGMetadata(out)
	}
	if len(d.applied) > 0 || (d.scrubbed && d.mimeType == "image/tiff") {
		redone, err := reencodeWithRedactions(out, d.mimeType, d.applied)
		if err != nil {
			return nil, err
		}
		out = redone
	}
	return out, nil
}

// imagePage is the single implicit page of an image document.
type imagePage struct {
	doc *imageDocument
}

// ExtractText returns the textual metadata embedded in the image, one
// "key: value" line per field. Raster content is never interpreted.
func (p *imagePage) ExtractText(preserveWhitespace bool) (string, error) {
	meta := mergeMeta(p.doc.meta, p.doc.metaDirty)
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := meta[k]
		if !preserveWhitespace {
			v = collapseSpaces(v)
		}
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	return b.String(), nil
}

func (p *imagePage) ExtractImages() ([]Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(p.doc.buf))
	if err != nil {
		return nil, fmt.Errorf("decoding image dimensions: %w", err)
	}
	return []Image{{
		Box:    BoundingBox{X2: float64(cfg.Width), Y2: float64(cfg.Height)},
		Width:  cfg.Width,
		Height: cfg.Height,
	}}, nil
}

func (p *imagePage) ExtractFormFields() ([]FormField, error)   { return nil, nil }
func (p *imagePage) ExtractLinks() ([]Link, error)             { return nil, nil }
func (p *imagePage) ExtractAnnotations() ([]Annotation, error) { return nil, nil }

func (p *imagePage) CreateRedactionAnnotation(box BoundingBox) error {
	p.doc.pending = append(p.doc.pending, box)
	return nil
}

func (p *imagePage) ApplyRedactions() error {
	p.doc.applied = append(p.doc.applied, p.doc.pending...)
	p.doc.pending = nil
	return nil
}

// reencodeWithRedactions decodes the image, paints the redaction boxes black
// and re-encodes in the original format. Re-encoding drops every ancillary
// metadata segment as a side effect.
func reencodeWithRedactions(buf []byte, mimeType string, boxes []BoundingBox) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)
	for _, b := range boxes {
		rect := image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2)).Intersect(rgba.Bounds())
		draw.Draw(rgba, rect, image.NewUniform(color.Black), image.Point{}, draw.Src)
	}

	var out bytes.Buffer
	switch mimeType {
	case "image/jpeg":
		err = jpeg.Encode(&out, rgba, &jpeg.Options{Quality: 90})
	case "image/tiff":
		err = tiff.Encode(&out, rgba, nil)
	case "image/png":
		err = encodePNG(&out, rgba)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
	if err != nil {
		return nil, fmt.Errorf("re-encoding image: %w", err)
	}
	return out.Bytes(), nil
}

// stripJPEGMetadata removes APP1 (EXIF/XMP) and APP13 (IRB) segments from a
// JPEG byte stream. Everything from the SOS marker on is copied verbatim.
func stripJPEGMetadata(buf []byte) []byte {
	if len(buf) < 4 || buf[0] != 0xFF || buf[1] != 0xD8 {
		return buf
	}
	out := make([]byte, 0, len(buf))
	out = append(out, 0xFF, 0xD8)

	i := 2
	for i+4 <= len(buf) {
		if buf[i] != 0xFF {
			break
		}
		marker := buf[i+1]
		if marker == 0xDA { // start of scan, rest is entropy-coded data
			out = append(out, buf[i:]...)
			return out
		}
		segLen := int(binary.BigEndian.Uint16(buf[i+2 : i+4]))
		end := i + 2 + segLen
		if segLen < 2 || end > len(buf) {
			break
		}
		if marker != 0xE1 && marker != 0xED {
			out = append(out, buf[i:end]...)
		}
		i = end
	}
	out = append(out, buf[i:]...)
	return out
}
