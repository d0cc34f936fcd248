// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package docparse

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// pngKeyFor maps the standard PNG text keywords to portable metadata keys.
var pngKeyFor = map[string]string{
	"Title":         MetaTitle,
	"Author":        MetaAuthor,
	"Description":   MetaSubject,
	"Copyright":     MetaKeywords,
	"Software":      MetaProducer,
	"Source":        MetaCreator,
	"Creation Time": MetaCreationDate,
}

// pngDocument is the single-page backend for PNG input. Embedded text lives
// in tEXt and iTXt chunks.
type pngDocument struct {
	imageDocument
	// extraText holds non-standard text keywords that have no portable
	// metadata key, keyed by the original keyword.
	extraText map[string]string
}

func openPNG(buf []byte) (Document, error) {
	if !bytes.HasPrefix(buf, pngSignature) {
		return nil, fmt.Errorf("%w: not a PNG stream", ErrUnsupportedFormat)
	}
	d := &pngDocument{
		imageDocument: imageDocument{
			buf:       buf,
			mimeType:  "image/png",
			meta:      make(map[string]string),
			metaDirty: make(map[string]string),
		},
		extraText: make(map[string]string),
	}

	for keyword, text := range pngTextChunks(buf) {
		if key, ok := pngKeyFor[keyword]; ok {
			d.meta[key] = text
		} else {
			d.extraText[keyword] = text
		}
	}
	return d, nil
}

func (d *pngDocument) LoadPage(index int) (Page, error) {
	if index != 0 {
		return nil, fmt.Errorf("page index %d out of range for single-page image", index)
	}
	return &pngPage{imagePage{doc: &d.imageDocument}, d}, nil
}

// Save drops every text chunk when scrubbed, then paints redactions.
func (d *pngDocument) Save() ([]byte, error) {
	if d.scrubbed {
		d.meta = mergeMeta(d.meta, d.metaDirty)
		d.metaDirty = make(map[string]string)
		d.extraText = make(map[string]string)
	}
	if !d.scrubbed && len(d.applied) == 0 {
		return d.buf, nil
	}
	out := d.buf
	if d.scrubbed {
		out = stripPNGTextChunks(out)
	}
	if len(d.applied) > 0 {
		redone, err := reencodeWithRedactions(out, "image/png", d.applied)
		if err != nil {
			return nil, err
		}
		out = redone
	}
	return out, nil
}

type pngPage struct {
	imagePage
	doc *pngDocument
}

func (p *pngPage) ExtractText(preserveWhitespace bool) (string, error) {
	base, err := p.imagePage.ExtractText(preserveWhitespace)
	if err != nil {
		return "", err
	}
	if len(p.doc.extraText) == 0 || p.doc.scrubbed {
		return base, nil
	}
	var b strings.Builder
	b.WriteString(base)
	for keyword, text := range p.doc.extraText {
		if !preserveWhitespace {
			text = collapseSpaces(text)
		}
		fmt.Fprintf(&b, "%s: %s\n", keyword, text)
	}
	return b.String(), nil
}

func encodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// pngTextChunks parses tEXt and uncompressed iTXt chunks into keyword/text
// pairs. Malformed chunks end the walk; whatever parsed so far is returned.
func pngTextChunks(buf []byte) map[string]string {
	out := make(map[string]string)
	i := len(pngSignature)
	for i+8 <= len(buf) {
		length := int(binary.BigEndian.Uint32(buf[i : i+4]))
		ctype := string(buf[i+4 : i+8])
		dataStart := i + 8
		dataEnd := dataStart + length
		if dataEnd+4 > len(buf) {
			break
		}
		data := buf[dataStart:dataEnd]

		switch ctype {
		case "tEXt":
			if j := bytes.IndexByte(data, 0); j > 0 {
				out[string(data[:j])] = string(data[j+1:])
			}
		case "iTXt":
			if keyword, text, ok := parseITXt(data); ok {
				out[keyword] = text
			}
		case "IEND":
			return out
		}
		i = dataEnd + 4 // skip CRC
	}
	return out
}

func parseITXt(data []byte) (string, string, bool) {
	j := bytes.IndexByte(data, 0)
	if j <= 0 || j+3 > len(data) {
		return "", "", false
	}
	keyword := string(data[:j])
	compressed := data[j+1] != 0
	if compressed {
		return "", "", false
	}
	rest := data[j+3:] // skip compression flag and method
	// skip language tag and translated keyword
	for range 2 {
		k := bytes.IndexByte(rest, 0)
		if k < 0 {
			return "", "", false
		}
		rest = rest[k+1:]
	}
	return keyword, string(rest), true
}

// stripPNGTextChunks removes tEXt, zTXt, iTXt and eXIf chunks.
func stripPNGTextChunks(buf []byte) []byte {
	out := make([]byte, 0, len(buf))
	out = append(out, pngSignature...)

	i := len(pngSignature)
	for i+8 <= len(buf) {
		length := int(binary.BigEndian.Uint32(buf[i : i+4]))
		ctype := string(buf[i+4 : i+8])
		end := i + 8 + length + 4
		if end > len(buf) {
			out = append(out, buf[i:]...)
			return out
		}
		switch ctype {
		case "tEXt", "zTXt", "iTXt", "eXIf":
			// dropped
		default:
			out = append(out, buf[i:end]...)
		}
		i = end
	}
	out = append(out, buf[i:]...)
	return out
}
