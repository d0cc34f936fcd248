// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package docparse

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	cases := []struct {
		mime string
		want bool
	}{
		{"application/pdf", true},
		{"image/jpeg", true},
		{"image/jpg", true},
		{"image/png", true},
		{"image/tiff", true},
		{"IMAGE/JPEG", true},
		{"application/pdf; charset=binary", true},
		{"text/plain", false},
		{"application/msword", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(tc.mime, func(t *testing.T) {
			assert.Equal(t, tc.want, Supported(tc.mime))
		})
	}
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open([]byte("hello"), "text/plain")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestJPEGDocumentBasics(t *testing.T) {
	buf := encodeTestJPEG(t, 80, 60)

	doc, err := Open(buf, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.PageCount())

	_, err = doc.LoadPage(1)
	assert.Error(t, err)

	page, err := doc.LoadPage(0)
	require.NoError(t, err)

	imgs, err := page.ExtractImages()
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.Equal(t, 80, imgs[0].Width)
	assert.Equal(t, 60, imgs[0].Height)

	// A plain encoded JPEG carries no metadata.
	text, err := page.ExtractText(true)
	require.NoError(t, err)
	assert.Empty(t, text)

	// Untouched documents save byte for byte.
	out, err := doc.Save()
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestJPEGRedactionPaintsBox(t *testing.T) {
	buf := encodeTestJPEG(t, 80, 60)
	doc, err := Open(buf, "image/jpeg")
	require.NoError(t, err)

	page, err := doc.LoadPage(0)
	require.NoError(t, err)

	box := BoundingBox{X1: 10, Y1: 10, X2: 40, Y2: 30}
	require.NoError(t, page.CreateRedactionAnnotation(box))
	require.NoError(t, page.ApplyRedactions())

	out, err := doc.Save()
	require.NoError(t, err)

	redacted, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	// Inside the box is black, outside stays light. JPEG is lossy, so
	// compare against loose bounds.
	r, g, b, _ := redacted.At(25, 20).RGBA()
	assert.Less(t, r>>8, uint32(40))
	assert.Less(t, g>>8, uint32(40))
	assert.Less(t, b>>8, uint32(40))

	r, _, _, _ = redacted.At(60, 50).RGBA()
	assert.Greater(t, r>>8, uint32(200))
}

// buildJPEGWithSegments assembles a synthetic JPEG stream from marker
// segments followed by a scan.
func buildJPEGWithSegments(segments ...[]byte) []byte {
	out := []byte{0xFF, 0xD8}
	for _, s := range segments {
		out = append(out, s...)
	}
	// SOS marker and fake entropy-coded data.
	out = append(out, 0xFF, 0xDA, 0x00, 0x02)
	out = append(out, 0xAA, 0xBB, 0xCC)
	out = append(out, 0xFF, 0xD9)
	return out
}

func segment(marker byte, payload []byte) []byte {
	seg := []byte{0xFF, marker, 0, 0}
	binary.BigEndian.PutUint16(seg[2:4], uint16(len(payload)+2))
	return append(seg, payload...)
}

func TestStripJPEGMetadata(t *testing.T) {
	app0 := segment(0xE0, []byte("JFIF\x00"))
	app1 := segment(0xE1, []byte("Exif\x00\x00secret-author"))
	app13 := segment(0xED, []byte("Photoshop 3.0\x00"))
	dqt := segment(0xDB, []byte{0x01, 0x02, 0x03})

	in := buildJPEGWithSegments(app0, app1, app13, dqt)
	out := stripJPEGMetadata(in)

	assert.NotContains(t, string(out), "secret-author")
	assert.NotContains(t, string(out), "Photoshop")
	assert.Contains(t, string(out), "JFIF")
	// The scan data after SOS is preserved verbatim.
	assert.True(t, bytes.HasSuffix(out, []byte{0xAA, 0xBB, 0xCC, 0xFF, 0xD9}))
}

func TestStripJPEGMetadataNonJPEGPassthrough(t *testing.T) {
	in := []byte("not a jpeg")
	assert.Equal(t, in, stripJPEGMetadata(in))
}

type exifEntry struct {
	tag   uint16
	value string
}

// exifSegment builds an APP1 segment carrying a little-endian TIFF block
// with the given IFD0 ASCII tags.
func exifSegment(entries []exifEntry) []byte {
	tiffHdr := []byte{'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00}

	n := len(entries)
	ifd := make([]byte, 2, 2+12*n+4)
	binary.LittleEndian.PutUint16(ifd, uint16(n))

	// Out-of-line values land right after the IFD, offsets relative to
	// the TIFF header.
	valOff := len(tiffHdr) + 2 + 12*n + 4
	var values []byte
	for _, e := range entries {
		entry := make([]byte, 12)
		binary.LittleEndian.PutUint16(entry[0:2], e.tag)
		binary.LittleEndian.PutUint16(entry[2:4], 2) // ASCII
		v := append([]byte(e.value), 0)
		binary.LittleEndian.PutUint32(entry[4:8], uint32(len(v)))
		if len(v) <= 4 {
			copy(entry[8:12], v)
		} else {
			binary.LittleEndian.PutUint32(entry[8:12], uint32(valOff+len(values)))
			values = append(values, v...)
		}
		ifd = append(ifd, entry...)
	}
	ifd = append(ifd, 0, 0, 0, 0) // no next IFD

	payload := append([]byte("Exif\x00\x00"), tiffHdr...)
	payload = append(payload, ifd...)
	payload = append(payload, values...)
	return segment(0xE1, payload)
}

func TestJPEGExifMetadata(t *testing.T) {
	app1 := exifSegment([]exifEntry{
		{0x010E, "confidential brief"}, // ImageDescription
		{0x013B, "Jane Smith"},         // Artist
		{0x9C9B, "Q3 Findings"},        // XPTitle
	})
	buf := buildJPEGWithSegments(app1)

	doc, err := Open(buf, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "confidential brief", doc.Metadata(MetaSubject))
	assert.Equal(t, "Jane Smith", doc.Metadata(MetaAuthor))
	assert.Equal(t, "Q3 Findings", doc.Metadata(MetaTitle))

	page, err := doc.LoadPage(0)
	require.NoError(t, err)
	text, err := page.ExtractText(true)
	require.NoError(t, err)
	assert.Contains(t, text, "author: Jane Smith")
	assert.Contains(t, text, "title: Q3 Findings")
}

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pngChunk assembles one chunk with a valid CRC.
func pngChunk(ctype string, data []byte) []byte {
	out := make([]byte, 4, 12+len(data))
	binary.BigEndian.PutUint32(out, uint32(len(data)))
	out = append(out, ctype...)
	out = append(out, data...)
	crc := crc32.ChecksumIEEE(out[4:])
	var crcBytes [4]byte
	binary.BigEndian.PutUint32(crcBytes[:], crc)
	return append(out, crcBytes[:]...)
}

// insertPNGChunks places chunks right after the IHDR chunk.
func insertPNGChunks(t *testing.T, buf []byte, chunks ...[]byte) []byte {
	t.Helper()
	// signature (8) + IHDR: 4 length + 4 type + 13 data + 4 crc
	ihdrEnd := 8 + 25
	require.Greater(t, len(buf), ihdrEnd)
	out := make([]byte, 0, len(buf)+256)
	out = append(out, buf[:ihdrEnd]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, buf[ihdrEnd:]...)
}

func TestPNGTextChunks(t *testing.T) {
	base := encodeTestPNG(t, 10, 10)
	buf := insertPNGChunks(t, base,
		pngChunk("tEXt", []byte("Author\x00Jane Smith")),
		pngChunk("tEXt", []byte("Comment\x00internal note")),
		pngChunk("iTXt", []byte("Title\x00\x00\x00\x00\x00Q3 Report")),
	)

	doc, err := Open(buf, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "Jane Smith", doc.Metadata(MetaAuthor))
	assert.Equal(t, "Q3 Report", doc.Metadata(MetaTitle))

	page, err := doc.LoadPage(0)
	require.NoError(t, err)
	text, err := page.ExtractText(true)
	require.NoError(t, err)
	assert.Contains(t, text, "author: Jane Smith")
	assert.Contains(t, text, "title: Q3 Report")
	// Non-standard keywords still surface as scannable text.
	assert.Contains(t, text, "Comment: internal note")
}

func TestPNGMetadataScrub(t *testing.T) {
	base := encodeTestPNG(t, 10, 10)
	buf := insertPNGChunks(t, base,
		pngChunk("tEXt", []byte("Author\x00Jane Smith")),
	)

	doc, err := Open(buf, "image/png")
	require.NoError(t, err)
	require.Equal(t, "Jane Smith", doc.Metadata(MetaAuthor))

	doc.SetMetadata(MetaAuthor, "")
	assert.Empty(t, doc.Metadata(MetaAuthor))

	out, err := doc.Save()
	require.NoError(t, err)

	// The scrubbed file no longer carries text chunks and still decodes.
	assert.Empty(t, pngTextChunks(out))
	_, err = png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	reopened, err := Open(out, "image/png")
	require.NoError(t, err)
	assert.Empty(t, reopened.Metadata(MetaAuthor))
}

func TestOpenPNGRejectsNonPNG(t *testing.T) {
	_, err := Open([]byte("definitely not a png"), "image/png")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseITXt(t *testing.T) {
	keyword, text, ok := parseITXt([]byte("Title\x00\x00\x00en\x00Titel\x00Report"))
	require.True(t, ok)
	assert.Equal(t, "Title", keyword)
	assert.Equal(t, "Report", text)

	// Compressed payloads are skipped.
	_, _, ok = parseITXt([]byte("Title\x00\x01\x00\x00\x00data"))
	assert.False(t, ok)

	_, _, ok = parseITXt([]byte("nokeyword"))
	assert.False(t, ok)
}
