package xmlstream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

// utf16le encodes an ASCII document as UTF-16LE, optionally prefixed
// with a byte order mark.
func utf16le(doc string, bom bool) []byte {
	var buf bytes.Buffer
	if bom {
		buf.Write([]byte{0xFF, 0xFE})
	}
	for i := 0; i < len(doc); i++ {
		buf.WriteByte(doc[i])
		buf.WriteByte(0x00)
	}
	return buf.Bytes()
}

func utf16be(doc string, bom bool) []byte {
	var buf bytes.Buffer
	if bom {
		buf.Write([]byte{0xFE, 0xFF})
	}
	for i := 0; i < len(doc); i++ {
		buf.WriteByte(0x00)
		buf.WriteByte(doc[i])
	}
	return buf.Bytes()
}

func TestDetectEncoding(t *testing.T) {
	testCases := []struct {
		name  string
		input []byte
		enc   Encoding
		want  string
	}{
		{
			name:  "plain utf8",
			input: []byte("<a/>"),
			enc:   EncodingUTF8,
			want:  "<a/>",
		},
		{
			name:  "utf8 bom stripped",
			input: append([]byte{0xEF, 0xBB, 0xBF}, "<a/>"...),
			enc:   EncodingUTF8,
			want:  "<a/>",
		},
		{
			name:  "utf16le bom",
			input: utf16le("<a/>", true),
			enc:   EncodingUTF16LE,
			want:  "<a/>",
		},
		{
			name:  "utf16be bom",
			input: utf16be("<a/>", true),
			enc:   EncodingUTF16BE,
			want:  "<a/>",
		},
		{
			name:  "utf16le by pattern",
			input: utf16le("<a/>", false),
			enc:   EncodingUTF16LE,
			want:  "<a/>",
		},
		{
			name:  "utf16be by pattern",
			input: utf16be("<a/>", false),
			enc:   EncodingUTF16BE,
			want:  "<a/>",
		},
		{
			name:  "short input",
			input: []byte("<"),
			enc:   EncodingUTF8,
			want:  "<",
		},
		{
			name:  "empty input",
			input: nil,
			enc:   EncodingUTF8,
			want:  "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decoded, enc, err := DetectEncoding(bytes.NewReader(tc.input))
			assert.NoError(t, err)
			assert.Equal(t, tc.enc, enc)

			out, err := io.ReadAll(decoded)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, string(out))
		})
	}
}

func TestReadUTF16Document(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-16"?><a t="v">hi</a>`

	for _, tc := range []struct {
		name  string
		input []byte
		enc   Encoding
	}{
		{name: "le with bom", input: utf16le(doc, true), enc: EncodingUTF16LE},
		{name: "be with bom", input: utf16be(doc, true), enc: EncodingUTF16BE},
		{name: "le by pattern", input: utf16le(doc, false), enc: EncodingUTF16LE},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewReader(bytes.NewReader(tc.input), 0, 0)
			assert.NoError(t, err)
			assert.Equal(t, tc.enc, r.DetectedEncoding())

			events, err := drain(r)
			assert.NoError(t, err)
			assert.Equal(t, []ev{
				{EventStartDocument, ""},
				{EventStartElement, "a"},
				{EventCharacters, "hi"},
				{EventEndElement, "a"},
				{EventEndDocument, ""},
			}, events)
		})
	}
}

func TestEncodingLabels(t *testing.T) {
	for label, want := range map[string]Encoding{
		"utf-8":    EncodingUTF8,
		"UTF-8":    EncodingUTF8,
		"us-ascii": EncodingUTF8,
		"utf-16le": EncodingUTF16LE,
		"UTF-16BE": EncodingUTF16BE,
	} {
		enc, ok := encodingForLabel(label)
		assert.True(t, ok, label)
		assert.Equal(t, want, enc, label)
	}

	_, ok := encodingForLabel("iso-8859-1")
	assert.False(t, ok)

	// The family label accepts either detected endianness.
	assert.True(t, compatibleLabel(EncodingUTF16LE, "utf-16"))
	assert.True(t, compatibleLabel(EncodingUTF16BE, "utf-16"))
	assert.False(t, compatibleLabel(EncodingUTF8, "utf-16"))
	assert.True(t, compatibleLabel(EncodingUTF8, "utf-8"))
	assert.False(t, compatibleLabel(EncodingUTF16LE, "utf-8"))
}
