package xmlstream

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding identifies the character encoding selected for a byte source.
type Encoding byte

const (
	EncodingUnknown Encoding = iota
	EncodingUTF8
	EncodingUTF16LE
	EncodingUTF16BE
)

func (e Encoding) String() string {
	switch e {
	case EncodingUTF8:
		return "utf-8"
	case EncodingUTF16LE:
		return "utf-16le"
	case EncodingUTF16BE:
		return "utf-16be"
	default:
		return "unknown"
	}
}

// DetectEncoding inspects the first bytes of src to select UTF-8,
// UTF-16LE or UTF-16BE before the tokenizer starts. BOMs are consumed.
// A BOM-less stream starting with "<\0" or "\0<" is classified as UTF-16
// by pattern; everything else defaults to UTF-8. The returned reader
// yields UTF-8 characters regardless of the source encoding.
func DetectEncoding(src io.Reader) (io.Reader, Encoding, error) {
	prefix := make([]byte, 4)
	n, err := io.ReadFull(src, prefix)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, EncodingUnknown, err
	}
	prefix = prefix[:n]

	enc := EncodingUTF8
	consumed := 0
	switch {
	case n >= 3 && prefix[0] == 0xEF && prefix[1] == 0xBB && prefix[2] == 0xBF:
		enc, consumed = EncodingUTF8, 3
	case n >= 2 && prefix[0] == 0xFF && prefix[1] == 0xFE:
		enc, consumed = EncodingUTF16LE, 2
	case n >= 2 && prefix[0] == 0xFE && prefix[1] == 0xFF:
		enc, consumed = EncodingUTF16BE, 2
	case n >= 2 && prefix[0] == 0x3C && prefix[1] == 0x00:
		enc = EncodingUTF16LE
	case n >= 2 && prefix[0] == 0x00 && prefix[1] == 0x3C:
		enc = EncodingUTF16BE
	}

	rest := io.MultiReader(bytes.NewReader(prefix[consumed:]), src)
	return decodedReader(enc, rest), enc, nil
}

// decodedReader wraps src so that it yields UTF-8 characters.
func decodedReader(enc Encoding, src io.Reader) io.Reader {
	switch enc {
	case EncodingUTF16LE:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		return transform.NewReader(src, dec)
	case EncodingUTF16BE:
		dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		return transform.NewReader(src, dec)
	default:
		return src
	}
}

// encodingForLabel maps a prolog encoding label to a supported encoding.
func encodingForLabel(label string) (Encoding, bool) {
	switch strings.ToLower(label) {
	case "utf-8", "utf8", "ascii", "us-ascii":
		return EncodingUTF8, true
	case "utf-16", "utf16":
		// Endianness already fixed by BOM or byte pattern.
		return EncodingUnknown, true
	case "utf-16le":
		return EncodingUTF16LE, true
	case "utf-16be":
		return EncodingUTF16BE, true
	default:
		return EncodingUnknown, false
	}
}

// compatibleLabel reports whether a declared prolog label resolves to the
// same encoding family that detection already selected.
func compatibleLabel(detected Encoding, label string) bool {
	declared, ok := encodingForLabel(label)
	if !ok {
		return false
	}
	if declared == EncodingUnknown {
		// "utf-16" leaves endianness to the BOM or byte pattern.
		return detected == EncodingUTF16LE || detected == EncodingUTF16BE
	}
	return declared == detected
}
