package xmlstream

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// maxEntityDepth bounds nested re-expansion when a replacement text
// itself contains entity references.
const maxEntityDepth = 8

var builtinEntities = map[string]string{
	"lt":   "<",
	"gt":   ">",
	"amp":  "&",
	"apos": "'",
	"quot": "\"",
}

// EntityTable maps entity names to replacement text. It is pre-seeded
// with the five XML built-ins and may be extended by the caller at any
// time, including between events of an active parse.
type EntityTable struct {
	custom map[string]string
	maxLen int
}

// NewEntityTable creates a table holding only the built-in entities.
func NewEntityTable() *EntityTable {
	return &EntityTable{maxLen: 1}
}

// Set registers or replaces a custom entity mapping.
func (t *EntityTable) Set(name, replacement string) {
	if t.custom == nil {
		t.custom = make(map[string]string, 8)
	}
	t.custom[name] = replacement
	if len(replacement) > t.maxLen {
		t.maxLen = len(replacement)
	}
}

// MaxReplacementLen reports the longest replacement text registered.
// Callers sizing scratch buffers ahead of expansion can use it as an
// upper bound per reference.
func (t *EntityTable) MaxReplacementLen() int {
	if t == nil {
		return 1
	}
	return t.maxLen
}

// Resolve looks up an entity by name, consulting the built-ins first.
func (t *EntityTable) Resolve(name []byte) (string, bool) {
	if v, ok := builtinEntities[string(name)]; ok {
		return v, true
	}
	if t == nil || t.custom == nil {
		return "", false
	}
	v, ok := t.custom[string(name)]
	return v, ok
}

// AppendReplacement resolves the reference between '&' and ';' (passed
// without the delimiters) and appends its expansion to dst. Numeric
// character references decode to the referenced code point; named
// replacements that contain further references are re-expanded up to
// maxEntityDepth levels.
func (t *EntityTable) AppendReplacement(dst []byte, ref []byte) ([]byte, error) {
	return t.appendReplacement(dst, ref, 0)
}

func (t *EntityTable) appendReplacement(dst []byte, ref []byte, depth int) ([]byte, error) {
	if depth >= maxEntityDepth {
		return dst, ErrEntityTooDeep
	}
	if len(ref) == 0 {
		return dst, ErrUndefinedEntity
	}
	if ref[0] == '#' {
		r, err := decodeCharRef(ref)
		if err != nil {
			return dst, err
		}
		return utf8.AppendRune(dst, r), nil
	}
	// Built-in output is literal text and is never rescanned: "&amp;"
	// expands to a bare '&' exactly once.
	if v, ok := builtinEntities[string(ref)]; ok {
		return append(dst, v...), nil
	}
	replacement, ok := t.custom[string(ref)]
	if !ok {
		return dst, ErrUndefinedEntity
	}
	if !strings.ContainsRune(replacement, '&') {
		return append(dst, replacement...), nil
	}
	return t.appendExpanded(dst, []byte(replacement), depth+1)
}

// appendExpanded copies data to dst, expanding any references it holds.
func (t *EntityTable) appendExpanded(dst []byte, data []byte, depth int) ([]byte, error) {
	for i := 0; i < len(data); {
		c := data[i]
		if c != '&' {
			dst = append(dst, c)
			i++
			continue
		}
		semi := bytes.IndexByte(data[i+1:], ';')
		if semi < 0 {
			return dst, ErrMissingSemicolon
		}
		var err error
		dst, err = t.appendReplacement(dst, data[i+1:i+1+semi], depth)
		if err != nil {
			return dst, err
		}
		i += semi + 2
	}
	return dst, nil
}

// decodeCharRef decodes a numeric character reference body of the form
// "#NNN" or "#xHHHH".
func decodeCharRef(ref []byte) (rune, error) {
	if len(ref) < 2 {
		return 0, ErrInvalidCharRef
	}
	base := 10
	start := 1
	if ref[1] == 'x' || ref[1] == 'X' {
		base = 16
		start = 2
	}
	if start >= len(ref) {
		return 0, ErrInvalidCharRef
	}
	var value uint64
	for i := start; i < len(ref); i++ {
		b := ref[i]
		var digit byte
		switch {
		case b >= '0' && b <= '9':
			digit = b - '0'
		case base == 16 && b >= 'a' && b <= 'f':
			digit = b - 'a' + 10
		case base == 16 && b >= 'A' && b <= 'F':
			digit = b - 'A' + 10
		default:
			return 0, ErrInvalidCharRef
		}
		value = value*uint64(base) + uint64(digit)
		if value > utf8.MaxRune {
			return 0, ErrInvalidCharRef
		}
	}
	r := rune(value)
	if r == 0 || (r >= 0xD800 && r <= 0xDFFF) {
		return 0, ErrInvalidCharRef
	}
	return r, nil
}
