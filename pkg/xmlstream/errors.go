package xmlstream

import (
	"errors"
	"fmt"
)

// Document errors: the input is malformed. All are fatal for the current
// parse and surface wrapped in a *StreamError with the failure location.
var (
	ErrUnexpectedEOF      = errors.New("unexpected end of input")
	ErrUnexpectedEndTag   = errors.New("unexpected end tag")
	ErrMalformedAttribute = errors.New("malformed attribute")
	ErrMissingSemicolon   = errors.New("entity reference without ';'")
	ErrUndefinedEntity    = errors.New("undefined entity")
	ErrInvalidCharRef     = errors.New("invalid character reference")
	ErrEntityTooDeep      = errors.New("entity expansion too deep")
	ErrIllegalCharacter   = errors.New("illegal control character")
	ErrMalformedMarkup    = errors.New("malformed markup")
	ErrUnsupportedCharset = errors.New("unsupported encoding")
	ErrDepthLimit         = errors.New("element nesting exceeds depth limit")
	ErrNestedElement      = errors.New("unexpected nested element")
)

// Caller-contract errors: the Reader was used incorrectly. These indicate
// a bug in the caller, not in the document.
var (
	ErrWrongEvent = errors.New("accessor called on wrong event type")
	ErrReaderDone = errors.New("Next called after EndDocument")
	ErrClosed     = errors.New("reader is closed")
)

// Location points at a position in the decoded character stream.
// Line is 1-based; Column resets to 0 after each normalized line ending.
type Location struct {
	Line   int
	Column int
	Offset int64
}

func (l Location) String() string {
	return fmt.Sprintf("line %d, column %d", l.Line, l.Column)
}

// StreamError is a fatal parse error carrying the location at which the
// tokenizer gave up.
type StreamError struct {
	Loc Location
	Err error
}

func (e *StreamError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("xml stream error at %s (offset %d): %v", e.Loc, e.Loc.Offset, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *StreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
