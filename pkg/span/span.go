// Package span provides borrowed character ranges over shared growable
// buffers. A Span never owns its bytes: it is an (offset, length) window
// into a Buffer whose storage is reused across parses. Spans stay cheap to
// copy and compare, and only String materializes an owned value.
package span

import (
	"bytes"
	"io"
	"strconv"
	"unsafe"
)

// Buffer is a growable byte arena with an append-only write cursor.
// A generation counter tracks reuse: Reset, Shift, and Truncate bump the
// generation so that bytes written afterwards can be told apart from the
// ones a span was created over. With poison enabled the buffer also keeps
// a per-byte write generation, so a stale view is caught even when only
// part of the storage was reused.
type Buffer struct {
	data   []byte
	ver    []uint32
	gen    uint32
	poison bool
}

// NewBuffer creates a buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Len returns the current write cursor position.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Bytes exposes the written portion of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Append writes p at the cursor, growing the backing array as needed.
// Growth preserves all previously written bytes, so existing spans keep
// resolving to the same characters.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
	b.track()
}

// AppendByte writes a single byte at the cursor.
func (b *Buffer) AppendByte(c byte) {
	b.data = append(b.data, c)
	b.track()
}

// AppendString writes s at the cursor.
func (b *Buffer) AppendString(s string) {
	b.data = append(b.data, s...)
	b.track()
}

// AppendWith extends the buffer through fn, which receives the current
// contents and returns the extended slice. Lets callers append with
// helpers that work on raw byte slices.
func (b *Buffer) AppendWith(fn func([]byte) ([]byte, error)) error {
	data, err := fn(b.data)
	if err != nil {
		return err
	}
	b.data = data
	b.track()
	return nil
}

// Fill reads up to maxRead bytes from r at the write cursor, doubling
// the backing array when the free space runs short. Growth copies, so
// offsets of existing spans stay valid.
func (b *Buffer) Fill(r io.Reader, maxRead int) (int, error) {
	b.Grow(maxRead)
	n, err := r.Read(b.data[len(b.data) : len(b.data)+maxRead])
	b.data = b.data[:len(b.data)+n]
	b.track()
	return n, err
}

// track records the current generation for bytes written since the last
// call. Only maintained under poison.
func (b *Buffer) track() {
	if !b.poison {
		return
	}
	for len(b.ver) < len(b.data) {
		b.ver = append(b.ver, b.gen)
	}
}

// Grow reserves capacity for at least n more bytes, doubling the backing
// array if needed.
func (b *Buffer) Grow(n int) {
	if cap(b.data)-len(b.data) >= n {
		return
	}
	newCap := 2 * cap(b.data)
	if newCap < len(b.data)+n {
		newCap = len(b.data) + n
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
}

// Shift discards the first n bytes and moves the remainder to the front.
// Spans created before the shift become stale.
func (b *Buffer) Shift(n int) {
	if n <= 0 {
		return
	}
	if n >= len(b.data) {
		b.data = b.data[:0]
	} else {
		copy(b.data, b.data[n:])
		b.data = b.data[:len(b.data)-n]
	}
	b.gen++
	if b.poison {
		b.ver = b.ver[:0]
		b.track()
	}
}

// Truncate moves the write cursor back to n. Bytes past n are considered
// free; spans over them become stale once the space is rewritten, while
// views over the surviving prefix stay valid.
func (b *Buffer) Truncate(n int) {
	if n < 0 || n > len(b.data) {
		return
	}
	b.data = b.data[:n]
	if len(b.ver) > n {
		b.ver = b.ver[:n]
	}
	b.gen++
}

// Reset empties the buffer and invalidates every span previously handed
// out, keeping the allocation for reuse.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.ver = b.ver[:0]
	b.gen++
}

// SetPoison enables strict staleness checking: resolving a view whose
// bytes were rewritten after it was created panics instead of silently
// reading the new contents.
func (b *Buffer) SetPoison(on bool) {
	b.poison = on
	if on {
		b.track()
	}
}

// Make creates a span over [start, end) of this buffer.
func (b *Buffer) Make(start, end int) Span {
	return Span{buf: b, start: start, end: end, gen: b.gen}
}

// Span is a borrowed character range. The zero Span is empty and valid.
type Span struct {
	buf   *Buffer
	start int
	end   int
	gen   uint32
}

// Of wraps an owned byte slice in a single-use span. The slice must not
// be mutated while the span is alive.
func Of(p []byte) Span {
	buf := &Buffer{data: p}
	return Span{buf: buf, start: 0, end: len(p)}
}

// OfString wraps a string in a single-use span.
func OfString(s string) Span {
	return Of([]byte(s))
}

func (s Span) bytes() []byte {
	if s.buf == nil {
		return nil
	}
	if s.start < 0 || s.end < s.start || s.end > len(s.buf.data) {
		if s.buf.poison {
			panic("span: view bounds are invalid")
		}
		return nil
	}
	if s.buf.poison {
		for i := s.start; i < s.end && i < len(s.buf.ver); i++ {
			if s.buf.ver[i] > s.gen {
				panic("span: view is stale after buffer reuse")
			}
		}
	}
	return s.buf.data[s.start:s.end]
}

// Len returns the number of bytes in the window.
func (s Span) Len() int {
	return s.end - s.start
}

// IsZero reports whether the span references no buffer at all.
func (s Span) IsZero() bool {
	return s.buf == nil
}

// At returns the byte at index i.
func (s Span) At(i int) byte {
	return s.bytes()[i]
}

// Bytes exposes the window without copying. The result aliases the
// backing buffer and is invalidated together with the span.
func (s Span) Bytes() []byte {
	return s.bytes()
}

// Slice returns a sub-view over the same backing buffer. No copy is made.
func (s Span) Slice(start, end int) Span {
	if start < 0 || end < start || end > s.Len() {
		return Span{}
	}
	return Span{buf: s.buf, start: s.start + start, end: s.start + end, gen: s.gen}
}

// IndexByte returns the index of the first occurrence of c, or -1.
func (s Span) IndexByte(c byte) int {
	return bytes.IndexByte(s.bytes(), c)
}

// Index returns the index of the first occurrence of sub, or -1.
// Plain forward scan.
func (s Span) Index(sub Span) int {
	return bytes.Index(s.bytes(), sub.bytes())
}

// Equal reports whether both windows hold identical characters,
// regardless of backing buffer identity or offset.
func (s Span) Equal(other Span) bool {
	return bytes.Equal(s.bytes(), other.bytes())
}

// EqualString reports whether the window equals str character for
// character.
func (s Span) EqualString(str string) bool {
	data := s.bytes()
	if len(data) != len(str) {
		return false
	}
	for i := 0; i < len(data); i++ {
		if data[i] != str[i] {
			return false
		}
	}
	return true
}

// Compare orders two spans lexically by code unit.
func (s Span) Compare(other Span) int {
	return bytes.Compare(s.bytes(), other.bytes())
}

// Hash returns the polynomial base-31 hash of the window. It matches
// HashString of the materialized content, so spans can key maps alongside
// owned strings.
func (s Span) Hash() int32 {
	var h int32
	for _, c := range s.bytes() {
		h = 31*h + int32(c)
	}
	return h
}

// HashString hashes an owned string with the same polynomial as
// Span.Hash.
func HashString(s string) int32 {
	var h int32
	for i := 0; i < len(s); i++ {
		h = 31*h + int32(s[i])
	}
	return h
}

// unsafeString views the window as a string without copying. Only handed
// to strconv, which does not retain its argument.
func (s Span) unsafeString() string {
	data := s.bytes()
	if len(data) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(data), len(data))
}

// Int parses the window as a base-10 int without materializing a string.
func (s Span) Int() (int, error) {
	v, err := strconv.ParseInt(s.unsafeString(), 10, 0)
	return int(v), err
}

// Int64 parses the window as a base-10 int64.
func (s Span) Int64() (int64, error) {
	return strconv.ParseInt(s.unsafeString(), 10, 64)
}

// Float32 parses the window as a float32.
func (s Span) Float32() (float32, error) {
	v, err := strconv.ParseFloat(s.unsafeString(), 32)
	return float32(v), err
}

// Float64 parses the window as a float64.
func (s Span) Float64() (float64, error) {
	return strconv.ParseFloat(s.unsafeString(), 64)
}

// Bool parses the window as a boolean.
func (s Span) Bool() (bool, error) {
	return strconv.ParseBool(s.unsafeString())
}

// String materializes an owned copy of the window. This is the only
// operation that allocates backing storage.
func (s Span) String() string {
	return string(s.bytes())
}
