// Package xmlstream reads XML documents as a stream of pull events with
// zero-copy access to names, attribute values and character data. The
// caller drives the parse with Next and inspects the current event
// through span views that borrow from internal buffers instead of
// allocating strings.
package xmlstream

import (
	"io"
	"strings"

	"github.com/BLAZED-sh/xml-stream/pkg/span"
)

// Buffer sizing defaults. The read buffer doubles as needed, so these
// only set the starting footprint.
const (
	DefaultBufferSize = 16384
	DefaultMaxRead    = 4096
	DefaultMaxDepth   = 256
)

// Reader is a single-pass pull parser over one XML document. It is not
// safe for concurrent use. All views returned by its accessors borrow
// from internal buffers; their validity windows are documented on each
// accessor.
type Reader struct {
	src io.Reader
	enc Encoding

	maxRead  int
	maxDepth int

	entities *EntityTable
	ns       NamespaceStack
	attrs    AttributeList

	// buf holds decoded input. pos is the read cursor; consumed bytes
	// are shifted out between events so the buffer only grows for
	// tokens larger than its capacity.
	buf span.Buffer
	pos int
	eof bool

	// text collects coalesced character data, with line endings
	// normalized and entities expanded. tag holds the current start
	// tag's attribute names and values. scope holds open element names
	// and namespace URIs, truncated per depth when elements close.
	text  span.Buffer
	tag   span.Buffer
	scope span.Buffer

	stack       []span.Span
	stackPrefix []span.Span
	stackLocal  []span.Span
	scopeMarks  []int

	state parseState
	event EventKind

	elemPrefix span.Span
	elemLocal  span.Span
	elemQName  span.Span
	piTarget   span.Span
	piData     span.Span
	textSpan   span.Span

	// pendingEnd defers the synthetic EndElement of a self-closing tag;
	// pendingPop defers scope reclamation so EndElement views stay
	// valid while the caller holds the event. textEmitted defers the
	// text-arena reset until new character data arrives, so the flushed
	// Characters view survives the events in between.
	pendingEnd  bool
	pendingPop  bool
	popMark     int
	textEmitted bool

	started  bool
	done     bool
	closed   bool
	resynced bool

	line   int
	column int
	offset int64
	lastCR bool

	pool *ReaderPool
	err  error
}

// NewReader parses a raw byte stream, sniffing the encoding from a BOM
// or the first angle bracket pattern before any bytes are consumed.
func NewReader(src io.Reader, bufferSize, maxRead int) (*Reader, error) {
	r := newReader(bufferSize, maxRead)
	if err := r.Reset(src); err != nil {
		return nil, err
	}
	return r, nil
}

// NewDecodedReader parses a stream that is already decoded to UTF-8
// characters, skipping encoding detection. The prolog encoding label is
// not validated against anything.
func NewDecodedReader(src io.Reader, bufferSize, maxRead int) *Reader {
	r := newReader(bufferSize, maxRead)
	r.ResetDecoded(src)
	return r
}

// NewStringReader parses an in-memory document.
func NewStringReader(doc string) *Reader {
	return NewDecodedReader(strings.NewReader(doc), DefaultBufferSize, DefaultMaxRead)
}

func newReader(bufferSize, maxRead int) *Reader {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if maxRead <= 0 {
		maxRead = DefaultMaxRead
	}
	if maxRead > bufferSize {
		maxRead = bufferSize
	}
	r := &Reader{
		maxRead:  maxRead,
		maxDepth: DefaultMaxDepth,
		buf:      *span.NewBuffer(bufferSize),
		text:     *span.NewBuffer(512),
		tag:      *span.NewBuffer(256),
		scope:    *span.NewBuffer(256),
	}
	r.resetState()
	return r
}

// SetMaxDepth caps element nesting. Zero disables the limit.
func (r *Reader) SetMaxDepth(n int) {
	r.maxDepth = n
}

// SetPoison makes stale span access panic instead of yielding empty
// views. Intended for tests that verify view lifetimes.
func (r *Reader) SetPoison(on bool) {
	r.buf.SetPoison(on)
	r.text.SetPoison(on)
	r.tag.SetPoison(on)
	r.scope.SetPoison(on)
}

// Entities returns the entity table for this parse. Custom entities
// registered on it apply to references encountered afterwards. The
// table is replaced on Reset.
func (r *Reader) Entities() *EntityTable {
	return r.entities
}

// Reset rebinds the reader to a raw byte stream, running encoding
// detection first. All state from the previous parse is discarded and
// every previously returned view becomes stale.
func (r *Reader) Reset(src io.Reader) error {
	decoded, enc, err := DetectEncoding(src)
	if err != nil {
		return err
	}
	r.resetState()
	r.src = decoded
	r.enc = enc
	return nil
}

// ResetDecoded rebinds the reader to an already-decoded stream.
func (r *Reader) ResetDecoded(src io.Reader) {
	r.resetState()
	r.src = src
	r.enc = EncodingUnknown
}

func (r *Reader) resetState() {
	r.buf.Reset()
	r.text.Reset()
	r.tag.Reset()
	r.scope.Reset()
	r.pos = 0
	r.eof = false
	r.stack = r.stack[:0]
	r.stackPrefix = r.stackPrefix[:0]
	r.stackLocal = r.stackLocal[:0]
	r.scopeMarks = r.scopeMarks[:0]
	r.ns.Reset()
	r.attrs.Reset()
	r.entities = NewEntityTable()
	r.state = stateDefault
	r.event = EventNone
	r.elemPrefix = span.Span{}
	r.elemLocal = span.Span{}
	r.elemQName = span.Span{}
	r.piTarget = span.Span{}
	r.piData = span.Span{}
	r.textSpan = span.Span{}
	r.pendingEnd = false
	r.pendingPop = false
	r.popMark = 0
	r.textEmitted = false
	r.started = false
	r.done = false
	r.closed = false
	r.resynced = false
	r.line = 1
	r.column = 0
	r.offset = 0
	r.lastCR = false
	r.err = nil
}

// Close releases the reader. A pooled reader returns to its pool; a
// standalone one just becomes unusable until the next Reset. Close is
// idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.resetState()
	r.closed = true
	r.src = nil
	if r.pool != nil {
		r.pool.put(r)
	}
	return nil
}

// Next advances to the next event. The first call yields
// StartDocument; after EndDocument it returns ErrReaderDone. Any parse
// error is permanent: subsequent calls return the same error.
func (r *Reader) Next() (EventKind, error) {
	if r.closed {
		return EventNone, ErrClosed
	}
	if r.err != nil {
		return EventNone, r.err
	}
	if r.done {
		return EventNone, ErrReaderDone
	}

	if r.pendingPop {
		r.finishElement()
	}

	if !r.started {
		r.started = true
		err := r.parseProlog()
		if err == errResynced {
			err = r.parseProlog()
		}
		if err != nil {
			return EventNone, r.fail(err)
		}
		r.event = EventStartDocument
		return r.event, nil
	}

	if r.pendingEnd {
		r.pendingEnd = false
		r.emitEndElement()
		return r.event, nil
	}

	r.beginEvent()

	for {
		if err := r.scanText(); err != nil {
			if err == io.EOF {
				return r.finishDocument()
			}
			return EventNone, r.fail(err)
		}
		ev, emitted, err := r.sniffMarkup()
		if err != nil {
			return EventNone, r.fail(err)
		}
		if emitted {
			return ev, nil
		}
	}
}

// beginEvent shifts consumed input out of the read buffer. The text
// arena is not touched here: an emitted Characters view stays valid
// until the next character run starts (see claimText).
func (r *Reader) beginEvent() {
	if r.pos > 0 {
		r.buf.Shift(r.pos)
		r.pos = 0
	}
}

func (r *Reader) finishDocument() (EventKind, error) {
	if len(r.stack) > 0 {
		return EventNone, r.fail(ErrUnexpectedEOF)
	}
	if r.hasPendingText() {
		return r.flushCharacters(), nil
	}
	r.done = true
	r.event = EventEndDocument
	return r.event, nil
}

// fail wraps err with the current input position and poisons the
// reader.
func (r *Reader) fail(err error) error {
	r.err = &StreamError{Loc: r.location(), Err: err}
	r.event = EventNone
	return r.err
}

func (r *Reader) location() Location {
	return Location{Line: r.line, Column: r.column, Offset: r.offset}
}

// Kind returns the event the reader is positioned on.
func (r *Reader) Kind() EventKind {
	return r.event
}

// Location returns the current line, column and byte offset. Lines
// start at one, columns at zero, and a normalized line ending resets
// the column.
func (r *Reader) Location() Location {
	return r.location()
}

// Depth returns the number of open elements. On StartElement the
// started element is included; on EndElement the ended one is not.
func (r *Reader) Depth() int {
	return len(r.stack)
}

// DetectedEncoding returns the encoding chosen during detection, or
// EncodingUnknown when the stream arrived already decoded.
func (r *Reader) DetectedEncoding() Encoding {
	return r.enc
}

func (r *Reader) elementEvent() bool {
	return r.event == EventStartElement || r.event == EventEndElement
}

// LocalName returns the element name without its prefix. Valid on
// StartElement and EndElement; the view stays valid until the element's
// nesting level closes.
func (r *Reader) LocalName() (span.Span, error) {
	if !r.elementEvent() {
		return span.Span{}, ErrWrongEvent
	}
	return r.elemLocal, nil
}

// Prefix returns the element's namespace prefix, or a zero span when
// the name is unprefixed.
func (r *Reader) Prefix() (span.Span, error) {
	if !r.elementEvent() {
		return span.Span{}, ErrWrongEvent
	}
	return r.elemPrefix, nil
}

// QName returns the element name as written, prefix included.
func (r *Reader) QName() (span.Span, error) {
	if !r.elementEvent() {
		return span.Span{}, ErrWrongEvent
	}
	return r.elemQName, nil
}

// NamespaceURI resolves the element's prefix against the bindings in
// scope. An unprefixed element resolves the default namespace. The
// result is a zero span when nothing is bound.
func (r *Reader) NamespaceURI() (span.Span, error) {
	if !r.elementEvent() {
		return span.Span{}, ErrWrongEvent
	}
	uri, ok := r.ns.URI(r.elemPrefix)
	if !ok {
		return span.Span{}, nil
	}
	return uri, nil
}

// ResolvePrefix resolves an arbitrary prefix against the bindings in
// scope at the current position.
func (r *Reader) ResolvePrefix(prefix string) (span.Span, bool) {
	return r.ns.URIString(prefix)
}

// AttributeCount returns the number of attributes on the current start
// tag. Namespace declarations are not included.
func (r *Reader) AttributeCount() (int, error) {
	if r.event != EventStartElement {
		return 0, ErrWrongEvent
	}
	return r.attrs.Len(), nil
}

// Attribute returns the attribute at index i in document order. Its
// views stay valid until the next start tag is parsed.
func (r *Reader) Attribute(i int) (Attribute, error) {
	if r.event != EventStartElement {
		return Attribute{}, ErrWrongEvent
	}
	return r.attrs.At(i), nil
}

// AttributeValue looks up an attribute by its name as written. A zero
// span means the attribute is absent.
func (r *Reader) AttributeValue(qname string) (span.Span, error) {
	if r.event != EventStartElement {
		return span.Span{}, ErrWrongEvent
	}
	v, _ := r.attrs.Value(qname)
	return v, nil
}

// AttributeValueLocal looks up an attribute by local name, ignoring
// prefixes.
func (r *Reader) AttributeValueLocal(local string) (span.Span, error) {
	if r.event != EventStartElement {
		return span.Span{}, ErrWrongEvent
	}
	v, _ := r.attrs.ValueByLocal(local)
	return v, nil
}

// AttributeValueNS looks up an attribute by namespace URI and local
// name. Unprefixed attributes carry no namespace and match only the
// empty URI.
func (r *Reader) AttributeValueNS(uri, local string) (span.Span, error) {
	if r.event != EventStartElement {
		return span.Span{}, ErrWrongEvent
	}
	v, _ := r.attrs.ValueNS(uri, local, r.ns.URI)
	return v, nil
}

// Text returns the content of a Characters, Comment or DTD event.
// Characters views stay valid until the next Next call; Comment and
// DTD views only while positioned on their event.
func (r *Reader) Text() (span.Span, error) {
	switch r.event {
	case EventCharacters, EventComment, EventDTD:
		return r.textSpan, nil
	default:
		return span.Span{}, ErrWrongEvent
	}
}

// PITarget returns the processing instruction target.
func (r *Reader) PITarget() (span.Span, error) {
	if r.event != EventProcessingInstruction {
		return span.Span{}, ErrWrongEvent
	}
	return r.piTarget, nil
}

// PIData returns the processing instruction data, which may be empty.
func (r *Reader) PIData() (span.Span, error) {
	if r.event != EventProcessingInstruction {
		return span.Span{}, ErrWrongEvent
	}
	return r.piData, nil
}

// ElementText reads the text content of the element whose StartElement
// the reader is positioned on, consuming events through the matching
// EndElement. Comments and processing instructions inside are skipped;
// a nested element is an error. The returned view is valid until the
// next Next call.
func (r *Reader) ElementText() (span.Span, error) {
	if r.event != EventStartElement {
		return span.Span{}, ErrWrongEvent
	}
	if r.pendingEnd {
		// Self-closing: consume the deferred EndElement.
		if _, err := r.Next(); err != nil {
			return span.Span{}, err
		}
		return span.Span{}, nil
	}
	var text span.Span
	for {
		ev, err := r.Next()
		if err != nil {
			return span.Span{}, err
		}
		switch ev {
		case EventCharacters:
			text = r.textSpan
		case EventComment, EventProcessingInstruction:
			// skipped
		case EventEndElement:
			return text, nil
		case EventStartElement:
			return span.Span{}, r.fail(ErrNestedElement)
		default:
			return span.Span{}, r.fail(ErrUnexpectedEOF)
		}
	}
}

// SkipElement consumes events until the element whose StartElement the
// reader is positioned on has closed, leaving the reader on its
// EndElement.
func (r *Reader) SkipElement() error {
	if r.event != EventStartElement {
		return ErrWrongEvent
	}
	depth := 1
	for depth > 0 {
		ev, err := r.Next()
		if err != nil {
			return err
		}
		switch ev {
		case EventStartElement:
			depth++
		case EventEndElement:
			depth--
		}
	}
	return nil
}
