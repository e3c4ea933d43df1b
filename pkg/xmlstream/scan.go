package xmlstream

import (
	"bytes"
	"errors"
	"io"

	"github.com/BLAZED-sh/xml-stream/pkg/span"
)

// Markup sniff literals. Disambiguation after '<' needs at most nine
// characters of lookahead ("<![CDATA[" and "<!DOCTYPE" are both nine).
const (
	litXMLDecl      = "<?xml"
	litCommentOpen  = "<!--"
	litCommentClose = "-->"
	litCDATAOpen    = "<![CDATA["
	litCDATAClose   = "]]>"
	litDoctypeOpen  = "<!DOCTYPE"
	litPIClose      = "?>"

	cdataSniffLen   = len(litCDATAOpen)
	doctypeSniffLen = len(litDoctypeOpen)
)

// errResynced signals that the encoding was corrected mid-prolog and the
// document must be re-read from the preserved prefix.
var errResynced = errors.New("xmlstream: prolog resynced")

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// ensure blocks until the buffer holds a byte at index idx, reading more
// input as needed. Returns io.EOF when the source is exhausted first.
func (r *Reader) ensure(idx int) error {
	for idx >= r.buf.Len() {
		if err := r.readMore(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) readMore() error {
	if r.eof {
		return io.EOF
	}
	n, err := r.buf.Fill(r.src, r.maxRead)
	if n > 0 {
		return nil
	}
	if err == io.EOF {
		r.eof = true
		return io.EOF
	}
	if err != nil {
		return err
	}
	return nil
}

func (r *Reader) byteAt(i int) byte {
	return r.buf.Bytes()[i]
}

// advance consumes n buffered bytes, updating line, column and offset.
// The column resets to zero after each normalized line ending; a CR/LF
// pair counts as a single line break even when split across reads.
func (r *Reader) advance(n int) {
	if n <= 0 {
		return
	}
	data := r.buf.Bytes()[r.pos : r.pos+n]
	for _, c := range data {
		switch c {
		case '\n':
			if r.lastCR {
				r.lastCR = false
				continue
			}
			r.line++
			r.column = 0
		case '\r':
			r.line++
			r.column = 0
			r.lastCR = true
		default:
			r.lastCR = false
			// Columns count characters: UTF-8 continuation bytes do
			// not start a new one.
			if c&0xC0 != 0x80 {
				r.column++
			}
		}
	}
	r.pos += n
	r.offset += int64(n)
}

func (r *Reader) advanceTo(idx int) {
	r.advance(idx - r.pos)
}

// matchLiteral reports whether the input at the cursor begins with lit.
// Hitting EOF before the full literal is a non-match, not an error.
func (r *Reader) matchLiteral(lit string) (bool, error) {
	if err := r.ensure(r.pos + len(lit) - 1); err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	return string(r.buf.Bytes()[r.pos:r.pos+len(lit)]) == lit, nil
}

// scanUntil returns the buffer index of the next occurrence of lit at or
// after the cursor, reading more input as needed.
func (r *Reader) scanUntil(lit string) (int, error) {
	from := r.pos
	for {
		idx := bytes.Index(r.buf.Bytes()[from:], []byte(lit))
		if idx >= 0 {
			return from + idx, nil
		}
		// Keep a tail so a literal split across reads is still found.
		if n := r.buf.Len() - len(lit) + 1; n > from {
			from = n
		}
		if err := r.readMore(); err != nil {
			if err == io.EOF {
				return 0, ErrUnexpectedEOF
			}
			return 0, err
		}
	}
}

func (r *Reader) skipSpace() (bool, error) {
	consumed := false
	for {
		if err := r.ensure(r.pos); err != nil {
			return consumed, err
		}
		if !isSpaceByte(r.byteAt(r.pos)) {
			return consumed, nil
		}
		r.advance(1)
		consumed = true
	}
}

// scanText consumes character data into the text arena until it stops at
// a '<' (not consumed) or end of input. Line endings are normalized to
// '\n' and entity references are expanded in place of the reference.
func (r *Reader) scanText() error {
	r.state = stateCharData
	for {
		if err := r.ensure(r.pos); err != nil {
			return err
		}
		if r.byteAt(r.pos) != '<' {
			r.claimText()
		}
		data := r.buf.Bytes()
		for r.pos < len(data) {
			switch c := data[r.pos]; c {
			case '<':
				r.state = stateMarkupSniff
				return nil
			case 0:
				return ErrIllegalCharacter
			case '&':
				if err := r.expandEntityInto(&r.text); err != nil {
					return err
				}
				data = r.buf.Bytes()
			case '\r':
				r.text.AppendByte('\n')
				r.advance(1)
				if err := r.consumeLFAfterCR(); err != nil {
					return err
				}
				data = r.buf.Bytes()
			default:
				r.text.AppendByte(c)
				r.advance(1)
			}
		}
	}
}

// consumeLFAfterCR eats the LF half of a CR/LF pair. The CR has already
// been emitted as '\n'. EOF right after the CR is not an error here.
func (r *Reader) consumeLFAfterCR() error {
	if err := r.ensure(r.pos); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	if r.byteAt(r.pos) == '\n' {
		r.advance(1)
	}
	return nil
}

// expandEntityInto consumes the reference at the cursor ('&' through ';')
// and appends its expansion to dst. Missing ';' before a control
// character or '<' is fatal.
func (r *Reader) expandEntityInto(dst *span.Buffer) error {
	refStart := r.pos + 1
	i := refStart
	for {
		if err := r.ensure(i); err != nil {
			if err == io.EOF {
				return ErrMissingSemicolon
			}
			return err
		}
		c := r.byteAt(i)
		if c == ';' {
			break
		}
		if c < 0x20 || c == '<' || c == '&' {
			return ErrMissingSemicolon
		}
		i++
	}
	ref := r.buf.Bytes()[refStart:i]
	err := dst.AppendWith(func(b []byte) ([]byte, error) {
		return r.entities.AppendReplacement(b, ref)
	})
	if err != nil {
		return err
	}
	r.advance(i - r.pos + 1)
	return nil
}

// scanRawName consumes a name at the cursor and returns its buffer range
// plus the index of the first ':' inside it, or -1.
func (r *Reader) scanRawName() (start, end, colon int, err error) {
	start = r.pos
	colon = -1
	for {
		if e := r.ensure(r.pos); e != nil {
			if e == io.EOF {
				return 0, 0, 0, ErrUnexpectedEOF
			}
			return 0, 0, 0, e
		}
		c := r.byteAt(r.pos)
		if c == ':' && colon < 0 {
			colon = r.pos
			r.advance(1)
			continue
		}
		if isSpaceByte(c) || c == '/' || c == '>' || c == '=' || c == '?' {
			break
		}
		if c == 0 {
			return 0, 0, 0, ErrIllegalCharacter
		}
		if c < 0x20 || c == '"' || c == '\'' || c == '<' || c == '&' {
			return 0, 0, 0, ErrMalformedMarkup
		}
		r.advance(1)
	}
	end = r.pos
	if end == start || colon == start || colon == end-1 {
		return 0, 0, 0, ErrMalformedMarkup
	}
	return start, end, colon, nil
}

// sniffMarkup disambiguates the construct at '<'. It returns the kind of
// the emitted event, or emitted=false when the construct was consumed
// without producing one (CDATA joins pending text; unknown "<!..."
// blocks are skipped silently).
func (r *Reader) sniffMarkup() (EventKind, bool, error) {
	if err := r.ensure(r.pos + 1); err != nil {
		if err == io.EOF {
			return EventNone, false, ErrUnexpectedEOF
		}
		return EventNone, false, err
	}
	switch r.byteAt(r.pos + 1) {
	case '/':
		if r.hasPendingText() {
			return r.flushCharacters(), true, nil
		}
		if err := r.parseEndTag(); err != nil {
			return EventNone, false, err
		}
		return EventEndElement, true, nil
	case '?':
		if err := r.parsePI(); err != nil {
			return EventNone, false, err
		}
		return EventProcessingInstruction, true, nil
	case '!':
		return r.sniffBang()
	default:
		if r.hasPendingText() {
			return r.flushCharacters(), true, nil
		}
		if err := r.parseStartTag(); err != nil {
			return EventNone, false, err
		}
		return EventStartElement, true, nil
	}
}

func (r *Reader) sniffBang() (EventKind, bool, error) {
	if ok, err := r.matchLiteral(litCommentOpen); err != nil {
		return EventNone, false, err
	} else if ok {
		if err := r.parseComment(); err != nil {
			return EventNone, false, err
		}
		return EventComment, true, nil
	}
	if ok, err := r.matchLiteral(litCDATAOpen); err != nil {
		return EventNone, false, err
	} else if ok {
		// CDATA content joins pending character data.
		return EventNone, false, r.appendCDATA()
	}
	if ok, err := r.matchLiteral(litDoctypeOpen); err != nil {
		return EventNone, false, err
	} else if ok {
		if r.hasPendingText() {
			return r.flushCharacters(), true, nil
		}
		if err := r.parseDTD(); err != nil {
			return EventNone, false, err
		}
		return EventDTD, true, nil
	}
	// Other "<!..." declarations outside a DTD (ELEMENT, ENTITY, ...)
	// are skipped without an event.
	return EventNone, false, r.skipBangDecl()
}

// flushCharacters emits the coalesced pending text as one Characters
// event, leaving the cursor on the '<' that forced the flush. The arena
// is reclaimed lazily by claimText, so the view outlives the events up
// to the next character run.
func (r *Reader) flushCharacters() EventKind {
	r.textSpan = r.text.Make(0, r.text.Len())
	r.textEmitted = true
	r.event = EventCharacters
	return EventCharacters
}

// hasPendingText reports whether collected character data still awaits
// its Characters event.
func (r *Reader) hasPendingText() bool {
	return r.text.Len() > 0 && !r.textEmitted
}

// claimText prepares the text arena for a new character run, dropping
// data already handed out as a Characters event.
func (r *Reader) claimText() {
	if r.textEmitted {
		r.text.Reset()
		r.textEmitted = false
	}
}

func (r *Reader) parseComment() error {
	r.state = stateComment
	r.advance(len(litCommentOpen))
	start := r.pos
	idx, err := r.scanUntil(litCommentClose)
	if err != nil {
		return err
	}
	if bytes.IndexByte(r.buf.Bytes()[start:idx], 0) >= 0 {
		return ErrIllegalCharacter
	}
	r.advanceTo(idx)
	r.textSpan = r.buf.Make(start, idx)
	r.advance(len(litCommentClose))
	r.state = stateDefault
	r.event = EventComment
	return nil
}

func (r *Reader) parsePI() error {
	r.state = statePI
	r.advance(2)
	nameStart, nameEnd, _, err := r.scanRawName()
	if err != nil {
		return err
	}
	if _, err := r.skipSpace(); err != nil && err != io.EOF {
		return err
	}
	dataStart := r.pos
	idx, err := r.scanUntil(litPIClose)
	if err != nil {
		return err
	}
	if bytes.IndexByte(r.buf.Bytes()[dataStart:idx], 0) >= 0 {
		return ErrIllegalCharacter
	}
	r.advanceTo(idx)
	r.piTarget = r.buf.Make(nameStart, nameEnd)
	r.piData = r.buf.Make(dataStart, idx)
	r.advance(len(litPIClose))
	r.state = stateDefault
	r.event = EventProcessingInstruction
	return nil
}

// appendCDATA copies a CDATA section verbatim into the pending text,
// normalizing line endings but never expanding entities.
func (r *Reader) appendCDATA() error {
	r.state = stateCDATA
	r.advance(cdataSniffLen)
	r.claimText()
	start := r.pos
	idx, err := r.scanUntil(litCDATAClose)
	if err != nil {
		return err
	}
	data := r.buf.Bytes()[start:idx]
	for i := 0; i < len(data); i++ {
		switch c := data[i]; c {
		case 0:
			return ErrIllegalCharacter
		case '\r':
			r.text.AppendByte('\n')
			if i+1 < len(data) && data[i+1] == '\n' {
				i++
			}
		default:
			r.text.AppendByte(c)
		}
	}
	r.advanceTo(idx)
	r.advance(len(litCDATAClose))
	r.state = stateCharData
	return nil
}

// parseDTD captures a DOCTYPE declaration as one opaque block, tracking
// the bracket depth of the internal subset so '>' inside it does not end
// the declaration.
func (r *Reader) parseDTD() error {
	r.state = stateDTD
	r.advance(doctypeSniffLen)
	start := r.pos
	quote := byte(0)
	bracketDepth := 0
	for {
		if err := r.ensure(r.pos); err != nil {
			if err == io.EOF {
				return ErrUnexpectedEOF
			}
			return err
		}
		c := r.byteAt(r.pos)
		if c == 0 {
			return ErrIllegalCharacter
		}
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			r.advance(1)
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			r.advance(1)
		case '[':
			bracketDepth++
			r.state = stateDTDInternalSubset
			r.advance(1)
		case ']':
			if bracketDepth > 0 {
				bracketDepth--
			}
			if bracketDepth == 0 {
				r.state = stateDTD
			}
			r.advance(1)
		case '>':
			if bracketDepth == 0 {
				r.textSpan = r.buf.Make(start, r.pos)
				r.advance(1)
				r.state = stateDefault
				r.event = EventDTD
				return nil
			}
			r.advance(1)
		default:
			r.advance(1)
		}
	}
}

// skipBangDecl silently consumes a "<!..." construct up to its '>'.
func (r *Reader) skipBangDecl() error {
	r.advance(2)
	quote := byte(0)
	for {
		if err := r.ensure(r.pos); err != nil {
			if err == io.EOF {
				return ErrUnexpectedEOF
			}
			return err
		}
		c := r.byteAt(r.pos)
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			r.advance(1)
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			r.advance(1)
		case '>':
			r.advance(1)
			r.state = stateDefault
			return nil
		default:
			r.advance(1)
		}
	}
}

func (r *Reader) parseStartTag() error {
	r.state = stateOpenTagName
	r.advance(1)
	nameStart, nameEnd, colon, err := r.scanRawName()
	if err != nil {
		return err
	}
	if r.maxDepth > 0 && len(r.stack) >= r.maxDepth {
		return ErrDepthLimit
	}

	// The element name outlives the read buffer: it is compared against
	// the closing tag and resolves prefixes until its depth closes, so it
	// moves into the element-scope arena.
	mark := r.scope.Len()
	r.scope.Append(r.buf.Bytes()[nameStart:nameEnd])
	qname := r.scope.Make(mark, mark+nameEnd-nameStart)
	var prefix, local span.Span
	if colon >= 0 {
		prefix = qname.Slice(0, colon-nameStart)
		local = qname.Slice(colon-nameStart+1, qname.Len())
	} else {
		local = qname
	}

	r.scopeMarks = append(r.scopeMarks, mark)
	r.stack = append(r.stack, qname)
	r.stackPrefix = append(r.stackPrefix, prefix)
	r.stackLocal = append(r.stackLocal, local)
	r.ns.Push()

	r.attrs.Reset()
	r.tag.Reset()

	r.state = stateOpenTagAfterName
	selfClosing := false
	for {
		space, err := r.skipSpace()
		if err != nil {
			if err == io.EOF {
				return ErrUnexpectedEOF
			}
			return err
		}
		c := r.byteAt(r.pos)
		if c == '>' {
			r.advance(1)
			break
		}
		if c == '/' {
			r.state = stateOpenTagSelfClosing
			r.advance(1)
			if err := r.ensure(r.pos); err != nil {
				if err == io.EOF {
					return ErrUnexpectedEOF
				}
				return err
			}
			if r.byteAt(r.pos) != '>' {
				return ErrMalformedMarkup
			}
			r.advance(1)
			selfClosing = true
			break
		}
		if !space {
			return ErrMalformedMarkup
		}
		if err := r.parseAttribute(); err != nil {
			return err
		}
		r.state = stateOpenTagAfterName
	}

	r.elemQName = qname
	r.elemPrefix = prefix
	r.elemLocal = local
	r.pendingEnd = selfClosing
	r.state = stateDefault
	r.event = EventStartElement
	return nil
}

func (r *Reader) parseAttribute() error {
	r.state = stateOpenTagAttrName
	nameStart, nameEnd, colon, err := r.scanRawName()
	if err != nil {
		if err == ErrMalformedMarkup {
			return ErrMalformedAttribute
		}
		return err
	}

	r.state = stateOpenTagAfterAttrName
	if _, err := r.skipSpace(); err != nil {
		if err == io.EOF {
			return ErrUnexpectedEOF
		}
		return err
	}
	if r.byteAt(r.pos) != '=' {
		return ErrMalformedAttribute
	}
	r.advance(1)
	r.state = stateOpenTagAfterEquals
	if _, err := r.skipSpace(); err != nil {
		if err == io.EOF {
			return ErrUnexpectedEOF
		}
		return err
	}
	quote := r.byteAt(r.pos)
	switch quote {
	case '\'':
		r.state = stateOpenTagValueSingle
	case '"':
		r.state = stateOpenTagValueDouble
	default:
		return ErrMalformedAttribute
	}
	r.advance(1)

	valueStart := r.tag.Len()
	if err := r.scanAttrValue(quote); err != nil {
		return err
	}
	value := r.tag.Make(valueStart, r.tag.Len())

	rawName := r.buf.Bytes()[nameStart:nameEnd]

	// xmlns declarations bind namespaces instead of becoming ordinary
	// attributes. Prefix and URI are copied into the element-scope arena
	// so the binding survives until this element closes.
	if colon < 0 && string(rawName) == "xmlns" {
		r.ns.Bind(span.Span{}, r.copyToScope(value.Bytes()))
		return nil
	}
	if colon >= 0 && string(rawName[:colon-nameStart]) == "xmlns" {
		boundPrefix := r.copyToScope(rawName[colon-nameStart+1:])
		r.ns.Bind(boundPrefix, r.copyToScope(value.Bytes()))
		return nil
	}

	// Ordinary attribute: the name moves into the per-tag arena next to
	// its value.
	qnameStart := r.tag.Len()
	r.tag.Append(rawName)
	qname := r.tag.Make(qnameStart, r.tag.Len())
	var prefix, local span.Span
	if colon >= 0 {
		prefix = qname.Slice(0, colon-nameStart)
		local = qname.Slice(colon-nameStart+1, qname.Len())
	} else {
		local = qname
	}
	r.attrs.Add(prefix, local, qname, value)
	return nil
}

// scanAttrValue consumes a quoted value up to the matching quote,
// expanding entities and normalizing line endings into the per-tag
// arena. A '<' inside the value or EOF before the quote is fatal.
func (r *Reader) scanAttrValue(quote byte) error {
	for {
		if err := r.ensure(r.pos); err != nil {
			if err == io.EOF {
				return ErrUnexpectedEOF
			}
			return err
		}
		switch c := r.byteAt(r.pos); c {
		case quote:
			r.advance(1)
			return nil
		case '<':
			return ErrMalformedAttribute
		case 0:
			return ErrIllegalCharacter
		case '&':
			if err := r.expandEntityInto(&r.tag); err != nil {
				return err
			}
		case '\r':
			r.tag.AppendByte('\n')
			r.advance(1)
			if err := r.consumeLFAfterCR(); err != nil {
				return err
			}
		default:
			r.tag.AppendByte(c)
			r.advance(1)
		}
	}
}

func (r *Reader) parseEndTag() error {
	r.state = stateCloseTagName
	r.advance(2)
	nameStart, nameEnd, _, err := r.scanRawName()
	if err != nil {
		return err
	}
	r.state = stateCloseTagAfterName
	if _, err := r.skipSpace(); err != nil {
		if err == io.EOF {
			return ErrUnexpectedEOF
		}
		return err
	}
	if r.byteAt(r.pos) != '>' {
		return ErrMalformedMarkup
	}

	if len(r.stack) == 0 {
		return ErrUnexpectedEndTag
	}
	top := r.stack[len(r.stack)-1]
	if !bytes.Equal(top.Bytes(), r.buf.Bytes()[nameStart:nameEnd]) {
		return ErrUnexpectedEndTag
	}
	r.advance(1)
	r.emitEndElement()
	r.state = stateDefault
	return nil
}

// emitEndElement pops the element stack and schedules the scope cleanup
// for the next call, keeping name and namespace views valid while the
// caller is positioned on the EndElement event.
func (r *Reader) emitEndElement() {
	n := len(r.stack) - 1
	r.elemQName = r.stack[n]
	r.elemPrefix = r.stackPrefix[n]
	r.elemLocal = r.stackLocal[n]
	r.stack = r.stack[:n]
	r.stackPrefix = r.stackPrefix[:n]
	r.stackLocal = r.stackLocal[:n]
	r.popMark = r.scopeMarks[n]
	r.scopeMarks = r.scopeMarks[:n]
	r.pendingPop = true
	r.event = EventEndElement
}

// finishElement reclaims the scope arena space and namespace bindings of
// the element whose EndElement event the caller just left.
func (r *Reader) finishElement() {
	r.scope.Truncate(r.popMark)
	r.ns.Pop()
	r.pendingPop = false
}

func (r *Reader) copyToScope(data []byte) span.Span {
	mark := r.scope.Len()
	r.scope.Append(data)
	return r.scope.Make(mark, r.scope.Len())
}

// parseProlog consumes an optional XML declaration and reconciles its
// encoding label with the detected encoding.
func (r *Reader) parseProlog() error {
	ok, err := r.matchLiteral(litXMLDecl)
	if err != nil {
		return err
	}
	if ok {
		if err := r.ensure(r.pos + len(litXMLDecl)); err == nil {
			next := r.byteAt(r.pos + len(litXMLDecl))
			if !isSpaceByte(next) && next != '?' {
				return nil // "<?xmlfoo..." is an ordinary PI
			}
		}
		declStart := r.pos + len(litXMLDecl)
		idx, err := r.scanUntil(litPIClose)
		if err != nil {
			return err
		}
		label := xmlDeclEncoding(r.buf.Bytes()[declStart:idx])
		if label != "" && r.enc != EncodingUnknown && !compatibleLabel(r.enc, label) {
			declared, supported := encodingForLabel(label)
			if !supported {
				return ErrUnsupportedCharset
			}
			if err := r.resyncEncoding(declared); err != nil {
				return err
			}
			return errResynced
		}
		r.advanceTo(idx)
		r.advance(len(litPIClose))
	}
	return nil
}

// resyncEncoding rebuilds the decoder for the declared encoding, feeding
// the already-consumed prefix back through it. One-time only, and only
// possible while the input passed through undecoded.
func (r *Reader) resyncEncoding(declared Encoding) error {
	if r.resynced || r.enc != EncodingUTF8 || declared == EncodingUnknown {
		return ErrUnsupportedCharset
	}
	r.resynced = true
	prefix := append([]byte(nil), r.buf.Bytes()...)
	r.src = decodedReader(declared, io.MultiReader(bytes.NewReader(prefix), r.src))
	r.enc = declared
	r.buf.Reset()
	r.pos = 0
	r.eof = false
	r.line = 1
	r.column = 0
	r.offset = 0
	r.lastCR = false
	return nil
}

// xmlDeclEncoding extracts the encoding pseudo-attribute from the body
// of an XML declaration.
func xmlDeclEncoding(decl []byte) string {
	data := decl
	for {
		data = bytes.TrimLeft(data, " \t\r\n")
		if len(data) == 0 {
			return ""
		}
		eq := bytes.IndexByte(data, '=')
		if eq < 0 {
			return ""
		}
		name := bytes.TrimRight(data[:eq], " \t\r\n")
		data = bytes.TrimLeft(data[eq+1:], " \t\r\n")
		if len(data) == 0 {
			return ""
		}
		quote := data[0]
		if quote != '\'' && quote != '"' {
			return ""
		}
		data = data[1:]
		end := bytes.IndexByte(data, quote)
		if end < 0 {
			return ""
		}
		value := data[:end]
		data = data[end+1:]
		if bytes.EqualFold(name, []byte("encoding")) {
			return string(value)
		}
	}
}
