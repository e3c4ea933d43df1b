package xmlstream

import (
	"github.com/BLAZED-sh/xml-stream/pkg/span"
)

// AttrTypeCDATA is the declared type of every attribute in validation-off
// mode.
const AttrTypeCDATA = "CDATA"

// Attribute is one (prefix, localName, qualifiedName, value, type) tuple
// of a start tag. All fields except Type are views into the reader's
// per-tag buffer and stay valid until the attribute list is reset.
type Attribute struct {
	Prefix span.Span
	Local  span.Span
	QName  span.Span
	Value  span.Span
	Type   string
}

// AttributeList is a reusable ordered list of the attributes of the
// current start tag. Order matches document order; duplicate names are
// kept, consistent with validation-off permissiveness.
type AttributeList struct {
	attrs []Attribute
}

// Reset empties the list. Views previously returned become stale.
func (l *AttributeList) Reset() {
	l.attrs = l.attrs[:0]
}

// Add appends an attribute in document order.
func (l *AttributeList) Add(prefix, local, qname, value span.Span) {
	l.attrs = append(l.attrs, Attribute{
		Prefix: prefix,
		Local:  local,
		QName:  qname,
		Value:  value,
		Type:   AttrTypeCDATA,
	})
}

// Len reports the number of attributes.
func (l *AttributeList) Len() int {
	return len(l.attrs)
}

// At returns the attribute at index i in document order.
func (l *AttributeList) At(i int) Attribute {
	return l.attrs[i]
}

// Value scans for the first attribute whose qualified name equals qname.
func (l *AttributeList) Value(qname string) (span.Span, bool) {
	for i := range l.attrs {
		if l.attrs[i].QName.EqualString(qname) {
			return l.attrs[i].Value, true
		}
	}
	return span.Span{}, false
}

// ValueByLocal scans for the first attribute with the given local name,
// ignoring prefixes.
func (l *AttributeList) ValueByLocal(local string) (span.Span, bool) {
	for i := range l.attrs {
		if l.attrs[i].Local.EqualString(local) {
			return l.attrs[i].Value, true
		}
	}
	return span.Span{}, false
}

// ValueNS scans for the first attribute with the given local name whose
// prefix resolves to uri. Unprefixed attributes carry no namespace and
// only match the empty uri.
func (l *AttributeList) ValueNS(uri, local string, resolve func(prefix span.Span) (span.Span, bool)) (span.Span, bool) {
	for i := range l.attrs {
		a := &l.attrs[i]
		if !a.Local.EqualString(local) {
			continue
		}
		if a.Prefix.Len() == 0 {
			if uri == "" {
				return a.Value, true
			}
			continue
		}
		bound, ok := resolve(a.Prefix)
		if ok && bound.EqualString(uri) {
			return a.Value, true
		}
	}
	return span.Span{}, false
}
