package xmlstream

import (
	"github.com/BLAZED-sh/xml-stream/pkg/span"
)

// Namespaces every document gets for free.
const (
	XMLNamespace   = "http://www.w3.org/XML/1998/namespace"
	XMLNSNamespace = "http://www.w3.org/2000/xmlns/"
)

type nsBinding struct {
	prefix span.Span
	uri    span.Span
	depth  int
}

// NamespaceStack tracks prefix→URI bindings scoped to element nesting
// depth. Bindings live in the reader's element-scope arena, so they stay
// valid for exactly the lifetime of the element that introduced them.
type NamespaceStack struct {
	bindings []nsBinding
	depth    int
}

// Push enters a new scope. Called on every start tag before its xmlns
// attributes are bound.
func (s *NamespaceStack) Push() {
	s.depth++
}

// Pop exits the current scope, removing exactly the bindings introduced
// at this depth.
func (s *NamespaceStack) Pop() {
	n := len(s.bindings)
	for n > 0 && s.bindings[n-1].depth == s.depth {
		n--
	}
	s.bindings = s.bindings[:n]
	s.depth--
}

// Bind registers a prefix→URI mapping in the current scope. The default
// namespace uses the empty prefix.
func (s *NamespaceStack) Bind(prefix, uri span.Span) {
	s.bindings = append(s.bindings, nsBinding{prefix: prefix, uri: uri, depth: s.depth})
}

// Depth reports the current scope depth.
func (s *NamespaceStack) Depth() int {
	return s.depth
}

// URI resolves a prefix to the innermost binding, falling back through
// outer scopes. The "xml" prefix is always bound.
func (s *NamespaceStack) URI(prefix span.Span) (span.Span, bool) {
	if prefix.EqualString("xml") {
		return span.OfString(XMLNamespace), true
	}
	for i := len(s.bindings) - 1; i >= 0; i-- {
		if s.bindings[i].prefix.Equal(prefix) {
			return s.bindings[i].uri, true
		}
	}
	return span.Span{}, false
}

// URIString resolves an owned-string prefix.
func (s *NamespaceStack) URIString(prefix string) (span.Span, bool) {
	if prefix == "xml" {
		return span.OfString(XMLNamespace), true
	}
	for i := len(s.bindings) - 1; i >= 0; i-- {
		if s.bindings[i].prefix.EqualString(prefix) {
			return s.bindings[i].uri, true
		}
	}
	return span.Span{}, false
}

// Reset drops every binding and returns to depth zero.
func (s *NamespaceStack) Reset() {
	s.bindings = s.bindings[:0]
	s.depth = 0
}
