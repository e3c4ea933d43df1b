package span

import (
	"strings"
	"testing"
)

func TestEqualAndCompare(t *testing.T) {
	testCases := []struct {
		name    string
		a       string
		b       string
		equal   bool
		compare int
	}{
		{name: "identical", a: "alpha", b: "alpha", equal: true, compare: 0},
		{name: "different content", a: "alpha", b: "beta", equal: false, compare: -1},
		{name: "prefix", a: "alp", b: "alpha", equal: false, compare: -1},
		{name: "both empty", a: "", b: "", equal: true, compare: 0},
		{name: "reverse order", a: "zeta", b: "alpha", equal: false, compare: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := OfString(tc.a)
			b := OfString(tc.b)

			if got := a.Equal(b); got != tc.equal {
				t.Errorf("Equal: expected %v, got %v", tc.equal, got)
			}
			if got := a.EqualString(tc.b); got != tc.equal {
				t.Errorf("EqualString: expected %v, got %v", tc.equal, got)
			}
			if got := a.Compare(b); got != tc.compare {
				t.Errorf("Compare: expected %d, got %d", tc.compare, got)
			}
		})
	}
}

func TestEqualAcrossBuffers(t *testing.T) {
	// Same characters at different offsets of different buffers must
	// compare equal.
	b1 := NewBuffer(16)
	b1.AppendString("xxname")
	b2 := NewBuffer(16)
	b2.AppendString("name")

	s1 := b1.Make(2, 6)
	s2 := b2.Make(0, 4)

	if !s1.Equal(s2) {
		t.Errorf("expected spans with identical content to be equal")
	}
}

func TestHashMatchesHashString(t *testing.T) {
	for _, s := range []string{"", "a", "name", "xmlns:prefix", "some longer attribute value"} {
		if got, want := OfString(s).Hash(), HashString(s); got != want {
			t.Errorf("hash mismatch for %q: span %d, string %d", s, got, want)
		}
	}
}

func TestSliceAliases(t *testing.T) {
	buf := NewBuffer(16)
	buf.AppendString("prefix:local")
	qname := buf.Make(0, buf.Len())

	prefix := qname.Slice(0, 6)
	local := qname.Slice(7, qname.Len())

	if !prefix.EqualString("prefix") {
		t.Errorf("expected prefix slice, got %q", prefix.String())
	}
	if !local.EqualString("local") {
		t.Errorf("expected local slice, got %q", local.String())
	}
	if qname.Len() != 12 {
		t.Errorf("expected qname length 12, got %d", qname.Len())
	}

	// Out-of-range sub-views degrade to the zero span.
	if !qname.Slice(5, 20).IsZero() {
		t.Errorf("expected out-of-range slice to be zero")
	}
}

func TestIndex(t *testing.T) {
	s := OfString("abcdefabc")
	if got := s.IndexByte('d'); got != 3 {
		t.Errorf("IndexByte: expected 3, got %d", got)
	}
	if got := s.Index(OfString("abc")); got != 0 {
		t.Errorf("Index: expected 0, got %d", got)
	}
	if got := s.Index(OfString("zz")); got != -1 {
		t.Errorf("Index: expected -1, got %d", got)
	}
}

func TestNumericParsing(t *testing.T) {
	if v, err := OfString("42").Int(); err != nil || v != 42 {
		t.Errorf("Int: expected 42, got %d (%v)", v, err)
	}
	if v, err := OfString("-7").Int64(); err != nil || v != -7 {
		t.Errorf("Int64: expected -7, got %d (%v)", v, err)
	}
	if v, err := OfString("2.5").Float64(); err != nil || v != 2.5 {
		t.Errorf("Float64: expected 2.5, got %g (%v)", v, err)
	}
	if v, err := OfString("true").Bool(); err != nil || !v {
		t.Errorf("Bool: expected true, got %v (%v)", v, err)
	}
	if _, err := OfString("nope").Int(); err == nil {
		t.Errorf("Int: expected error for non-numeric content")
	}
}

func TestGrowthKeepsSpansValid(t *testing.T) {
	buf := NewBuffer(4)
	buf.AppendString("keep")
	s := buf.Make(0, 4)

	// Force several reallocations.
	buf.AppendString(strings.Repeat("x", 256))

	if !s.EqualString("keep") {
		t.Errorf("expected span to survive buffer growth, got %q", s.String())
	}
}

func TestResetPoisonsStaleSpans(t *testing.T) {
	buf := NewBuffer(8)
	buf.AppendString("data")
	s := buf.Make(0, 4)

	buf.Reset()
	buf.SetPoison(true)

	defer func() {
		if recover() == nil {
			t.Errorf("expected stale span access to panic under poison")
		}
	}()
	_ = s.Bytes()
}

func TestTruncateAndShift(t *testing.T) {
	buf := NewBuffer(16)
	buf.AppendString("abcdef")
	buf.Truncate(3)
	if got := string(buf.Bytes()); got != "abc" {
		t.Errorf("Truncate: expected abc, got %q", got)
	}

	buf.AppendString("XYZ")
	buf.Shift(3)
	if got := string(buf.Bytes()); got != "XYZ" {
		t.Errorf("Shift: expected XYZ, got %q", got)
	}
}

func TestPoisonCatchesRewriteAfterTruncate(t *testing.T) {
	buf := NewBuffer(8)
	buf.SetPoison(true)
	buf.AppendString("ab")
	s := buf.Make(0, 2)

	buf.Truncate(0)
	buf.AppendString("cd")

	defer func() {
		if recover() == nil {
			t.Errorf("expected access to rewritten bytes to panic under poison")
		}
	}()
	_ = s.Bytes()
}

func TestPoisonKeepsViewsOverSurvivingPrefix(t *testing.T) {
	buf := NewBuffer(16)
	buf.SetPoison(true)
	buf.AppendString("keep")
	prefix := buf.Make(0, 4)

	buf.AppendString("drop")
	buf.Truncate(4)
	buf.AppendString("more")

	if !prefix.EqualString("keep") {
		t.Errorf("expected prefix view to survive truncation past it, got %q", prefix.String())
	}
}
