package xmlstream

import (
	"errors"
	"testing"
)

func TestAppendReplacement(t *testing.T) {
	table := NewEntityTable()
	table.Set("name", "World")
	table.Set("wrapped", "[&name;]")
	table.Set("mixed", "x&amp;y")
	table.Set("amps", "&amp;&amp;")

	testCases := []struct {
		name string
		ref  string
		want string
		err  error
	}{
		{name: "builtin lt", ref: "lt", want: "<"},
		{name: "builtin amp", ref: "amp", want: "&"},
		{name: "custom", ref: "name", want: "World"},
		{name: "nested custom", ref: "wrapped", want: "[World]"},
		{name: "builtin inside custom", ref: "mixed", want: "x&y"},
		{name: "ampersands stay literal", ref: "amps", want: "&&"},
		{name: "decimal", ref: "#65", want: "A"},
		{name: "hex lower", ref: "#x41", want: "A"},
		{name: "hex upper", ref: "#X41", want: "A"},
		{name: "multibyte", ref: "#x1F600", want: "\U0001F600"},
		{name: "undefined", ref: "nope", err: ErrUndefinedEntity},
		{name: "empty", ref: "", err: ErrUndefinedEntity},
		{name: "bare hash", ref: "#", err: ErrInvalidCharRef},
		{name: "bare hex marker", ref: "#x", err: ErrInvalidCharRef},
		{name: "zero code point", ref: "#0", err: ErrInvalidCharRef},
		{name: "surrogate", ref: "#xD800", err: ErrInvalidCharRef},
		{name: "beyond max rune", ref: "#x110000", err: ErrInvalidCharRef},
		{name: "garbage digits", ref: "#12a", err: ErrInvalidCharRef},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := table.AppendReplacement(nil, []byte(tc.ref))
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(out) != tc.want {
				t.Errorf("expected %q, got %q", tc.want, out)
			}
		})
	}
}

func TestAppendReplacementDepthLimit(t *testing.T) {
	table := NewEntityTable()
	table.Set("a", "&b;")
	table.Set("b", "&a;")

	_, err := table.AppendReplacement(nil, []byte("a"))
	if !errors.Is(err, ErrEntityTooDeep) {
		t.Fatalf("expected %v, got %v", ErrEntityTooDeep, err)
	}
}

func TestMaxReplacementLen(t *testing.T) {
	table := NewEntityTable()
	if got := table.MaxReplacementLen(); got != 1 {
		t.Errorf("expected builtin max of 1, got %d", got)
	}
	table.Set("long", "0123456789")
	if got := table.MaxReplacementLen(); got != 10 {
		t.Errorf("expected 10 after registration, got %d", got)
	}
}

func TestAppendReplacementAppends(t *testing.T) {
	table := NewEntityTable()
	out, err := table.AppendReplacement([]byte("pre"), []byte("gt"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "pre>" {
		t.Errorf("expected existing content preserved, got %q", out)
	}
}
