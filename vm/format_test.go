package vm

import "testing"

func TestFormatMessage(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	cases := []struct {
		format string
		args   []any
		want   string
	}{
		{"plain text", nil, "plain text"},
		{"%d items", []any{3}, "3 items"},
		{"%d of %d", []any{int64(-7), 10}, "-7 of 10"},
		{"index %i", []any{int64(42)}, "index 42"},
		{"ratio %f", []any{0.5}, "ratio 0.5"},
		{"whole %f", []any{2.0}, "whole 2.0"},
		{"hello %s", []any{"world"}, "hello world"},
		{"name %q", []any{"it's"}, "name 'it\\'s'"},
		{"char %c", []any{'x'}, "char x"},
		{"100%%", nil, "100%"},
	}
	for _, tc := range cases {
		got := vm.formatMessage(tc.format, tc.args...)
		if got != tc.want {
			t.Errorf("formatMessage(%q) = %q, want %q", tc.format, got, tc.want)
		}
	}
}

func TestFormatTypeAndNameVerbs(t *testing.T) {
	vm := NewVM(nil)
	defer vm.Close()

	if got := vm.formatMessage("bad operand '%t'", vm.TypeOf(NewInt(1))); got != "bad operand 'int'" {
		t.Errorf("%%t on value type = %q", got)
	}
	if got := vm.formatMessage("expected '%t'", TpStr); got != "expected 'str'" {
		t.Errorf("%%t on type = %q", got)
	}
	if got := vm.formatMessage("not a type: %t", "oops"); got != "not a type: ?" {
		t.Errorf("%%t on non-type = %q", got)
	}
	if got := vm.formatMessage("name '%n' is not defined", NameFor("xyzzy")); got != "name 'xyzzy' is not defined" {
		t.Errorf("%%n = %q", got)
	}
	if got := vm.formatMessage("at %p", uint64(0xbeef)); got != "at 0xbeef" {
		t.Errorf("%%p = %q", got)
	}
}

func TestFormatFloat(t *testing.T) {
	cases := map[float64]string{
		1.0:   "1.0",
		-3.0:  "-3.0",
		0.25:  "0.25",
		1e20:  "1e+20",
		0.0:   "0.0",
		-0.75: "-0.75",
	}
	for f, want := range cases {
		if got := formatFloat(f); got != want {
			t.Errorf("formatFloat(%v) = %q, want %q", f, got, want)
		}
	}
}

func TestEscapeString(t *testing.T) {
	cases := map[string]string{
		"plain":     "plain",
		"a'b":       "a\\'b",
		"tab\there": "tab\\there",
		"nl\n":      "nl\\n",
		"back\\":    "back\\\\",
	}
	for in, want := range cases {
		if got := escapeString(in); got != want {
			t.Errorf("escapeString(%q) = %q, want %q", in, got, want)
		}
	}
}
