package errors

import (
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
)

func TestTrellisError_String(t *testing.T) {
	tests := []struct {
		name     string
		err      *TrellisError
		expected string
	}{
		{
			name:     "message only",
			err:      &TrellisError{Message: "something went wrong"},
			expected: "something went wrong",
		},
		{
			name:     "with block",
			err:      &TrellisError{Message: "component 'x' not found", BlockID: "b1"},
			expected: "block b1: component 'x' not found",
		},
		{
			name:     "with position",
			err:      &TrellisError{Message: "unterminated string", Line: 2, Column: 7},
			expected: "line 2, column 7: unterminated string",
		},
		{
			name: "with hints",
			err: &TrellisError{
				Message: "unknown directive 'while'",
				Hints:   []string{"directives are for, if, with and their end tags"},
			},
			expected: "unknown directive 'while'\n  directives are for, if, with and their end tags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTrellisError_PrettyString(t *testing.T) {
	err := New("COMP-0002", map[string]any{"Component": "card", "Path": "card > list > card"}).WithBlock("b7")
	got := err.PrettyString()

	for _, want := range []string{"Compile error", "in block: b7", "extends itself", "Hint: remove the nested instance of 'card'"} {
		if !strings.Contains(got, want) {
			t.Errorf("PrettyString() = %q, missing %q", got, want)
		}
	}
}

func TestNew_Catalog(t *testing.T) {
	tests := []struct {
		code    string
		data    map[string]any
		class   ErrorClass
		message string
	}{
		{"INPUT-0001", map[string]any{"Reason": "unexpected EOF"}, ClassInput, "malformed block document: unexpected EOF"},
		{"COMP-0001", map[string]any{"Component": "hero"}, ClassComponent, "component 'hero' not found"},
		{"REPEAT-0001", map[string]any{"Count": 3}, ClassRepeater, "repeater must have exactly one child, has 3"},
		{"BIND-0001", map[string]any{"Scope": "page", "Key": "title"}, ClassBinding, "unknown binding scope 'page' for key 'title', treated as dataScript"},
		{"EXPR-0002", map[string]any{"What": "string"}, ClassParse, "unterminated string"},
	}

	for _, tt := range tests {
		err := New(tt.code, tt.data)
		if err.Class != tt.class {
			t.Errorf("%s: expected class %q, got %q", tt.code, tt.class, err.Class)
		}
		if err.Message != tt.message {
			t.Errorf("%s: expected message %q, got %q", tt.code, tt.message, err.Message)
		}
	}
}

func TestNew_UnknownCode(t *testing.T) {
	err := New("NOPE-9999", map[string]any{"message": "custom"})
	if err.Message != "custom" {
		t.Errorf("expected custom message, got %q", err.Message)
	}
	if err.Code != "NOPE-9999" {
		t.Errorf("expected code to be kept, got %q", err.Code)
	}
}

func TestToJSON(t *testing.T) {
	err := New("COMP-0001", map[string]any{"Component": "hero"}).WithBlock("b1")
	data, jerr := err.ToJSON()
	if jerr != nil {
		t.Fatalf("ToJSON: %v", jerr)
	}

	var decoded map[string]any
	if jerr := json.Unmarshal(data, &decoded); jerr != nil {
		t.Fatalf("unmarshal: %v", jerr)
	}
	if decoded["code"] != "COMP-0001" || decoded["blockId"] != "b1" || decoded["class"] != "component" {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestNewMissingComponent_Suggestion(t *testing.T) {
	err := NewMissingComponent("heor", []string{"footer", "hero", "navbar"})
	if len(err.Hints) != 1 || err.Hints[0] != "Did you mean 'hero'?" {
		t.Errorf("expected hero suggestion, got %v", err.Hints)
	}

	err = NewMissingComponent("zzzzzz", []string{"hero"})
	if len(err.Hints) != 0 {
		t.Errorf("expected no suggestion, got %v", err.Hints)
	}
}

func TestFindClosestMatch(t *testing.T) {
	tests := []struct {
		input      string
		candidates []string
		expected   string
	}{
		{"", []string{"a"}, ""},
		{"card", nil, ""},
		{"card", []string{"card"}, ""},
		{"crad", []string{"card", "cart"}, "card"},
		{"navigation", []string{"navigaton"}, "navigaton"},
	}
	for _, tt := range tests {
		if got := FindClosestMatch(tt.input, tt.candidates); got != tt.expected {
			t.Errorf("FindClosestMatch(%q): expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestDiagnostics(t *testing.T) {
	ds := Diagnostics{
		NewDiagnostic(MissingComponent, "COMP-0001", "a", map[string]any{"Component": "x"}),
		NewDiagnostic(InvalidRepeaterShape, "REPEAT-0001", "b", map[string]any{"Count": 0}),
	}

	if !ds.Has(MissingComponent) || ds.Has(ComponentCycle) {
		t.Errorf("Has reported wrong kinds for %v", ds)
	}
	if got := ds.ForBlock("b"); len(got) != 1 || got[0].Kind != InvalidRepeaterShape {
		t.Errorf("ForBlock(b) = %v", got)
	}

	data, err := json.Marshal(ds[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"MissingComponent"`) {
		t.Errorf("expected kind by name, got %s", data)
	}
	if ds[1].String() != "InvalidRepeaterShape [REPEAT-0001] block b: repeater must have exactly one child, has 0" {
		t.Errorf("unexpected String(): %q", ds[1].String())
	}
}

func TestWithCause(t *testing.T) {
	sentinel := stderrors.New("sentinel")
	err := New("STORE-0001", map[string]any{"Kind": "page", "ID": "/"}).WithCause(sentinel)

	if !stderrors.Is(err, sentinel) {
		t.Errorf("expected error to unwrap to sentinel")
	}
	if err.Error() != "page '/' not found" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
