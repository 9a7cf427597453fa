// Package errors provides structured error and diagnostic types for trellis.
//
// TrellisError is a single error value carrying a class, a catalog code and
// rendered message. Diagnostics are the recoverable subset reported back from
// a compilation alongside its output.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and display.
type ErrorClass string

const (
	ClassInput     ErrorClass = "input"     // Malformed documents
	ClassComponent ErrorClass = "component" // Component lookup and inheritance
	ClassBinding   ErrorClass = "binding"   // Dynamic value descriptors
	ClassRepeater  ErrorClass = "repeater"  // Repeater shape
	ClassParse     ErrorClass = "parse"     // Directive syntax
	ClassEval      ErrorClass = "eval"      // Directive evaluation
	ClassStore     ErrorClass = "store"     // Document store
	ClassConfig    ErrorClass = "config"
)

// TrellisError represents any error raised while loading, compiling or
// rendering a block tree.
type TrellisError struct {
	Class   ErrorClass     `json:"class"`
	Code    string         `json:"code"`              // e.g. "COMP-0001"
	Message string         `json:"message"`
	Hints   []string       `json:"hints,omitempty"`
	BlockID string         `json:"blockId,omitempty"` // Offending block, if known
	Line    int            `json:"line,omitempty"`    // Directive source position
	Column  int            `json:"column,omitempty"`
	Data    map[string]any `json:"data,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *TrellisError) Error() string {
	return e.String()
}

// String returns a single-line rendering with hints on following lines.
func (e *TrellisError) String() string {
	var sb strings.Builder

	if e.BlockID != "" {
		sb.WriteString("block ")
		sb.WriteString(e.BlockID)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line string for terminal display.
func (e *TrellisError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassParse:
		sb.WriteString("Directive syntax error")
	case ClassInput:
		sb.WriteString("Input error")
	default:
		sb.WriteString("Compile error")
	}

	if e.BlockID != "" {
		sb.WriteString(":\n  in block: ")
		sb.WriteString(e.BlockID)
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for i, hint := range e.Hints {
		sb.WriteString("\n  ")
		if i == 0 {
			sb.WriteString("Hint: ")
		} else {
			sb.WriteString("  or: ")
		}
		sb.WriteString(hint)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *TrellisError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithBlock returns a copy of the error attributed to blockID.
func (e *TrellisError) WithBlock(blockID string) *TrellisError {
	c := *e
	c.BlockID = blockID
	return &c
}

// WithCause returns a copy of the error that unwraps to cause.
func (e *TrellisError) WithCause(cause error) *TrellisError {
	c := *e
	c.cause = cause
	return &c
}

// Unwrap returns the underlying cause, if any.
func (e *TrellisError) Unwrap() error {
	return e.cause
}

// WithPosition returns a copy of the error with line and column set.
func (e *TrellisError) WithPosition(line, column int) *TrellisError {
	c := *e
	c.Line = line
	c.Column = column
	return &c
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Template string   // Message template with {{.placeholders}}
	Hints    []string // Hint templates
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Input errors (INPUT-0xxx)
	"INPUT-0001": {
		Class:    ClassInput,
		Template: "malformed block document: {{.Reason}}",
	},
	"INPUT-0002": {
		Class:    ClassInput,
		Template: "expected a block object or an array of blocks, got {{.Got}}",
	},
	"INPUT-0003": {
		Class:    ClassInput,
		Template: "invalid {{.Field}} on block: {{.Reason}}",
	},

	// Component errors (COMP-0xxx)
	"COMP-0001": {
		Class:    ClassComponent,
		Template: "component '{{.Component}}' not found",
	},
	"COMP-0002": {
		Class:    ClassComponent,
		Template: "component '{{.Component}}' extends itself through {{.Path}}",
		Hints:    []string{"remove the nested instance of '{{.Component}}'"},
	},
	"COMP-0003": {
		Class:    ClassComponent,
		Template: "component nesting deeper than {{.Max}} levels at '{{.Component}}'",
	},

	// Binding errors (BIND-0xxx)
	"BIND-0001": {
		Class:    ClassBinding,
		Template: "unknown binding scope '{{.Scope}}' for key '{{.Key}}', treated as dataScript",
		Hints:    []string{"comesFrom must be one of dataScript, blockDataScript, props"},
	},
	"BIND-0002": {
		Class:    ClassBinding,
		Template: "unknown binding type '{{.Type}}' for key '{{.Key}}', ignored",
	},

	// Repeater errors (REPEAT-0xxx)
	"REPEAT-0001": {
		Class:    ClassRepeater,
		Template: "repeater must have exactly one child, has {{.Count}}",
		Hints:    []string{"wrap the repeated content in a single container block"},
	},

	// Directive errors (EXPR-0xxx)
	"EXPR-0001": {
		Class:    ClassParse,
		Template: "unexpected {{.Got}}, expected {{.Expected}}",
	},
	"EXPR-0002": {
		Class:    ClassParse,
		Template: "unterminated {{.What}}",
	},
	"EXPR-0003": {
		Class:    ClassParse,
		Template: "unknown directive '{{.Name}}'",
		Hints:    []string{"directives are for, if, with and their end tags"},
	},
	"EXPR-0004": {
		Class:    ClassParse,
		Template: "'{{.Got}}' without matching '{{.Open}}'",
	},
	"EXPR-0005": {
		Class:    ClassParse,
		Template: "expression nesting exceeds maximum depth of {{.Max}}",
	},
	"EXPR-0101": {
		Class:    ClassEval,
		Template: "'{{.Name}}' is not a function",
	},
	"EXPR-0102": {
		Class:    ClassEval,
		Template: "{{.Function}}: {{.Reason}}",
	},

	// Store errors (STORE-0xxx)
	"STORE-0001": {
		Class:    ClassStore,
		Template: "{{.Kind}} '{{.ID}}' not found",
	},
	"STORE-0002": {
		Class:    ClassStore,
		Template: "cannot decode {{.Kind}} '{{.ID}}': {{.Reason}}",
	},
	"STORE-0003": {
		Class:    ClassStore,
		Template: "unsupported store driver '{{.Driver}}'",
		Hints:    []string{"use one of file, sqlite, postgres, mysql"},
	},
}

// New creates a TrellisError from the catalog.
// If the code is not found, creates a generic error with data["message"].
func New(code string, data map[string]any) *TrellisError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &TrellisError{
			Class:   ClassInput,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		if rendered := renderTemplate(hintTmpl, data); rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &TrellisError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewSimple creates an error without using the catalog.
func NewSimple(class ErrorClass, message string) *TrellisError {
	return &TrellisError{Class: class, Message: message}
}

// NewMissingComponent creates a COMP-0001 error with a "did you mean" hint
// when a known component id is close to the requested one.
func NewMissingComponent(id string, known []string) *TrellisError {
	err := New("COMP-0001", map[string]any{"Component": id})
	if suggestion := FindClosestMatch(id, known); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean '"+suggestion+"'?")
	}
	return err
}

func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}

	return prev[len(b)]
}

// FindClosestMatch returns the candidate nearest to input, or "" when nothing
// is within a length-scaled edit distance. Exact matches are not suggestions.
func FindClosestMatch(input string, candidates []string) string {
	if input == "" || len(candidates) == 0 {
		return ""
	}

	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	inputLower := strings.ToLower(input)
	best := ""
	bestDistance := -1
	for _, candidate := range sorted {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			best = candidate
		}
	}

	threshold := 1
	if len(input) >= 4 && len(input) <= 6 {
		threshold = 2
	} else if len(input) >= 7 {
		threshold = 3
	}

	if bestDistance <= 0 || bestDistance > threshold {
		return ""
	}
	return best
}
