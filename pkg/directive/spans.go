package directive

import (
	"strings"

	terrors "github.com/sambeau/trellis/pkg/errors"
)

// SpanKind distinguishes literal text from directives.
type SpanKind int

const (
	SpanText   SpanKind = iota
	SpanOutput          // {{ ... }}
	SpanTag             // {% ... %}
)

// Span is one piece of template source.
type Span struct {
	Kind   SpanKind
	Raw    string // exact source text including delimiters
	Inner  string // directive body without delimiters, untrimmed
	Offset int    // byte offset of Raw in the source
}

// Scan splits template source into text and directive spans. Quoted strings
// inside directives may contain the closing delimiter.
func Scan(src string) ([]Span, error) {
	var spans []Span
	pos := 0
	for pos < len(src) {
		start, kind := nextOpen(src, pos)
		if start < 0 {
			spans = append(spans, Span{Kind: SpanText, Raw: src[pos:], Offset: pos})
			break
		}
		if start > pos {
			spans = append(spans, Span{Kind: SpanText, Raw: src[pos:start], Offset: pos})
		}

		closer := "}}"
		if kind == SpanTag {
			closer = "%}"
		}
		end := findClose(src, start+2, closer)
		if end < 0 {
			line, col := position(src, start)
			what := "{{ expression"
			if kind == SpanTag {
				what = "{% directive"
			}
			return spans, terrors.New("EXPR-0002", map[string]any{"What": what}).WithPosition(line, col)
		}
		spans = append(spans, Span{
			Kind:   kind,
			Raw:    src[start : end+2],
			Inner:  src[start+2 : end],
			Offset: start,
		})
		pos = end + 2
	}
	return spans, nil
}

// MapText applies f to every literal text run of src and copies directive
// spans through untouched. Unterminated directives are treated as text.
func MapText(src string, f func(string) string) string {
	spans, err := Scan(src)
	var sb strings.Builder
	sb.Grow(len(src))
	covered := 0
	for _, sp := range spans {
		if sp.Kind == SpanText {
			sb.WriteString(f(sp.Raw))
		} else {
			sb.WriteString(sp.Raw)
		}
		covered = sp.Offset + len(sp.Raw)
	}
	if err != nil && covered < len(src) {
		sb.WriteString(f(src[covered:]))
	}
	return sb.String()
}

// HasDirectives reports whether src contains any directive span.
func HasDirectives(src string) bool {
	i, _ := nextOpen(src, 0)
	return i >= 0
}

func nextOpen(src string, from int) (int, SpanKind) {
	for i := from; i+1 < len(src); i++ {
		if src[i] != '{' {
			continue
		}
		switch src[i+1] {
		case '{':
			return i, SpanOutput
		case '%':
			return i, SpanTag
		}
	}
	return -1, SpanText
}

func findClose(src string, from int, closer string) int {
	var quote byte
	for i := from; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		if strings.HasPrefix(src[i:], closer) {
			return i
		}
	}
	return -1
}

// position converts a byte offset to a 1-based line and column.
func position(src string, offset int) (int, int) {
	line, col := 1, 1
	for i := 0; i < offset && i < len(src); i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
