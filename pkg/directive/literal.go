package directive

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Quote returns s as a single-quoted string literal.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			sb.WriteString("\\'")
		case '\\':
			sb.WriteString("\\\\")
		case '\n':
			sb.WriteString("\\n")
		case '\r':
			sb.WriteString("\\r")
		case '\t':
			sb.WriteString("\\t")
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// Literal encodes a decoded JSON value as expression source. Map keys are
// written in sorted order.
func Literal(v any) (string, error) {
	return literal(v, 0)
}

// MustLiteral is like Literal but falls back to a quoted rendering of the
// value when it cannot be encoded.
func MustLiteral(v any) string {
	s, err := Literal(v)
	if err != nil {
		return Quote(fmt.Sprint(v))
	}
	return s
}

func literal(v any, depth int) (string, error) {
	if depth > MaxNestingDepth {
		return "", fmt.Errorf("value nesting exceeds %d levels", MaxNestingDepth)
	}

	switch x := v.(type) {
	case nil:
		return "none", nil
	case undefined:
		return "none", nil
	case string:
		return Quote(x), nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("cannot encode %v", x)
		}
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10), nil
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	}

	if m, ok := asMap(v); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			s, err := literal(m[k], depth+1)
			if err != nil {
				return "", err
			}
			parts = append(parts, Quote(k)+": "+s)
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	}

	if l, ok := asList(v); ok {
		parts := make([]string, 0, len(l))
		for _, el := range l {
			s, err := literal(el, depth+1)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	}

	return "", fmt.Errorf("cannot encode type %T", v)
}

// PathExpr builds an access expression from a root expression and key
// segments: identifiers use member syntax, integers index syntax and
// anything else quoted index syntax.
func PathExpr(root string, segments ...string) string {
	var sb strings.Builder
	sb.WriteString(root)
	for _, seg := range segments {
		switch {
		case IsIdentifier(seg):
			sb.WriteByte('.')
			sb.WriteString(seg)
		case isIndex(seg):
			sb.WriteByte('[')
			sb.WriteString(seg)
			sb.WriteByte(']')
		default:
			sb.WriteByte('[')
			sb.WriteString(Quote(seg))
			sb.WriteByte(']')
		}
	}
	return sb.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
