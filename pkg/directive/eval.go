package directive

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	terrors "github.com/sambeau/trellis/pkg/errors"
)

type undefined struct{}

func (undefined) String() string { return "" }

// Undefined is the value of a missing name or path segment. It is falsy,
// prints as the empty string and any further member access yields Undefined
// again.
var Undefined any = undefined{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// Func is a host function callable from expressions.
type Func func(args ...any) (any, error)

// RootName always reads the root data map, so keys that are not identifiers
// or that are shadowed by bound variables can still be reached as
// data['my-key'].
const RootName = "data"

// EscapeFunc names the builtin that HTML-escapes its argument.
const EscapeFunc = "escape"

// Builtins are available to every render unless shadowed by host functions.
var Builtins = map[string]Func{
	"merge":    builtinMerge,
	"json":     builtinJSON,
	EscapeFunc: builtinEscape,
}

// scope is one frame of variable bindings.
type scope struct {
	vars   map[string]any
	parent *scope
}

func (s *scope) lookup(name string) (any, bool) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (s *scope) child(vars map[string]any) *scope {
	return &scope{vars: vars, parent: s}
}

type renderer struct {
	sb    strings.Builder
	funcs map[string]Func
	root  map[string]any
}

// Render evaluates the template against data. funcs may add or replace
// builtins; block_data is a typical host function.
func (t *Template) Render(data map[string]any, funcs map[string]Func) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	r := &renderer{funcs: funcs, root: data}
	if err := r.renderNodes(t.Nodes, &scope{vars: data}); err != nil {
		return "", err
	}
	return r.sb.String(), nil
}

// Render parses and renders src in one step.
func Render(src string, data map[string]any, funcs map[string]Func) (string, error) {
	t, err := ParseTemplate(src)
	if err != nil {
		return "", err
	}
	return t.Render(data, funcs)
}

func (r *renderer) renderNodes(nodes []Node, s *scope) error {
	for _, n := range nodes {
		if err := r.renderNode(n, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderNode(n Node, s *scope) error {
	switch n := n.(type) {
	case *TextNode:
		r.sb.WriteString(n.Text)

	case *OutputNode:
		v, err := r.eval(n.Expr, s)
		if err != nil {
			return err
		}
		r.sb.WriteString(ToString(v))

	case *IfNode:
		v, err := r.eval(n.Cond, s)
		if err != nil {
			return err
		}
		if Truthy(v) {
			return r.renderNodes(n.Then, s)
		}
		return r.renderNodes(n.Else, s)

	case *WithNode:
		v, err := r.eval(n.Value, s)
		if err != nil {
			return err
		}
		return r.renderNodes(n.Body, s.child(map[string]any{n.Name: v}))

	case *ForNode:
		return r.renderFor(n, s)
	}
	return nil
}

func (r *renderer) renderFor(n *ForNode, s *scope) error {
	v, err := r.eval(n.Iterable, s)
	if err != nil {
		return err
	}

	type pair struct{ k, v any }
	var items []pair

	if m, ok := asMap(v); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			items = append(items, pair{k, m[k]})
		}
	} else if list, ok := asList(v); ok {
		for i, el := range list {
			items = append(items, pair{i, el})
		}
	}

	if len(items) == 0 {
		return r.renderNodes(n.Else, s)
	}

	for i, it := range items {
		vars := map[string]any{
			"loop": map[string]any{
				"index":  i + 1,
				"index0": i,
				"first":  i == 0,
				"last":   i == len(items)-1,
				"length": len(items),
			},
		}
		switch {
		case len(n.Vars) == 1:
			if _, isKey := it.k.(string); isKey {
				vars[n.Vars[0]] = it.k
			} else {
				vars[n.Vars[0]] = it.v
			}
		default:
			k, val := it.k, it.v
			if _, isIdx := it.k.(int); isIdx {
				// lists of pairs unpack into both variables
				if tuple, ok := asList(it.v); ok && len(tuple) == 2 {
					k, val = tuple[0], tuple[1]
				}
			}
			vars[n.Vars[0]] = k
			vars[n.Vars[1]] = val
		}
		if err := r.renderNodes(n.Body, s.child(vars)); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) eval(e Expr, s *scope) (any, error) {
	switch e := e.(type) {
	case *Ident:
		if e.Name == RootName {
			return r.root, nil
		}
		if v, ok := s.lookup(e.Name); ok {
			return v, nil
		}
		if f := r.function(e.Name); f != nil {
			return f, nil
		}
		return Undefined, nil

	case *StringLit:
		return e.Value, nil
	case *NumberLit:
		if e.IsFloat {
			return e.Float, nil
		}
		return e.Int, nil
	case *BoolLit:
		return e.Value, nil
	case *NoneLit:
		return nil, nil

	case *ListLit:
		out := make([]any, 0, len(e.Elements))
		for _, el := range e.Elements {
			v, err := r.eval(el, s)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case *DictLit:
		out := make(map[string]any, len(e.Keys))
		for i, k := range e.Keys {
			v, err := r.eval(e.Values[i], s)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case *Member:
		obj, err := r.eval(e.Object, s)
		if err != nil {
			return nil, err
		}
		return member(obj, e.Name), nil

	case *Index:
		obj, err := r.eval(e.Object, s)
		if err != nil {
			return nil, err
		}
		idx, err := r.eval(e.Index, s)
		if err != nil {
			return nil, err
		}
		return index(obj, idx), nil

	case *Call:
		return r.call(e, s)

	case *Not:
		v, err := r.eval(e.X, s)
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil

	case *Binary:
		left, err := r.eval(e.Left, s)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case AND:
			if !Truthy(left) {
				return left, nil
			}
		case OR:
			if Truthy(left) {
				return left, nil
			}
		case COALESCE:
			if left != nil && !IsUndefined(left) {
				return left, nil
			}
		}
		return r.eval(e.Right, s)
	}
	return nil, fmt.Errorf("unknown expression %T", e)
}

func (r *renderer) function(name string) Func {
	if f, ok := r.funcs[name]; ok {
		return f
	}
	if f, ok := Builtins[name]; ok {
		return f
	}
	return nil
}

func (r *renderer) call(e *Call, s *scope) (any, error) {
	fv, err := r.eval(e.Func, s)
	if err != nil {
		return nil, err
	}
	f, ok := fv.(Func)
	if !ok {
		// a data value named like a function does not hide the function
		if id, isIdent := e.Func.(*Ident); isIdent {
			f = r.function(id.Name)
		}
		if f == nil {
			return nil, terrors.New("EXPR-0101", map[string]any{"Name": e.Func.String()})
		}
	}

	args := make([]any, 0, len(e.Args))
	for _, a := range e.Args {
		v, err := r.eval(a, s)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	out, err := f(args...)
	if err != nil {
		return nil, terrors.New("EXPR-0102", map[string]any{"Function": e.Func.String(), "Reason": err.Error()})
	}
	return out, nil
}

func member(obj any, name string) any {
	if m, ok := asMap(obj); ok {
		if v, ok := m[name]; ok {
			return v
		}
	}
	return Undefined
}

func index(obj any, idx any) any {
	if key, ok := idx.(string); ok {
		return member(obj, key)
	}
	list, ok := asList(obj)
	if !ok {
		return Undefined
	}
	i, ok := toInt(idx)
	if !ok {
		return Undefined
	}
	if i < 0 {
		i += len(list)
	}
	if i < 0 || i >= len(list) {
		return Undefined
	}
	return list[i]
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

// asMap converts string-keyed maps of any value type.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// asList converts slices and arrays of any element type.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case nil, string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Truthy follows the usual template rules: none, Undefined, false, zero,
// the empty string and empty collections are false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil, undefined:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	}
	if m, ok := asMap(v); ok {
		return len(m) > 0
	}
	if l, ok := asList(v); ok {
		return len(l) > 0
	}
	return true
}

// ToString renders a value for output. Values are written raw.
func ToString(v any) string {
	switch x := v.(type) {
	case nil, undefined:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func builtinMerge(args ...any) (any, error) {
	out := map[string]any{}
	for _, a := range args {
		m, ok := asMap(a)
		if !ok {
			continue
		}
		for k, v := range m {
			out[k] = v
		}
	}
	return out, nil
}

func builtinEscape(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	return html.EscapeString(ToString(args[0])), nil
}

func builtinJSON(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	v := args[0]
	if IsUndefined(v) {
		v = nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
