package compiler

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/sambeau/trellis/pkg/block"
	"github.com/sambeau/trellis/pkg/directive"
	terrors "github.com/sambeau/trellis/pkg/errors"
)

// Scope names bound by emitted directives.
const (
	propsVar           = "props"
	passedDownPropsVar = "passed_down_props"
	blockVar           = "block"
	loopIndexPrefix    = "idx_"
)

// scope is the per-block context threaded down the tree. It is passed by
// value; slices and maps are copied before being extended.
type scope struct {
	activeKey   string            // expression that dataScript keys are read through
	componentID string            // innermost component being expanded
	path        []string          // component ids being expanded
	loopVars    []string          // loop variables of enclosing repeaters
	loopDepth   int               // number of enclosing repeaters
	propTypes   map[string]string // standard prop types declared above
}

func (s scope) onPath(id string) bool {
	for _, p := range s.path {
		if p == id {
			return true
		}
	}
	return false
}

func (s scope) enterComponent(id string) scope {
	s.path = append(append([]string(nil), s.path...), id)
	s.componentID = id
	return s
}

func (s scope) inRepeater() bool { return s.loopDepth > 0 }

// withPropTypes records standard prop types declared on b.
func (s scope) withPropTypes(props map[string]*block.Prop) scope {
	var added map[string]string
	for name, p := range props {
		if t := p.StandardType(); t != "" {
			if added == nil {
				added = make(map[string]string, len(s.propTypes)+len(props))
				for k, v := range s.propTypes {
					added[k] = v
				}
			}
			added[name] = t
		}
	}
	if added != nil {
		s.propTypes = added
	}
	return s
}

// scopePath returns the expression reading key from the given scope.
func (s scope) scopePath(sc block.Scope, segments []string) string {
	switch sc {
	case block.ScopeProps:
		return directive.PathExpr(propsVar, segments...)
	case block.ScopeBlockDataScript:
		return directive.PathExpr(blockVar, segments...)
	}
	if s.activeKey != "" {
		return directive.PathExpr(s.activeKey, segments...)
	}
	if len(segments) > 0 && directive.IsIdentifier(segments[0]) && !s.bound(segments[0]) {
		return directive.PathExpr(segments[0], segments[1:]...)
	}
	return directive.PathExpr(directive.RootName, segments...)
}

// bound reports whether name is a variable the emitted directives bind,
// which would shadow a page data key of the same name.
func (s scope) bound(name string) bool {
	switch name {
	case propsVar, passedDownPropsVar, blockVar, directive.RootName, "loop":
		return true
	}
	if strings.HasPrefix(name, loopIndexPrefix) {
		return true
	}
	for _, v := range s.loopVars {
		if v == name {
			return true
		}
	}
	return false
}

// checkBinding reports descriptor problems. It returns false when the
// binding must be skipped.
func (c *compilation) checkBinding(blockID string, b block.Binding) bool {
	if b.UnknownScope != "" {
		c.report(terrors.BindingResolutionAmbiguity, blockID, terrors.New("BIND-0001", map[string]any{
			"Scope": b.UnknownScope,
			"Key":   b.Key,
		}))
	}
	if b.UnknownType != "" {
		c.report(terrors.BindingResolutionAmbiguity, blockID, terrors.New("BIND-0002", map[string]any{
			"Type": b.UnknownType,
			"Key":  b.Key,
		}))
		return false
	}
	return len(b.Segments()) > 0
}

// placeholder builds the {{ }} directive for a binding. The fallback is the
// target's static value. Unless the target holds markup, the whole value is
// passed through the escape builtin, so bound data cannot open tags or leave
// a quoted attribute. Key bindings use ?? so empty strings and zero are
// kept, except inside repeater bodies unless PreserveFalsyInRepeaters is set.
func (c *compilation) placeholder(b block.Binding, s scope, fallback string, markup bool) string {
	expr := s.scopePath(b.Scope, b.Segments())
	if fallback != "" {
		op := "or"
		if b.Type == block.BindKey && (!s.inRepeater() || c.opts.PreserveFalsyInRepeaters) {
			op = "??"
		}
		expr += " " + op + " " + directive.Quote(fallback)
	}
	if !markup {
		expr = directive.EscapeFunc + "(" + expr + ")"
	}
	return "{{ " + expr + " }}"
}

// applyBindings rewrites b's fields with placeholders and returns inline
// style declarations for style bindings. Fallbacks always come from the
// values present before any binding was applied.
func (c *compilation) applyBindings(b *block.Block, s scope) []string {
	bindings := b.Bindings()
	if len(bindings) == 0 {
		return nil
	}

	attrs := b.Attributes.Clone()
	styles := b.BaseStyles.Clone()
	innerHTML, innerText := b.InnerHTML, b.InnerText

	var inline []string
	for _, bd := range bindings {
		// a repeater's key binding is its iterable
		if b.IsRepeaterBlock && bd.Type == block.BindKey && bd.UnknownType == "" {
			continue
		}
		if !c.checkBinding(b.BlockID, bd) {
			continue
		}

		switch bd.Type {
		case block.BindAttribute:
			if bd.Property == "" {
				continue
			}
			b.Attributes[bd.Property] = c.placeholder(bd, s, attrs[bd.Property], false)

		case block.BindStyle:
			if bd.Property == "" {
				continue
			}
			prop := KebabCase(bd.Property)
			inline = append(inline, prop+": "+c.placeholder(bd, s, styles[bd.Property], false)+";")

		case block.BindKey:
			switch bd.Property {
			case "", "innerHTML":
				b.InnerHTML = c.placeholder(bd, s, innerHTML, true)
			case "innerText":
				b.InnerText = c.placeholder(bd, s, innerText, false)
			default:
				b.Attributes[bd.Property] = c.placeholder(bd, s, attrs[bd.Property], false)
			}
		}
	}
	return inline
}

// escapeText escapes literal text while keeping directives intact.
func escapeText(s string) string {
	if !directive.HasDirectives(s) {
		return html.EscapeString(s)
	}
	return directive.MapText(s, html.EscapeString)
}

// sanitizeVar turns a key into an identifier fragment.
func sanitizeVar(key string) string {
	var sb strings.Builder
	for i := 0; i < len(key); i++ {
		ch := key[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' {
			sb.WriteByte(ch)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
