package compiler

import (
	"strconv"
	"strings"

	"github.com/sambeau/trellis/pkg/block"
)

// Standard prop types that change how a repeater iterates.
const (
	PropTypeArray  = "array"
	PropTypeObject = "object"
)

// loop is a lowered repeater.
type loop struct {
	vars     []string
	iterable string
	childKey string
}

func (l loop) header() string {
	return "{% for " + strings.Join(l.vars, ", ") + " in " + l.iterable + " %}"
}

// repeaterBinding picks the binding that supplies a repeater's iterable:
// dataKey when it has a key, otherwise the first key binding.
func repeaterBinding(b *block.Block) (block.Binding, bool) {
	if b.DataKey != nil && b.DataKey.Key != "" {
		return *b.DataKey, true
	}
	for _, dv := range b.DynamicValues {
		if dv.Type == block.BindKey && dv.UnknownType == "" && dv.Key != "" {
			return dv, true
		}
	}
	return block.Binding{}, false
}

// lowerRepeater builds the loop for a repeater block. It returns false when
// the repeater has no usable iterable, in which case it renders as a plain
// container.
func (c *compilation) lowerRepeater(b *block.Block, s scope) (loop, bool) {
	bd, ok := repeaterBinding(b)
	if !ok || !c.checkBinding(b.BlockID, bd) {
		return loop{}, false
	}
	segs := bd.Segments()
	iterable := s.scopePath(bd.Scope, segs)

	switch bd.Scope {
	case block.ScopeProps:
		if c.propType(b, s, segs[0]) == PropTypeObject {
			return loop{vars: []string{"key", "value"}, iterable: iterable, childKey: "value"}, true
		}
		return loop{vars: []string{"item"}, iterable: iterable, childKey: "item"}, true

	case block.ScopeBlockDataScript:
		return loop{vars: []string{blockVar}, iterable: iterable, childKey: blockVar}, true
	}

	v := s.uniqueVar("key_" + sanitizeVar(bd.Key))
	return loop{vars: []string{v}, iterable: iterable, childKey: v}, true
}

// propType finds the standard type of a prop: first on the component being
// expanded, then on the component the repeated child instantiates, then on
// standard props declared further up the tree.
func (c *compilation) propType(b *block.Block, s scope, name string) string {
	if s.componentID != "" {
		if t := c.lookup.GetStandardPropType(s.componentID, name); t != "" {
			return t
		}
	}
	if len(b.Children) == 1 && b.Children[0].ExtendedFromComponent != "" {
		if t := c.lookup.GetStandardPropType(b.Children[0].ExtendedFromComponent, name); t != "" {
			return t
		}
	}
	return s.propTypes[name]
}

// uniqueVar returns base, or base with a numeric suffix when an enclosing
// loop already binds it.
func (s scope) uniqueVar(base string) string {
	name := base
	for i := 2; s.bound(name); i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	return name
}

// enterLoop returns the scope for a repeater body.
func (s scope) enterLoop(l loop) scope {
	s.loopVars = append(append([]string(nil), s.loopVars...), l.vars...)
	s.loopDepth++
	s.activeKey = l.childKey
	return s
}

func loopIndexVar(depth int) string {
	return loopIndexPrefix + strconv.Itoa(depth)
}

// lowerVisibility returns the guard expression for b, or "" when b is
// always shown.
func (c *compilation) lowerVisibility(b *block.Block, s scope) string {
	vc := b.VisibilityCondition
	if vc == nil || vc.Key == "" {
		return ""
	}
	if vc.UnknownScope != "" {
		c.checkBinding(b.BlockID, block.Binding{Key: vc.Key, UnknownScope: vc.UnknownScope})
	}
	return s.scopePath(vc.Scope, vc.Segments())
}
