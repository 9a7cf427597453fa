package compiler

import (
	"errors"
	"strings"

	"github.com/sambeau/trellis/pkg/block"
	terrors "github.com/sambeau/trellis/pkg/errors"
)

// resolve expands component instances until b no longer extends a
// component. sc.path holds the component ids being expanded above b and is
// extended for each level resolved here. Cycles, missing components and
// excessive depth leave the block rendered from its own data.
func (c *compilation) resolve(b *block.Block, sc scope) (*block.Block, scope) {
	for b.ExtendedFromComponent != "" {
		id := b.ExtendedFromComponent

		if sc.onPath(id) {
			c.report(terrors.ComponentCycle, b.BlockID, terrors.New("COMP-0002", map[string]any{
				"Component": id,
				"Path":      strings.Join(append(append([]string(nil), sc.path...), id), " > "),
			}))
			b.ExtendedFromComponent = ""
			break
		}
		if len(sc.path) >= c.opts.MaxComponentDepth {
			c.report(terrors.ComponentCycle, b.BlockID, terrors.New("COMP-0003", map[string]any{
				"Component": id,
				"Max":       c.opts.MaxComponentDepth,
			}))
			b.ExtendedFromComponent = ""
			break
		}

		tmpl, err := c.lookup.GetComponentByID(id)
		if err != nil || tmpl == nil {
			c.report(terrors.MissingComponent, b.BlockID, c.missingComponent(id, err))
			b.ExtendedFromComponent = ""
			break
		}

		merged := tmpl.Clone()
		merged.Normalize()
		next := merged.ExtendedFromComponent
		merged = mergeOverride(merged, b)
		merged.ExtendedFromComponent = next

		sc = sc.enterComponent(id)
		b = merged
	}
	return b, sc
}

func (c *compilation) missingComponent(id string, err error) *terrors.TrellisError {
	var known []string
	if lister, ok := c.lookup.(ComponentLister); ok {
		known = lister.ComponentIDs()
	}
	te := terrors.NewMissingComponent(id, known)
	if err != nil && !errors.Is(err, ErrComponentNotFound) {
		te.Hints = append(te.Hints, err.Error())
	}
	return te
}

// mergeOverride merges the instance data o onto the template clone t and
// returns t. Nothing in o is aliased by the result. The back references of
// t are kept: a nested component instance inside t is matched against its
// own template through them after this merge.
func mergeOverride(t, o *block.Block) *block.Block {
	if o.BlockID != "" {
		t.BlockID = o.BlockID
	}

	mergeStyleMap(t.BaseStyles, o.BaseStyles)
	mergeStyleMap(t.MobileStyles, o.MobileStyles)
	mergeStyleMap(t.TabletStyles, o.TabletStyles)
	mergeStyleMap(t.RawStyles, o.RawStyles)
	mergeStyleMap(t.Attributes, o.Attributes)
	mergeStyleMap(t.CustomAttributes, o.CustomAttributes)

	t.Classes = append(t.Classes, o.Classes...)

	if len(o.DynamicValues) > 0 {
		overridden := make(map[string]bool, len(o.DynamicValues))
		for _, dv := range o.DynamicValues {
			overridden[dv.Property] = true
		}
		kept := t.DynamicValues[:0]
		for _, dv := range t.DynamicValues {
			if !overridden[dv.Property] {
				kept = append(kept, dv)
			}
		}
		t.DynamicValues = append(kept, o.DynamicValues...)
	}

	if o.DataKey != nil {
		if t.DataKey == nil {
			dk := *o.DataKey
			t.DataKey = &dk
		} else {
			mergeDataKey(t.DataKey, o.DataKey)
		}
	}

	if len(o.Props) > 0 && t.Props == nil {
		t.Props = make(map[string]*block.Prop, len(o.Props))
	}
	for name, p := range o.Props {
		np := p.Clone()
		if tp, ok := t.Props[name]; ok && !np.IsStandard && tp.IsStandard {
			np.IsStandard = true
			np.Options = tp.Options
		}
		t.Props[name] = np
	}

	if o.Element != "" {
		t.Element = o.Element
	}
	if o.OriginalElement != "" {
		t.OriginalElement = o.OriginalElement
	}
	if o.InnerHTML != "" {
		t.InnerHTML = o.InnerHTML
	}
	if o.InnerText != "" {
		t.InnerText = o.InnerText
	}
	if o.BlockClientScript != "" {
		t.BlockClientScript = o.BlockClientScript
	}
	if o.BlockDataScript != "" {
		t.BlockDataScript = o.BlockDataScript
	}
	if o.VisibilityCondition != nil && o.VisibilityCondition.Key != "" {
		vc := *o.VisibilityCondition
		t.VisibilityCondition = &vc
	}
	// an instance can make a block a repeater but never unmakes one
	t.IsRepeaterBlock = t.IsRepeaterBlock || o.IsRepeaterBlock

	if t.IsChildOfComponent == "" {
		t.IsChildOfComponent = o.IsChildOfComponent
	}

	t.Children = mergeChildren(t.Children, o.Children)
	return t
}

// mergeChildren pairs template children with the override children that
// reference them. Unmatched template children are kept as they are and
// unmatched overrides are appended.
func mergeChildren(tmpl, overrides []*block.Block) []*block.Block {
	if len(overrides) == 0 {
		return tmpl
	}

	byRef := make(map[string]int, len(overrides))
	byID := make(map[string]int, len(overrides))
	for i, oc := range overrides {
		if oc.ReferenceBlockID != "" {
			if _, dup := byRef[oc.ReferenceBlockID]; !dup {
				byRef[oc.ReferenceBlockID] = i
			}
		}
		if oc.BlockID != "" {
			if _, dup := byID[oc.BlockID]; !dup {
				byID[oc.BlockID] = i
			}
		}
	}

	used := make([]bool, len(overrides))
	out := make([]*block.Block, 0, len(tmpl)+len(overrides))
	for _, tc := range tmpl {
		i, ok := byRef[tc.BlockID]
		if !ok || used[i] {
			i, ok = byID[tc.BlockID]
		}
		if !ok || used[i] || tc.BlockID == "" {
			out = append(out, tc)
			continue
		}
		used[i] = true
		if tc.ReferenceBlockID == "" {
			// a child matched by its own id keeps answering to that id
			tc.ReferenceBlockID = tc.BlockID
		}
		out = append(out, mergeOverride(tc, overrides[i]))
	}
	// unmatched overrides keep their references for the next level down
	for i, oc := range overrides {
		if !used[i] {
			out = append(out, oc.Clone())
		}
	}
	return out
}

func mergeStyleMap(dst, src block.StyleMap) {
	for k, v := range src {
		dst[k] = v
	}
}

// mergeDataKey copies the fields src actually carries. A scope or type left
// out of the override keeps the template's.
func mergeDataKey(dst, src *block.Binding) {
	if src.Key != "" {
		dst.Key = src.Key
	}
	if src.Property != "" {
		dst.Property = src.Property
	}
	if src.HasScope() {
		dst.Scope = src.Scope
		dst.UnknownScope = src.UnknownScope
		dst.ScopeSet = true
	}
	if src.HasType() {
		dst.Type = src.Type
		dst.UnknownType = src.UnknownType
		dst.TypeSet = true
	}
}
