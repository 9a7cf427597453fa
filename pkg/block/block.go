// Package block defines the block tree document model: blocks, their style
// buckets, binding descriptors and component props.
package block

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	terrors "github.com/sambeau/trellis/pkg/errors"
)

// Block is one node of a page or component tree.
type Block struct {
	BlockID         string   `json:"blockId,omitempty"`
	Element         string   `json:"element,omitempty"`
	OriginalElement string   `json:"originalElement,omitempty"`
	Children        []*Block `json:"children,omitempty"`

	BaseStyles   StyleMap `json:"baseStyles"`
	MobileStyles StyleMap `json:"mobileStyles"`
	TabletStyles StyleMap `json:"tabletStyles"`
	RawStyles    StyleMap `json:"rawStyles"`

	Attributes       StyleMap `json:"attributes"`
	CustomAttributes StyleMap `json:"customAttributes"`
	Classes          []string `json:"classes,omitempty"`

	InnerHTML string `json:"innerHTML,omitempty"`
	InnerText string `json:"innerText,omitempty"`

	DataKey       *Binding         `json:"dataKey,omitempty"`
	DynamicValues []Binding        `json:"dynamicValues,omitempty"`
	Props         map[string]*Prop `json:"props,omitempty"`

	IsRepeaterBlock     bool     `json:"isRepeaterBlock,omitempty"`
	VisibilityCondition *Binding `json:"visibilityCondition,omitempty"`

	BlockDataScript   string `json:"blockDataScript,omitempty"`
	BlockClientScript string `json:"blockClientScript,omitempty"`

	ExtendedFromComponent string `json:"extendedFromComponent,omitempty"`
	IsChildOfComponent    string `json:"isChildOfComponent,omitempty"`
	ReferenceBlockID      string `json:"referenceBlockId,omitempty"`
}

// TagName is the element the block renders as before any tag rewriting.
func (b *Block) TagName() string {
	if b.OriginalElement != "" {
		return b.OriginalElement
	}
	if b.Element != "" {
		return b.Element
	}
	return "div"
}

// Bindings returns dataKey followed by dynamicValues.
func (b *Block) Bindings() []Binding {
	out := make([]Binding, 0, len(b.DynamicValues)+1)
	if b.DataKey != nil && b.DataKey.Key != "" {
		out = append(out, *b.DataKey)
	}
	return append(out, b.DynamicValues...)
}

// HasStyles reports whether any style bucket has an entry.
func (b *Block) HasStyles() bool {
	return len(b.BaseStyles) > 0 || len(b.MobileStyles) > 0 ||
		len(b.TabletStyles) > 0 || len(b.RawStyles) > 0
}

// Normalize fills nil maps with empty ones across the whole subtree so
// merges and lookups are total.
func (b *Block) Normalize() {
	if b.BaseStyles == nil {
		b.BaseStyles = StyleMap{}
	}
	if b.MobileStyles == nil {
		b.MobileStyles = StyleMap{}
	}
	if b.TabletStyles == nil {
		b.TabletStyles = StyleMap{}
	}
	if b.RawStyles == nil {
		b.RawStyles = StyleMap{}
	}
	if b.Attributes == nil {
		b.Attributes = StyleMap{}
	}
	if b.CustomAttributes == nil {
		b.CustomAttributes = StyleMap{}
	}
	for name, p := range b.Props {
		if p == nil {
			delete(b.Props, name)
		}
	}
	kept := b.Children[:0]
	for _, c := range b.Children {
		if c != nil {
			c.Normalize()
			kept = append(kept, c)
		}
	}
	b.Children = kept
}

// Clone returns a deep copy of the block and its subtree.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := *b
	c.BaseStyles = b.BaseStyles.Clone()
	c.MobileStyles = b.MobileStyles.Clone()
	c.TabletStyles = b.TabletStyles.Clone()
	c.RawStyles = b.RawStyles.Clone()
	c.Attributes = b.Attributes.Clone()
	c.CustomAttributes = b.CustomAttributes.Clone()
	if b.Classes != nil {
		c.Classes = append([]string(nil), b.Classes...)
	}
	if b.DataKey != nil {
		dk := *b.DataKey
		c.DataKey = &dk
	}
	if b.DynamicValues != nil {
		c.DynamicValues = append([]Binding(nil), b.DynamicValues...)
	}
	if b.VisibilityCondition != nil {
		vc := *b.VisibilityCondition
		c.VisibilityCondition = &vc
	}
	if b.Props != nil {
		c.Props = make(map[string]*Prop, len(b.Props))
		for k, p := range b.Props {
			c.Props[k] = p.Clone()
		}
	}
	if b.Children != nil {
		c.Children = make([]*Block, len(b.Children))
		for i, child := range b.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// Walk calls fn for b and every descendant in depth-first order until fn
// returns false. Nil blocks are skipped.
func (b *Block) Walk(fn func(*Block) bool) bool {
	if b == nil {
		return true
	}
	if !fn(b) {
		return false
	}
	for _, c := range b.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// StyleMap maps CSS property or attribute names to values. JSON numbers
// and booleans are accepted and kept in their textual form; nulls are
// dropped.
type StyleMap map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (m *StyleMap) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = StyleMap{}
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(StyleMap, len(raw))
	for k, v := range raw {
		s, ok, err := scalarString(v)
		if err != nil {
			return fmt.Errorf("%q: %w", k, err)
		}
		if ok {
			out[k] = s
		}
	}
	*m = out
	return nil
}

// Keys returns the map keys in sorted order.
func (m StyleMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of the map, never nil.
func (m StyleMap) Clone() StyleMap {
	out := make(StyleMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// scalarString converts a JSON scalar to its string form. The bool result
// is false for null.
func scalarString(v json.RawMessage) (string, bool, error) {
	var x any
	if err := json.Unmarshal(v, &x); err != nil {
		return "", false, err
	}
	switch t := x.(type) {
	case nil:
		return "", false, nil
	case string:
		return t, true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true, nil
	default:
		return "", false, fmt.Errorf("expected a scalar value, got %s", string(v))
	}
}

// Decode parses a JSON document holding one block or an array of blocks.
// Any shape error is a MalformedInput failure.
func Decode(data []byte) ([]*Block, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, terrors.New("INPUT-0001", map[string]any{"Reason": "empty document"})
	}

	var blocks []*Block
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return nil, malformed(err)
		}
	case '{':
		var b Block
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, malformed(err)
		}
		blocks = []*Block{&b}
	default:
		return nil, terrors.New("INPUT-0002", map[string]any{"Got": describeJSON(trimmed)})
	}

	out := blocks[:0]
	for _, b := range blocks {
		if b != nil {
			b.Normalize()
			out = append(out, b)
		}
	}
	return out, nil
}

func malformed(err error) error {
	return terrors.New("INPUT-0001", map[string]any{"Reason": err.Error()})
}

func describeJSON(data []byte) string {
	switch data[0] {
	case '"':
		return "a string"
	case 't', 'f':
		return "a boolean"
	case 'n':
		return "null"
	default:
		if data[0] == '-' || (data[0] >= '0' && data[0] <= '9') {
			return "a number"
		}
		return "invalid JSON"
	}
}
