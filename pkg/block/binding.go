package block

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// BindingType says which part of a block a binding rewrites.
type BindingType int

const (
	BindKey       BindingType = iota // a block field such as innerHTML
	BindAttribute                    // an HTML attribute
	BindStyle                        // an inline style property
)

var bindingTypeNames = map[BindingType]string{
	BindKey:       "key",
	BindAttribute: "attribute",
	BindStyle:     "style",
}

func (t BindingType) String() string {
	if s, ok := bindingTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("BindingType(%d)", int(t))
}

// Scope names the data scope a binding reads from.
type Scope int

const (
	ScopeDataScript      Scope = iota // page-level data
	ScopeBlockDataScript              // the enclosing block data script
	ScopeProps                        // component props
)

var scopeNames = map[Scope]string{
	ScopeDataScript:      "dataScript",
	ScopeBlockDataScript: "blockDataScript",
	ScopeProps:           "props",
}

func (s Scope) String() string {
	if n, ok := scopeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Scope(%d)", int(s))
}

// ParseScope maps a comesFrom value to a Scope. Empty means dataScript;
// unknown values also fall back to dataScript with ok set to false.
func ParseScope(s string) (Scope, bool) {
	switch s {
	case "", "dataScript":
		return ScopeDataScript, true
	case "blockDataScript":
		return ScopeBlockDataScript, true
	case "props":
		return ScopeProps, true
	}
	return ScopeDataScript, false
}

// Binding is a decoded dataKey, dynamicValues entry or visibility
// condition.
type Binding struct {
	Key      string
	Property string
	Type     BindingType
	Scope    Scope

	// UnknownScope holds a comesFrom value that was not recognized and was
	// replaced by dataScript. UnknownType does the same for type.
	UnknownScope string
	UnknownType  string

	// ScopeSet and TypeSet record whether the descriptor carried comesFrom
	// and type, so merges can tell an explicit dataScript or key from the
	// decoded default.
	ScopeSet bool
	TypeSet  bool
}

// HasScope reports whether the scope was given rather than defaulted.
func (b Binding) HasScope() bool {
	return b.ScopeSet || b.Scope != ScopeDataScript || b.UnknownScope != ""
}

// HasType reports whether the type was given rather than defaulted.
func (b Binding) HasType() bool {
	return b.TypeSet || b.Type != BindKey || b.UnknownType != ""
}

type bindingJSON struct {
	Key       string `json:"key,omitempty"`
	Property  string `json:"property,omitempty"`
	Type      string `json:"type,omitempty"`
	ComesFrom string `json:"comesFrom,omitempty"`
}

// UnmarshalJSON accepts a descriptor object or a bare key string, the
// shorthand used by visibility conditions.
func (b *Binding) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var key string
		if err := json.Unmarshal(data, &key); err != nil {
			return err
		}
		*b = Binding{Key: strings.TrimSpace(key)}
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*b = Binding{}
		return nil
	}

	var raw bindingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("binding: %w", err)
	}

	out := Binding{
		Key:      strings.TrimSpace(raw.Key),
		Property: raw.Property,
		ScopeSet: raw.ComesFrom != "",
		TypeSet:  raw.Type != "",
	}

	scope, ok := ParseScope(raw.ComesFrom)
	out.Scope = scope
	if !ok {
		out.UnknownScope = raw.ComesFrom
	}

	switch raw.Type {
	case "", "key":
		out.Type = BindKey
	case "attribute":
		out.Type = BindAttribute
	case "style":
		out.Type = BindStyle
	default:
		out.Type = BindKey
		out.UnknownType = raw.Type
	}

	*b = out
	return nil
}

// MarshalJSON writes the descriptor form, keeping unknown values.
func (b Binding) MarshalJSON() ([]byte, error) {
	raw := bindingJSON{
		Key:       b.Key,
		Property:  b.Property,
		Type:      b.Type.String(),
		ComesFrom: b.Scope.String(),
	}
	if b.UnknownScope != "" {
		raw.ComesFrom = b.UnknownScope
	}
	if b.UnknownType != "" {
		raw.Type = b.UnknownType
	}
	return json.Marshal(raw)
}

// Segments splits the dotted key into path segments.
func (b Binding) Segments() []string {
	if b.Key == "" {
		return nil
	}
	parts := strings.Split(b.Key, ".")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Prop is one entry of a block's props map.
type Prop struct {
	Value        any
	IsDynamic    bool
	ComesFrom    Scope
	UnknownScope string
	IsPassedDown bool
	IsStandard   bool
	Options      PropOptions
}

// PropOptions is the standard prop metadata.
type PropOptions struct {
	Type    string         `json:"type,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type propJSON struct {
	Value           any          `json:"value"`
	IsDynamic       bool         `json:"isDynamic,omitempty"`
	ComesFrom       string       `json:"comesFrom,omitempty"`
	IsPassedDown    bool         `json:"isPassedDown,omitempty"`
	IsStandard      bool         `json:"isStandard,omitempty"`
	PropOptions     *PropOptions `json:"propOptions,omitempty"`
	StandardOptions *PropOptions `json:"standardOptions,omitempty"`
}

// UnmarshalJSON decodes a prop, accepting the older standardOptions name
// for propOptions.
func (p *Prop) UnmarshalJSON(data []byte) error {
	var raw propJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("prop: %w", err)
	}

	out := Prop{
		Value:        raw.Value,
		IsDynamic:    raw.IsDynamic,
		IsPassedDown: raw.IsPassedDown,
		IsStandard:   raw.IsStandard,
	}
	scope, ok := ParseScope(raw.ComesFrom)
	out.ComesFrom = scope
	if !ok {
		out.UnknownScope = raw.ComesFrom
	}
	switch {
	case raw.PropOptions != nil:
		out.Options = *raw.PropOptions
	case raw.StandardOptions != nil:
		out.Options = *raw.StandardOptions
	}

	*p = out
	return nil
}

// MarshalJSON writes the current field names.
func (p Prop) MarshalJSON() ([]byte, error) {
	raw := propJSON{
		Value:        p.Value,
		IsDynamic:    p.IsDynamic,
		IsPassedDown: p.IsPassedDown,
		IsStandard:   p.IsStandard,
	}
	if p.IsDynamic {
		raw.ComesFrom = p.ComesFrom.String()
		if p.UnknownScope != "" {
			raw.ComesFrom = p.UnknownScope
		}
	}
	if p.Options.Type != "" || p.Options.Options != nil {
		opts := p.Options
		raw.PropOptions = &opts
	}
	return json.Marshal(raw)
}

// StandardType is the declared type of a standard prop, or "".
func (p *Prop) StandardType() string {
	if p == nil || !p.IsStandard {
		return ""
	}
	return p.Options.Type
}

// Clone copies the prop. Values are decoded JSON and are copied deeply.
func (p *Prop) Clone() *Prop {
	if p == nil {
		return nil
	}
	c := *p
	c.Value = cloneValue(p.Value)
	if p.Options.Options != nil {
		c.Options.Options = cloneValue(p.Options.Options).(map[string]any)
	}
	return &c
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
