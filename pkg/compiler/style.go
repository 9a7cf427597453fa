package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sambeau/trellis/pkg/block"
)

// privateStylePrefix marks editor-only style entries that never reach CSS.
const privateStylePrefix = "__"

// StateStyle is a pseudo-state entry such as "hover:color".
type StateStyle struct {
	State    string
	Property string
	Value    string
}

// SplitStyles partitions styles by the presence of ':' in the key. Every
// key lands in exactly one of the results.
func SplitStyles(styles block.StyleMap) (block.StyleMap, []StateStyle) {
	regular := block.StyleMap{}
	var states []StateStyle
	for k, v := range styles {
		i := strings.LastIndex(k, ":")
		if i < 0 {
			regular[k] = v
			continue
		}
		states = append(states, StateStyle{State: k[:i], Property: k[i+1:], Value: v})
	}
	sort.Slice(states, func(i, j int) bool {
		if states[i].State != states[j].State {
			return states[i].State < states[j].State
		}
		return states[i].Property < states[j].Property
	})
	return regular, states
}

// KebabCase converts a camelCase CSS property to its hyphenated form.
// Already hyphenated names are returned unchanged.
func KebabCase(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			sb.WriteByte('-')
			sb.WriteByte(c + ('a' - 'A'))
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func skipDeclaration(prop, value string) bool {
	return strings.HasPrefix(prop, privateStylePrefix) ||
		strings.TrimSpace(value) == "" || prop == ""
}

// declarations renders sorted "prop: value;" pairs, or "" when every entry
// is skipped.
func declarations(styles block.StyleMap) string {
	var parts []string
	for _, k := range styles.Keys() {
		v := styles[k]
		if skipDeclaration(k, v) {
			continue
		}
		parts = append(parts, KebabCase(k)+": "+v+";")
	}
	return strings.Join(parts, " ")
}

// bucketRules renders the regular rule and the state rules of one bucket.
func bucketRules(class string, regular block.StyleMap, states []StateStyle) []string {
	var rules []string
	if decl := declarations(regular); decl != "" {
		rules = append(rules, fmt.Sprintf(".%s { %s }", class, decl))
	}

	// group state declarations per state, keeping sorted order
	var order []string
	byState := map[string]block.StyleMap{}
	for _, st := range states {
		if skipDeclaration(st.Property, st.Value) {
			continue
		}
		m, ok := byState[st.State]
		if !ok {
			m = block.StyleMap{}
			byState[st.State] = m
			order = append(order, st.State)
		}
		m[st.Property] = st.Value
	}
	for _, state := range order {
		rules = append(rules, fmt.Sprintf(".%s:%s { %s }", class, state, declarations(byState[state])))
	}
	return rules
}

func mediaQuery(maxWidth int, rules []string) string {
	return fmt.Sprintf("@media only screen and (max-width: %dpx) { %s }", maxWidth, strings.Join(rules, " "))
}

// compileClass generates the scoped class for b and its CSS text. It
// returns "" for both when b has no emitted declarations.
func (c *compilation) compileClass(b *block.Block) (string, string) {
	if !b.HasStyles() {
		return "", ""
	}

	baseRegular, baseStates := SplitStyles(b.BaseStyles)
	rawRegular, rawStates := SplitStyles(b.RawStyles)
	for k, v := range rawRegular {
		baseRegular[k] = v
	}
	baseStates = append(baseStates, rawStates...)
	tabletRegular, tabletStates := SplitStyles(b.TabletStyles)
	mobileRegular, mobileStates := SplitStyles(b.MobileStyles)

	// the name is only drawn once we know something will be emitted
	const placeholder = "\x00"
	base := bucketRules(placeholder, baseRegular, baseStates)
	tablet := bucketRules(placeholder, tabletRegular, tabletStates)
	mobile := bucketRules(placeholder, mobileRegular, mobileStates)
	if len(base)+len(tablet)+len(mobile) == 0 {
		return "", ""
	}

	class := c.newClassName(b)
	var sb strings.Builder
	for _, r := range base {
		sb.WriteString(r)
		sb.WriteByte('\n')
	}
	if len(tablet) > 0 {
		sb.WriteString(mediaQuery(TabletMaxWidth, tablet))
		sb.WriteByte('\n')
	}
	if len(mobile) > 0 {
		sb.WriteString(mediaQuery(MobileMaxWidth, mobile))
		sb.WriteByte('\n')
	}
	return class, strings.ReplaceAll(sb.String(), placeholder, class)
}

// newClassName draws a class name that is neither an author class nor a
// name generated earlier in this compilation.
func (c *compilation) newClassName(b *block.Block) string {
	for _, cls := range b.Classes {
		c.classes[cls] = true
	}
	for attempt := 0; ; attempt++ {
		name := c.opts.ClassPrefix + c.opts.NewClassSuffix()
		if attempt >= 16 {
			name = fmt.Sprintf("%s-%d", name, attempt)
		}
		if !c.classes[name] {
			c.classes[name] = true
			return name
		}
	}
}
