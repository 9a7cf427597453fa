package compiler

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sambeau/trellis/pkg/block"
	"github.com/sambeau/trellis/pkg/directive"
	terrors "github.com/sambeau/trellis/pkg/errors"
)

// textTags get TextBlockClass so editors can style text blocks uniformly.
var textTags = map[string]bool{
	"span": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "p": true, "b": true, "label": true, "a": true,
}

var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

const (
	rawHTMLElement   = "__raw_html__"
	instanceAttr     = "data-block-instance"
	blockDataFunc    = "block_data"
	endWith          = "{% endwith %}"
	endIf            = "{% endif %}"
	endFor           = "{% endfor %}"
	defaultElement   = "div"
	generatedIDStart = "block-"
)

// emit writes b and its subtree. Every block is written exactly once; the
// evaluator repeats loop bodies at render time.
func (c *compilation) emit(b *block.Block, s scope) {
	b, s = c.resolve(b, s)

	if b.IsRepeaterBlock && len(b.Children) != 1 {
		c.report(terrors.InvalidRepeaterShape, b.BlockID, terrors.New("REPEAT-0001", map[string]any{
			"Count": len(b.Children),
		}))
		return
	}

	var closers []string
	if guard := c.lowerVisibility(b, s); guard != "" {
		c.out.WriteString("{% if " + guard + " %}")
		closers = append(closers, endIf)
	}

	if n := c.openProps(b, s); n > 0 {
		for i := 0; i < n; i++ {
			closers = append(closers, endWith)
		}
		s = s.withPropTypes(b.Props)
	}

	if b.BlockDataScript != "" {
		id := c.blockKey(b)
		c.scripts[id] = b.BlockDataScript
		c.out.WriteString("{% with " + blockVar + " = " + blockDataFunc + "(" + directive.Quote(id) + ", " + propsVar + ") %}")
		closers = append(closers, endWith)
	}

	inline := c.applyBindings(b, s)
	tag, classes := c.tagFor(b)

	if class, css := c.compileClass(b); class != "" {
		classes = append([]string{class}, classes...)
		c.css.WriteString(css)
	}
	if b.HasStyles() {
		collectStyleFonts(c.fonts, b)
	}
	collectMarkupFonts(c.fonts, b.InnerHTML)

	var instance string
	if b.BlockClientScript != "" {
		instance = c.instanceID(b, s)
	}

	c.out.WriteByte('<')
	c.out.WriteString(tag)
	c.writeAttributes(b, classes, inline, instance)
	c.out.WriteByte('>')

	if !voidTags[tag] {
		switch {
		case b.InnerHTML != "":
			c.out.WriteString(b.InnerHTML)
		case b.InnerText != "":
			c.out.WriteString(escapeText(b.InnerText))
		}
		c.emitChildren(b, s)
		c.out.WriteString("</" + tag + ">")
	}

	if instance != "" {
		c.writeClientScript(b, instance)
	}

	for i := len(closers) - 1; i >= 0; i-- {
		c.out.WriteString(closers[i])
	}
}

func (c *compilation) emitChildren(b *block.Block, s scope) {
	if b.IsRepeaterBlock {
		if l, ok := c.lowerRepeater(b, s); ok {
			body := s.enterLoop(l)
			c.out.WriteString(l.header())
			c.out.WriteString("{% with " + loopIndexVar(body.loopDepth) + " = loop.index %}")
			c.emit(b.Children[0], body)
			c.out.WriteString(endWith + endFor)
			return
		}
	}
	for _, child := range b.Children {
		c.emit(child, s)
	}
}

// openProps writes the with-blocks that bind b's props and returns how
// many were opened.
func (c *compilation) openProps(b *block.Block, s scope) int {
	if len(b.Props) == 0 {
		return 0
	}

	names := make([]string, 0, len(b.Props))
	for name := range b.Props {
		names = append(names, name)
	}
	sort.Strings(names)

	var local, passed []string
	for _, name := range names {
		p := b.Props[name]
		local = append(local, directive.Quote(name)+": "+c.propValue(b, s, name, p))
		if p.IsPassedDown {
			passed = append(passed, directive.Quote(name)+": "+directive.PathExpr(propsVar, name))
		}
	}

	c.out.WriteString("{% with " + propsVar + " = merge(" + passedDownPropsVar + ", {" + strings.Join(local, ", ") + "}) %}")
	if len(passed) == 0 {
		return 1
	}
	c.out.WriteString("{% with " + passedDownPropsVar + " = merge(" + passedDownPropsVar + ", {" + strings.Join(passed, ", ") + "}) %}")
	return 2
}

// propValue is the expression for one prop: a scope path for dynamic props,
// a literal otherwise.
func (c *compilation) propValue(b *block.Block, s scope, name string, p *block.Prop) string {
	if p.IsDynamic {
		key, _ := p.Value.(string)
		bd := block.Binding{Key: key, Scope: p.ComesFrom, UnknownScope: p.UnknownScope}
		if c.checkBinding(b.BlockID, bd) {
			return s.scopePath(bd.Scope, bd.Segments())
		}
		return "none"
	}
	lit, err := directive.Literal(p.Value)
	if err != nil {
		c.log.Debug().Err(err).Str("block", b.BlockID).Str("prop", name).Msg("prop value dropped")
		return "none"
	}
	return lit
}

// tagFor computes the emitted tag name and the author classes.
func (c *compilation) tagFor(b *block.Block) (string, []string) {
	tag := strings.ToLower(strings.TrimSpace(b.TagName()))
	if tag != rawHTMLElement && !validTagName(tag) {
		tag = defaultElement
	}

	classes := append([]string(nil), b.Classes...)
	if textTags[tag] {
		classes = append(classes, TextBlockClass)
	}
	if tag == "p" || tag == rawHTMLElement {
		tag = defaultElement
	}

	if tag == "img" && c.opts.BaseURL != "" {
		if src := b.Attributes["src"]; strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//") {
			b.Attributes["src"] = c.opts.BaseURL + src
		}
	}
	return tag, classes
}

func validTagName(tag string) bool {
	if tag == "" || tag[0] < 'a' || tag[0] > 'z' {
		return false
	}
	for i := 1; i < len(tag); i++ {
		ch := tag[i]
		if !(ch >= 'a' && ch <= 'z') && !(ch >= '0' && ch <= '9') && ch != '-' {
			return false
		}
	}
	return true
}

func validAttrName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, " \t\n\r\f\"'<>/=")
}

// writeAttributes writes sorted attributes with custom attributes taking
// precedence, then class, inline style and the instance marker.
func (c *compilation) writeAttributes(b *block.Block, classes, inline []string, instance string) {
	attrs := make(map[string]string, len(b.Attributes)+len(b.CustomAttributes))
	for k, v := range b.Attributes {
		attrs[k] = v
	}
	for k, v := range b.CustomAttributes {
		attrs[k] = v
	}

	if extra := strings.TrimSpace(attrs["class"]); extra != "" {
		classes = append(classes, extra)
	}
	style := strings.TrimSpace(attrs["style"])
	if len(inline) > 0 {
		if style != "" && !strings.HasSuffix(style, ";") {
			style += ";"
		}
		style = strings.TrimSpace(style + " " + strings.Join(inline, " "))
	}
	delete(attrs, "class")
	delete(attrs, "style")
	delete(attrs, instanceAttr)

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if validAttrName(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.writeAttr(k, attrs[k])
	}

	if len(classes) > 0 {
		c.writeAttr("class", strings.Join(classes, " "))
	}
	if style != "" {
		c.writeAttr("style", style)
	}
	if instance != "" {
		c.writeAttr(instanceAttr, instance)
	}
}

func (c *compilation) writeAttr(name, value string) {
	c.out.WriteByte(' ')
	c.out.WriteString(name)
	c.out.WriteString(`="`)
	c.out.WriteString(escapeText(value))
	c.out.WriteByte('"')
}

// blockKey is the id a block is known by at runtime, generated when the
// block has none.
func (c *compilation) blockKey(b *block.Block) string {
	if b.BlockID == "" {
		b.BlockID = generatedIDStart + strconv.Itoa(c.nextID())
	}
	return b.BlockID
}

// instanceID identifies one rendered occurrence of a block. Inside loops
// each enclosing iteration index is appended so instances stay distinct.
func (c *compilation) instanceID(b *block.Block, s scope) string {
	id := sanitizeVar(c.blockKey(b)) + "-" + strconv.Itoa(c.nextID())
	for d := 1; d <= s.loopDepth; d++ {
		id += "-{{ " + loopIndexVar(d) + " }}"
	}
	return id
}

func (c *compilation) writeClientScript(b *block.Block, instance string) {
	c.out.WriteString("<script>(function() {\n")
	c.out.WriteString("const el = document.querySelector('[" + instanceAttr + "=\"" + instance + "\"]');\n")
	c.out.WriteString("const props = {{ json(" + propsVar + ") }};\n")
	c.out.WriteString(b.BlockClientScript)
	c.out.WriteString("\n})();</script>")
}
