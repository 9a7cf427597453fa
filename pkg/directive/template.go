package directive

import (
	"strings"

	terrors "github.com/sambeau/trellis/pkg/errors"
)

// Template is a parsed template ready for rendering.
type Template struct {
	Nodes []Node
}

// ParseTemplate parses template source into a node tree.
func ParseTemplate(src string) (*Template, error) {
	spans, err := Scan(src)
	if err != nil {
		return nil, err
	}
	tp := &templateParser{src: src, spans: spans}
	nodes, end, err := tp.parseNodes()
	if err != nil {
		return nil, err
	}
	if end != "" {
		return nil, tp.errorAt(tp.pos-1, "EXPR-0004", map[string]any{"Got": end, "Open": openerFor(end)})
	}
	return &Template{Nodes: nodes}, nil
}

// MustParseTemplate is like ParseTemplate but panics on error.
func MustParseTemplate(src string) *Template {
	t, err := ParseTemplate(src)
	if err != nil {
		panic(err)
	}
	return t
}

type templateParser struct {
	src   string
	spans []Span
	pos   int
}

func openerFor(end string) string {
	switch end {
	case "endfor":
		return "for"
	case "endif", "else":
		return "if"
	case "endwith":
		return "with"
	}
	return end
}

func (tp *templateParser) errorAt(spanIdx int, code string, data map[string]any) error {
	offset := 0
	if spanIdx >= 0 && spanIdx < len(tp.spans) {
		offset = tp.spans[spanIdx].Offset
	}
	line, col := position(tp.src, offset)
	return terrors.New(code, data).WithPosition(line, col)
}

// parseNodes parses until an end-like tag (endfor, endif, endwith, else) or
// the end of input, returning the tag name that stopped it.
func (tp *templateParser) parseNodes() ([]Node, string, error) {
	var nodes []Node
	for tp.pos < len(tp.spans) {
		sp := tp.spans[tp.pos]
		idx := tp.pos
		tp.pos++

		switch sp.Kind {
		case SpanText:
			nodes = append(nodes, &TextNode{Text: sp.Raw})

		case SpanOutput:
			expr, err := tp.parseExpr(idx, sp.Inner)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, &OutputNode{Expr: expr})

		case SpanTag:
			body := strings.TrimSpace(sp.Inner)
			name, rest := splitWord(body)
			switch name {
			case "endfor", "endif", "endwith", "else":
				return nodes, name, nil
			case "for":
				n, err := tp.parseFor(idx, rest)
				if err != nil {
					return nil, "", err
				}
				nodes = append(nodes, n)
			case "if":
				n, err := tp.parseIf(idx, rest)
				if err != nil {
					return nil, "", err
				}
				nodes = append(nodes, n)
			case "with":
				n, err := tp.parseWith(idx, rest)
				if err != nil {
					return nil, "", err
				}
				nodes = append(nodes, n)
			default:
				return nil, "", tp.errorAt(idx, "EXPR-0003", map[string]any{"Name": name})
			}
		}
	}
	return nodes, "", nil
}

func (tp *templateParser) expectEnd(openIdx int, open string, got string, want ...string) error {
	for _, w := range want {
		if got == w {
			return nil
		}
	}
	if got == "" {
		return tp.errorAt(openIdx, "EXPR-0002", map[string]any{"What": "{% " + open + " %} block"})
	}
	return tp.errorAt(tp.pos-1, "EXPR-0004", map[string]any{"Got": got, "Open": openerFor(got)})
}

func (tp *templateParser) parseFor(idx int, src string) (Node, error) {
	p := tp.subParser(idx, src)

	var vars []string
	for {
		if p.curToken.Type != IDENT {
			p.unexpected("loop variable")
			return nil, p.firstError()
		}
		vars = append(vars, p.curToken.Literal)
		p.nextToken()
		if p.curToken.Type != COMMA || len(vars) == 2 {
			break
		}
		p.nextToken()
	}
	if p.curToken.Type != IN {
		p.unexpected("in")
		return nil, p.firstError()
	}
	p.nextToken()

	iterable := p.Parse()
	if err := p.firstError(); err != nil {
		return nil, err
	}

	body, end, err := tp.parseNodes()
	if err != nil {
		return nil, err
	}
	n := &ForNode{Vars: vars, Iterable: iterable, Body: body}
	if end == "else" {
		n.Else, end, err = tp.parseNodes()
		if err != nil {
			return nil, err
		}
	}
	if err := tp.expectEnd(idx, "for", end, "endfor"); err != nil {
		return nil, err
	}
	return n, nil
}

func (tp *templateParser) parseIf(idx int, src string) (Node, error) {
	cond, err := tp.parseExpr(idx, src)
	if err != nil {
		return nil, err
	}

	then, end, err := tp.parseNodes()
	if err != nil {
		return nil, err
	}
	n := &IfNode{Cond: cond, Then: then}
	if end == "else" {
		n.Else, end, err = tp.parseNodes()
		if err != nil {
			return nil, err
		}
	}
	if err := tp.expectEnd(idx, "if", end, "endif"); err != nil {
		return nil, err
	}
	return n, nil
}

func (tp *templateParser) parseWith(idx int, src string) (Node, error) {
	p := tp.subParser(idx, src)
	if p.curToken.Type != IDENT {
		p.unexpected("name")
		return nil, p.firstError()
	}
	name := p.curToken.Literal
	p.nextToken()
	if p.curToken.Type != ASSIGN {
		p.unexpected("=")
		return nil, p.firstError()
	}
	p.nextToken()

	value := p.Parse()
	if err := p.firstError(); err != nil {
		return nil, err
	}

	body, end, err := tp.parseNodes()
	if err != nil {
		return nil, err
	}
	if err := tp.expectEnd(idx, "with", end, "endwith"); err != nil {
		return nil, err
	}
	return &WithNode{Name: name, Value: value, Body: body}, nil
}

func (tp *templateParser) subParser(idx int, src string) *Parser {
	line, col := position(tp.src, tp.spans[idx].Offset)
	return newParser(newLexerAt(src, line, col))
}

func (tp *templateParser) parseExpr(idx int, src string) (Expr, error) {
	p := tp.subParser(idx, src)
	expr := p.Parse()
	if err := p.firstError(); err != nil {
		return nil, err
	}
	return expr, nil
}

func splitWord(s string) (string, string) {
	i := strings.IndexAny(s, " \t\n\r")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}
