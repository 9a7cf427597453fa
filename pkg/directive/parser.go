package directive

import (
	"strconv"

	terrors "github.com/sambeau/trellis/pkg/errors"
)

// MaxNestingDepth is the maximum allowed nesting depth for expressions
const MaxNestingDepth = 100

// Parser parses expression source into an Expr.
type Parser struct {
	l         *Lexer
	curToken  Token
	peekToken Token
	errors    []*terrors.TrellisError
	depth     int
}

// NewParser creates a new expression parser
func NewParser(input string) *Parser {
	return newParser(NewLexer(input))
}

func newParser(l *Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Errors returns any parsing errors
func (p *Parser) Errors() []*terrors.TrellisError {
	return p.errors
}

func (p *Parser) addError(code string, data map[string]any) {
	err := terrors.New(code, data).WithPosition(p.curToken.Line, p.curToken.Column)
	p.errors = append(p.errors, err)
}

func (p *Parser) unexpected(expected string) {
	got := p.curToken.Literal
	switch p.curToken.Type {
	case EOF:
		got = "end of expression"
	case ILLEGAL:
		if lit := p.curToken.Literal; lit != "" && (lit[0] == '\'' || lit[0] == '"') {
			p.addError("EXPR-0002", map[string]any{"What": "string"})
			return
		}
	}
	p.addError("EXPR-0001", map[string]any{"Got": got, "Expected": expected})
}

func (p *Parser) firstError() error {
	if len(p.errors) == 0 {
		return nil
	}
	return p.errors[0]
}

// ParseExpression parses a complete expression.
func ParseExpression(input string) (Expr, error) {
	p := NewParser(input)
	expr := p.Parse()
	if err := p.firstError(); err != nil {
		return nil, err
	}
	return expr, nil
}

// Parse parses one expression and requires the input to end after it.
func (p *Parser) Parse() Expr {
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	if p.curToken.Type != EOF {
		p.unexpected("end of expression")
		return nil
	}
	return expr
}

func (p *Parser) parseExpression() Expr {
	p.depth++
	defer func() { p.depth-- }()

	if p.depth > MaxNestingDepth {
		p.addError("EXPR-0005", map[string]any{"Max": MaxNestingDepth})
		return nil
	}
	return p.parseCoalesce()
}

func (p *Parser) parseCoalesce() Expr {
	left := p.parseOr()
	for left != nil && p.curToken.Type == COALESCE {
		p.nextToken()
		right := p.parseOr()
		if right == nil {
			return nil
		}
		left = &Binary{Op: COALESCE, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	for left != nil && p.curToken.Type == OR {
		p.nextToken()
		right := p.parseAnd()
		if right == nil {
			return nil
		}
		left = &Binary{Op: OR, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseNot()
	for left != nil && p.curToken.Type == AND {
		p.nextToken()
		right := p.parseNot()
		if right == nil {
			return nil
		}
		left = &Binary{Op: AND, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseNot() Expr {
	if p.curToken.Type == NOT {
		p.nextToken()
		x := p.parseNot()
		if x == nil {
			return nil
		}
		return &Not{X: x}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()
	for expr != nil {
		switch p.curToken.Type {
		case DOT:
			p.nextToken()
			if p.curToken.Type != IDENT && !isKeywordToken(p.curToken.Type) {
				p.unexpected("member name")
				return nil
			}
			expr = &Member{Object: expr, Name: p.curToken.Literal}
			p.nextToken()
		case LBRACKET:
			p.nextToken()
			idx := p.parseExpression()
			if idx == nil {
				return nil
			}
			if p.curToken.Type != RBRACKET {
				p.unexpected("]")
				return nil
			}
			p.nextToken()
			expr = &Index{Object: expr, Index: idx}
		case LPAREN:
			p.nextToken()
			args, ok := p.parseList(RPAREN)
			if !ok {
				return nil
			}
			expr = &Call{Func: expr, Args: args}
		default:
			return expr
		}
	}
	return expr
}

// isKeywordToken reports whether a keyword may still be used as a member
// name, so data keys such as item.in or row.none stay reachable.
func isKeywordToken(t TokenType) bool {
	switch t {
	case TRUE, FALSE, NONE, AND, OR, NOT, IN:
		return true
	}
	return false
}

func (p *Parser) parsePrimary() Expr {
	tok := p.curToken
	switch tok.Type {
	case IDENT:
		p.nextToken()
		return &Ident{Name: tok.Literal}
	case STRING:
		p.nextToken()
		return &StringLit{Value: tok.Literal}
	case INT:
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.unexpected("number")
			return nil
		}
		p.nextToken()
		return &NumberLit{Int: v}
	case FLOAT:
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.unexpected("number")
			return nil
		}
		p.nextToken()
		return &NumberLit{Float: v, IsFloat: true}
	case TRUE, FALSE:
		p.nextToken()
		return &BoolLit{Value: tok.Type == TRUE}
	case NONE:
		p.nextToken()
		return &NoneLit{}
	case LPAREN:
		p.nextToken()
		expr := p.parseExpression()
		if expr == nil {
			return nil
		}
		if p.curToken.Type != RPAREN {
			p.unexpected(")")
			return nil
		}
		p.nextToken()
		return expr
	case LBRACKET:
		p.nextToken()
		elems, ok := p.parseList(RBRACKET)
		if !ok {
			return nil
		}
		return &ListLit{Elements: elems}
	case LBRACE:
		return p.parseDict()
	default:
		p.unexpected("expression")
		return nil
	}
}

// parseList parses comma separated expressions up to and including end.
func (p *Parser) parseList(end TokenType) ([]Expr, bool) {
	var items []Expr
	if p.curToken.Type == end {
		p.nextToken()
		return items, true
	}

	for {
		item := p.parseExpression()
		if item == nil {
			return nil, false
		}
		items = append(items, item)

		if p.curToken.Type == COMMA {
			p.nextToken()
			// Allow trailing comma
			if p.curToken.Type == end {
				break
			}
			continue
		}
		break
	}

	if p.curToken.Type != end {
		p.unexpected(end.String())
		return nil, false
	}
	p.nextToken()
	return items, true
}

func (p *Parser) parseDict() Expr {
	dict := &DictLit{}
	p.nextToken() // consume {

	if p.curToken.Type == RBRACE {
		p.nextToken()
		return dict
	}

	for {
		var key string
		switch p.curToken.Type {
		case IDENT, STRING:
			key = p.curToken.Literal
		default:
			p.unexpected("dictionary key")
			return nil
		}
		p.nextToken()

		if p.curToken.Type != COLON {
			p.unexpected(":")
			return nil
		}
		p.nextToken()

		val := p.parseExpression()
		if val == nil {
			return nil
		}
		dict.Keys = append(dict.Keys, key)
		dict.Values = append(dict.Values, val)

		if p.curToken.Type == COMMA {
			p.nextToken()
			if p.curToken.Type == RBRACE {
				break
			}
			continue
		}
		break
	}

	if p.curToken.Type != RBRACE {
		p.unexpected("}")
		return nil
	}
	p.nextToken()
	return dict
}
