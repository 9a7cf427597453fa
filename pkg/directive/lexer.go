// Package directive implements the template mini-language emitted by the
// block compiler: {{ expr }} interpolation and the for, if and with block
// directives.
//
// The package has three parts. The lexer and parser turn expression and
// template source into a small AST. The evaluator renders a parsed template
// against a data map. The literal encoder turns Go values into expression
// source so the compiler can embed static values and fallbacks.
package directive

import (
	"fmt"
	"strings"
)

// TokenType represents different types of expression tokens
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	// Literals
	INT    // 42
	FLOAT  // 3.14
	STRING // 'hello' or "hello"
	IDENT  // props, key_items

	// Keywords
	TRUE  // true, True
	FALSE // false, False
	NONE  // none, None, null
	AND   // and
	OR    // or
	NOT   // not
	IN    // in

	// Operators and delimiters
	COALESCE // ??
	ASSIGN   // =
	DOT      // .
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]
	LPAREN   // (
	RPAREN   // )
	COLON    // :
	COMMA    // ,
)

// Token represents a single expression token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

var tokenNames = map[TokenType]string{
	ILLEGAL:  "ILLEGAL",
	EOF:      "EOF",
	INT:      "INT",
	FLOAT:    "FLOAT",
	STRING:   "STRING",
	IDENT:    "IDENT",
	TRUE:     "TRUE",
	FALSE:    "FALSE",
	NONE:     "NONE",
	AND:      "AND",
	OR:       "OR",
	NOT:      "NOT",
	IN:       "IN",
	COALESCE: "??",
	ASSIGN:   "=",
	DOT:      ".",
	LBRACE:   "{",
	RBRACE:   "}",
	LBRACKET: "[",
	RBRACKET: "]",
	LPAREN:   "(",
	RPAREN:   ")",
	COLON:    ":",
	COMMA:    ",",
}

// String returns a string representation of the token type
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// Lexer tokenizes expression source
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int  // 1-indexed
	column       int  // 1-indexed
}

// NewLexer creates a new expression lexer
func NewLexer(input string) *Lexer {
	return newLexerAt(input, 1, 0)
}

// newLexerAt starts a lexer at a known position inside a larger template.
func newLexerAt(input string, line, column int) *Lexer {
	l := &Lexer{input: input, line: line, column: column}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}

	tok := Token{Line: l.line, Column: l.column}

	switch l.ch {
	case '{':
		tok.Type, tok.Literal = LBRACE, "{"
	case '}':
		tok.Type, tok.Literal = RBRACE, "}"
	case '[':
		tok.Type, tok.Literal = LBRACKET, "["
	case ']':
		tok.Type, tok.Literal = RBRACKET, "]"
	case '(':
		tok.Type, tok.Literal = LPAREN, "("
	case ')':
		tok.Type, tok.Literal = RPAREN, ")"
	case ':':
		tok.Type, tok.Literal = COLON, ":"
	case ',':
		tok.Type, tok.Literal = COMMA, ","
	case '.':
		tok.Type, tok.Literal = DOT, "."
	case '=':
		tok.Type, tok.Literal = ASSIGN, "="
	case '?':
		if l.peekChar() == '?' {
			l.readChar()
			tok.Type, tok.Literal = COALESCE, "??"
		} else {
			tok.Type, tok.Literal = ILLEGAL, "?"
		}
	case '\'', '"':
		quote := l.ch
		lit, ok := l.readString(quote)
		if !ok {
			// keep the quote so the parser can report an unterminated string
			tok.Type, tok.Literal = ILLEGAL, string(quote)+lit
			return tok
		}
		tok.Type, tok.Literal = STRING, lit
		return tok
	case 0:
		tok.Type, tok.Literal = EOF, ""
	default:
		if isDigit(l.ch) || (l.ch == '-' && isDigit(l.peekChar())) {
			return l.readNumber()
		}
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = lookupIdent(tok.Literal)
			return tok
		}
		tok.Type, tok.Literal = ILLEGAL, string(l.ch)
	}

	l.readChar()
	return tok
}

// readString reads a quoted string with backslash escapes. The second
// result is false when the input ends before the closing quote.
func (l *Lexer) readString(quote byte) (string, bool) {
	var sb strings.Builder
	l.readChar() // opening quote

	for l.ch != quote {
		if l.ch == 0 {
			return sb.String(), false
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case 0:
				return sb.String(), false
			default:
				sb.WriteByte(l.ch)
			}
		} else {
			sb.WriteByte(l.ch)
		}
		l.readChar()
	}

	l.readChar() // closing quote
	return sb.String(), true
}

func (l *Lexer) readNumber() Token {
	tok := Token{Line: l.line, Column: l.column, Type: INT}
	start := l.position

	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		tok.Type = FLOAT
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	tok.Literal = l.input[start:l.position]
	return tok
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func lookupIdent(ident string) TokenType {
	switch ident {
	case "true", "True":
		return TRUE
	case "false", "False":
		return FALSE
	case "none", "None", "null":
		return NONE
	case "and":
		return AND
	case "or":
		return OR
	case "not":
		return NOT
	case "in":
		return IN
	default:
		return IDENT
	}
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// IsIdentifier reports whether s can be used as a bare identifier in an
// expression, i.e. it is not a keyword and needs no quoting.
func IsIdentifier(s string) bool {
	if s == "" || !isLetter(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isLetter(s[i]) && !isDigit(s[i]) {
			return false
		}
	}
	return lookupIdent(s) == IDENT
}
