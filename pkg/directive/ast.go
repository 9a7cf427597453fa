package directive

import (
	"strconv"
	"strings"
)

// Expr is a parsed expression.
type Expr interface {
	exprNode()
	String() string
}

type (
	// Ident reads a name from the current scope.
	Ident struct{ Name string }

	// StringLit is a quoted string.
	StringLit struct{ Value string }

	// NumberLit holds either an integer or a float literal.
	NumberLit struct {
		Int     int64
		Float   float64
		IsFloat bool
	}

	BoolLit struct{ Value bool }

	NoneLit struct{}

	ListLit struct{ Elements []Expr }

	// DictLit keeps key order so rendering is deterministic.
	DictLit struct {
		Keys   []string
		Values []Expr
	}

	// Member is x.name. Access on a missing value yields Undefined.
	Member struct {
		Object Expr
		Name   string
	}

	// Index is x[expr].
	Index struct {
		Object Expr
		Index  Expr
	}

	Call struct {
		Func Expr
		Args []Expr
	}

	Not struct{ X Expr }

	// Binary covers and, or and ??.
	Binary struct {
		Op    TokenType
		Left  Expr
		Right Expr
	}
)

func (*Ident) exprNode()     {}
func (*StringLit) exprNode() {}
func (*NumberLit) exprNode() {}
func (*BoolLit) exprNode()   {}
func (*NoneLit) exprNode()   {}
func (*ListLit) exprNode()   {}
func (*DictLit) exprNode()   {}
func (*Member) exprNode()    {}
func (*Index) exprNode()     {}
func (*Call) exprNode()      {}
func (*Not) exprNode()       {}
func (*Binary) exprNode()    {}

func (e *Ident) String() string     { return e.Name }
func (e *StringLit) String() string { return Quote(e.Value) }
func (e *BoolLit) String() string {
	if e.Value {
		return "true"
	}
	return "false"
}
func (e *NoneLit) String() string { return "none" }

func (e *NumberLit) String() string {
	if e.IsFloat {
		return strconv.FormatFloat(e.Float, 'f', -1, 64)
	}
	return strconv.FormatInt(e.Int, 10)
}

func (e *ListLit) String() string {
	parts := make([]string, len(e.Elements))
	for i, el := range e.Elements {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (e *DictLit) String() string {
	parts := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		parts[i] = Quote(k) + ": " + e.Values[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (e *Member) String() string { return e.Object.String() + "." + e.Name }
func (e *Index) String() string  { return e.Object.String() + "[" + e.Index.String() + "]" }

func (e *Call) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return e.Func.String() + "(" + strings.Join(parts, ", ") + ")"
}

func (e *Not) String() string { return "not " + e.X.String() }

func (e *Binary) String() string {
	op := strings.ToLower(e.Op.String())
	return "(" + e.Left.String() + " " + op + " " + e.Right.String() + ")"
}

// Node is a parsed template node.
type Node interface {
	templateNode()
}

type (
	// TextNode is literal markup copied to the output.
	TextNode struct{ Text string }

	// OutputNode is {{ expr }}.
	OutputNode struct{ Expr Expr }

	// ForNode is {% for v in expr %} or {% for k, v in expr %}.
	ForNode struct {
		Vars     []string
		Iterable Expr
		Body     []Node
		Else     []Node
	}

	// IfNode is {% if expr %} with an optional {% else %}.
	IfNode struct {
		Cond Expr
		Then []Node
		Else []Node
	}

	// WithNode is {% with name = expr %}.
	WithNode struct {
		Name  string
		Value Expr
		Body  []Node
	}
)

func (*TextNode) templateNode()   {}
func (*OutputNode) templateNode() {}
func (*ForNode) templateNode()    {}
func (*IfNode) templateNode()     {}
func (*WithNode) templateNode()   {}
