// Package pyast defines the parsed-tree representation of the restricted
// annotated-Python dialect, together with a lexer, a recursive-descent parser,
// and a best-effort unparser used for passthrough rendering.
//
// Node kinds form a closed tagged union: every statement implements Stmt and
// every expression implements Expr, so consumers dispatch with exhaustive type
// switches. The annotation pass never mutates these nodes; its results live in
// a side table keyed by node pointer (see gen/analyze).
package pyast

// Pos is a source position, 1-based.
type Pos struct {
	Line int
	Col  int
}

// Node is implemented by all tree nodes.
type Node interface {
	Pos() Pos
}

// Stmt is implemented by statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Module is the root of a parsed file.
type Module struct {
	Body []Stmt
}

func (m *Module) Pos() Pos {
	if len(m.Body) > 0 {
		return m.Body[0].Pos()
	}
	return Pos{Line: 1, Col: 1}
}

// Param is a function parameter. Annotation is nil when the parameter carries
// no type hint; the annotator then defaults it to the object type.
type Param struct {
	Name       string
	Annotation Expr
}

// ClassDef is a class definition. Doc holds the leading docstring, already
// stripped from Body.
type ClassDef struct {
	P    Pos
	Name string
	Doc  string
	Body []Stmt
}

// FuncDef is a function or method definition. Returns is the return-type
// annotation expression, nil when absent. A leading docstring is stripped into
// Doc. Method definitions keep their explicit self parameter out of Params.
type FuncDef struct {
	P       Pos
	Name    string
	Params  []Param
	Returns Expr
	Doc     string
	Body    []Stmt
}

// AnnAssign is an annotated assignment: `target: annotation = value`.
// Value is nil for bare declarations (`x: int`).
type AnnAssign struct {
	P          Pos
	Target     Expr
	Annotation Expr
	Value      Expr
}

// Assign is a plain single-target assignment.
type Assign struct {
	P      Pos
	Target Expr
	Value  Expr
}

// AugAssign is a compound assignment such as `x += 1`. Op is the operator
// without the trailing `=`.
type AugAssign struct {
	P      Pos
	Target Expr
	Op     string
	Value  Expr
}

// For is a for-in loop.
type For struct {
	P      Pos
	Target Expr
	Iter   Expr
	Body   []Stmt
}

// While is a while loop.
type While struct {
	P    Pos
	Cond Expr
	Body []Stmt
}

// If is a conditional. An elif chain parses as a nested If as the sole
// element of Else.
type If struct {
	P    Pos
	Cond Expr
	Body []Stmt
	Else []Stmt
}

// Return is a return statement; Value is nil for a bare return.
type Return struct {
	P     Pos
	Value Expr
}

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	P Pos
	X Expr
}

// Pass is the pass statement.
type Pass struct {
	P Pos
}

// Import records an import or from-import line verbatim. The generator drops
// these; the annotator only inspects them to recognize numpy aliases.
type Import struct {
	P    Pos
	Text string
}

func (s *ClassDef) Pos() Pos  { return s.P }
func (s *FuncDef) Pos() Pos   { return s.P }
func (s *AnnAssign) Pos() Pos { return s.P }
func (s *Assign) Pos() Pos    { return s.P }
func (s *AugAssign) Pos() Pos { return s.P }
func (s *For) Pos() Pos       { return s.P }
func (s *While) Pos() Pos     { return s.P }
func (s *If) Pos() Pos        { return s.P }
func (s *Return) Pos() Pos    { return s.P }
func (s *ExprStmt) Pos() Pos  { return s.P }
func (s *Pass) Pos() Pos      { return s.P }
func (s *Import) Pos() Pos    { return s.P }

func (*ClassDef) stmtNode()  {}
func (*FuncDef) stmtNode()   {}
func (*AnnAssign) stmtNode() {}
func (*Assign) stmtNode()    {}
func (*AugAssign) stmtNode() {}
func (*For) stmtNode()       {}
func (*While) stmtNode()     {}
func (*If) stmtNode()        {}
func (*Return) stmtNode()    {}
func (*ExprStmt) stmtNode()  {}
func (*Pass) stmtNode()      {}
func (*Import) stmtNode()    {}

// Name is a bare identifier reference.
type Name struct {
	P  Pos
	ID string
}

// Attribute is an attribute access `x.attr`.
type Attribute struct {
	P    Pos
	X    Expr
	Attr string
}

// Subscript is `x[index]`. Index is a Tuple for multi-part subscripts such as
// Dict[str, int].
type Subscript struct {
	P     Pos
	X     Expr
	Index Expr
}

// Call is a function or method call. Keyword arguments are not part of the
// restricted dialect.
type Call struct {
	P    Pos
	Func Expr
	Args []Expr
}

// BinOp is a binary arithmetic expression.
type BinOp struct {
	P  Pos
	X  Expr
	Op string
	Y  Expr
}

// Compare is a single comparison `x op y`. Chained comparisons are not part of
// the restricted dialect.
type Compare struct {
	P  Pos
	X  Expr
	Op string
	Y  Expr
}

// BoolOp is `x and y` / `x or y`.
type BoolOp struct {
	P  Pos
	X  Expr
	Op string
	Y  Expr
}

// UnaryOp is a prefix operator expression.
type UnaryOp struct {
	P  Pos
	Op string
	X  Expr
}

// IntLit is an integer literal, kept in source form.
type IntLit struct {
	P     Pos
	Value string
}

// FloatLit is a floating-point literal, kept in source form.
type FloatLit struct {
	P     Pos
	Value string
}

// StrLit is a plain string literal. Value holds the unquoted text.
type StrLit struct {
	P     Pos
	Value string
}

// BoolLit is True or False.
type BoolLit struct {
	P     Pos
	Value bool
}

// NoneLit is the None literal.
type NoneLit struct {
	P Pos
}

// FString is an interpolated string literal. Parts alternate freely between
// literal text and embedded expressions.
type FString struct {
	P     Pos
	Parts []FStringPart
}

// FStringPart is one segment of an f-string: either Text (when Expr is nil) or
// an embedded expression.
type FStringPart struct {
	Text string
	Expr Expr
}

// ListLit is a list display `[a, b]`.
type ListLit struct {
	P    Pos
	Elts []Expr
}

// SetLit is a set display `{a, b}`.
type SetLit struct {
	P    Pos
	Elts []Expr
}

// DictLit is a dict display. Keys and Values are parallel.
type DictLit struct {
	P      Pos
	Keys   []Expr
	Values []Expr
}

// Tuple is a parenthesized or subscript-position tuple.
type Tuple struct {
	P    Pos
	Elts []Expr
}

func (e *Name) Pos() Pos      { return e.P }
func (e *Attribute) Pos() Pos { return e.P }
func (e *Subscript) Pos() Pos { return e.P }
func (e *Call) Pos() Pos      { return e.P }
func (e *BinOp) Pos() Pos     { return e.P }
func (e *Compare) Pos() Pos   { return e.P }
func (e *BoolOp) Pos() Pos    { return e.P }
func (e *UnaryOp) Pos() Pos   { return e.P }
func (e *IntLit) Pos() Pos    { return e.P }
func (e *FloatLit) Pos() Pos  { return e.P }
func (e *StrLit) Pos() Pos    { return e.P }
func (e *BoolLit) Pos() Pos   { return e.P }
func (e *NoneLit) Pos() Pos   { return e.P }
func (e *FString) Pos() Pos   { return e.P }
func (e *ListLit) Pos() Pos   { return e.P }
func (e *SetLit) Pos() Pos    { return e.P }
func (e *DictLit) Pos() Pos   { return e.P }
func (e *Tuple) Pos() Pos     { return e.P }

func (*Name) exprNode()      {}
func (*Attribute) exprNode() {}
func (*Subscript) exprNode() {}
func (*Call) exprNode()      {}
func (*BinOp) exprNode()     {}
func (*Compare) exprNode()   {}
func (*BoolOp) exprNode()    {}
func (*UnaryOp) exprNode()   {}
func (*IntLit) exprNode()    {}
func (*FloatLit) exprNode()  {}
func (*StrLit) exprNode()    {}
func (*BoolLit) exprNode()   {}
func (*NoneLit) exprNode()   {}
func (*FString) exprNode()   {}
func (*ListLit) exprNode()   {}
func (*SetLit) exprNode()    {}
func (*DictLit) exprNode()   {}
func (*Tuple) exprNode()     {}

// Walk calls fn for node and every node below it, pre-order. It covers both
// statements and expressions; fn returning false prunes the subtree.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch n := node.(type) {
	case *Module:
		walkStmts(n.Body, fn)
	case *ClassDef:
		walkStmts(n.Body, fn)
	case *FuncDef:
		for _, p := range n.Params {
			walkExpr(p.Annotation, fn)
		}
		walkExpr(n.Returns, fn)
		walkStmts(n.Body, fn)
	case *AnnAssign:
		walkExpr(n.Target, fn)
		walkExpr(n.Annotation, fn)
		walkExpr(n.Value, fn)
	case *Assign:
		walkExpr(n.Target, fn)
		walkExpr(n.Value, fn)
	case *AugAssign:
		walkExpr(n.Target, fn)
		walkExpr(n.Value, fn)
	case *For:
		walkExpr(n.Target, fn)
		walkExpr(n.Iter, fn)
		walkStmts(n.Body, fn)
	case *While:
		walkExpr(n.Cond, fn)
		walkStmts(n.Body, fn)
	case *If:
		walkExpr(n.Cond, fn)
		walkStmts(n.Body, fn)
		walkStmts(n.Else, fn)
	case *Return:
		walkExpr(n.Value, fn)
	case *ExprStmt:
		walkExpr(n.X, fn)
	case *Attribute:
		walkExpr(n.X, fn)
	case *Subscript:
		walkExpr(n.X, fn)
		walkExpr(n.Index, fn)
	case *Call:
		walkExpr(n.Func, fn)
		for _, a := range n.Args {
			walkExpr(a, fn)
		}
	case *BinOp:
		walkExpr(n.X, fn)
		walkExpr(n.Y, fn)
	case *Compare:
		walkExpr(n.X, fn)
		walkExpr(n.Y, fn)
	case *BoolOp:
		walkExpr(n.X, fn)
		walkExpr(n.Y, fn)
	case *UnaryOp:
		walkExpr(n.X, fn)
	case *FString:
		for _, p := range n.Parts {
			walkExpr(p.Expr, fn)
		}
	case *ListLit:
		for _, e := range n.Elts {
			walkExpr(e, fn)
		}
	case *SetLit:
		for _, e := range n.Elts {
			walkExpr(e, fn)
		}
	case *DictLit:
		for _, e := range n.Keys {
			walkExpr(e, fn)
		}
		for _, e := range n.Values {
			walkExpr(e, fn)
		}
	case *Tuple:
		for _, e := range n.Elts {
			walkExpr(e, fn)
		}
	}
}

func walkStmts(body []Stmt, fn func(Node) bool) {
	for _, s := range body {
		Walk(s, fn)
	}
}

func walkExpr(e Expr, fn func(Node) bool) {
	if e != nil {
		Walk(e, fn)
	}
}
