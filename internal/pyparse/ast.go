package pyparse

// Expr is a parsed expression. Only the shapes the extractor inspects get
// their own node; everything else is an Opaque run of tokens.
type Expr interface {
	exprNode()
}

// Name is a bare identifier: str, DEFAULT_TIMEOUT.
type Name struct {
	ID string
}

func (Name) exprNode() {}

// ConstKind identifies the type of a Constant.
type ConstKind int

const (
	ConstString ConstKind = iota
	ConstNumber
	ConstBool
	ConstNone
	ConstEllipsis
)

// Constant is a literal. Value holds the decoded string for ConstString and
// the source-normalized text otherwise ("30", "1.5", "True", "None").
type Constant struct {
	Kind  ConstKind
	Value string
}

func (Constant) exprNode() {}

// String renders the constant the way Python's str() would.
func (c Constant) String() string {
	if c.Kind == ConstEllipsis {
		return "Ellipsis"
	}
	return c.Value
}

// UnaryOp is a prefix operator applied to an operand: -1, not x.
type UnaryOp struct {
	Op      string
	Operand Expr
}

func (UnaryOp) exprNode() {}

// Attribute is value.attr.
type Attribute struct {
	Value Expr
	Attr  string
}

func (Attribute) exprNode() {}

// Call is fn(args...). Args keep their source text.
type Call struct {
	Func Expr
	Args []string
}

func (Call) exprNode() {}

// Opaque is any expression the extractor does not look inside:
// subscripts, operators, comprehensions, lambdas, f-strings.
type Opaque struct {
	Text string
}

func (Opaque) exprNode() {}

// Arg is one parameter of a function definition.
type Arg struct {
	Name       string
	Annotation Expr
	Pos        Position
}

// Arguments mirrors the shape of a Python parameter list. Defaults apply to
// the trailing entries of PosOnly+Args; KwDefaults is aligned with KwOnly and
// holds nil where a keyword-only parameter has no default.
type Arguments struct {
	PosOnly    []Arg
	Args       []Arg
	VarArg     *Arg
	KwOnly     []Arg
	KwDefaults []Expr
	KwArg      *Arg
	Defaults   []Expr
}

// Positional returns positional-only and regular parameters in order.
func (a Arguments) Positional() []Arg {
	out := make([]Arg, 0, len(a.PosOnly)+len(a.Args))
	out = append(out, a.PosOnly...)
	return append(out, a.Args...)
}

// FuncDef is a def or async def statement, at any nesting depth.
type FuncDef struct {
	Name       string
	Async      bool
	Decorators []Expr
	Args       Arguments
	Returns    Expr
	// Docstring is the raw value of the leading string statement, nil if absent.
	Docstring *string
	Pos       Position
}

// Module is the parse result: every function definition in source order.
type Module struct {
	Funcs []*FuncDef
}
