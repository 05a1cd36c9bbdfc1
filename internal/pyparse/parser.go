// Package pyparse is a declaration-level parser for Python source.
//
// It tokenizes the whole file (strings, brackets, indentation), checks the
// block structure, and fully parses decorators and function signatures.
// Statement bodies are only scanned for nested definitions and docstrings.
package pyparse

import "strings"

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// compoundKeywords open a statement that must carry a ':' header.
var compoundKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "for": true, "while": true,
	"try": true, "except": true, "finally": true, "with": true, "class": true,
}

type parser struct {
	src  string
	toks []Token
	pos  int
	mod  *Module
}

// Parse parses src and returns every function definition it contains.
// Any lexical or structural error is returned as a *SyntaxError.
func Parse(src string) (*Module, error) {
	src = normalize(src)
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{src: src, toks: toks, mod: &Module{}}
	if err := p.parseBlock(true); err != nil {
		return nil, err
	}
	return p.mod, nil
}

func (p *parser) peek() Token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(lit string) (Token, error) {
	t := p.peek()
	if !t.is(lit) {
		return t, errorAt(t.Pos, "expected '%s', found %s", lit, describe(t))
	}
	return p.next(), nil
}

func describe(t Token) string {
	switch t.Type {
	case TokenEOF:
		return "end of file"
	case TokenNewline:
		return "end of line"
	case TokenIndent:
		return "indent"
	case TokenDedent:
		return "unindent"
	}
	return "'" + t.Literal + "'"
}

// parseBlock parses statements until the DEDENT closing the block, or EOF at top level.
func (p *parser) parseBlock(top bool) error {
	for {
		t := p.peek()
		switch t.Type {
		case TokenEOF:
			return nil
		case TokenDedent:
			p.next()
			if top {
				return errorAt(t.Pos, "unexpected unindent")
			}
			return nil
		case TokenIndent:
			return errorAt(t.Pos, "unexpected indent")
		case TokenNewline:
			p.next()
		default:
			if err := p.parseStatement(); err != nil {
				return err
			}
		}
	}
}

func (p *parser) parseStatement() error {
	t := p.peek()
	switch {
	case t.is("@"):
		return p.parseDecorated()
	case t.Type == TokenName && t.Literal == "def":
		return p.parseFuncDef(nil, false)
	case t.Type == TokenName && t.Literal == "async" && p.peekAt(1).is("def"):
		p.next()
		return p.parseFuncDef(nil, true)
	default:
		return p.parseGeneric()
	}
}

func (p *parser) parseDecorated() error {
	var decorators []Expr
	for p.peek().is("@") {
		p.next()
		expr, err := p.parseExpr(func(t Token) bool { return false })
		if err != nil {
			return err
		}
		if t := p.peek(); t.Type != TokenNewline {
			return errorAt(t.Pos, "invalid decorator: unexpected %s", describe(t))
		}
		p.next()
		decorators = append(decorators, expr)
	}

	t := p.peek()
	switch {
	case t.Type == TokenName && t.Literal == "def":
		return p.parseFuncDef(decorators, false)
	case t.Type == TokenName && t.Literal == "async" && p.peekAt(1).is("def"):
		p.next()
		return p.parseFuncDef(decorators, true)
	case t.Type == TokenName && t.Literal == "class":
		return p.parseGeneric()
	}
	return errorAt(t.Pos, "expected function or class definition after decorator, found %s", describe(t))
}

func (p *parser) parseFuncDef(decorators []Expr, async bool) error {
	defTok := p.next()

	nameTok := p.next()
	if nameTok.Type != TokenName || keywords[nameTok.Literal] {
		return errorAt(nameTok.Pos, "invalid function name %s", describe(nameTok))
	}
	if err := p.skipTypeParams(); err != nil {
		return err
	}
	if _, err := p.expect("("); err != nil {
		return err
	}
	args, err := p.parseArguments()
	if err != nil {
		return err
	}

	var returns Expr
	if p.peek().is("->") {
		p.next()
		returns, err = p.parseExpr(isOp(":"))
		if err != nil {
			return err
		}
	}
	if _, err := p.expect(":"); err != nil {
		return err
	}

	fn := &FuncDef{
		Name:       nameTok.Literal,
		Async:      async,
		Decorators: decorators,
		Args:       args,
		Returns:    returns,
		Pos:        defTok.Pos,
	}
	p.mod.Funcs = append(p.mod.Funcs, fn)
	return p.parseSuite(fn)
}

// skipTypeParams skips a "[T, *Ts]" type parameter list after a function name.
func (p *parser) skipTypeParams() error {
	open := p.peek()
	if !open.is("[") {
		return nil
	}
	p.next()
	for depth := 1; depth > 0; {
		t := p.next()
		switch {
		case t.Type == TokenEOF || t.Type == TokenNewline:
			return errorAt(open.Pos, "unterminated type parameter list")
		case t.is("(") || t.is("[") || t.is("{"):
			depth++
		case t.is(")") || t.is("]") || t.is("}"):
			depth--
		}
	}
	return nil
}

// parseSuite parses the body after a ':' header: either an indented block or
// simple statements on the same line. For functions it records the docstring.
func (p *parser) parseSuite(fn *FuncDef) error {
	if p.peek().Type != TokenNewline {
		if fn != nil {
			fn.Docstring = p.leadingDocstring()
		}
		return p.skipLine()
	}

	nl := p.next()
	if t := p.peek(); t.Type != TokenIndent {
		return errorAt(nl.Pos, "expected an indented block")
	}
	p.next()
	if fn != nil {
		fn.Docstring = p.leadingDocstring()
	}
	return p.parseBlock(false)
}

// leadingDocstring returns the value of a statement made only of str literals
// at the current position, without consuming it.
func (p *parser) leadingDocstring() *string {
	i := p.pos
	var parts []string
	for ; p.toks[i].Type == TokenString; i++ {
		if !isPlainString(p.toks[i].Literal) {
			return nil
		}
		parts = append(parts, decodeString(p.toks[i].Literal))
	}
	if len(parts) == 0 {
		return nil
	}
	if end := p.toks[i]; end.Type != TokenNewline && !end.is(";") {
		return nil
	}
	doc := strings.Join(parts, "")
	return &doc
}

// skipLine consumes the rest of a logical line including its NEWLINE.
func (p *parser) skipLine() error {
	for {
		t := p.peek()
		switch t.Type {
		case TokenEOF:
			return nil
		case TokenNewline:
			p.next()
			return nil
		case TokenIndent, TokenDedent:
			return errorAt(t.Pos, "unexpected %s", describe(t))
		}
		p.next()
	}
}

// parseGeneric handles every statement that is not a function definition.
// A line ending in ':' opens a nested block, which is parsed recursively so
// methods and nested functions are found.
func (p *parser) parseGeneric() error {
	first := p.peek()
	keyword := first.Literal
	if first.Type == TokenName && first.Literal == "async" {
		keyword = p.peekAt(1).Literal
	}

	depth := 0
	topColon := false
	var last Token
	for t := p.peek(); t.Type != TokenNewline && t.Type != TokenEOF; t = p.peek() {
		switch {
		case t.is("(") || t.is("[") || t.is("{"):
			depth++
		case t.is(")") || t.is("]") || t.is("}"):
			depth--
		case t.is(":") && depth == 0:
			topColon = true
		case t.Type == TokenIndent || t.Type == TokenDedent:
			return errorAt(t.Pos, "unexpected %s", describe(t))
		}
		last = p.next()
	}

	if first.Type == TokenName && compoundKeywords[keyword] && !topColon {
		return errorAt(first.Pos, "expected ':' in %q statement", keyword)
	}
	if last.is(":") {
		return p.parseSuite(nil)
	}
	if p.peek().Type == TokenNewline {
		p.next()
	}
	return nil
}

func (p *parser) parseArguments() (Arguments, error) {
	var args Arguments
	seen := make(map[string]bool)
	kwOnly := false
	bareStar := false
	seenDefault := false

	addName := func(a Arg) error {
		if seen[a.Name] {
			return errorAt(a.Pos, "duplicate argument '%s' in function definition", a.Name)
		}
		seen[a.Name] = true
		return nil
	}

	for {
		t := p.peek()
		if t.is(")") {
			p.next()
			break
		}
		if args.KwArg != nil {
			return args, errorAt(t.Pos, "arguments cannot follow var-keyword argument")
		}

		switch {
		case t.is("/"):
			p.next()
			if kwOnly || len(args.PosOnly) > 0 || len(args.Args) == 0 {
				return args, errorAt(t.Pos, "invalid syntax: unexpected '/'")
			}
			args.PosOnly, args.Args = args.Args, nil

		case t.is("*"):
			p.next()
			if kwOnly {
				return args, errorAt(t.Pos, "* argument may appear only once")
			}
			kwOnly = true
			if p.peek().Type == TokenName {
				a, err := p.parseArg()
				if err != nil {
					return args, err
				}
				if err := addName(a); err != nil {
					return args, err
				}
				args.VarArg = &a
			} else {
				bareStar = true
			}

		case t.is("**"):
			p.next()
			a, err := p.parseArg()
			if err != nil {
				return args, err
			}
			if err := addName(a); err != nil {
				return args, err
			}
			args.KwArg = &a

		case t.Type == TokenName:
			a, err := p.parseArg()
			if err != nil {
				return args, err
			}
			if err := addName(a); err != nil {
				return args, err
			}
			var def Expr
			if p.peek().is("=") {
				p.next()
				def, err = p.parseExpr(isOp(",", ")"))
				if err != nil {
					return args, err
				}
			}
			if kwOnly {
				args.KwOnly = append(args.KwOnly, a)
				args.KwDefaults = append(args.KwDefaults, def)
				break
			}
			args.Args = append(args.Args, a)
			if def != nil {
				args.Defaults = append(args.Defaults, def)
				seenDefault = true
			} else if seenDefault {
				return args, errorAt(a.Pos, "parameter without a default follows parameter with a default")
			}

		default:
			return args, errorAt(t.Pos, "invalid syntax in parameter list: unexpected %s", describe(t))
		}

		switch sep := p.peek(); {
		case sep.is(","):
			p.next()
		case sep.is(")"):
		default:
			return args, errorAt(sep.Pos, "expected ',' or ')' in parameter list, found %s", describe(sep))
		}
	}

	if bareStar && len(args.KwOnly) == 0 {
		return args, errorAt(p.peek().Pos, "named arguments must follow bare *")
	}
	return args, nil
}

func (p *parser) parseArg() (Arg, error) {
	t := p.next()
	if t.Type != TokenName || keywords[t.Literal] {
		return Arg{}, errorAt(t.Pos, "invalid parameter name %s", describe(t))
	}
	a := Arg{Name: t.Literal, Pos: t.Pos}
	if p.peek().is(":") {
		p.next()
		ann, err := p.parseExpr(isOp(",", ")", "="))
		if err != nil {
			return a, err
		}
		a.Annotation = ann
	}
	return a, nil
}

func isOp(ops ...string) func(Token) bool {
	return func(t Token) bool {
		if t.Type != TokenOp {
			return false
		}
		for _, op := range ops {
			if t.Literal == op {
				return true
			}
		}
		return false
	}
}

// parseExpr parses an expression ending before a top-level token matching stop
// (or before end of line). Shapes without a dedicated node become Opaque.
func (p *parser) parseExpr(stop func(Token) bool) (Expr, error) {
	ends := func(t Token) bool {
		return t.Type == TokenNewline || t.Type == TokenEOF || stop(t)
	}

	start := p.pos
	if t := p.peek(); ends(t) {
		return nil, errorAt(t.Pos, "expected expression, found %s", describe(t))
	}

	if e := p.parseUnary(); e != nil && ends(p.peek()) {
		return e, nil
	}

	p.pos = start
	// lambdas counts top-level lambda headers still waiting for their ':';
	// a stop token inside one belongs to the lambda's parameters.
	depth, lambdas := 0, 0
	first := p.peek()
	last := first
	for t := p.peek(); depth > 0 || !ends(t) || (lambdas > 0 && stop(t)); t = p.peek() {
		switch {
		case t.Type == TokenEOF:
			return nil, errorAt(t.Pos, "unexpected end of file in expression")
		case depth == 0 && t.Type == TokenName && t.Literal == "lambda":
			lambdas++
		case depth == 0 && lambdas > 0 && t.is(":"):
			lambdas--
		case t.is("(") || t.is("[") || t.is("{"):
			depth++
		case t.is(")") || t.is("]") || t.is("}"):
			depth--
			if depth < 0 {
				return nil, errorAt(t.Pos, "unmatched '%s'", t.Literal)
			}
		}
		last = p.next()
	}
	return Opaque{Text: p.src[first.Pos.Offset : last.Pos.Offset+len(last.Literal)]}, nil
}

// parseUnary returns nil when the expression is not one of the structured shapes.
func (p *parser) parseUnary() Expr {
	t := p.peek()
	if t.is("-") || t.is("+") || t.is("~") || (t.Type == TokenName && t.Literal == "not") {
		p.next()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return UnaryOp{Op: t.Literal, Operand: operand}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() Expr {
	t := p.peek()
	var e Expr

	switch t.Type {
	case TokenName:
		switch {
		case t.Literal == "True" || t.Literal == "False":
			e = Constant{Kind: ConstBool, Value: t.Literal}
		case t.Literal == "None":
			e = Constant{Kind: ConstNone, Value: "None"}
		case keywords[t.Literal]:
			return nil
		default:
			e = Name{ID: t.Literal}
		}
		p.next()

	case TokenNumber:
		p.next()
		e = Constant{Kind: ConstNumber, Value: normalizeNumber(t.Literal)}

	case TokenString:
		var b strings.Builder
		for p.peek().Type == TokenString {
			lit := p.next().Literal
			if !isPlainString(lit) {
				return nil
			}
			b.WriteString(decodeString(lit))
		}
		e = Constant{Kind: ConstString, Value: b.String()}

	case TokenOp:
		if !t.is("...") {
			return nil
		}
		p.next()
		e = Constant{Kind: ConstEllipsis, Value: "..."}

	default:
		return nil
	}

	for {
		switch t := p.peek(); {
		case t.is("."):
			p.next()
			attr := p.next()
			if attr.Type != TokenName {
				return nil
			}
			e = Attribute{Value: e, Attr: attr.Literal}
		case t.is("("):
			e = Call{Func: e, Args: p.parseCallArgs()}
		default:
			return e
		}
	}
}

// parseCallArgs consumes a parenthesized argument list and returns each
// top-level argument's source text. The lexer guarantees brackets balance.
func (p *parser) parseCallArgs() []string {
	p.next()
	var args []string
	depth := 0
	argStart := -1
	argEnd := -1

	flush := func() {
		if argStart >= 0 {
			args = append(args, strings.TrimSpace(p.src[argStart:argEnd]))
		}
		argStart, argEnd = -1, -1
	}

	for {
		t := p.next()
		switch {
		case t.Type == TokenEOF:
			flush()
			return args
		case t.is(")") && depth == 0:
			flush()
			return args
		case t.is(",") && depth == 0:
			flush()
			continue
		case t.is("(") || t.is("[") || t.is("{"):
			depth++
		case t.is(")") || t.is("]") || t.is("}"):
			depth--
		}
		if argStart < 0 {
			argStart = t.Pos.Offset
		}
		argEnd = t.Pos.Offset + len(t.Literal)
	}
}
