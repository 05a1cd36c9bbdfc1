package pyparse

import "fmt"

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNewline
	TokenIndent
	TokenDedent
	TokenName
	TokenNumber
	TokenString
	TokenOp
)

var tokenNames = map[TokenType]string{
	TokenEOF:     "EOF",
	TokenNewline: "NEWLINE",
	TokenIndent:  "INDENT",
	TokenDedent:  "DEDENT",
	TokenName:    "NAME",
	TokenNumber:  "NUMBER",
	TokenString:  "STRING",
	TokenOp:      "OP",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Position is a location in source text. Line and Column are 1-based.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Token is a lexical token. For strings, Literal keeps the prefix and quotes.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q at %d:%d", t.Type, t.Literal, t.Pos.Line, t.Pos.Column)
}

// is reports whether the token is the operator or keyword lit.
func (t Token) is(lit string) bool {
	return (t.Type == TokenOp || t.Type == TokenName) && t.Literal == lit
}

// SyntaxError reports source that cannot be tokenized or parsed.
type SyntaxError struct {
	Msg string
	Pos Position
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

func errorAt(pos Position, format string, args ...any) *SyntaxError {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Pos: pos}
}
