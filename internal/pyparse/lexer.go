package pyparse

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var threeCharOps = []string{"**=", "//=", ">>=", "<<=", "..."}

var twoCharOps = []string{
	"->", "**", "//", "<<", ">>", "<=", ">=", "==", "!=", ":=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
}

const oneCharOps = "+-*/%@&|^~<>()[]{},:;.="

var closerFor = map[byte]byte{')': '(', ']': '[', '}': '{'}

type openBracket struct {
	ch  byte
	pos Position
}

// Lexer tokenizes Python source into logical-line tokens with INDENT/DEDENT.
type Lexer struct {
	src         string
	pos         int
	line        int
	lineStart   int
	brackets    []openBracket
	indents     []int
	atLineStart bool
	tokens      []Token
}

// Tokenize converts src into tokens. Line endings are normalized to "\n" first,
// so token offsets refer to the normalized text.
func Tokenize(src string) ([]Token, error) {
	return tokenize(normalize(src))
}

// normalize drops a byte-order mark and converts line endings to "\n".
func normalize(src string) string {
	src = strings.TrimPrefix(src, "\ufeff")
	src = strings.ReplaceAll(src, "\r\n", "\n")
	return strings.ReplaceAll(src, "\r", "\n")
}

func tokenize(src string) ([]Token, error) {
	l := &Lexer{
		src:         src,
		line:        1,
		indents:     []int{0},
		atLineStart: true,
	}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *Lexer) position(offset int) Position {
	return Position{Offset: offset, Line: l.line, Column: offset - l.lineStart + 1}
}

func (l *Lexer) emit(typ TokenType, start int) {
	l.tokens = append(l.tokens, Token{Type: typ, Literal: l.src[start:l.pos], Pos: l.position(start)})
}

func (l *Lexer) newline() {
	l.line++
	l.lineStart = l.pos
}

func (l *Lexer) lastType() TokenType {
	if len(l.tokens) == 0 {
		return TokenNewline
	}
	return l.tokens[len(l.tokens)-1].Type
}

func (l *Lexer) run() error {
	for {
		if l.atLineStart && len(l.brackets) == 0 {
			blank, err := l.indentation()
			if err != nil {
				return err
			}
			if blank {
				if l.pos >= len(l.src) {
					break
				}
				continue
			}
		}

		l.skipSpace()
		if l.pos >= len(l.src) {
			break
		}

		c := l.src[l.pos]
		switch {
		case c == '#':
			l.skipComment()

		case c == '\n':
			l.pos++
			if len(l.brackets) == 0 {
				l.tokens = append(l.tokens, Token{Type: TokenNewline, Literal: "\n", Pos: l.position(l.pos - 1)})
				l.atLineStart = true
			}
			l.newline()

		case c == '\\':
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '\n' {
				l.pos += 2
				l.newline()
				continue
			}
			return errorAt(l.position(l.pos), "unexpected character after line continuation character")

		case c == '"' || c == '\'':
			if err := l.readString(l.pos); err != nil {
				return err
			}

		case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
			l.readNumber()

		default:
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			if isNameStart(r) {
				start := l.pos
				l.pos += size
				for l.pos < len(l.src) {
					r, size = utf8.DecodeRuneInString(l.src[l.pos:])
					if !isNameChar(r) {
						break
					}
					l.pos += size
				}
				if l.pos < len(l.src) && (l.src[l.pos] == '"' || l.src[l.pos] == '\'') && isStringPrefix(l.src[start:l.pos]) {
					if err := l.readString(start); err != nil {
						return err
					}
					continue
				}
				l.emit(TokenName, start)
				continue
			}
			if err := l.readOp(); err != nil {
				return err
			}
		}
	}

	if n := len(l.brackets); n > 0 {
		open := l.brackets[n-1]
		return errorAt(open.pos, "'%c' was never closed", open.ch)
	}
	if lt := l.lastType(); lt != TokenNewline && lt != TokenDedent && lt != TokenIndent {
		l.tokens = append(l.tokens, Token{Type: TokenNewline, Pos: l.position(l.pos)})
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.tokens = append(l.tokens, Token{Type: TokenDedent, Pos: l.position(l.pos)})
	}
	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.position(l.pos)})
	return nil
}

// indentation measures the leading whitespace of a physical line and emits
// INDENT/DEDENT tokens. It reports blank (true) for empty or comment-only lines.
func (l *Lexer) indentation() (bool, error) {
	col := 0
measure:
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ':
			col++
		case '\t':
			col = (col/8 + 1) * 8
		case '\f':
			col = 0
		default:
			break measure
		}
		l.pos++
	}
	if l.pos >= len(l.src) {
		return true, nil
	}
	switch l.src[l.pos] {
	case '#':
		l.skipComment()
		if l.pos < len(l.src) {
			l.pos++
			l.newline()
		}
		return true, nil
	case '\n':
		l.pos++
		l.newline()
		return true, nil
	}

	pos := l.position(l.pos)
	top := l.indents[len(l.indents)-1]
	if col > top {
		l.indents = append(l.indents, col)
		l.tokens = append(l.tokens, Token{Type: TokenIndent, Pos: pos})
	}
	for col < l.indents[len(l.indents)-1] {
		l.indents = l.indents[:len(l.indents)-1]
		l.tokens = append(l.tokens, Token{Type: TokenDedent, Pos: pos})
		if col > l.indents[len(l.indents)-1] {
			return false, errorAt(pos, "unindent does not match any outer indentation level")
		}
	}
	l.atLineStart = false
	return false, nil
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\f':
			l.pos++
		default:
			return
		}
	}
}

// skipComment advances to the newline ending the comment without consuming it.
func (l *Lexer) skipComment() {
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
}

// readString consumes a string literal whose prefix begins at start and whose
// opening quote is at l.pos.
func (l *Lexer) readString(start int) error {
	startPos := l.position(start)
	q := l.src[l.pos]
	triple := strings.HasPrefix(l.src[l.pos:], strings.Repeat(string(q), 3))
	if triple {
		l.pos += 3
	} else {
		l.pos++
	}

	for {
		if l.pos >= len(l.src) {
			if triple {
				return errorAt(startPos, "unterminated triple-quoted string literal")
			}
			return errorAt(startPos, "unterminated string literal")
		}
		c := l.src[l.pos]
		switch {
		case c == '\\':
			l.pos++
			if l.pos < len(l.src) {
				if l.src[l.pos] == '\n' {
					l.pos++
					l.newline()
				} else {
					l.pos++
				}
			}
			continue
		case c == '\n':
			if !triple {
				return errorAt(startPos, "unterminated string literal")
			}
			l.pos++
			l.newline()
			continue
		case c == q:
			if !triple {
				l.pos++
				l.tokens = append(l.tokens, Token{Type: TokenString, Literal: l.src[start:l.pos], Pos: startPos})
				return nil
			}
			if strings.HasPrefix(l.src[l.pos:], strings.Repeat(string(q), 3)) {
				l.pos += 3
				l.tokens = append(l.tokens, Token{Type: TokenString, Literal: l.src[start:l.pos], Pos: startPos})
				return nil
			}
		}
		l.pos++
	}
}

func (l *Lexer) readNumber() {
	start := l.pos
	hex := l.pos+1 < len(l.src) && l.src[l.pos] == '0' && (l.src[l.pos+1] == 'x' || l.src[l.pos+1] == 'X')
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isDigit(c) || isASCIILetter(c) || c == '_' || c == '.' {
			l.pos++
			continue
		}
		if (c == '+' || c == '-') && !hex && (l.src[l.pos-1] == 'e' || l.src[l.pos-1] == 'E') {
			l.pos++
			continue
		}
		break
	}
	l.emit(TokenNumber, start)
}

func (l *Lexer) readOp() error {
	start := l.pos
	rest := l.src[l.pos:]
	for _, group := range [][]string{threeCharOps, twoCharOps} {
		for _, op := range group {
			if strings.HasPrefix(rest, op) {
				l.pos += len(op)
				l.emit(TokenOp, start)
				return nil
			}
		}
	}

	c := l.src[l.pos]
	if !strings.ContainsRune(oneCharOps, rune(c)) {
		r, _ := utf8.DecodeRuneInString(rest)
		return errorAt(l.position(l.pos), "invalid character %q", r)
	}

	switch c {
	case '(', '[', '{':
		l.brackets = append(l.brackets, openBracket{ch: c, pos: l.position(l.pos)})
	case ')', ']', '}':
		n := len(l.brackets)
		if n == 0 {
			return errorAt(l.position(l.pos), "unmatched '%c'", c)
		}
		if open := l.brackets[n-1]; open.ch != closerFor[c] {
			return errorAt(l.position(l.pos), "closing parenthesis '%c' does not match opening parenthesis '%c'", c, open.ch)
		}
		l.brackets = l.brackets[:n-1]
	}
	l.pos++
	l.emit(TokenOp, start)
	return nil
}

func isStringPrefix(s string) bool {
	switch strings.ToLower(s) {
	case "r", "u", "f", "b", "t", "br", "rb", "fr", "rf", "tr", "rt":
		return true
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNameChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
