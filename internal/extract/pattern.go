package extract

import (
	"regexp"
	"strings"

	"github.com/hpungsan/dxtcheck/internal/pyparse"
)

const identPattern = `[\p{L}_][\p{L}\p{N}_]*`

var (
	defPattern       = regexp.MustCompile(`^(?:async[ \t]+)?def[ \t]+(` + identPattern + `)[ \t]*\(`)
	docstringPattern = regexp.MustCompile(`^[rRuU]?("""|''')`)
)

// decoratorPattern matches the start of a marker decorator up to and including
// its opening parenthesis: "@mcp.tool(", "@app.server.tool (".
func decoratorPattern(marker string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^[ \t]*@[ \t]*(?:` + identPattern + `[ \t]*\.[ \t]*)+` + regexp.QuoteMeta(marker) + `[ \t]*\(`)
}

// ToolsFromText scans raw source for marker-decorated functions whose first
// statement is a triple-quoted docstring. Malformed or unrecognized shapes are
// skipped; it never fails. Results are in source order and may repeat names.
func ToolsFromText(src, marker string) []CodeTool {
	if marker == "" {
		marker = DefaultMarker
	}
	src = strings.ReplaceAll(src, "\r\n", "\n")

	var tools []CodeTool
	for _, loc := range decoratorPattern(marker).FindAllStringIndex(src, -1) {
		if tool, ok := toolAt(src, loc[1]); ok {
			tools = append(tools, tool)
		}
	}
	return tools
}

// toolAt reads the declaration following a decorator whose argument list
// starts at i.
func toolAt(src string, i int) (CodeTool, bool) {
	i, ok := scan(src, i, isByte(')'))
	if !ok {
		return CodeTool{}, false
	}
	i = skipTrivia(src, i+1)

	for i < len(src) && src[i] == '@' {
		if i, ok = scan(src, i, isByte('\n')); !ok {
			return CodeTool{}, false
		}
		i = skipTrivia(src, i)
	}

	m := defPattern.FindStringSubmatchIndex(src[i:])
	if m == nil {
		return CodeTool{}, false
	}
	name := src[i+m[2] : i+m[3]]

	if i, ok = scan(src, i+m[1], isByte(')')); !ok {
		return CodeTool{}, false
	}
	i = skipTrivia(src, i+1)
	if strings.HasPrefix(src[i:], "->") {
		if i, ok = scan(src, i+2, isByte(':')); !ok {
			return CodeTool{}, false
		}
	}
	if i >= len(src) || src[i] != ':' {
		return CodeTool{}, false
	}
	i = skipTrivia(src, i+1)

	dm := docstringPattern.FindStringSubmatch(src[i:])
	if dm == nil {
		return CodeTool{}, false
	}
	end, ok := stringEnd(src, i+len(dm[0])-len(dm[1]))
	if !ok {
		return CodeTool{}, false
	}

	return CodeTool{
		Name:        name,
		Description: firstLine(pyparse.StringValue(src[i:end])),
		Source:      SourceCode,
	}, true
}

func firstLine(doc string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(doc), "\n")
	return strings.TrimSpace(line)
}

func isByte(b byte) func(byte) bool {
	return func(c byte) bool { return c == b }
}

// scan advances from i to the first byte at bracket depth zero accepted by
// stop, stepping over string literals, comments and line continuations. It
// reports false on end of input or an unbalanced closing bracket.
func scan(src string, i int, stop func(byte) bool) (int, bool) {
	depth := 0
	for i < len(src) {
		c := src[i]
		if depth == 0 && stop(c) {
			return i, true
		}
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return i, false
			}
		case '"', '\'':
			i = skipString(src, i)
			continue
		case '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case '\\':
			i += 2
			continue
		}
		i++
	}
	return i, false
}

// skipString returns the index just past the string literal whose opening
// quote is at i. Unterminated single-line strings end at the newline.
func skipString(src string, i int) int {
	j, _ := stringEnd(src, i)
	return j
}

// stringEnd is skipString that also reports whether the literal was closed.
func stringEnd(src string, i int) (int, bool) {
	q := src[i]
	if triple := strings.Repeat(string(q), 3); strings.HasPrefix(src[i:], triple) {
		for j := i + 3; j < len(src); j++ {
			if src[j] == '\\' {
				j++
				continue
			}
			if strings.HasPrefix(src[j:], triple) {
				return j + 3, true
			}
		}
		return len(src), false
	}

	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case q:
			return j + 1, true
		case '\n':
			return j, false
		}
	}
	return len(src), false
}

// skipTrivia skips whitespace, newlines, comments and line continuations.
func skipTrivia(src string, i int) int {
	for i < len(src) {
		switch c := src[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '\\' && i+1 < len(src) && src[i+1] == '\n':
			i += 2
		default:
			return i
		}
	}
	return i
}
