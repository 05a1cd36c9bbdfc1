package pyparse

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// splitPrefix separates a string literal into its lowercase prefix and the quoted body.
func splitPrefix(lit string) (string, string) {
	i := strings.IndexAny(lit, `"'`)
	if i < 0 {
		return "", lit
	}
	return strings.ToLower(lit[:i]), lit[i:]
}

// isPlainString reports whether a string literal evaluates to a str constant
// (not bytes, not an f-string or template string).
func isPlainString(lit string) bool {
	prefix, _ := splitPrefix(lit)
	return !strings.ContainsAny(prefix, "bft")
}

// StringValue returns the value of a str literal as written in source,
// prefix and quotes included.
func StringValue(lit string) string {
	return decodeString(lit)
}

// decodeString returns the value of a str literal.
func decodeString(lit string) string {
	prefix, body := splitPrefix(lit)
	if len(body) < 2 {
		return ""
	}

	var inner string
	if len(body) >= 6 && (strings.HasPrefix(body, `"""`) || strings.HasPrefix(body, `'''`)) {
		inner = body[3 : len(body)-3]
	} else {
		inner = body[1 : len(body)-1]
	}

	if strings.Contains(prefix, "r") {
		return inner
	}
	return unescape(inner)
}

// unescape applies Python's backslash escapes for str literals. Unknown
// escapes are kept verbatim, as Python does.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case '\n':
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 32)
			b.WriteRune(rune(v))
			i = j - 1
		case 'x', 'u', 'U':
			width := 2
			if e == 'u' {
				width = 4
			} else if e == 'U' {
				width = 8
			}
			if i+1+width <= len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32); err == nil && utf8.ValidRune(rune(v)) {
					b.WriteRune(rune(v))
					i += width
					continue
				}
			}
			b.WriteByte('\\')
			b.WriteByte(e)
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String()
}

// normalizeNumber renders a numeric literal the way Python prints its value:
// 0x1F -> 31, 1_000 -> 1000, 1e3 -> 1000.0. Imaginary literals keep their text.
func normalizeNumber(lit string) string {
	clean := strings.ReplaceAll(lit, "_", "")
	lower := strings.ToLower(clean)
	if strings.HasSuffix(lower, "j") {
		return lit
	}

	isHex := strings.HasPrefix(lower, "0x")
	if isHex || !strings.ContainsAny(lower, ".e") {
		if strings.HasPrefix(lower, "0") && len(lower) > 1 && strings.Trim(lower, "0") == "" {
			return "0"
		}
		if n, ok := new(big.Int).SetString(lower, 0); ok {
			return n.String()
		}
		return lit
	}

	f, err := strconv.ParseFloat(lower, 64)
	if err != nil {
		return lit
	}
	return formatFloat(f)
}

// formatFloat mimics Python's float repr.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// CleanDoc strips docstring indentation like Python's inspect.cleandoc:
// the first line loses leading whitespace, later lines lose their common
// indentation, and blank lines at either end are dropped.
func CleanDoc(doc string) string {
	lines := strings.Split(expandTabs(doc), "\n")

	margin := -1
	for _, line := range lines[1:] {
		content := len(strings.TrimLeft(line, " \t\f\v\r"))
		if content == 0 {
			continue
		}
		if indent := len(line) - content; margin < 0 || indent < margin {
			margin = indent
		}
	}

	lines[0] = strings.TrimLeft(lines[0], " \t\f\v\r")
	if margin > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) >= margin {
				lines[i] = lines[i][margin:]
			} else {
				lines[i] = ""
			}
		}
	}

	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

// expandTabs replaces tabs with spaces to the next multiple of 8 columns.
func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			n := 8 - col%8
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}
