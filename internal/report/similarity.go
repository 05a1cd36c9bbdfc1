package report

import "strings"

// CommonWords counts the distinct lowercase whitespace-separated words a and
// b share.
func CommonWords(a, b string) int {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(a)) {
		words[w] = true
	}

	n := 0
	for _, w := range strings.Fields(strings.ToLower(b)) {
		if words[w] {
			n++
			delete(words, w)
		}
	}
	return n
}

// Similar reports whether a and b share at least threshold words.
func Similar(a, b string, threshold int) bool {
	return CommonWords(a, b) >= threshold
}
