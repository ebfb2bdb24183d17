// Package fuzzy provides the single string-closeness metric shared by the
// expander-adjacent matching and the ranker.
package fuzzy

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the Ratcliff/Obershelp similarity of a and b in [0,1],
// compared case-insensitively rune by rune.
func Ratio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// Best returns the highest Ratio of s against any candidate.
func Best(s string, candidates []string) float64 {
	best := 0.0
	for _, c := range candidates {
		if r := Ratio(s, c); r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return best
}
