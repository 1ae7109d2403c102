package util

import (
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"
)

// Fold returns s with Unicode case folding applied, suitable for caseless comparison.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// ContainsFold reports whether needle occurs anywhere in text, ignoring case.
// It is a plain substring match: no word boundaries are applied.
func ContainsFold(text, needle string) bool {
	return strings.Contains(Fold(text), Fold(needle))
}

// MatchedTerms returns the terms that occur in text (case-insensitive), in the order of terms.
func MatchedTerms(text string, terms []string) []string {
	if text == "" {
		return nil
	}
	ft := Fold(text)
	var out []string
	for _, t := range terms {
		if strings.Contains(ft, Fold(t)) {
			out = append(out, t)
		}
	}
	return out
}

// Length returns the number of user-perceived characters (grapheme clusters) in s.
func Length(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// Truncate cuts s to keep clusters grapheme clusters and appends suffix
// when s is longer than max clusters. Emoji are never split.
func Truncate(s string, max, keep int, suffix string) string {
	if Length(s) <= max {
		return s
	}
	var b strings.Builder
	gr := uniseg.NewGraphemes(s)
	for n := 0; n < keep && gr.Next(); n++ {
		b.WriteString(gr.Str())
	}
	return b.String() + suffix
}
