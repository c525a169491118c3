// Package dedup implements the in-batch and cross-source duplicate
// detection cascades of spec.md §4.9: URL equality, title Jaccard,
// content MinHash, and tiered entity matching with fuzzy name match.
package dedup

import (
	"strings"
)

// NormalizeName lowercases, strips punctuation, and collapses
// whitespace, the normalization spec.md §4.8/§4.9.2 requires before any
// name comparison.
func NormalizeName(name string) string {
	var b strings.Builder
	lastWasSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasSpace = false
		case r == ' ' || r == '-' || r == '_' || r == '\t' || r == '\n':
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		default:
			// punctuation: dropped entirely, not replaced with a space,
			// so "O'Brien" normalizes to "obrien" rather than "o brien".
		}
	}
	return strings.TrimSpace(b.String())
}

// FuzzyNameMatch implements the cascade of spec.md §4.9.2: exact
// normalized, substring either-way, structured last/first name
// comparison, falling back to full-name token Jaccard. Returns the
// match confidence (0 if no tier matches).
func FuzzyNameMatch(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.95
	}

	if score, ok := structuredNameMatch(na, nb); ok {
		return score
	}

	if jaccard := tokenJaccard(strings.Fields(na), strings.Fields(nb)); jaccard >= 0.7 {
		return jaccard
	}
	return 0
}

// structuredNameMatch compares last and first name tokens independently,
// assuming "first [middle...] last" ordering.
func structuredNameMatch(na, nb string) (float64, bool) {
	ta, tb := strings.Fields(na), strings.Fields(nb)
	if len(ta) == 0 || len(tb) == 0 {
		return 0, false
	}
	lastA, lastB := ta[len(ta)-1], tb[len(tb)-1]
	firstA, firstB := ta[0], tb[0]

	lastMatches := lastA == lastB || charJaccard(lastA, lastB) >= 0.8
	if !lastMatches {
		return 0, false
	}

	switch {
	case firstA == firstB:
		return 1.0, true
	case isInitialOf(firstA, firstB) || isInitialOf(firstB, firstA):
		return 0.8, true
	case charJaccard(firstA, firstB) >= 0.7:
		return charJaccard(firstA, firstB), true
	}
	return 0, false
}

// isInitialOf reports whether short is a single-letter initial of long
// (e.g. "j" is the initial of "john").
func isInitialOf(short, long string) bool {
	return len(short) == 1 && len(long) > 1 && short[0] == long[0]
}

// tokenJaccard computes Jaccard similarity over two word-token sets.
func tokenJaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	return jaccardOfSets(setA, setB)
}

// charJaccard computes Jaccard similarity over the character sets of
// two short strings (used for last/first name near-matches, e.g. typos).
func charJaccard(a, b string) float64 {
	setA := make(map[rune]bool, len(a))
	for _, r := range a {
		setA[r] = true
	}
	setB := make(map[rune]bool, len(b))
	for _, r := range b {
		setB[r] = true
	}
	inter, union := 0, 0
	for r := range setA {
		union++
		if setB[r] {
			inter++
		}
	}
	for r := range setB {
		if !setA[r] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(tokens []string) map[string]bool {
	out := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		out[t] = true
	}
	return out
}

func jaccardOfSets(a, b map[string]bool) float64 {
	inter, union := 0, 0
	for t := range a {
		union++
		if b[t] {
			inter++
		}
	}
	for t := range b {
		if !a[t] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
