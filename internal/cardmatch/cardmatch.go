// Package cardmatch compares card names the way players type them:
// case-insensitively, ignoring punctuation, and tolerating small typos.
// It backs the local subset check that keeps combo results honest — a combo
// is only reported as playable when every card it uses matches a card the
// caller actually supplied.
package cardmatch

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// similarityThreshold is the Jaro-Winkler score above which two normalised
// names are considered the same card. Card names are short, so the
// threshold sits high to avoid conflating e.g. "Mana Drain" and "Mana Vault".
const similarityThreshold = 0.94

// Normalize lowercases a card name, strips punctuation and diacritic-free
// symbols, and collapses runs of whitespace. "Thassa's Oracle" and
// "thassas oracle" normalise identically.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '/':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
		// Apostrophes, commas and other punctuation are dropped entirely.
	}
	return strings.TrimRight(b.String(), " ")
}

// Equal reports whether a and b name the same card, by normalised equality
// or by near-identical spelling.
func Equal(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return matchr.JaroWinkler(na, nb, false) >= similarityThreshold
}

// Covers reports whether every name in required matches some name in pool.
// An empty required list is trivially covered.
func Covers(pool, required []string) bool {
	normalised := make([]string, len(pool))
	for i, p := range pool {
		normalised[i] = Normalize(p)
	}
	for _, req := range required {
		nr := Normalize(req)
		found := false
		for _, np := range normalised {
			if np == nr || (np != "" && nr != "" && matchr.JaroWinkler(np, nr, false) >= similarityThreshold) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Closest returns the candidate most similar to name and its Jaro-Winkler
// score. Returns ("", 0) for an empty candidate list.
func Closest(name string, candidates []string) (string, float64) {
	nn := Normalize(name)
	best, bestScore := "", 0.0
	for _, c := range candidates {
		score := matchr.JaroWinkler(nn, Normalize(c), false)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore
}
