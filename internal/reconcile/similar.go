package reconcile

import (
	"sort"
	"strings"

	"github.com/hargabyte/stableid/internal/report"
	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the Ratcliff/Obershelp similarity of a and b, compared
// case-insensitively rune by rune: 2*M/T where M is the number of matching
// runes and T the total rune count. Two empty strings have ratio 1.
func Ratio(a, b string) float64 {
	ar := strings.Split(strings.ToLower(a), "")
	br := strings.Split(strings.ToLower(b), "")
	return difflib.NewMatcher(ar, br).Ratio()
}

// FindSimilar scores every candidate against target and returns those with
// ratio >= threshold, best first. Ties keep candidate order. limit <= 0
// returns all matches.
func FindSimilar(target string, candidates []string, threshold float64, limit int) []report.Suggestion {
	matches := []report.Suggestion{}
	for _, c := range candidates {
		if r := Ratio(target, c); r >= threshold {
			matches = append(matches, report.Suggestion{Candidate: c, Ratio: r})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Ratio > matches[j].Ratio
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// distinct returns ids without repeats, in first-seen order.
func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
