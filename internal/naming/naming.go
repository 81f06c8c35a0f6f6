// Package naming turns a playlist's genres and mood into a display name.
package naming

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultStopwords are genre words too generic to describe a playlist.
var DefaultStopwords = []string{"rock", "pop", "mellow", "folk", "new", "house"}

// Namer builds names of the form "<prefix> <Keywords> - <energy>, <mood>".
type Namer struct {
	Prefix    string
	Keywords  int
	stopwords map[string]bool
	title     cases.Caser
}

func New(prefix string, keywords int, stopwords []string) *Namer {
	stop := make(map[string]bool, len(stopwords))
	for _, w := range stopwords {
		stop[strings.ToLower(w)] = true
	}
	return &Namer{
		Prefix:    prefix,
		Keywords:  keywords,
		stopwords: stop,
		title:     cases.Title(language.English),
	}
}

// TopKeywords returns the n most frequent non-stopword tokens of the genre names,
// most frequent first. Ties go to the alphabetically smaller token.
func (n *Namer) TopKeywords(genres []string) []string {
	counts := make(map[string]int)
	for _, g := range genres {
		for _, tok := range strings.Fields(strings.ToLower(g)) {
			if n.stopwords[tok] {
				continue
			}
			counts[tok]++
		}
	}

	tokens := make([]string, 0, len(counts))
	for tok := range counts {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	if len(tokens) > n.Keywords {
		tokens = tokens[:n.Keywords]
	}
	return tokens
}

// Name builds the display name for a playlist.
func (n *Namer) Name(genres []string, energy, valence float64) string {
	descriptor := fmt.Sprintf("- %s, %s", EnergyLabel(energy), MoodLabel(valence))
	parts := []string{}
	if n.Prefix != "" {
		parts = append(parts, n.Prefix)
	}
	if kw := n.TopKeywords(genres); len(kw) > 0 {
		parts = append(parts, n.title.String(strings.Join(kw, " ")))
	}
	parts = append(parts, descriptor)
	return strings.Join(parts, " ")
}

// EnergyLabel bins energy at the quartiles. Boundaries belong to the lower bin.
func EnergyLabel(v float64) string {
	switch {
	case v <= 0.25:
		return "serene"
	case v <= 0.50:
		return "calm"
	case v <= 0.75:
		return "active"
	default:
		return "energetic"
	}
}

// MoodLabel bins valence at the quartiles. Boundaries belong to the lower bin.
func MoodLabel(v float64) string {
	switch {
	case v <= 0.25:
		return "heavy-hearted"
	case v <= 0.50:
		return "low"
	case v <= 0.75:
		return "lively"
	default:
		return "cheerful"
	}
}

// Dedupe makes names unique by suffixing repeats with " (2)", " (3)", ... in
// the order given.
func Dedupe(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, name := range names {
		candidate := name
		for k := 2; used[candidate]; k++ {
			candidate = fmt.Sprintf("%s (%d)", name, k)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}
