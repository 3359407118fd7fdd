// ABOUTME: Keyword extraction and Aho-Corasick matching for fact checks
// ABOUTME: Negation is detected in a short window before each match
package consistency

import (
	"strings"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"

	"github.com/florinutz/narra/internal/models"
)

// negationWindow is how many bytes before a keyword a negation may sit.
const negationWindow = 20

var negationWords = []string{"no ", "not ", "cannot ", "never ", "without ", "lacks "}

var englishStopwords = stopwords.MustGet("en")

// factKeywords extracts the substantive words of a fact: lowercase words
// longer than three characters that are not stopwords.
func factKeywords(f *models.UniverseFact) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range strings.Fields(strings.ToLower(f.Title + " " + f.Description)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) <= 3 || seen[w] || englishStopwords.Contains(w) {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// keywordHit is one keyword found in entity text
type keywordHit struct {
	keyword string
	negated bool
}

// matchKeywords scans lowercased text for the keywords and reports each
// distinct keyword found, with negation state.
func matchKeywords(keywords []string, text string) ([]keywordHit, error) {
	if len(keywords) == 0 || text == "" {
		return nil, nil
	}
	ac, err := ahocorasick.NewBuilder().
		AddStrings(keywords).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(text)
	hits := map[string]keywordHit{}
	for _, m := range ac.FindAllOverlapping([]byte(lower)) {
		kw := keywords[m.PatternID]
		negated := isNegated(lower, m.Start)
		prev, seen := hits[kw]
		// A non-negated occurrence outweighs a negated one
		if !seen || (prev.negated && !negated) {
			hits[kw] = keywordHit{keyword: kw, negated: negated}
		}
	}

	out := make([]keywordHit, 0, len(hits))
	for _, kw := range keywords {
		if h, ok := hits[kw]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

// isNegated checks for a negation word shortly before the match position
func isNegated(text string, start int) bool {
	lo := start - negationWindow
	if lo < 0 {
		lo = 0
	}
	window := text[lo:start]
	for _, neg := range negationWords {
		if strings.Contains(window, neg) {
			return true
		}
	}
	return false
}

// prohibits reports whether a fact forbids its subject outright, read
// from a title like "No magic inside the city walls".
func prohibits(f *models.UniverseFact) bool {
	title := strings.ToLower(f.Title)
	return strings.HasPrefix(title, "no ") || strings.Contains(title, " no ")
}
