// Package insights derives summaries, keywords, follow-ups and dashboard
// analytics from recorded transcripts. Every function is a pure function of
// its input.
package insights

import (
	"sort"
	"strings"
	"unicode"

	"breeze/internal/domain"
)

const maxKeywords = 5

var stopWords = map[string]struct{}{}

func init() {
	for _, word := range strings.Fields(`
		the a an and or but in on at to for of with by from up about into over after
		is are was were be been being have has had do does did will would could should
		may might must can shall this that these those there their them they then than
		i you he she it we me him her us my your his its our what which who whom whose
		when where why how all any both each few more most other some such no nor not
		only own same so too very just also well really yeah okay like going want know
		think said says get got here because while through during before again further
		once need needs`) {
		stopWords[word] = struct{}{}
	}
}

// ExtractKeywords returns up to five of the most frequent topic words in the
// segments. Words of three characters or fewer and stop words are skipped.
// Ties keep first-encountered order.
func ExtractKeywords(segments []domain.Segment) []string {
	texts := make([]string, 0, len(segments))
	for _, segment := range segments {
		texts = append(texts, segment.Text)
	}
	return topWords(texts, maxKeywords)
}

func topWords(texts []string, limit int) []string {
	type entry struct {
		word  string
		count int
		first int
	}

	counts := map[string]*entry{}
	order := 0
	for _, text := range texts {
		for _, raw := range strings.Fields(strings.ToLower(text)) {
			word := stripNonWord(raw)
			if len(word) <= 3 {
				continue
			}
			if _, stop := stopWords[word]; stop {
				continue
			}
			if existing, ok := counts[word]; ok {
				existing.count++
				continue
			}
			counts[word] = &entry{word: word, count: 1, first: order}
			order++
		}
	}

	entries := make([]*entry, 0, len(counts))
	for _, e := range counts {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].first < entries[j].first
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.word)
	}
	return out
}

// stripNonWord keeps ASCII letters, digits and underscores.
func stripNonWord(word string) string {
	var b strings.Builder
	for _, r := range word {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
