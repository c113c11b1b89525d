package memory

import (
	"math"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Rank filters candidates by the structural filters of q and orders them.
//
// Without free text the result is ordered by created_at ascending. With free
// text every candidate is scored as the number of query tokens found in its
// content and tags plus floor(2 * normalized edit similarity between query and
// content); zero-score candidates are dropped and the rest sorted by score,
// then updated_at, both descending.
func Rank(candidates []*Entry, q Query) []*Entry {
	filtered := make([]*Entry, 0, len(candidates))
	for _, e := range candidates {
		if q.Matches(e) {
			filtered = append(filtered, e)
		}
	}

	text := strings.TrimSpace(q.Text)
	if text == "" {
		SortByCreated(filtered)
		return filtered
	}

	type scored struct {
		entry *Entry
		score int
	}

	tokens := strings.Fields(strings.ToLower(text))
	needle := strings.ToLower(text)
	ranked := make([]scored, 0, len(filtered))
	for _, e := range filtered {
		s := Score(tokens, needle, e)
		if s == 0 {
			continue
		}
		ranked = append(ranked, scored{entry: e, score: s})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].entry.UpdatedAt.After(ranked[j].entry.UpdatedAt)
	})

	out := make([]*Entry, len(ranked))
	for i, r := range ranked {
		out[i] = r.entry
	}

	return out
}

// Score computes the keyword score of e for lower-cased query tokens and the
// lower-cased full query.
func Score(tokens []string, query string, e *Entry) int {
	haystack := strings.ToLower(e.Content + " " + strings.Join(e.Tags, " "))

	score := 0
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			score++
		}
	}

	similarity := levenshtein.Similarity(query, strings.ToLower(e.Content), nil)
	score += int(math.Floor(2 * similarity))

	return score
}

// SortByCreated orders entries by created_at ascending with the id as a tie
// breaker.
func SortByCreated(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
