package search

import (
	"sort"
	"strings"
	"unicode"

	"github.com/AbdouB/kbexpert/internal/models"
)

const (
	TypeSign       = "sign"
	TypeHypothesis = "hypothesis"
)

// SearchResult represents a matched item with its score
type SearchResult struct {
	ID            int     `json:"id"`
	Type          string  `json:"type"`
	Text          string  `json:"text"`
	SecondaryText string  `json:"secondary_text,omitempty"`
	Score         float64 `json:"score"`
	Highlights    []int   `json:"-"` // Rune indices of matching characters in Text
}

// SearchItem represents an item to be searched
type SearchItem struct {
	ID            int
	Type          string
	Text          string // Name
	SecondaryText string // Question of a sign, description of a hypothesis
}

// ItemsFromKnowledgeBase lists the signs and hypotheses of kb as search items
func ItemsFromKnowledgeBase(kb *models.KnowledgeBase) []SearchItem {
	items := make([]SearchItem, 0, len(kb.Signs)+len(kb.Hypos))
	for _, s := range kb.Signs {
		items = append(items, SearchItem{ID: s.ID, Type: TypeSign, Text: s.Name, SecondaryText: s.Question})
	}
	for _, h := range kb.Hypos {
		items = append(items, SearchItem{ID: h.ID, Type: TypeHypothesis, Text: h.Name, SecondaryText: h.Desc})
	}
	return items
}

// FuzzySearch performs fuzzy matching on a list of items.
// Returns results sorted by score (highest first), ties in input order.
func FuzzySearch(query string, items []SearchItem, threshold float64) []SearchResult {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	var results []SearchResult

	for _, item := range items {
		score, highlights := scoreItem(queryTokens, item)
		if score > 0 && score >= threshold {
			results = append(results, SearchResult{
				ID:            item.ID,
				Type:          item.Type,
				Text:          item.Text,
				SecondaryText: item.SecondaryText,
				Score:         score,
				Highlights:    highlights,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

// tokenize splits a query into lower-case letter and digit runs
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// scoreItem calculates how well an item matches the query tokens
func scoreItem(queryTokens []string, item SearchItem) (float64, []int) {
	text := []rune(strings.ToLower(item.Text))
	secondary := []rune(strings.ToLower(item.SecondaryText))

	var totalScore float64
	var allHighlights []int
	matchedTokens := 0

	for _, token := range queryTokens {
		tokenScore, highlights := scoreToken([]rune(token), text, secondary)
		if tokenScore > 0 {
			matchedTokens++
			totalScore += tokenScore
			allHighlights = append(allHighlights, highlights...)
		}
	}

	// Penalize partial token matches significantly
	if matchedTokens < len(queryTokens) {
		totalScore *= float64(matchedTokens) / float64(len(queryTokens)) * 0.5
	}

	return totalScore / float64(len(queryTokens)), allHighlights
}

// scoreToken calculates score for a single token against the name and the
// secondary text
func scoreToken(token, text, secondary []rune) (float64, []int) {
	var score float64
	var highlights []int

	if idx, whole := indexRunes(text, token); idx >= 0 {
		score = 0.7
		if whole {
			score = 1.0
		}
		for i := idx; i < idx+len(token); i++ {
			highlights = append(highlights, i)
		}
	} else if fuzzyContains(text, token) {
		score = 0.4
	}

	if len(secondary) > 0 {
		if idx, whole := indexRunes(secondary, token); idx >= 0 {
			if whole {
				score = max(score, 0.6)
			} else {
				score = max(score, 0.4)
			}
		} else if fuzzyContains(secondary, token) {
			score = max(score, 0.2)
		}
	}

	return score, highlights
}

// indexRunes finds the first occurrence of word in text, preferring a whole
// word match. It returns -1 when word does not occur.
func indexRunes(text, word []rune) (int, bool) {
	first := -1
	for i := 0; i+len(word) <= len(text); i++ {
		if !equalRunes(text[i:i+len(word)], word) {
			continue
		}
		if first < 0 {
			first = i
		}
		before := i == 0 || !isWordRune(text[i-1])
		end := i + len(word)
		after := end == len(text) || !isWordRune(text[end])
		if before && after {
			return i, true
		}
	}
	return first, false
}

func equalRunes(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// fuzzyContains checks if text contains the runes of pattern in order
// with limited gaps (allows for typos and abbreviations)
func fuzzyContains(text, pattern []rune) bool {
	if len(pattern) == 0 {
		return true
	}

	patternIdx := 0
	gaps := 0
	maxGaps := len(pattern)

	for i := 0; i < len(text) && patternIdx < len(pattern); i++ {
		if text[i] == pattern[patternIdx] {
			patternIdx++
			gaps = 0
		} else if patternIdx > 0 {
			gaps++
			if gaps > maxGaps {
				return false
			}
		}
	}

	return patternIdx == len(pattern)
}
