package ai

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultScore is reported when a reply carries no readable score.
	DefaultScore = 60.0

	// NoSuggestionsPlaceholder replaces an empty suggestions list.
	NoSuggestionsPlaceholder = "暂无具体建议"

	maxSuggestions = 3
)

var (
	scoreMarkers      = []string{"评分", "分数", "score"}
	suggestionMarkers = []string{"建议", "suggestion"}
	highlightMarkers  = []string{"亮点", "highlight"}
)

// Extraction is the structured part of a free-text analysis reply.
type Extraction struct {
	Score       float64
	Suggestions []string
	Highlights  []string
}

// Extract recovers a score, up to three suggestions and the highlights from a
// free-text analysis. Each field is scanned independently over all lines.
func Extract(text string) Extraction {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	suggestions := collectList(lines, suggestionMarkers, maxSuggestions)
	if len(suggestions) == 0 {
		suggestions = []string{NoSuggestionsPlaceholder}
	}

	return Extraction{
		Score:       extractScore(lines),
		Suggestions: suggestions,
		Highlights:  collectList(lines, highlightMarkers, 0),
	}
}

// extractScore reads the first line mentioning a score. All digits of that
// line are joined into one number, so "评分：85分" gives 85.
func extractScore(lines []string) float64 {
	for _, line := range lines {
		if !containsAny(strings.ToLower(line), scoreMarkers) {
			continue
		}

		digits := digitsOf(line)
		if digits == "" {
			return DefaultScore
		}

		// Overlong runs overflow to +Inf with ErrRange and clamp to 100.
		score, err := strconv.ParseFloat(digits, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return DefaultScore
		}

		return ClampScore(score)
	}

	return DefaultScore
}

// ClampScore limits a score to [0, 100].
func ClampScore(score float64) float64 {
	switch {
	case math.IsNaN(score):
		return 0
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

func digitsOf(line string) string {
	var b strings.Builder
	for _, r := range line {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '０' && r <= '９':
			b.WriteRune('0' + (r - '０'))
		}
	}
	return b.String()
}

// collectList gathers list items that follow the first marker line. A
// non-positive limit collects every item.
func collectList(lines, markers []string, limit int) []string {
	items := []string{}
	started := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if started && isListItem(trimmed) {
			items = append(items, trimmed)
			if limit > 0 && len(items) >= limit {
				break
			}
			continue
		}

		if containsAny(strings.ToLower(trimmed), markers) {
			started = true
		}
	}

	return items
}

// isListItem matches "1.", "2、", "3)" style enumerations and bullet glyphs.
func isListItem(line string) bool {
	runes := []rune(line)

	switch runes[0] {
	case '•', '·':
		return true
	case '-':
		return len(runes) == 1 || runes[1] != '-'
	case '*':
		return len(runes) > 1 && runes[1] == ' '
	}

	n := 0
	for n < len(runes) && runes[n] >= '0' && runes[n] <= '9' {
		n++
	}
	if n == 0 || n > 2 || n == len(runes) {
		return false
	}

	switch runes[n] {
	case '.', '、', ')', '）':
		return true
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
