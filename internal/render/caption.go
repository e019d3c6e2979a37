package render

import (
	"strings"

	"github.com/viralklip/clip-worker/internal/analyze"
)

// Snippet character budgets per caption template.
const (
	defaultSnippetBudget = 100
	shockSnippetBudget   = 150
)

// Caption builds a social-media caption for a moment. Template selection is
// deterministic, keyed on the moment's hook type: questions and shocks get
// distinct templates, everything else gets the default highlight-plus-hashtags
// template.
func Caption(moment analyze.Moment) string {
	hashtags := buildHashtags(moment.Keywords)

	switch moment.HookType {
	case analyze.HookQuestion:
		return "❓ " + moment.Transcript + "\n\n" + hashtags
	case analyze.HookShock:
		return "😱 " + truncateSnippet(moment.Transcript, shockSnippetBudget) + "\n\n" + hashtags
	default:
		return "🔥 " + truncateSnippet(moment.Transcript, defaultSnippetBudget) + "\n\n" + hashtags
	}
}

// truncateSnippet caps the snippet at the character budget, marking the cut
// with an ellipsis.
func truncateSnippet(text string, budget int) string {
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return string(runes[:budget]) + "..."
}

// buildHashtags renders the keyword list as space-separated hashtags.
func buildHashtags(keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}
	return "#" + strings.Join(keywords, " #")
}
