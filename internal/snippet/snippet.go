// Package snippet renders a stored Markdown document down to a short
// plaintext preview. This is the pure transformation spec.md §1 and §6
// describe as an external collaborator ("the Markdown-to-snippet
// transformation ... a pure function we call"); the rest of the system
// treats it strictly as a function of its input.
package snippet

import (
	"regexp"
	"strings"
)

// MaxRunes bounds the preview length (spec.md §6: "truncated to ≈50
// characters").
const MaxRunes = 50

var (
	codeFence   = regexp.MustCompile("```[\\s\\S]*?```")
	inlineCode  = regexp.MustCompile("`([^`]*)`")
	imageToken  = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkToken   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingRule = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	emphasis    = regexp.MustCompile(`[*_~]{1,3}`)
	blankRuns   = regexp.MustCompile(`\s+`)
)

// Render converts markdown into a single-line plaintext preview,
// truncated to MaxRunes runes with an ellipsis if it was shortened.
func Render(markdown string) string {
	s := codeFence.ReplaceAllString(markdown, " ")
	s = imageToken.ReplaceAllString(s, " ")
	s = linkToken.ReplaceAllString(s, "$1")
	s = inlineCode.ReplaceAllString(s, "$1")
	s = headingRule.ReplaceAllString(s, "")
	s = emphasis.ReplaceAllString(s, "")
	s = blankRuns.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) <= MaxRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:MaxRunes])) + "…"
}
