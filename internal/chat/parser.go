package chat

import (
	"regexp"
	"strings"
)

var (
	responseSectionRe = regexp.MustCompile(`(?is)\[RESPONSE\](.*?)(?:\n\[THINKING\]|$)`)
	thinkingBlockRe   = regexp.MustCompile(`(?is)\[/?THINKING\].*?\[/THINKING\]`)
	// A [THINKING] left open by a truncated generation hides everything after it.
	unclosedThinkingRe = regexp.MustCompile(`(?is)\[THINKING\].*$`)
	strayTagRe         = regexp.MustCompile(`(?i)\[/?(?:THINKING|RESPONSE)\]`)

	markdownEmphasis = strings.NewReplacer("**", "", "__", "")
)

// CleanResponse extracts the user-facing answer from tagged model output.
// It never fails; an empty result means there was nothing usable.
func CleanResponse(raw string) string {
	cleaned := raw
	if m := responseSectionRe.FindStringSubmatch(raw); m != nil {
		cleaned = m[1]
	}
	// Reasoning can also sit inline inside the response section.
	cleaned = thinkingBlockRe.ReplaceAllString(cleaned, "")
	cleaned = unclosedThinkingRe.ReplaceAllString(cleaned, "")

	cleaned = strayTagRe.ReplaceAllString(cleaned, "")
	cleaned = markdownEmphasis.Replace(cleaned)
	return strings.TrimSpace(cleaned)
}
