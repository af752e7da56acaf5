package responder

import (
	"regexp"
	"strings"
)

var (
	commentaryLine = regexp.MustCompile(`^This (email|response|revised|approach)`)
	capitalStart   = regexp.MustCompile(`^[A-Z]`)
	greetings      = []string{"Dear", "Hi", "Hello"}
)

// CleanGenerated extracts the reply body from raw model output: it drops
// an echoed prompt, anything after a "---" separator and trailing
// commentary paragraphs, then fills in the signature placeholder.
func CleanGenerated(text, signature string) string {
	for _, lead := range []string{promptLead, contextLead} {
		text = cutUntilGreeting(text, lead)
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, responseCue, ""))

	if i := strings.Index(text, "---"); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}

	var kept []string
	skipping := false
	for _, line := range strings.Split(text, "\n") {
		if commentaryLine.MatchString(line) {
			skipping = true
			continue
		}
		trimmed := strings.TrimSpace(line)
		if skipping && trimmed == "" {
			continue
		}
		if skipping && capitalStart.MatchString(trimmed) {
			skipping = false
		}
		if !skipping {
			kept = append(kept, line)
		}
	}
	text = strings.TrimSpace(strings.Join(kept, "\n"))

	if signature != "" {
		text = strings.ReplaceAll(text, namePlaceholder, signature)
	}
	return text
}

// cutUntilGreeting removes the span starting at lead up to the first
// greeting that follows it. Without a following greeting the text is
// returned unchanged.
func cutUntilGreeting(text, lead string) string {
	start := strings.Index(text, lead)
	if start < 0 {
		return text
	}

	end := -1
	rest := text[start:]
	for _, g := range greetings {
		if i := strings.Index(rest, g); i >= 0 && (end < 0 || i < end) {
			end = i
		}
	}
	if end < 0 {
		return text
	}
	return strings.TrimSpace(text[:start] + rest[end:])
}
