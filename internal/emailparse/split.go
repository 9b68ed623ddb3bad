// Package emailparse separates the broker's reply from the quoted original
// in an inbound email body.
package emailparse

import (
	"regexp"
	"strings"
)

// Parts holds the two halves of an email body.
type Parts struct {
	Reply    string // the fresh text the broker typed
	Original string // the quoted message below the divider, if any
}

// Quote-divider patterns for the common mail clients.
var (
	outlookDivider = regexp.MustCompile(`(?i)^-----Original Message-----`)
	gmailDivider   = regexp.MustCompile(`(?i)^On .* (at|wrote).*$`)
	forwardDivider = regexp.MustCompile(`(?i)^-+\s*Forwarded message\s*-+`)
	headerLine     = regexp.MustCompile(`(?i)^(From|Sent|To|Date|Subject):`)
	htmlTag        = regexp.MustCompile(`</?[^>]+(>|$)`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// Split divides an email body into the reply and the quoted original.
// When no divider is found the whole body is treated as reply.
func Split(body string) Parts {
	if body == "" {
		return Parts{}
	}

	lines := strings.Split(body, "\n")

	dividerIdx := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if outlookDivider.MatchString(trimmed) ||
			gmailDivider.MatchString(trimmed) ||
			forwardDivider.MatchString(trimmed) {
			dividerIdx = i
			break
		}
	}

	if dividerIdx < 0 {
		return Parts{Reply: strings.TrimSpace(body)}
	}

	replyLines := lines[:dividerIdx]
	originalLines := lines[dividerIdx+1:]

	// Gmail-style quotes often repeat mail headers right after the
	// "On ... wrote:" line; drop them.
	if gmailDivider.MatchString(strings.TrimSpace(lines[dividerIdx])) {
		for len(originalLines) > 0 && headerLine.MatchString(strings.TrimSpace(originalLines[0])) {
			originalLines = originalLines[1:]
		}
	}

	return Parts{
		Reply:    strings.TrimSpace(strings.Join(replyLines, "\n")),
		Original: strings.TrimSpace(strings.Join(originalLines, "\n")),
	}
}

// StripHTML removes tags from HTML content and collapses whitespace runs.
func StripHTML(content string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(htmlTag.ReplaceAllString(content, ""), " "))
}
