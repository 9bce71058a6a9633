// Package sanitize strips markup from user-supplied text before it is
// copied into notifications and audit records.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()
	ugc    = bluemonday.UGCPolicy()
)

// Text removes every tag and returns plain text with surrounding and
// repeated whitespace collapsed.
func Text(s string) string {
	if s == "" {
		return ""
	}
	out := html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(out), " ")
}

// HTML keeps safe formatting (zone and team descriptions) and removes
// scripts, event handlers and javascript: links.
func HTML(s string) string {
	if s == "" {
		return ""
	}
	return ugc.Sanitize(s)
}

// IsPlainText reports whether s contains no tag-like sequences.
func IsPlainText(s string) bool {
	return !strings.ContainsAny(s, "<>")
}
