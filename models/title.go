package models

import (
	"strings"
	"unicode/utf8"
)

const (
	UntitledNote = "Untitled Note"

	maxTitleWords = 10
	maxTitleChars = 50
	ellipsis      = "..."
)

// DeriveTitle builds the editor title for a note body: the first ten words of
// the first line, capped at 50 characters with an ellipsis.
func DeriveTitle(body string) string {
	if body == "" {
		return UntitledNote
	}
	firstLine, _, _ := strings.Cut(body, "\n")
	words := strings.Fields(firstLine)
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	title := strings.Join(words, " ")
	if title == "" {
		return UntitledNote
	}
	return truncate(title)
}

// ListTitle is the shorter rule used by note lists: the raw first line,
// capped at 50 characters.
func ListTitle(body string) string {
	firstLine, _, _ := strings.Cut(body, "\n")
	if firstLine == "" {
		return UntitledNote
	}
	return truncate(firstLine)
}

// truncate counts characters, not bytes, so multi-byte text is never split
// mid-rune.
func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxTitleChars {
		return s
	}
	return string([]rune(s)[:maxTitleChars]) + ellipsis
}
