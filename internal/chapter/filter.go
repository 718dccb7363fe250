package chapter

import (
	"strings"
	"unicode/utf8"
)

// MinLength is the shortest cleaned chapter, in characters, worth illustrating.
const MinLength = 1000

// titleMarker flags title pages and other front matter.
const titleMarker = "Title"

// ShouldIllustrate reports whether cleaned chapter text is substantive enough
// to illustrate. It is a coarse heuristic: text mentioning "Title" anywhere is
// treated as front matter.
func ShouldIllustrate(text string) bool {
	if text == "" {
		return false
	}
	if strings.Contains(text, titleMarker) {
		return false
	}
	return utf8.RuneCountInString(text) >= MinLength
}

// Decision explains a filter outcome for the preview listing.
func Decision(text string) string {
	switch {
	case text == "":
		return "empty"
	case strings.Contains(text, titleMarker):
		return "front matter"
	case utf8.RuneCountInString(text) < MinLength:
		return "too short"
	default:
		return "illustrate"
	}
}
