// Package chapter decides which package items are narrative chapters, turns
// their markup into clean text and places illustration references in them.
package chapter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/abdulachik/inkbloom/internal/epub"
)

// IsChapter reports whether an item is narrative content. The preview pass
// and the assembly pass must both go through this function.
func IsChapter(it *epub.Item) bool {
	return it != nil && it.Kind == epub.KindChapter
}

// ExtractText concatenates the text of every paragraph in document order,
// with no separator between paragraphs.
func ExtractText(markup []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse chapter markup: %w", err)
	}

	var b strings.Builder
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		b.WriteString(s.Text())
	})
	return b.String(), nil
}

// removals is applied in this order.
var removals = []string{
	"<br />",
	"\n",
	"....",
	"...",
	"\t",
	"\u00a0",
	"    ",
	"   ",
	"  ",
}

// Clean strips line breaks, ellipses, tabs, non-breaking spaces and runs of
// spaces. The ordered removals repeat until a pass changes nothing, so
// Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	for {
		next := cleanPass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func cleanPass(text string) string {
	for _, s := range removals {
		text = strings.ReplaceAll(text, s, "")
	}
	return text
}

// Normalize extracts and cleans the text of a chapter item.
func Normalize(it *epub.Item) (string, error) {
	text, err := ExtractText(it.Content)
	if err != nil {
		return "", err
	}
	return Clean(text), nil
}
