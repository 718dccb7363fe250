package assembler

import (
	"github.com/abdulachik/inkbloom/internal/chapter"
	"github.com/abdulachik/inkbloom/internal/epub"
)

// Status is the result of processing one included chapter.
type Status string

const (
	StatusIllustrated Status = "illustrated"
	StatusFailed      Status = "failed"
)

// Outcome describes one illustrated or failed chapter.
type Outcome struct {
	ItemID      string
	Href        string
	Sequence    int
	Status      Status
	Prompt      string
	ImagePath   string
	ImageHref   string
	AnchorFound bool
	Err         error
}

// Report summarizes an Assemble call.
type Report struct {
	Items          int
	Chapters       int
	Excluded       int
	Illustrated    int
	Failed         int
	MissingAnchors []string
	Replaced       []string
	Outcomes       []Outcome
}

// PreviewEntry is one row of the preview listing.
type PreviewEntry struct {
	ID         string
	Href       string
	Kind       epub.Kind
	TextLength int
	Decision   string
	Sequence   int
}

// Preview classifies and filters the items of src without calling any
// service. Sequence is the number the chapter would get if every included
// chapter succeeds, or -1.
func Preview(src *epub.Book) ([]PreviewEntry, error) {
	entries := make([]PreviewEntry, 0, len(src.Items))
	seq := 0
	for _, it := range src.Items {
		e := PreviewEntry{ID: it.ID, Href: it.Href, Kind: it.Kind, Sequence: -1}
		if chapter.IsChapter(it) {
			text, err := chapter.Normalize(it)
			if err != nil {
				return nil, err
			}
			e.TextLength = len([]rune(text))
			e.Decision = chapter.Decision(text)
			if chapter.ShouldIllustrate(text) {
				e.Sequence = seq
				seq++
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
