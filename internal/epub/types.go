// Package epub reads and writes EPUB packages as an ordered list of tagged items
// plus the metadata, spine and table of contents needed to rebuild them.
package epub

// Kind tags a package item once, when it is read.
type Kind int

const (
	// KindOther covers stylesheets, fonts, the NCX and the nav document.
	KindOther Kind = iota
	// KindChapter is an XHTML content document exposing a body.
	KindChapter
	// KindImage is a binary image resource.
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindChapter:
		return "chapter"
	case KindImage:
		return "image"
	default:
		return "other"
	}
}

// Item is one manifest entry together with its content.
type Item struct {
	// ID is the manifest id attribute.
	ID string

	// Href is the path relative to the package document.
	Href string

	MediaType  string
	Properties string
	Kind       Kind

	Content []byte
}

// Clone returns a copy of the item that shares nothing with the original.
func (it *Item) Clone() *Item {
	c := *it
	c.Content = append([]byte(nil), it.Content...)
	return &c
}

// Metadata holds the Dublin Core fields carried from source to output.
type Metadata struct {
	Identifier string
	Titles     []string
	Languages  []string
	Authors    []string

	// CoverID is the ePub 2 <meta name="cover"> content, if any.
	CoverID string
}

// Title returns the primary title.
func (m Metadata) Title() string {
	if len(m.Titles) == 0 {
		return ""
	}
	return m.Titles[0]
}

// PrimaryAuthor returns the first creator.
func (m Metadata) PrimaryAuthor() string {
	if len(m.Authors) == 0 {
		return ""
	}
	return m.Authors[0]
}

// SpineRef is a single <itemref>.
type SpineRef struct {
	IDRef  string
	Linear string
}

// Spine is the reading order.
type Spine struct {
	// Toc is the id of the NCX item (ePub 2).
	Toc  string
	Refs []SpineRef
}

// TOCEntry is one node of the table of contents tree.
type TOCEntry struct {
	Title    string
	Href     string
	Children []TOCEntry
}

// Book is an EPUB package held fully in memory.
type Book struct {
	Version  string
	Metadata Metadata
	Items    []*Item
	Spine    Spine
	TOC      []TOCEntry
}

// Item returns the item with the given manifest id, or nil.
func (b *Book) Item(id string) *Item {
	for _, it := range b.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// Clone returns a deep copy of the spine.
func (s Spine) Clone() Spine {
	return Spine{
		Toc:  s.Toc,
		Refs: append([]SpineRef(nil), s.Refs...),
	}
}

// CloneTOC returns a deep copy of a table of contents tree.
func CloneTOC(entries []TOCEntry) []TOCEntry {
	if entries == nil {
		return nil
	}
	out := make([]TOCEntry, len(entries))
	for i, e := range entries {
		out[i] = TOCEntry{
			Title:    e.Title,
			Href:     e.Href,
			Children: CloneTOC(e.Children),
		}
	}
	return out
}
