package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const ncxMediaType = "application/x-dtbncx+xml"

type ncxDoc struct {
	NavMap struct {
		Points []ncxPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxPoint struct {
	Label   string `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxPoint `xml:"navPoint"`
}

// parseTOC reads the NCX when there is one and falls back to the ePub 3 nav document.
func parseTOC(b *Book) ([]TOCEntry, error) {
	if ncx := findNCX(b); ncx != nil {
		return parseNCX(ncx.Content)
	}
	for _, it := range b.Items {
		if hasProperty(it.Properties, "nav") {
			return parseNav(it.Content)
		}
	}
	return nil, nil
}

func findNCX(b *Book) *Item {
	if b.Spine.Toc != "" {
		if it := b.Item(b.Spine.Toc); it != nil {
			return it
		}
	}
	for _, it := range b.Items {
		if it.MediaType == ncxMediaType {
			return it
		}
	}
	return nil
}

func parseNCX(data []byte) ([]TOCEntry, error) {
	var doc ncxDoc
	if err := xml.Unmarshal(stripBOM(data), &doc); err != nil {
		return nil, fmt.Errorf("epub: parse NCX: %w", err)
	}
	return convertPoints(doc.NavMap.Points), nil
}

func convertPoints(points []ncxPoint) []TOCEntry {
	if len(points) == 0 {
		return nil
	}
	out := make([]TOCEntry, 0, len(points))
	for _, p := range points {
		out = append(out, TOCEntry{
			Title:    strings.TrimSpace(p.Label),
			Href:     strings.TrimSpace(p.Content.Src),
			Children: convertPoints(p.Children),
		})
	}
	return out
}

func parseNav(data []byte) ([]TOCEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(stripBOM(data)))
	if err != nil {
		return nil, fmt.Errorf("epub: parse nav document: %w", err)
	}

	var nav *goquery.Selection
	doc.Find("nav").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t, _ := s.Attr("epub:type"); t == "toc" {
			nav = s
			return false
		}
		return true
	})
	if nav == nil {
		nav = doc.Find("nav").First()
	}
	if nav.Length() == 0 {
		return nil, nil
	}

	return navEntries(nav.ChildrenFiltered("ol").First()), nil
}

func navEntries(ol *goquery.Selection) []TOCEntry {
	var out []TOCEntry
	ol.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		label := li.ChildrenFiltered("a, span").First()
		href, _ := label.Attr("href")
		out = append(out, TOCEntry{
			Title:    strings.TrimSpace(label.Text()),
			Href:     strings.TrimSpace(href),
			Children: navEntries(li.ChildrenFiltered("ol").First()),
		})
	})
	return out
}

func hasProperty(properties, want string) bool {
	for _, p := range strings.Fields(properties) {
		if p == want {
			return true
		}
	}
	return false
}
