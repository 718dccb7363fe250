package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

const containerPath = "META-INF/container.xml"

type containerXML struct {
	XMLName   xml.Name `xml:"container"`
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest struct {
		Items []opfItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc      string `xml:"toc,attr"`
		ItemRefs []struct {
			IDRef  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type opfMetadata struct {
	Titles      []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creators    []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Languages   []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifiers []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Metas       []struct {
		Name    string `xml:"name,attr"`
		Content string `xml:"content,attr"`
	} `xml:"meta"`
}

type opfDCElement struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// locateOPF returns the package document path named by container.xml,
// falling back to the first .opf entry in the archive.
func locateOPF(zr *zip.Reader) (string, error) {
	if f := findFile(zr, containerPath); f != nil {
		data, err := readZipFile(f)
		if err != nil {
			return "", err
		}
		var c containerXML
		if err := xml.Unmarshal(stripBOM(data), &c); err != nil {
			return "", fmt.Errorf("epub: parse container.xml: %w", err)
		}
		for _, rf := range c.RootFiles {
			if p := strings.TrimSpace(rf.FullPath); p != "" {
				return p, nil
			}
		}
		return "", fmt.Errorf("epub: container.xml has no rootfile: %w", ErrInvalidEPub)
	}

	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("epub: no package document in archive: %w", ErrInvalidEPub)
}

func parseOPF(data []byte) (*opfPackage, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(stripBOM(data), &pkg); err != nil {
		return nil, fmt.Errorf("epub: parse package document: %w", err)
	}
	if pkg.Version == "" {
		pkg.Version = "2.0"
	}
	return &pkg, nil
}

// metadata converts the raw OPF metadata, preferring the identifier the
// package names as unique.
func (p *opfPackage) metadata() Metadata {
	md := Metadata{
		Titles:    collectValues(p.Metadata.Titles),
		Languages: collectValues(p.Metadata.Languages),
		Authors:   collectValues(p.Metadata.Creators),
	}

	for _, id := range p.Metadata.Identifiers {
		if p.UniqueID != "" && id.ID == p.UniqueID {
			md.Identifier = strings.TrimSpace(id.Value)
			break
		}
	}
	if md.Identifier == "" && len(p.Metadata.Identifiers) > 0 {
		md.Identifier = strings.TrimSpace(p.Metadata.Identifiers[0].Value)
	}

	for _, m := range p.Metadata.Metas {
		if m.Name == "cover" {
			md.CoverID = m.Content
		}
	}
	return md
}

func collectValues(elems []opfDCElement) []string {
	var out []string
	for _, e := range elems {
		if v := strings.TrimSpace(e.Value); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// kindFor decides an item's variant from its media type and properties.
func kindFor(mediaType, properties string) Kind {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	switch {
	case mt == "application/xhtml+xml" || mt == "text/html":
		if hasProperty(properties, "nav") {
			return KindOther
		}
		return KindChapter
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	default:
		return KindOther
	}
}
