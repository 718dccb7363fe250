package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

const (
	mimetype   = "application/epub+zip"
	contentDir = "OEBPS"
	opfName    = "content.opf"
)

const containerTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="` + contentDir + `/` + opfName + `" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

var opfTemplate = template.Must(template.New("opf").Funcs(template.FuncMap{"x": escapeXML}).Parse(
	`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="{{x .Book.Version}}" unique-identifier="BookId">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:identifier id="BookId">{{x .Book.Metadata.Identifier}}</dc:identifier>
{{- range .Book.Metadata.Titles}}
    <dc:title>{{x .}}</dc:title>
{{- end}}
{{- range .Book.Metadata.Languages}}
    <dc:language>{{x .}}</dc:language>
{{- end}}
{{- range .Book.Metadata.Authors}}
    <dc:creator>{{x .}}</dc:creator>
{{- end}}
{{- if .Book.Metadata.CoverID}}
    <meta name="cover" content="{{x .Book.Metadata.CoverID}}"/>
{{- end}}
{{- if .Modified}}
    <meta property="dcterms:modified">{{.Modified}}</meta>
{{- end}}
  </metadata>
  <manifest>
{{- range .Book.Items}}
    <item id="{{x .ID}}" href="{{x .Href}}" media-type="{{x .MediaType}}"{{if .Properties}} properties="{{x .Properties}}"{{end}}/>
{{- end}}
  </manifest>
  <spine{{if .Book.Spine.Toc}} toc="{{x .Book.Spine.Toc}}"{{end}}>
{{- range .Book.Spine.Refs}}
    <itemref idref="{{x .IDRef}}"{{if .Linear}} linear="{{x .Linear}}"{{end}}/>
{{- end}}
  </spine>
</package>
`))

func escapeXML(s string) (string, error) {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Encode serializes b as an EPUB archive.
func Encode(w io.Writer, b *Book) error {
	if b.Metadata.Identifier == "" {
		return fmt.Errorf("epub: book has no identifier: %w", ErrInvalidEPub)
	}

	zw := zip.NewWriter(w)

	// The mimetype entry must come first and be stored uncompressed.
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("epub: write mimetype: %w", err)
	}
	if _, err := io.WriteString(mw, mimetype); err != nil {
		return fmt.Errorf("epub: write mimetype: %w", err)
	}

	if err := writeEntry(zw, containerPath, []byte(containerTemplate)); err != nil {
		return err
	}

	opf, err := renderOPF(b)
	if err != nil {
		return err
	}
	if err := writeEntry(zw, contentDir+"/"+opfName, opf); err != nil {
		return err
	}

	seen := make(map[string]bool, len(b.Items))
	for _, it := range b.Items {
		name := resolveHref(contentDir, it.Href)
		if name == "" {
			return fmt.Errorf("epub: unsafe href %q for item %s", it.Href, it.ID)
		}
		if seen[name] {
			return fmt.Errorf("epub: duplicate archive path %s", name)
		}
		seen[name] = true
		if err := writeEntry(zw, name, it.Content); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("epub: finish archive: %w", err)
	}
	return nil
}

// Write serializes b to a file at path, replacing it atomically.
func Write(filePath string, b *Book) error {
	var buf bytes.Buffer
	if err := Encode(&buf, b); err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	tmp, err := os.CreateTemp(dir, ".inkbloom-*.epub")
	if err != nil {
		return fmt.Errorf("epub: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("epub: write %s: %w", filePath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("epub: close %s: %w", filePath, err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("epub: rename to %s: %w", filePath, err)
	}
	return nil
}

func renderOPF(b *Book) ([]byte, error) {
	data := struct {
		Book     *Book
		Modified string
	}{Book: b}
	if strings.HasPrefix(b.Version, "3") {
		data.Modified = time.Now().UTC().Format("2006-01-02T15:04:05Z")
	}

	var buf bytes.Buffer
	if err := opfTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("epub: render package document: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(path.Clean(name))
	if err != nil {
		return fmt.Errorf("epub: create entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("epub: write entry %s: %w", name, err)
	}
	return nil
}
