package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path"
)

// Open reads the EPUB at path into memory.
func Open(path string) (*Book, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("epub: open %s: %w", path, err)
	}
	defer zrc.Close()

	return readArchive(&zrc.Reader)
}

// Read parses an EPUB from r.
func Read(r io.ReaderAt, size int64) (*Book, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("epub: open zip: %w", err)
	}
	return readArchive(zr)
}

// ReadBytes parses an EPUB held in memory.
func ReadBytes(data []byte) (*Book, error) {
	return Read(bytes.NewReader(data), int64(len(data)))
}

func readArchive(zr *zip.Reader) (*Book, error) {
	opfPath, err := locateOPF(zr)
	if err != nil {
		return nil, err
	}

	opfFile := findFile(zr, opfPath)
	if opfFile == nil {
		return nil, fmt.Errorf("epub: package document %s: %w", opfPath, ErrFileNotFound)
	}
	data, err := readZipFile(opfFile)
	if err != nil {
		return nil, err
	}
	pkg, err := parseOPF(data)
	if err != nil {
		return nil, err
	}

	opfDir := path.Dir(opfPath)
	if opfDir == "." {
		opfDir = ""
	}

	book := &Book{
		Version:  pkg.Version,
		Metadata: pkg.metadata(),
		Spine:    Spine{Toc: pkg.Spine.Toc},
	}

	for _, mi := range pkg.Manifest.Items {
		name := resolveHref(opfDir, mi.Href)
		if name == "" {
			return nil, fmt.Errorf("epub: unsafe href %q in manifest", mi.Href)
		}
		f := findFile(zr, name)
		if f == nil {
			slog.Warn("manifest item missing from archive, skipping", "id", mi.ID, "href", mi.Href)
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		book.Items = append(book.Items, &Item{
			ID:         mi.ID,
			Href:       mi.Href,
			MediaType:  mi.MediaType,
			Properties: mi.Properties,
			Kind:       kindFor(mi.MediaType, mi.Properties),
			Content:    content,
		})
	}

	for _, ref := range pkg.Spine.ItemRefs {
		book.Spine.Refs = append(book.Spine.Refs, SpineRef{IDRef: ref.IDRef, Linear: ref.Linear})
	}

	toc, err := parseTOC(book)
	if err != nil {
		slog.Warn("could not parse table of contents", "error", err)
	}
	book.TOC = toc

	slog.Debug("read epub",
		"version", book.Version,
		"items", len(book.Items),
		"spine", len(book.Spine.Refs),
		"toc", len(book.TOC),
	)

	return book, nil
}
