// Package assembler runs the illustration pipeline over every item of a book
// and builds the illustrated output package.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/abdulachik/inkbloom/internal/chapter"
	"github.com/abdulachik/inkbloom/internal/epub"
	"github.com/abdulachik/inkbloom/internal/illustration"
	"github.com/abdulachik/inkbloom/internal/prompt"
)

const (
	// TitleSuffix is appended to the source title.
	TitleSuffix = " (Illustrated)"

	// Language is the language of every output package.
	Language = "en"

	outputMarker = "_illustrated"
)

// FailurePolicy decides what a chapter failure does to the run.
type FailurePolicy string

const (
	// FailureAbort stops the run at the first failed chapter.
	FailureAbort FailurePolicy = "abort"
	// FailureSkip records the failure and passes the chapter through unchanged.
	FailureSkip FailurePolicy = "skip"
)

// ParseFailurePolicy parses a policy name. The empty string means FailureAbort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailureAbort:
		return FailureAbort, nil
	case FailureSkip:
		return FailureSkip, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want abort or skip)", s)
	}
}

// Synthesizer produces the image prompt for one chapter.
type Synthesizer interface {
	Synthesize(ctx context.Context, chapterText, style string) (*prompt.Result, error)
}

// Illustrator produces the illustration for a sequence number, either by
// generating it or by loading one made in an earlier run.
type Illustrator interface {
	Generate(ctx context.Context, prompt string, seq int) (*illustration.Illustration, error)
	Load(seq int) (*illustration.Illustration, error)
}

// Recorder is notified of every illustrated or failed chapter.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Config configures an Assembler.
type Config struct {
	Synthesizer   Synthesizer
	Illustrator   Illustrator
	Recorder      Recorder
	Style         string
	Reuse         bool
	FailurePolicy FailurePolicy
}

// Assembler builds illustrated books. It is not safe for concurrent use.
type Assembler struct {
	cfg Config
}

// New creates an Assembler.
func New(cfg Config) *Assembler {
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = FailureAbort
	}
	return &Assembler{cfg: cfg}
}

// run holds the state of one Assemble call.
type run struct {
	*Assembler
	report *Report
	items  []*epub.Item
	ids    map[string]bool
	seq    int

	// images maps each generated href to its item.
	images map[string]*epub.Item
}

// Assemble processes src in item order and returns the illustrated book.
// Under FailureAbort the first failure is returned with the partial report
// and no book.
func (a *Assembler) Assemble(ctx context.Context, src *epub.Book) (*epub.Book, *Report, error) {
	r := &run{
		Assembler: a,
		report:    &Report{},
		items:     make([]*epub.Item, 0, len(src.Items)),
		ids:       make(map[string]bool, len(src.Items)),
		images:    make(map[string]*epub.Item),
	}
	for _, it := range src.Items {
		r.ids[it.ID] = true
	}

	for _, it := range src.Items {
		if err := ctx.Err(); err != nil {
			return nil, r.report, err
		}
		if err := r.process(ctx, it); err != nil {
			return nil, r.report, err
		}
	}

	out := &epub.Book{
		Version:  src.Version,
		Metadata: outputMetadata(src.Metadata),
		Items:    r.replaceImages(),
		Spine:    src.Spine.Clone(),
		TOC:      epub.CloneTOC(src.TOC),
	}

	slog.Info("book assembled",
		"items", len(out.Items),
		"chapters", r.report.Chapters,
		"illustrated", r.report.Illustrated,
		"failed", r.report.Failed,
	)
	return out, r.report, nil
}

func (r *run) process(ctx context.Context, it *epub.Item) error {
	r.report.Items++
	if !chapter.IsChapter(it) {
		r.passThrough(it)
		return nil
	}
	r.report.Chapters++

	text, err := chapter.Normalize(it)
	if err != nil {
		return r.fail(ctx, it, "", fmt.Errorf("normalize %s: %w", it.Href, err))
	}
	if !chapter.ShouldIllustrate(text) {
		slog.Debug("chapter excluded", "id", it.ID, "reason", chapter.Decision(text))
		r.report.Excluded++
		r.passThrough(it)
		return nil
	}

	res, err := r.cfg.Synthesizer.Synthesize(ctx, text, r.cfg.Style)
	if err != nil {
		return r.fail(ctx, it, "", fmt.Errorf("synthesize prompt for %s: %w", it.Href, err))
	}

	il, err := r.illustrate(ctx, res.Prompt)
	if err != nil {
		return r.fail(ctx, it, res.Prompt, fmt.Errorf("illustrate %s: %w", it.Href, err))
	}

	modified := it.Clone()
	content, found := chapter.InjectIllustration(it.Content, r.seq)
	modified.Content = content
	if !found {
		slog.Warn("chapter has no </h2> anchor, illustration not referenced", "id", it.ID, "href", it.Href, "sequence", r.seq)
		r.report.MissingAnchors = append(r.report.MissingAnchors, it.Href)
	}

	image := r.imageItem(it, il)
	r.items = append(r.items, modified, image)
	r.images[image.Href] = image

	o := Outcome{
		ItemID:      it.ID,
		Href:        it.Href,
		Sequence:    r.seq,
		Status:      StatusIllustrated,
		Prompt:      res.Prompt,
		ImagePath:   il.Path,
		ImageHref:   image.Href,
		AnchorFound: found,
	}
	r.record(ctx, o)

	slog.Info("chapter illustrated", "id", it.ID, "sequence", r.seq, "image", image.Href)
	r.report.Illustrated++
	r.seq++
	return nil
}

func (r *run) illustrate(ctx context.Context, p string) (*illustration.Illustration, error) {
	if r.cfg.Reuse {
		return r.cfg.Illustrator.Load(r.seq)
	}
	return r.cfg.Illustrator.Generate(ctx, p, r.seq)
}

// fail records a chapter failure. It returns err unless the policy lets the
// run continue, in which case the chapter passes through unchanged.
func (r *run) fail(ctx context.Context, it *epub.Item, p string, err error) error {
	r.report.Failed++
	r.record(ctx, Outcome{
		ItemID:   it.ID,
		Href:     it.Href,
		Sequence: -1,
		Status:   StatusFailed,
		Prompt:   p,
		Err:      err,
	})

	if r.cfg.FailurePolicy != FailureSkip || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	slog.Warn("chapter skipped after failure", "id", it.ID, "error", err)
	r.passThrough(it)
	return nil
}

func (r *run) record(ctx context.Context, o Outcome) {
	r.report.Outcomes = append(r.report.Outcomes, o)
	if r.cfg.Recorder == nil {
		return
	}
	if err := r.cfg.Recorder.Record(ctx, o); err != nil {
		slog.Warn("failed to record chapter outcome", "id", o.ItemID, "error", err)
	}
}

func (r *run) passThrough(it *epub.Item) {
	r.items = append(r.items, it.Clone())
}

// imageItem builds the manifest item for an illustration, stored beside the
// chapter so the bare file name in the <img> reference resolves.
func (r *run) imageItem(ch *epub.Item, il *illustration.Illustration) *epub.Item {
	name := chapter.IllustrationFile(il.Sequence)
	mediaType := il.MediaType
	if mediaType == "" {
		mediaType = illustration.MediaType
	}
	return &epub.Item{
		ID:        r.uniqueID(fmt.Sprintf("illustration-%d", il.Sequence)),
		Href:      path.Join(path.Dir(ch.Href), name),
		MediaType: mediaType,
		Kind:      epub.KindImage,
		Content:   il.Data,
	}
}

// replaceImages drops source items that share an href with a generated
// illustration, as happens when an illustrated book is illustrated again.
// Chapters are never dropped.
func (r *run) replaceImages() []*epub.Item {
	if len(r.images) == 0 {
		return r.items
	}
	items := r.items[:0]
	for _, it := range r.items {
		if img, ok := r.images[it.Href]; ok && img != it && !chapter.IsChapter(it) {
			slog.Info("replacing existing item with illustration", "id", it.ID, "href", it.Href)
			r.report.Replaced = append(r.report.Replaced, it.Href)
			continue
		}
		items = append(items, it)
	}
	return items
}

func (r *run) uniqueID(base string) string {
	id := base
	for n := 1; r.ids[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	r.ids[id] = true
	return id
}

func outputMetadata(src epub.Metadata) epub.Metadata {
	md := epub.Metadata{
		Identifier: src.Identifier,
		Titles:     []string{src.Title() + TitleSuffix},
		Languages:  []string{Language},
		CoverID:    src.CoverID,
	}
	if author := src.PrimaryAuthor(); author != "" {
		md.Authors = []string{author}
	}
	return md
}

// OutputPath returns the path the illustrated copy of input is written to.
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + outputMarker + ext
}
