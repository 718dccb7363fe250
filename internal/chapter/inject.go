package chapter

import (
	"bytes"
	"fmt"
)

// anchor is the closing tag after which the illustration is placed.
var anchor = []byte("</h2>")

// IllustrationFile is the file name for the illustration with the given
// sequence number. The same name is used on disk, in the package and in the
// chapter's <img> reference.
func IllustrationFile(seq int) string {
	return fmt.Sprintf("chapter_%d_illustration.png", seq)
}

// ImageTag returns the reference inserted into a chapter.
func ImageTag(seq int) string {
	return fmt.Sprintf(`<img src="%s" alt="Illustration for chapter %d"/>`, IllustrationFile(seq), seq)
}

// InjectIllustration inserts the image reference right after the first
// level-2 heading. It reports false and returns markup untouched when the
// chapter has no such heading.
func InjectIllustration(markup []byte, seq int) ([]byte, bool) {
	idx := bytes.Index(markup, anchor)
	if idx < 0 {
		return markup, false
	}
	at := idx + len(anchor)
	tag := ImageTag(seq)

	out := make([]byte, 0, len(markup)+len(tag))
	out = append(out, markup[:at]...)
	out = append(out, tag...)
	out = append(out, markup[at:]...)
	return out, true
}
