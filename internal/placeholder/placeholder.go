// Package placeholder shields content a rewrite must not touch (fenced code,
// inline code, HTML tags and bare URLs) behind numbered [KEEPn] markers, and
// puts the originals back once the model has answered.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Hint is appended to prompts that carry masked text.
const Hint = "Keep every [KEEPn] marker exactly as written and in the same position relative to the surrounding text."

var (
	reFencedCode = regexp.MustCompile("(?s)```.*?```")
	reInlineCode = regexp.MustCompile("`[^`\n]+`")
	reHTMLTag    = regexp.MustCompile(`<[^>\n]+>`)
	reURL        = regexp.MustCompile(`https?://[^\s<>()\[\]]+`)
	reMarker     = regexp.MustCompile(`\[KEEP(\d+)\]`)
)

// Masked is text with protected spans swapped out for markers.
type Masked struct {
	Text      string
	originals []string
}

func marker(i int) string {
	return fmt.Sprintf("[KEEP%d]", i)
}

// Protect masks spans in order: fenced blocks first so their contents are
// never matched as inline code, then inline code, tags and URLs.
func Protect(text string) Masked {
	var originals []string
	replace := func(match string) string {
		originals = append(originals, match)
		return marker(len(originals) - 1)
	}
	for _, re := range []*regexp.Regexp{reFencedCode, reInlineCode, reHTMLTag, reURL} {
		text = re.ReplaceAllStringFunc(text, replace)
	}
	return Masked{Text: text, originals: originals}
}

func (m Masked) Len() int {
	return len(m.originals)
}

// Restore swaps markers in text for the spans they replaced. Unknown
// indices are left untouched.
func (m Masked) Restore(text string) string {
	if len(m.originals) == 0 {
		return text
	}
	return reMarker.ReplaceAllStringFunc(text, func(match string) string {
		idx, err := strconv.Atoi(reMarker.FindStringSubmatch(match)[1])
		if err != nil || idx >= len(m.originals) {
			return match
		}
		return m.originals[idx]
	})
}

// Missing lists the marker indices absent from text.
func (m Masked) Missing(text string) []int {
	var missing []int
	for i := range m.originals {
		if !strings.Contains(text, marker(i)) {
			missing = append(missing, i)
		}
	}
	return missing
}
