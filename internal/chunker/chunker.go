// Package chunker splits long documents into pieces small enough for a single
// rewrite request and extracts the trailing context that links one piece to
// the next.
package chunker

import (
	"strings"
	"unicode"
)

// DefaultContextWords is how many trailing words Tail keeps by default.
const DefaultContextWords = 40

// Split cuts text into pieces of at most maxRunes runes. It prefers, in
// order: a blank line outside a fenced code block, the end of a sentence,
// any whitespace, and finally a hard cut. Pieces are trimmed and empty ones
// dropped. maxRunes <= 0 disables splitting.
func Split(text string, maxRunes int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxRunes <= 0 || len([]rune(text)) <= maxRunes {
		return []string{text}
	}

	var pieces []string
	rest := []rune(text)
	for len(rest) > maxRunes {
		cut := cutPoint(rest[:maxRunes])
		if piece := strings.TrimSpace(string(rest[:cut])); piece != "" {
			pieces = append(pieces, piece)
		}
		rest = []rune(strings.TrimSpace(string(rest[cut:])))
	}
	if len(rest) > 0 {
		pieces = append(pieces, string(rest))
	}
	return pieces
}

// cutPoint returns the rune offset in window after which to cut.
func cutPoint(window []rune) int {
	if i := lastParagraphBreak(window); i > 0 {
		return i
	}
	for i := len(window) - 2; i > 0; i-- {
		switch window[i] {
		case '.', '!', '?', '…':
			if unicode.IsSpace(window[i+1]) {
				return i + 1
			}
		}
	}
	for i := len(window) - 1; i > 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return len(window)
}

// lastParagraphBreak finds the last blank line that is not inside a ``` fence
// and returns the offset just past it, or -1.
func lastParagraphBreak(window []rune) int {
	best := -1
	inFence := false
	lineStart := true
	for i := 0; i < len(window); i++ {
		if lineStart && hasPrefix(window[i:], "```") {
			inFence = !inFence
		}
		lineStart = window[i] == '\n'
		if !inFence && window[i] == '\n' && i+1 < len(window) && window[i+1] == '\n' {
			best = i + 2
		}
	}
	return best
}

func hasPrefix(r []rune, prefix string) bool {
	p := []rune(prefix)
	if len(r) < len(p) {
		return false
	}
	for i := range p {
		if r[i] != p[i] {
			return false
		}
	}
	return true
}

// Tail returns the last n words of text joined by single spaces. n <= 0 uses
// DefaultContextWords.
func Tail(text string, n int) string {
	if n <= 0 {
		n = DefaultContextWords
	}
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
