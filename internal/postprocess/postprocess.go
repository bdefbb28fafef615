// Package postprocess strips the usual chat-model noise from generated text
// before it is shown to a user or decoded.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean prepares a free-text rewrite: reasoning blocks, lead-in phrases,
// a fence around the whole reply and outer quotes are removed.
func Clean(text string) string {
	text = removeReasoning(text)
	text = removeLeadIn(text)
	text = unwrapFence(text)
	text = unwrapQuotes(text)
	return strings.TrimSpace(text)
}

// JSON prepares a structured reply for decoding. Only reasoning blocks and
// an enclosing ```json fence are removed.
func JSON(text string) string {
	return strings.TrimSpace(unwrapFence(removeReasoning(text)))
}

// RE2 has no backreferences, so each tag pair is spelled out.
var reasoningRe = regexp.MustCompile(
	`(?is)<think>.*?</think>|<thinking>.*?</thinking>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// An opening tag with no close means the model was cut off mid-thought.
var danglingReasoningRe = regexp.MustCompile(`(?is)(?:<think>|<thinking>|<reasoning>|<reflection>).*$`)

func removeReasoning(text string) string {
	text = reasoningRe.ReplaceAllString(text, "")
	text = danglingReasoningRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Lead-ins must start the reply and end in a colon.
var leadInPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:(?:sure|certainly|of course|absolutely)[!,.]?\s+)?here(?:'s| is)\s+(?:the|a|your)?\s*(?:[\w-]+\s+){0,3}(?:version|rewrite|text|content|transformation)(?:\s+of [^:\n]{1,60})?\s*:`),
	regexp.MustCompile(`(?i)^(?:the\s+)?(?:rewritten|transformed|revised|converted)\s+(?:text|content|version)\s*:`),
}

func removeLeadIn(text string) string {
	for _, re := range leadInPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

var fenceRe = regexp.MustCompile("(?s)^```[\\w-]*\\s*\\n(.*?)\\n?```$")

// unwrapFence removes a fence only when it encloses the entire reply.
func unwrapFence(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil && !strings.Contains(m[1], "```") {
		return strings.TrimSpace(m[1])
	}
	return text
}

var quotePairs = map[rune]rune{
	'"':      '"',
	'\'':     '\'',
	'\u00ab': '\u00bb',
	'\u201c': '\u201d',
	'\u2018': '\u2019',
}

func unwrapQuotes(text string) string {
	runes := []rune(text)
	if len(runes) < 2 {
		return text
	}
	closing, ok := quotePairs[runes[0]]
	if !ok || runes[len(runes)-1] != closing {
		return text
	}
	inner := string(runes[1 : len(runes)-1])
	// "a" and "b" is not a wrapped reply.
	if strings.ContainsRune(inner, runes[0]) {
		return text
	}
	return strings.TrimSpace(inner)
}
