package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valpere/restyle/internal"
	"github.com/valpere/restyle/internal/chunker"
	"github.com/valpere/restyle/internal/placeholder"
	"github.com/valpere/restyle/internal/postprocess"
)

const (
	// DefaultExampleChars caps each side of an exemplar quoted in the prompt.
	DefaultExampleChars = 1500
	// DefaultChunkChars is the largest piece of a document sent in one request.
	DefaultChunkChars = 8000
)

const conversionPrompt = `You rewrite documents into a requested style.
Follow the plan step by step. Keep every fact, name and number from the original.
Output only the rewritten document, with no preamble or commentary.`

type ConverterConfig struct {
	// ExampleChars caps each side of a quoted example. <= 0 uses
	// DefaultExampleChars.
	ExampleChars int
	// ChunkChars caps the document piece sent per request. 0 uses
	// DefaultChunkChars, < 0 sends the whole document at once.
	ChunkChars int
}

// Converter rewrites a document according to a plan. Documents longer than
// the chunk size are rewritten piece by piece, each request carrying the tail
// of the previous rewritten piece for continuity.
type Converter struct {
	client       *Client
	exampleChars int
	chunkChars   int
}

func NewConverter(client *Client, cfg ConverterConfig) *Converter {
	if cfg.ExampleChars <= 0 {
		cfg.ExampleChars = DefaultExampleChars
	}
	if cfg.ChunkChars == 0 {
		cfg.ChunkChars = DefaultChunkChars
	}
	return &Converter{client: client, exampleChars: cfg.ExampleChars, chunkChars: cfg.ChunkChars}
}

func (c *Converter) Transform(ctx context.Context, content string, plan internal.TransformationPlan, examples []internal.TransformationExample) (string, error) {
	pieces := chunker.Split(content, c.chunkChars)
	if len(pieces) == 0 {
		return "", fmt.Errorf("conversion: content is empty")
	}

	out := make([]string, 0, len(pieces))
	var previous string
	for i, piece := range pieces {
		p := part{index: i, total: len(pieces), previous: previous}
		rewritten, err := c.convert(ctx, piece, plan, examples, p)
		if err != nil {
			if len(pieces) > 1 {
				return "", fmt.Errorf("conversion of part %d/%d: %w", i+1, len(pieces), err)
			}
			return "", fmt.Errorf("conversion: %w", err)
		}
		out = append(out, rewritten)
		previous = chunker.Tail(rewritten, chunker.DefaultContextWords)
	}
	return strings.Join(out, "\n\n"), nil
}

// part locates a piece within a split document.
type part struct {
	index    int
	total    int
	previous string
}

func (c *Converter) convert(ctx context.Context, text string, plan internal.TransformationPlan, examples []internal.TransformationExample, p part) (string, error) {
	masked := placeholder.Protect(text)

	reply, err := c.client.Complete(ctx, conversionPrompt, c.buildPrompt(masked, plan, examples, p))
	if err != nil {
		return "", err
	}

	out := postprocess.Clean(reply)
	if out == "" {
		return "", ErrEmptyResponse
	}
	if missing := masked.Missing(out); len(missing) > 0 {
		slog.Warn("rewrite dropped protected spans", "missing", missing, "part", p.index+1)
	}
	return masked.Restore(out), nil
}

func (c *Converter) buildPrompt(masked placeholder.Masked, plan internal.TransformationPlan, examples []internal.TransformationExample, p part) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Target tone: %s\nTarget complexity: %s\n", plan.TargetTone, plan.TargetComplexity)
	if plan.TargetFormat != "" {
		fmt.Fprintf(&b, "Target format: %s\n", plan.TargetFormat)
	}

	b.WriteString("\nPlan:\n")
	for i, step := range plan.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}

	if len(examples) > 0 {
		b.WriteString("\nEarlier rewrites that worked well:\n")
		for i, ex := range examples {
			fmt.Fprintf(&b, "\nExample %d (%s, %s):\nOriginal:\n%s\nRewritten:\n%s\n",
				i+1, ex.Tone, ex.Complexity,
				truncate(ex.Original, c.exampleChars),
				truncate(ex.Transformed, c.exampleChars))
		}
	}

	if masked.Len() > 0 {
		b.WriteString("\n")
		b.WriteString(placeholder.Hint)
		b.WriteString("\n")
	}

	if p.total > 1 {
		fmt.Fprintf(&b, "\nThis is part %d of %d of a longer document. Rewrite only this part.\n", p.index+1, p.total)
		if p.previous != "" {
			fmt.Fprintf(&b, "The rewritten text so far ends with: %q\nContinue seamlessly from it.\n", p.previous)
		}
	}

	b.WriteString("\nDocument:\n")
	b.WriteString(masked.Text)
	return b.String()
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
