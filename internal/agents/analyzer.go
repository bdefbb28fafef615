package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/valpere/restyle/internal"
	"github.com/valpere/restyle/internal/detector"
	"github.com/valpere/restyle/internal/markdown"
)

type analysisReply struct {
	Tone        string `json:"tone" jsonschema_description:"Dominant tone in one or two words, e.g. formal, casual, academic, persuasive."`
	Complexity  string `json:"complexity" jsonschema:"enum=beginner,enum=intermediate,enum=advanced"`
	ContentType string `json:"content_type" jsonschema_description:"Kind of document, e.g. article, email, report, tutorial, post."`
}

const analysisPrompt = `You analyze the writing style of a document.
Report its dominant tone, its reading complexity and what kind of document it is.
Answer with JSON only.`

// StyleAnalyzer asks the model for tone, complexity and content type. Layout
// comes from the Markdown structure and language from the detector.
type StyleAnalyzer struct {
	client   *Client
	detector detector.Detector
}

// NewStyleAnalyzer creates an analyzer. det may be nil, in which case
// ContentAnalysis.Language stays empty.
func NewStyleAnalyzer(client *Client, det detector.Detector) *StyleAnalyzer {
	return &StyleAnalyzer{client: client, detector: det}
}

func (a *StyleAnalyzer) Analyze(ctx context.Context, content string) (internal.ContentAnalysis, error) {
	if strings.TrimSpace(content) == "" {
		return internal.ContentAnalysis{}, errors.New("content is empty")
	}

	reply, err := completeJSON[analysisReply](ctx, a.client, "content_analysis", analysisPrompt, content)
	if err != nil {
		return internal.ContentAnalysis{}, fmt.Errorf("style analysis: %w", err)
	}

	analysis := internal.ContentAnalysis{
		Tone:        normalizeLabel(reply.Tone),
		Complexity:  normalizeLabel(reply.Complexity),
		Structure:   markdown.Structure([]byte(content)),
		ContentType: normalizeLabel(reply.ContentType),
	}
	if analysis.Tone == "" {
		return internal.ContentAnalysis{}, errors.New("style analysis: no tone reported")
	}
	if a.detector != nil {
		if lang, ok := a.detector.DetectISO(ctx, markdown.ToPlainText([]byte(content))); ok {
			analysis.Language = lang
		}
	}
	return analysis, nil
}
