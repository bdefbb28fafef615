package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/restyle/internal"
	"github.com/valpere/restyle/internal/validator"
)

type qualityReply struct {
	ToneMatch        float64  `json:"tone_match" jsonschema_description:"How well the rewrite matches the target tone, 0 to 1."`
	GrammarScore     float64  `json:"grammar_score" jsonschema_description:"Grammatical correctness, 0 to 1."`
	ConsistencyScore float64  `json:"consistency_score" jsonschema_description:"Consistency of voice and terminology, 0 to 1."`
	FactualityScore  float64  `json:"factuality_score" jsonschema_description:"How faithfully facts from the original are kept, 0 to 1."`
	Suggestions      []string `json:"suggestions" jsonschema_description:"Short, actionable improvements. Empty when none."`
}

const qualityPrompt = `You review a rewritten document against its original.
Score each dimension from 0 to 1 and suggest improvements.
Answer with JSON only.`

type QualityChecker struct {
	client    *Client
	validator *validator.Validator
}

// NewQualityChecker creates a checker. v may be nil to skip the language
// drift check.
func NewQualityChecker(client *Client, v *validator.Validator) *QualityChecker {
	return &QualityChecker{client: client, validator: v}
}

func (q *QualityChecker) CheckQuality(ctx context.Context, original, transformed, targetTone string) (internal.QualityReport, error) {
	user := fmt.Sprintf("Target tone: %s\n\nOriginal:\n%s\n\nRewritten:\n%s", targetTone, original, transformed)

	reply, err := completeJSON[qualityReply](ctx, q.client, "quality_report", qualityPrompt, user)
	if err != nil {
		return internal.QualityReport{}, fmt.Errorf("quality check: %w", err)
	}

	report := internal.QualityReport{
		ToneMatch:        clamp01(reply.ToneMatch),
		GrammarScore:     clamp01(reply.GrammarScore),
		ConsistencyScore: clamp01(reply.ConsistencyScore),
		FactualityScore:  clamp01(reply.FactualityScore),
	}
	for _, s := range reply.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			report.Suggestions = append(report.Suggestions, s)
		}
	}

	if q.validator != nil {
		if ok, err := q.validator.SameLanguage(ctx, original, transformed); !ok && err != nil {
			report.Suggestions = append(report.Suggestions, fmt.Sprintf("Keep the original language: %v", err))
		}
	}
	return report, nil
}
