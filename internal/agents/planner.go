package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/valpere/restyle/internal"
)

type planReply struct {
	Steps        []string `json:"steps" jsonschema_description:"Ordered, concrete editing steps."`
	TargetFormat string   `json:"target_format" jsonschema_description:"Document kind the rewrite should take; repeat the current kind to keep it."`
}

const planPrompt = `You plan how to rewrite a document into a new style.
Return a short ordered list of concrete editing steps and the target document format.
Answer with JSON only.`

type Planner struct {
	client *Client
}

func NewPlanner(client *Client) *Planner {
	return &Planner{client: client}
}

func (p *Planner) CreatePlan(ctx context.Context, analysis internal.ContentAnalysis, targetTone, targetComplexity string) (internal.TransformationPlan, error) {
	user := fmt.Sprintf(`Current style:
- tone: %s
- complexity: %s
- structure: %s
- content type: %s

Target style:
- tone: %s
- complexity: %s`,
		analysis.Tone, analysis.Complexity, analysis.Structure, analysis.ContentType,
		targetTone, targetComplexity)

	reply, err := completeJSON[planReply](ctx, p.client, "transformation_plan", planPrompt, user)
	if err != nil {
		return internal.TransformationPlan{}, fmt.Errorf("planning: %w", err)
	}

	steps := make([]string, 0, len(reply.Steps))
	for _, s := range reply.Steps {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	if len(steps) == 0 {
		return internal.TransformationPlan{}, errors.New("planning: plan has no steps")
	}

	format := normalizeLabel(reply.TargetFormat)
	if format == "" {
		format = analysis.ContentType
	}
	return internal.TransformationPlan{
		Steps:            steps,
		TargetTone:       targetTone,
		TargetComplexity: targetComplexity,
		TargetFormat:     format,
	}, nil
}
