// Package validator checks that a rewrite stayed in the language of its
// source.
package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/restyle/internal/detector"
	"github.com/valpere/restyle/internal/markdown"
)

// Texts shorter than this many runes are not checked; detection on them is
// unreliable.
const minValidationLength = 20

type Validator struct {
	det detector.Detector
}

func New(det detector.Detector) *Validator {
	return &Validator{det: det}
}

// SameLanguage reports whether rewritten is in the same language as
// original. Short texts and texts whose language cannot be determined pass.
// On a mismatch the error names both codes.
func (v *Validator) SameLanguage(ctx context.Context, original, rewritten string) (bool, error) {
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return false, fmt.Errorf("rewrite is empty")
	}

	src := markdown.ToPlainText([]byte(original))
	dst := markdown.ToPlainText([]byte(rewritten))
	if len([]rune(src)) < minValidationLength || len([]rune(dst)) < minValidationLength {
		return true, nil
	}

	from, ok := v.det.DetectISO(ctx, src)
	if !ok {
		return true, nil
	}
	to, ok := v.det.DetectISO(ctx, dst)
	if !ok {
		return true, nil
	}

	if !strings.EqualFold(from, to) {
		return false, fmt.Errorf("language changed from %s to %s", from, to)
	}
	return true, nil
}
