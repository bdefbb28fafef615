// Package detector identifies the language of a text. Codes are lower-case
// ISO 639-1 ("en", "uk").
package detector

import (
	"context"
	"fmt"
	"strings"

	translate "cloud.google.com/go/translate"
	lingua "github.com/pemistahl/lingua-go"
	"google.golang.org/api/option"
)

type Detector interface {
	DetectISO(ctx context.Context, text string) (string, bool)
}

// Lingua detects offline with lingua-go. Building it loads language models,
// so reuse the instance.
type Lingua struct {
	detector lingua.LanguageDetector
}

// NewLingua restricts detection to langs. With fewer than two languages it
// considers all of them.
func NewLingua(langs ...lingua.Language) *Lingua {
	var builder lingua.LanguageDetectorBuilder
	if len(langs) >= 2 {
		builder = lingua.NewLanguageDetectorBuilder().FromLanguages(langs...)
	} else {
		builder = lingua.NewLanguageDetectorBuilder().FromAllLanguages()
	}
	return &Lingua{detector: builder.Build()}
}

func (d *Lingua) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

func (d *Lingua) DetectISO(_ context.Context, text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// Google asks the Cloud Translation API. Detection errors count as unknown.
type Google struct {
	client *translate.Client
}

// NewGoogle authenticates with credentialsFile when set, otherwise with
// application default credentials. Extra options are passed to the client.
func NewGoogle(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*Google, error) {
	if credentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(credentialsFile)}, opts...)
	}
	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create translate client: %w", err)
	}
	return &Google{client: client}, nil
}

func (g *Google) DetectISO(ctx context.Context, text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	detections, err := g.client.DetectLanguage(ctx, []string{text})
	if err != nil || len(detections) == 0 || len(detections[0]) == 0 {
		return "", false
	}
	best := detections[0][0]
	for _, d := range detections[0][1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	base, _ := best.Language.Base()
	code := base.String()
	if code == "" || code == "und" {
		return "", false
	}
	return code, true
}

func (g *Google) Close() error {
	return g.client.Close()
}
