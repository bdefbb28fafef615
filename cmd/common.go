/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valpere/restyle/internal/agents"
	"github.com/valpere/restyle/internal/config"
	"github.com/valpere/restyle/internal/detector"
	"github.com/valpere/restyle/internal/embedding"
	"github.com/valpere/restyle/internal/examples"
	"github.com/valpere/restyle/internal/history"
	"github.com/valpere/restyle/internal/pipeline"
	"github.com/valpere/restyle/internal/resilience"
	"github.com/valpere/restyle/internal/validator"
)

func guardConfig(r config.RetryConfig) resilience.Config {
	return resilience.Config{
		MaxRetries:        r.MaxRetries,
		InitialInterval:   r.InitialInterval,
		RequestsPerSecond: r.RequestsPerSecond,
		BreakerFailures:   r.BreakerFailures,
		BreakerTimeout:    r.BreakerTimeout,
	}
}

// openExamples builds the embedding provider and loads the example store.
func openExamples(ctx context.Context, c *config.Config) (*examples.Store, error) {
	remote, err := embedding.NewOpenAI(embedding.OpenAIConfig{
		APIKey:     c.Embedding.APIKey,
		BaseURL:    c.Embedding.BaseURL,
		Model:      c.Embedding.Model,
		Resilience: guardConfig(c.Embedding.Retry),
	})
	if err != nil {
		return nil, err
	}
	provider, err := embedding.NewCached(remote, c.Embedding.CacheSize)
	if err != nil {
		return nil, err
	}

	store := examples.New(provider)
	if err := store.Load(ctx, c.StorePath); err != nil {
		return nil, fmt.Errorf("failed to load examples: %w", err)
	}
	slog.Debug("examples loaded", "path", c.StorePath, "count", store.Len())
	return store, nil
}

// buildDetector returns nil when detection is disabled. The returned close
// func is never nil.
func buildDetector(ctx context.Context, c *config.Config) (detector.Detector, func(), error) {
	switch c.Detector.Backend {
	case config.BackendNone:
		return nil, func() {}, nil
	case config.BackendGoogle:
		g, err := detector.NewGoogle(ctx, c.Detector.Credentials)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { g.Close() }, nil
	default:
		return detector.NewLingua(), func() {}, nil
	}
}

type app struct {
	pipeline *pipeline.Pipeline
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires the collaborators, example store and run history into a
// pipeline.
func buildApp(ctx context.Context, c *config.Config) (*app, error) {
	a := &app{}

	client, err := agents.NewClient(agents.ClientConfig{
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		Model:       c.LLM.Model,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		Resilience:  guardConfig(c.LLM.Retry),
	})
	if err != nil {
		return nil, err
	}

	store, err := openExamples(ctx, c)
	if err != nil {
		return nil, err
	}

	det, closeDet, err := buildDetector(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to create language detector: %w", err)
	}
	a.closers = append(a.closers, closeDet)

	var val *validator.Validator
	if det != nil {
		val = validator.New(det)
	}

	opts := []pipeline.Option{pipeline.WithLogger(slog.Default())}
	if !c.NoHistory && c.HistoryDB != "" {
		db, err := history.New(c.HistoryDB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.closers = append(a.closers, func() { db.Close() })
		opts = append(opts, pipeline.WithRecorder(db))
	}

	a.pipeline = pipeline.New(
		agents.NewStyleAnalyzer(client, det),
		agents.NewPlanner(client),
		agents.NewConverter(client, agents.ConverterConfig{
			ExampleChars: c.ExampleChars,
			ChunkChars:   c.ChunkChars,
		}),
		agents.NewQualityChecker(client, val),
		store,
		pipeline.Config{
			StorePath:         c.StorePath,
			SimilarK:          c.SimilarK,
			ParallelRetrieval: c.Parallel,
		},
		opts...,
	)
	return a, nil
}
