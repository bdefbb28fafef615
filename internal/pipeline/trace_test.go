package pipeline

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/valpere/restyle/internal"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPipeline_Run_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	f := newFixture(0.9)
	if _, err := f.pipeline(Config{}).Run(context.Background(), request()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := map[string]bool{}
	var root sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		names[s.Name()] = true
		if s.Name() == "pipeline.run" {
			root = s
		}
	}
	for _, want := range []string{
		"pipeline.run", "pipeline.analysis", "pipeline.retrieval", "pipeline.planning",
		"pipeline.conversion", "pipeline.quality_check", "pipeline.retention",
	} {
		if !names[want] {
			t.Errorf("missing span %q, got %v", want, names)
		}
	}
	if root == nil {
		t.Fatal("no root span")
	}
	for _, s := range sr.Ended() {
		if s.Name() != "pipeline.run" && s.Parent().SpanID() != root.SpanContext().SpanID() {
			t.Errorf("span %q is not a child of the run span", s.Name())
		}
	}

	f = newFixture(0.9)
	f.converter.transformFunc = func(context.Context, string, internal.TransformationPlan, []internal.TransformationExample) (string, error) {
		return "", errors.New("llm unavailable")
	}
	before := len(sr.Ended())
	if _, err := f.pipeline(Config{}).Run(context.Background(), request()); err == nil {
		t.Fatal("expected error")
	}
	failed := map[string]codes.Code{}
	for _, s := range sr.Ended()[before:] {
		failed[s.Name()] = s.Status().Code
	}
	if failed["pipeline.conversion"] != codes.Error || failed["pipeline.run"] != codes.Error {
		t.Errorf("expected conversion and run spans to be marked failed, got %v", failed)
	}
	if _, ok := failed["pipeline.quality_check"]; ok {
		t.Error("expected no quality check span after conversion failure")
	}
}
