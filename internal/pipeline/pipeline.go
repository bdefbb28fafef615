// Package pipeline runs one style transformation end to end: analysis,
// exemplar retrieval, planning, conversion, quality check, and the retention
// policy that feeds good rewrites back into the exemplar store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/restyle/internal"
)

var tracer = otel.Tracer("github.com/valpere/restyle/internal/pipeline")

// RetentionThreshold is the exclusive lower bound on QualityReport.ToneMatch
// for a rewrite to be kept as an exemplar.
const RetentionThreshold = 0.8

const (
	DefaultContentType = "article"
	DefaultSimilarK    = 3
)

type Analyzer interface {
	Analyze(ctx context.Context, content string) (internal.ContentAnalysis, error)
}

type Planner interface {
	CreatePlan(ctx context.Context, analysis internal.ContentAnalysis, targetTone, targetComplexity string) (internal.TransformationPlan, error)
}

type Converter interface {
	Transform(ctx context.Context, content string, plan internal.TransformationPlan, examples []internal.TransformationExample) (string, error)
}

type QualityChecker interface {
	CheckQuality(ctx context.Context, original, transformed, targetTone string) (internal.QualityReport, error)
}

// ExampleStore is the subset of examples.Store the pipeline depends on.
type ExampleStore interface {
	FindSimilar(ctx context.Context, query string, k int) ([]internal.TransformationExample, error)
	Add(ctx context.Context, example internal.TransformationExample) error
	Save(path string) error
}

// Recorder keeps a history of runs.
type Recorder interface {
	SaveRun(ctx context.Context, rec internal.RunRecord) error
}

type Config struct {
	// StorePath is where the example store is saved after a retention. Empty
	// keeps retained examples in memory only.
	StorePath string
	SimilarK  int
	// ParallelRetrieval runs exemplar retrieval and planning concurrently.
	ParallelRetrieval bool
}

type Request struct {
	Content          string
	TargetTone       string
	TargetComplexity string
	ContentType      string
}

type Result struct {
	RunID              string
	TransformedContent string
	Quality            internal.QualityReport
	SimilarExamples    []internal.TransformationExample
	Analysis           internal.ContentAnalysis
	Plan               internal.TransformationPlan
	// Retention is one of StateRetained, StateNotRetained, StateRetentionFailed.
	Retention State
	// Warnings collects non-fatal problems from retention and recording.
	Warnings []string
	Duration time.Duration
}

type Pipeline struct {
	analyzer  Analyzer
	planner   Planner
	converter Converter
	checker   QualityChecker
	store     ExampleStore
	recorder  Recorder
	config    Config
	logger    *slog.Logger
}

type Option func(*Pipeline)

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func New(analyzer Analyzer, planner Planner, converter Converter, checker QualityChecker, store ExampleStore, config Config, opts ...Option) *Pipeline {
	if config.SimilarK <= 0 {
		config.SimilarK = DefaultSimilarK
	}
	p := &Pipeline{
		analyzer:  analyzer,
		planner:   planner,
		converter: converter,
		checker:   checker,
		store:     store,
		config:    config,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every stage in order. Any stage failure aborts the run with a
// *StageError and no partial result. Retention problems never fail the run;
// they are reported in Result.Warnings.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.ContentType == "" {
		req.ContentType = DefaultContentType
	}

	id := uuid.New().String()
	start := time.Now()
	log := p.logger.With("run_id", id)

	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", id),
		attribute.String("target.tone", req.TargetTone),
		attribute.String("target.complexity", req.TargetComplexity),
	))
	defer span.End()

	res, err := p.execute(ctx, log, id, req)
	latency := time.Since(start)

	rec := internal.RunRecord{
		ID:               id,
		Content:          req.Content,
		TargetTone:       req.TargetTone,
		TargetComplexity: req.TargetComplexity,
		ContentType:      req.ContentType,
		Latency:          latency,
		Timestamp:        start,
	}

	if err != nil {
		log.Error("run failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		rec.Status = StateFailed.String()
		rec.Error = err.Error()
		var se *StageError
		if errors.As(err, &se) {
			rec.FailedStage = string(se.Stage)
		}
		if recErr := p.record(ctx, rec); recErr != nil {
			log.Warn("failed to record run", "error", recErr)
		}
		return nil, err
	}

	res.Duration = latency
	rec.Transformed = res.TransformedContent
	rec.Quality = res.Quality
	rec.SimilarCount = len(res.SimilarExamples)
	rec.Status = res.Retention.String()
	if recErr := p.record(ctx, rec); recErr != nil {
		log.Warn("failed to record run", "error", recErr)
		res.Warnings = append(res.Warnings, fmt.Sprintf("run history not updated: %v", recErr))
	}

	span.SetAttributes(
		attribute.String("retention", res.Retention.String()),
		attribute.Float64("quality.tone_match", res.Quality.ToneMatch),
		attribute.Int("similar.count", len(res.SimilarExamples)),
	)
	log.Info("run complete",
		"retention", res.Retention.String(),
		"tone_match", res.Quality.ToneMatch,
		"similar", len(res.SimilarExamples),
		"duration", latency)
	return res, nil
}

func (p *Pipeline) execute(ctx context.Context, log *slog.Logger, id string, req Request) (*Result, error) {
	res := &Result{RunID: id}
	state := StatePending
	advance := func(next State) {
		log.Debug("state transition", "from", state.String(), "to", next.String())
		state = next
	}

	if err := checkpoint(ctx, StageAnalysis); err != nil {
		return nil, err
	}
	sctx, span := startStage(ctx, StageAnalysis)
	analysis, err := p.analyzer.Analyze(sctx, req.Content)
	endSpan(span, err)
	if err != nil {
		return nil, newStageError(StageAnalysis, err)
	}
	res.Analysis = analysis
	advance(StateAnalyzed)

	similar, plan, err := p.retrieveAndPlan(ctx, req, analysis)
	if err != nil {
		return nil, err
	}
	res.SimilarExamples = similar
	res.Plan = plan
	advance(StateRetrieved)
	advance(StatePlanned)

	if err := checkpoint(ctx, StageConversion); err != nil {
		return nil, err
	}
	sctx, span = startStage(ctx, StageConversion)
	transformed, err := p.converter.Transform(sctx, req.Content, plan, similar)
	endSpan(span, err)
	if err != nil {
		return nil, newStageError(StageConversion, err)
	}
	res.TransformedContent = transformed
	advance(StateConverted)

	if err := checkpoint(ctx, StageQualityCheck); err != nil {
		return nil, err
	}
	sctx, span = startStage(ctx, StageQualityCheck)
	report, err := p.checker.CheckQuality(sctx, req.Content, transformed, req.TargetTone)
	endSpan(span, err)
	if err != nil {
		return nil, newStageError(StageQualityCheck, err)
	}
	res.Quality = report
	advance(StateQualityChecked)

	final, warnings := p.retain(ctx, req, transformed, report)
	for _, w := range warnings {
		log.Warn("retention failed", "warning", w)
	}
	res.Retention = final
	res.Warnings = append(res.Warnings, warnings...)
	advance(final)

	return res, nil
}

// retrieveAndPlan runs stages 2 and 3. Conversion needs both results, so even
// in parallel mode this returns only after both have finished.
func (p *Pipeline) retrieveAndPlan(ctx context.Context, req Request, analysis internal.ContentAnalysis) ([]internal.TransformationExample, internal.TransformationPlan, error) {
	var (
		similar []internal.TransformationExample
		plan    internal.TransformationPlan
	)

	if !p.config.ParallelRetrieval {
		var err error
		if similar, err = p.retrieve(ctx, req.Content); err != nil {
			return nil, plan, err
		}
		if plan, err = p.plan(ctx, analysis, req); err != nil {
			return nil, plan, err
		}
		return similar, plan, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		similar, err = p.retrieve(gctx, req.Content)
		return err
	})
	g.Go(func() error {
		var err error
		plan, err = p.plan(gctx, analysis, req)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internal.TransformationPlan{}, err
	}
	return similar, plan, nil
}

func (p *Pipeline) retrieve(ctx context.Context, content string) ([]internal.TransformationExample, error) {
	if err := checkpoint(ctx, StageRetrieval); err != nil {
		return nil, err
	}
	ctx, span := startStage(ctx, StageRetrieval)
	similar, err := p.store.FindSimilar(ctx, content, p.config.SimilarK)
	endSpan(span, err)
	if err != nil {
		return nil, newStageError(StageRetrieval, err)
	}
	return similar, nil
}

func (p *Pipeline) plan(ctx context.Context, analysis internal.ContentAnalysis, req Request) (internal.TransformationPlan, error) {
	if err := checkpoint(ctx, StagePlanning); err != nil {
		return internal.TransformationPlan{}, err
	}
	ctx, span := startStage(ctx, StagePlanning)
	plan, err := p.planner.CreatePlan(ctx, analysis, req.TargetTone, req.TargetComplexity)
	endSpan(span, err)
	if err != nil {
		return internal.TransformationPlan{}, newStageError(StagePlanning, err)
	}
	return plan, nil
}

// retain applies the retention policy. It never fails the run.
func (p *Pipeline) retain(ctx context.Context, req Request, transformed string, report internal.QualityReport) (State, []string) {
	if report.ToneMatch <= RetentionThreshold {
		return StateNotRetained, nil
	}

	ctx, span := tracer.Start(ctx, "pipeline.retention")
	defer span.End()

	example := internal.TransformationExample{
		Original:    req.Content,
		Transformed: transformed,
		Tone:        req.TargetTone,
		Complexity:  req.TargetComplexity,
		ContentType: req.ContentType,
	}
	if err := p.store.Add(ctx, example); err != nil {
		span.RecordError(err)
		return StateRetentionFailed, []string{fmt.Sprintf("example not retained: %v", err)}
	}
	if p.config.StorePath == "" {
		return StateRetained, nil
	}
	if err := p.store.Save(p.config.StorePath); err != nil {
		span.RecordError(err)
		return StateRetentionFailed, []string{fmt.Sprintf("example retained in memory but not saved: %v", err)}
	}
	return StateRetained, nil
}

func (p *Pipeline) record(ctx context.Context, rec internal.RunRecord) error {
	if p.recorder == nil {
		return nil
	}
	return p.recorder.SaveRun(context.WithoutCancel(ctx), rec)
}

func startStage(ctx context.Context, stage Stage) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pipeline."+string(stage))
}

// endSpan marks span failed when err is non-nil and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// checkpoint aborts before stage when ctx is already done.
func checkpoint(ctx context.Context, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return newStageError(stage, err)
	}
	return nil
}
