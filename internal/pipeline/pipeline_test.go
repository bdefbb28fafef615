package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/restyle/internal"
	"github.com/valpere/restyle/internal/examples"
)

type mockAnalyzer struct {
	analyzeFunc func(ctx context.Context, content string) (internal.ContentAnalysis, error)
	callCount   atomic.Int32
}

func (m *mockAnalyzer) Analyze(ctx context.Context, content string) (internal.ContentAnalysis, error) {
	m.callCount.Add(1)
	if m.analyzeFunc != nil {
		return m.analyzeFunc(ctx, content)
	}
	return internal.ContentAnalysis{
		Tone:        "formal",
		Complexity:  "advanced",
		Structure:   "paragraphs",
		ContentType: "article",
	}, nil
}

type mockPlanner struct {
	planFunc  func(ctx context.Context, analysis internal.ContentAnalysis, tone, complexity string) (internal.TransformationPlan, error)
	callCount atomic.Int32
}

func (m *mockPlanner) CreatePlan(ctx context.Context, analysis internal.ContentAnalysis, tone, complexity string) (internal.TransformationPlan, error) {
	m.callCount.Add(1)
	if m.planFunc != nil {
		return m.planFunc(ctx, analysis, tone, complexity)
	}
	return internal.TransformationPlan{
		Steps:            []string{"simplify vocabulary", "shorten sentences"},
		TargetTone:       tone,
		TargetComplexity: complexity,
		TargetFormat:     "article",
	}, nil
}

type mockConverter struct {
	transformFunc func(ctx context.Context, content string, plan internal.TransformationPlan, examples []internal.TransformationExample) (string, error)
	lastExamples  []internal.TransformationExample
	callCount     atomic.Int32
}

func (m *mockConverter) Transform(ctx context.Context, content string, plan internal.TransformationPlan, examples []internal.TransformationExample) (string, error) {
	m.callCount.Add(1)
	m.lastExamples = examples
	if m.transformFunc != nil {
		return m.transformFunc(ctx, content, plan, examples)
	}
	return "casual version of: " + content, nil
}

type mockChecker struct {
	toneMatch float64
	checkFunc func(ctx context.Context, original, transformed, tone string) (internal.QualityReport, error)
	callCount atomic.Int32
}

func (m *mockChecker) CheckQuality(ctx context.Context, original, transformed, tone string) (internal.QualityReport, error) {
	m.callCount.Add(1)
	if m.checkFunc != nil {
		return m.checkFunc(ctx, original, transformed, tone)
	}
	return internal.QualityReport{
		ToneMatch:        m.toneMatch,
		GrammarScore:     0.9,
		ConsistencyScore: 0.9,
		FactualityScore:  0.9,
	}, nil
}

type mockStore struct {
	similar   []internal.TransformationExample
	findFunc  func(ctx context.Context, query string, k int) ([]internal.TransformationExample, error)
	addErr    error
	saveErr   error
	added     []internal.TransformationExample
	lastK     int
	saveCount atomic.Int32
	findCount atomic.Int32
	mu        sync.Mutex
}

func (m *mockStore) FindSimilar(ctx context.Context, query string, k int) ([]internal.TransformationExample, error) {
	m.findCount.Add(1)
	m.mu.Lock()
	m.lastK = k
	m.mu.Unlock()
	if m.findFunc != nil {
		return m.findFunc(ctx, query, k)
	}
	return m.similar, nil
}

func (m *mockStore) Add(_ context.Context, ex internal.TransformationExample) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, ex)
	return nil
}

func (m *mockStore) Save(string) error {
	m.saveCount.Add(1)
	return m.saveErr
}

type mockRecorder struct {
	records []internal.RunRecord
	err     error
}

func (m *mockRecorder) SaveRun(_ context.Context, rec internal.RunRecord) error {
	m.records = append(m.records, rec)
	return m.err
}

// mockProvider embeds every text to the same vector.
type mockProvider struct{}

func (mockProvider) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type fixture struct {
	analyzer  *mockAnalyzer
	planner   *mockPlanner
	converter *mockConverter
	checker   *mockChecker
	store     *mockStore
}

func newFixture(toneMatch float64) *fixture {
	return &fixture{
		analyzer:  &mockAnalyzer{},
		planner:   &mockPlanner{},
		converter: &mockConverter{},
		checker:   &mockChecker{toneMatch: toneMatch},
		store:     &mockStore{},
	}
}

func (f *fixture) pipeline(cfg Config, opts ...Option) *Pipeline {
	return New(f.analyzer, f.planner, f.converter, f.checker, f.store, cfg, opts...)
}

func request() Request {
	return Request{
		Content:          "The quarterly results indicate a substantial increase in revenue.",
		TargetTone:       "casual",
		TargetComplexity: "beginner",
	}
}

func TestPipeline_New_Defaults(t *testing.T) {
	p := newFixture(0.5).pipeline(Config{})
	if p.config.SimilarK != DefaultSimilarK {
		t.Errorf("expected SimilarK=%d, got %d", DefaultSimilarK, p.config.SimilarK)
	}
	if p.logger == nil {
		t.Error("expected default logger")
	}
}

func TestPipeline_Run_Success(t *testing.T) {
	f := newFixture(0.5)
	f.store.similar = []internal.TransformationExample{{Original: "a", Transformed: "b", Tone: "casual"}}
	p := f.pipeline(Config{SimilarK: 2})

	res, err := p.Run(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RunID == "" {
		t.Error("expected run ID")
	}
	if res.TransformedContent == "" {
		t.Error("expected transformed content")
	}
	if len(res.SimilarExamples) != 1 {
		t.Errorf("expected 1 similar example, got %d", len(res.SimilarExamples))
	}
	if len(f.converter.lastExamples) != 1 {
		t.Errorf("expected converter to receive 1 example, got %d", len(f.converter.lastExamples))
	}
	if f.store.lastK != 2 {
		t.Errorf("expected k=2, got %d", f.store.lastK)
	}
	if res.Plan.TargetTone != "casual" {
		t.Errorf("expected plan tone casual, got %q", res.Plan.TargetTone)
	}
	if res.Analysis.Tone != "formal" {
		t.Errorf("expected analysis tone formal, got %q", res.Analysis.Tone)
	}
	if res.Retention != StateNotRetained {
		t.Errorf("expected not_retained, got %s", res.Retention)
	}
	if res.Duration <= 0 {
		t.Error("expected positive duration")
	}
}

func TestPipeline_Run_StageFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		setup    func(f *fixture)
		sentinel error
		stage    Stage
	}{
		{
			name: "analysis",
			setup: func(f *fixture) {
				f.analyzer.analyzeFunc = func(context.Context, string) (internal.ContentAnalysis, error) {
					return internal.ContentAnalysis{}, boom
				}
			},
			sentinel: ErrAnalysisFailed,
			stage:    StageAnalysis,
		},
		{
			name: "retrieval",
			setup: func(f *fixture) {
				f.store.findFunc = func(context.Context, string, int) ([]internal.TransformationExample, error) {
					return nil, boom
				}
			},
			sentinel: ErrRetrievalFailed,
			stage:    StageRetrieval,
		},
		{
			name: "planning",
			setup: func(f *fixture) {
				f.planner.planFunc = func(context.Context, internal.ContentAnalysis, string, string) (internal.TransformationPlan, error) {
					return internal.TransformationPlan{}, boom
				}
			},
			sentinel: ErrPlanningFailed,
			stage:    StagePlanning,
		},
		{
			name: "conversion",
			setup: func(f *fixture) {
				f.converter.transformFunc = func(context.Context, string, internal.TransformationPlan, []internal.TransformationExample) (string, error) {
					return "", boom
				}
			},
			sentinel: ErrConversionFailed,
			stage:    StageConversion,
		},
		{
			name: "quality check",
			setup: func(f *fixture) {
				f.checker.checkFunc = func(context.Context, string, string, string) (internal.QualityReport, error) {
					return internal.QualityReport{}, boom
				}
			},
			sentinel: ErrQualityCheckFailed,
			stage:    StageQualityCheck,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(0.95)
			tt.setup(f)

			res, err := f.pipeline(Config{}).Run(context.Background(), request())
			if err == nil {
				t.Fatal("expected error")
			}
			if res != nil {
				t.Error("expected nil result on failure")
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("expected %v, got %v", tt.sentinel, err)
			}
			if !errors.Is(err, boom) {
				t.Errorf("expected cause to be preserved, got %v", err)
			}
			var se *StageError
			if !errors.As(err, &se) || se.Stage != tt.stage {
				t.Errorf("expected StageError for %s, got %v", tt.stage, err)
			}
			if len(f.store.added) != 0 {
				t.Errorf("expected no retention, got %d added", len(f.store.added))
			}
		})
	}
}

func TestPipeline_Run_ConversionFailureSkipsLaterStages(t *testing.T) {
	f := newFixture(0.95)
	f.converter.transformFunc = func(context.Context, string, internal.TransformationPlan, []internal.TransformationExample) (string, error) {
		return "", errors.New("llm unavailable")
	}

	_, err := f.pipeline(Config{StorePath: "unused.json"}).Run(context.Background(), request())
	if !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
	if f.checker.callCount.Load() != 0 {
		t.Errorf("expected quality check to be skipped, got %d calls", f.checker.callCount.Load())
	}
	if f.store.saveCount.Load() != 0 {
		t.Errorf("expected no save, got %d", f.store.saveCount.Load())
	}
}

func TestPipeline_Run_RetentionThreshold(t *testing.T) {
	tests := []struct {
		toneMatch float64
		want      State
		added     int
	}{
		{0.5, StateNotRetained, 0},
		{0.8, StateNotRetained, 0},
		{0.801, StateRetained, 1},
		{1.0, StateRetained, 1},
	}

	for _, tt := range tests {
		f := newFixture(tt.toneMatch)
		res, err := f.pipeline(Config{StorePath: "examples.json"}).Run(context.Background(), request())
		if err != nil {
			t.Fatalf("tone %.3f: unexpected error: %v", tt.toneMatch, err)
		}
		if res.Retention != tt.want {
			t.Errorf("tone %.3f: expected %s, got %s", tt.toneMatch, tt.want, res.Retention)
		}
		if len(f.store.added) != tt.added {
			t.Errorf("tone %.3f: expected %d added, got %d", tt.toneMatch, tt.added, len(f.store.added))
		}
		if int(f.store.saveCount.Load()) != tt.added {
			t.Errorf("tone %.3f: expected %d saves, got %d", tt.toneMatch, tt.added, f.store.saveCount.Load())
		}
	}
}

func TestPipeline_Run_RetainedExampleFields(t *testing.T) {
	f := newFixture(0.9)
	req := request()
	req.ContentType = "email"

	res, err := f.pipeline(Config{}).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.store.added) != 1 {
		t.Fatalf("expected 1 added, got %d", len(f.store.added))
	}
	got := f.store.added[0]
	want := internal.TransformationExample{
		Original:    req.Content,
		Transformed: res.TransformedContent,
		Tone:        "casual",
		Complexity:  "beginner",
		ContentType: "email",
	}
	if got != want {
		t.Errorf("retained example = %+v, want %+v", got, want)
	}
	if f.store.saveCount.Load() != 0 {
		t.Error("expected no save without a store path")
	}
}

func TestPipeline_Run_DefaultContentType(t *testing.T) {
	f := newFixture(0.9)
	if _, err := f.pipeline(Config{}).Run(context.Background(), request()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.store.added[0].ContentType != DefaultContentType {
		t.Errorf("expected content type %q, got %q", DefaultContentType, f.store.added[0].ContentType)
	}
}

func TestPipeline_Run_RetentionFailureIsWarning(t *testing.T) {
	t.Run("add", func(t *testing.T) {
		f := newFixture(0.95)
		f.store.addErr = examples.ErrEmbeddingUnavailable

		res, err := f.pipeline(Config{StorePath: "examples.json"}).Run(context.Background(), request())
		if err != nil {
			t.Fatalf("expected success despite retention failure, got %v", err)
		}
		if res.Retention != StateRetentionFailed {
			t.Errorf("expected retention_failed, got %s", res.Retention)
		}
		if len(res.Warnings) != 1 {
			t.Errorf("expected 1 warning, got %v", res.Warnings)
		}
		if f.store.saveCount.Load() != 0 {
			t.Error("expected no save after failed add")
		}
	})

	t.Run("save", func(t *testing.T) {
		f := newFixture(0.95)
		f.store.saveErr = &examples.PersistenceError{Op: "save", Path: "x", Err: os.ErrPermission}

		res, err := f.pipeline(Config{StorePath: "examples.json"}).Run(context.Background(), request())
		if err != nil {
			t.Fatalf("expected success despite save failure, got %v", err)
		}
		if res.Retention != StateRetentionFailed {
			t.Errorf("expected retention_failed, got %s", res.Retention)
		}
		if res.TransformedContent == "" {
			t.Error("expected transformed content to be returned")
		}
		if len(res.Warnings) != 1 {
			t.Errorf("expected 1 warning, got %v", res.Warnings)
		}
	})
}

func TestPipeline_Run_WithRealStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transformation_examples.json")
	store := examples.New(mockProvider{})
	ctx := context.Background()

	if err := store.Add(ctx, internal.TransformationExample{
		Original: "seed", Transformed: "seed rewritten", Tone: "casual", Complexity: "beginner", ContentType: "article",
	}); err != nil {
		t.Fatalf("seed Add failed: %v", err)
	}

	f := newFixture(0.95)
	p := New(f.analyzer, f.planner, f.converter, f.checker, store, Config{StorePath: path})

	res, err := p.Run(ctx, request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Retention != StateRetained {
		t.Fatalf("expected retained, got %s", res.Retention)
	}
	if len(res.SimilarExamples) != 1 {
		t.Errorf("expected seed to be retrieved, got %d", len(res.SimilarExamples))
	}
	if store.Len() != 2 {
		t.Errorf("expected store size 2, got %d", store.Len())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected store file: %v", err)
	}
	var saved []internal.TransformationExample
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("store file is not valid JSON: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected 2 saved examples, got %d", len(saved))
	}
	if saved[1].Transformed != res.TransformedContent {
		t.Errorf("expected last saved example to be the new rewrite, got %q", saved[1].Transformed)
	}
}

func TestPipeline_Run_CancelledContext(t *testing.T) {
	f := newFixture(0.95)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline(Config{}).Run(ctx, request())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Errorf("expected abort before analysis, got %v", err)
	}
	if f.analyzer.callCount.Load() != 0 {
		t.Error("expected analyzer not to be called")
	}
}

func TestPipeline_Run_CancelledMidway(t *testing.T) {
	f := newFixture(0.95)
	ctx, cancel := context.WithCancel(context.Background())
	f.converter.transformFunc = func(context.Context, string, internal.TransformationPlan, []internal.TransformationExample) (string, error) {
		cancel()
		return "done", nil
	}

	_, err := f.pipeline(Config{}).Run(ctx, request())
	if !errors.Is(err, ErrQualityCheckFailed) {
		t.Fatalf("expected abort before quality check, got %v", err)
	}
	if f.checker.callCount.Load() != 0 {
		t.Error("expected checker not to be called")
	}
	if len(f.store.added) != 0 {
		t.Error("expected no retention")
	}
}

func TestPipeline_Run_Parallel(t *testing.T) {
	f := newFixture(0.5)
	f.store.similar = []internal.TransformationExample{{Original: "a"}}

	var inFlight, peak atomic.Int32
	track := func() {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	}
	f.store.findFunc = func(context.Context, string, int) ([]internal.TransformationExample, error) {
		track()
		return f.store.similar, nil
	}
	f.planner.planFunc = func(_ context.Context, _ internal.ContentAnalysis, tone, complexity string) (internal.TransformationPlan, error) {
		track()
		return internal.TransformationPlan{TargetTone: tone, TargetComplexity: complexity}, nil
	}

	res, err := f.pipeline(Config{ParallelRetrieval: true}).Run(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() != 2 {
		t.Errorf("expected retrieval and planning to overlap, peak=%d", peak.Load())
	}
	if len(res.SimilarExamples) != 1 || res.Plan.TargetTone != "casual" {
		t.Errorf("expected both results, got %+v", res)
	}
}

func TestPipeline_Run_ParallelFailure(t *testing.T) {
	f := newFixture(0.5)
	f.planner.planFunc = func(context.Context, internal.ContentAnalysis, string, string) (internal.TransformationPlan, error) {
		return internal.TransformationPlan{}, errors.New("planner down")
	}

	_, err := f.pipeline(Config{ParallelRetrieval: true}).Run(context.Background(), request())
	if !errors.Is(err, ErrPlanningFailed) {
		t.Fatalf("expected ErrPlanningFailed, got %v", err)
	}
	if f.converter.callCount.Load() != 0 {
		t.Error("expected converter not to be called")
	}
}

func TestPipeline_Run_Recorder(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(0.9)
		rec := &mockRecorder{}
		res, err := f.pipeline(Config{}, WithRecorder(rec)).Run(context.Background(), request())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rec.records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(rec.records))
		}
		r := rec.records[0]
		if r.ID != res.RunID {
			t.Errorf("expected record ID %s, got %s", res.RunID, r.ID)
		}
		if r.Status != "retained" {
			t.Errorf("expected status retained, got %q", r.Status)
		}
		if r.Quality.ToneMatch != 0.9 {
			t.Errorf("expected tone match 0.9, got %v", r.Quality.ToneMatch)
		}
	})

	t.Run("failure", func(t *testing.T) {
		f := newFixture(0.9)
		f.analyzer.analyzeFunc = func(context.Context, string) (internal.ContentAnalysis, error) {
			return internal.ContentAnalysis{}, errors.New("bad input")
		}
		rec := &mockRecorder{}
		if _, err := f.pipeline(Config{}, WithRecorder(rec)).Run(context.Background(), request()); err == nil {
			t.Fatal("expected error")
		}
		if len(rec.records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(rec.records))
		}
		r := rec.records[0]
		if r.Status != "failed" || r.FailedStage != string(StageAnalysis) {
			t.Errorf("expected failed/analysis, got %q/%q", r.Status, r.FailedStage)
		}
		if r.Error == "" {
			t.Error("expected error message in record")
		}
	})

	t.Run("recorder error is a warning", func(t *testing.T) {
		f := newFixture(0.5)
		rec := &mockRecorder{err: errors.New("disk full")}
		res, err := f.pipeline(Config{}, WithRecorder(rec)).Run(context.Background(), request())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Warnings) != 1 {
			t.Errorf("expected 1 warning, got %v", res.Warnings)
		}
	})
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StatePending, "pending"},
		{StateQualityChecked, "quality_checked"},
		{StateRetentionFailed, "retention_failed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_Terminal(t *testing.T) {
	if StateConverted.Terminal() {
		t.Error("converted should not be terminal")
	}
	for _, s := range []State{StateRetained, StateNotRetained, StateRetentionFailed, StateFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestStageError_Message(t *testing.T) {
	err := newStageError(StageConversion, errors.New("timeout"))
	if got := err.Error(); got != "conversion failed: timeout" {
		t.Errorf("unexpected message %q", got)
	}
}
