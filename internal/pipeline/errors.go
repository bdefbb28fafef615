package pipeline

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageAnalysis     Stage = "analysis"
	StageRetrieval    Stage = "retrieval"
	StagePlanning     Stage = "planning"
	StageConversion   Stage = "conversion"
	StageQualityCheck Stage = "quality_check"
)

var (
	ErrAnalysisFailed     = errors.New("analysis failed")
	ErrRetrievalFailed    = errors.New("retrieval failed")
	ErrPlanningFailed     = errors.New("planning failed")
	ErrConversionFailed   = errors.New("conversion failed")
	ErrQualityCheckFailed = errors.New("quality check failed")
)

func (s Stage) sentinel() error {
	switch s {
	case StageAnalysis:
		return ErrAnalysisFailed
	case StageRetrieval:
		return ErrRetrievalFailed
	case StagePlanning:
		return ErrPlanningFailed
	case StageConversion:
		return ErrConversionFailed
	case StageQualityCheck:
		return ErrQualityCheckFailed
	}
	return fmt.Errorf("%s failed", string(s))
}

// StageError is the fatal error returned by Run. errors.Is matches both the
// stage sentinel (e.g. ErrConversionFailed) and the underlying cause.
type StageError struct {
	Stage Stage
	Err   error
}

func newStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v: %v", e.Stage.sentinel(), e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Stage.sentinel(), e.Err}
}
