package internal

import "time"

// TransformationExample is a completed, quality-approved rewrite kept for
// future retrieval. Values are never mutated after creation.
type TransformationExample struct {
	Original    string `json:"original"`
	Transformed string `json:"transformed"`
	Tone        string `json:"tone"`
	Complexity  string `json:"complexity"`
	ContentType string `json:"content_type"`
}

type ContentAnalysis struct {
	Tone        string `json:"tone"`
	Complexity  string `json:"complexity"`
	Structure   string `json:"structure"`
	ContentType string `json:"content_type"`
	Language    string `json:"language,omitempty"`
}

type TransformationPlan struct {
	Steps            []string `json:"steps"`
	TargetTone       string   `json:"target_tone"`
	TargetComplexity string   `json:"target_complexity"`
	TargetFormat     string   `json:"target_format"`
}

// QualityReport scores a rewrite. All scores are in [0, 1].
type QualityReport struct {
	ToneMatch        float64  `json:"tone_match"`
	GrammarScore     float64  `json:"grammar_score"`
	ConsistencyScore float64  `json:"consistency_score"`
	FactualityScore  float64  `json:"factuality_score"`
	Suggestions      []string `json:"suggestions"`
}

// RunRecord is one pipeline run as kept in the run history.
type RunRecord struct {
	ID               string        `json:"id"`
	Content          string        `json:"content"`
	TargetTone       string        `json:"target_tone"`
	TargetComplexity string        `json:"target_complexity"`
	ContentType      string        `json:"content_type"`
	Transformed      string        `json:"transformed"`
	Quality          QualityReport `json:"quality"`
	SimilarCount     int           `json:"similar_count"`
	Status           string        `json:"status"`
	FailedStage      string        `json:"failed_stage,omitempty"`
	Error            string        `json:"error,omitempty"`
	Latency          time.Duration `json:"latency"`
	Timestamp        time.Time     `json:"timestamp"`
}
