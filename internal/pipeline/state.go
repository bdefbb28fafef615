package pipeline

// State is the position of a run in its lifecycle. States only move forward.
type State int

const (
	StatePending State = iota
	StateAnalyzed
	StateRetrieved
	StatePlanned
	StateConverted
	StateQualityChecked
	StateRetained
	StateNotRetained
	StateRetentionFailed
	StateFailed
)

var stateNames = [...]string{
	StatePending:         "pending",
	StateAnalyzed:        "analyzed",
	StateRetrieved:       "retrieved",
	StatePlanned:         "planned",
	StateConverted:       "converted",
	StateQualityChecked:  "quality_checked",
	StateRetained:        "retained",
	StateNotRetained:     "not_retained",
	StateRetentionFailed: "retention_failed",
	StateFailed:          "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateRetained, StateNotRetained, StateRetentionFailed, StateFailed:
		return true
	}
	return false
}
