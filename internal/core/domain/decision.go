package domain

import "strings"

// Decision is the classifier's verdict for one record at one stage.
type Decision string

const (
	DecisionInclude Decision = "INCLUDE"
	DecisionExclude Decision = "EXCLUDE"
	DecisionMaybe   Decision = "MAYBE"
)

// StageStatus maps a decision to the stage status it produces. Anything that
// is not a clear include or exclude lands on maybe for human follow-up.
func (d Decision) StageStatus() StageStatus {
	switch d {
	case DecisionInclude:
		return StatusIncluded
	case DecisionExclude:
		return StatusExcluded
	default:
		return StatusMaybe
	}
}

// ParseDecisionLabel interprets a loosely formatted decision label by
// case-insensitive substring match. A label matching more than one decision,
// or none, is ambiguous and resolves to MAYBE.
func ParseDecisionLabel(raw string) Decision {
	lowered := strings.ToLower(raw)

	matched := DecisionMaybe
	matches := 0
	if strings.Contains(lowered, "include") {
		matched = DecisionInclude
		matches++
	}
	if strings.Contains(lowered, "exclude") {
		matched = DecisionExclude
		matches++
	}
	if strings.Contains(lowered, "maybe") {
		matched = DecisionMaybe
		matches++
	}
	if matches == 1 {
		return matched
	}
	return DecisionMaybe
}

// BatchDecision is the immutable outcome of one classification attempt for
// one record. A non-empty Err means the chunk holding the record failed and
// the decision must not be persisted.
type BatchDecision struct {
	RecordID   string   `json:"record_id"`
	Decision   Decision `json:"decision"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Err        string   `json:"error,omitempty"`
}

// RotationState points at the next credential to try. It is owned by the
// caller and passed through every classification call; the client never keeps
// hidden rotation state of its own.
type RotationState struct {
	Cursor int `json:"cursor"`
	Size   int `json:"size"`
}

// Normalize resets the cursor when the credential set changed size or the
// cursor is out of range.
func (s RotationState) Normalize(size int) RotationState {
	if size <= 0 {
		return RotationState{}
	}
	if s.Size != size || s.Cursor < 0 || s.Cursor >= size {
		return RotationState{Cursor: 0, Size: size}
	}
	return s
}

// ScreeningJob is the queue payload requesting one batch screening run.
type ScreeningJob struct {
	Stage     Stage `json:"stage"`
	BatchSize int   `json:"batch_size,omitempty"`
}

// PersistFailure records why one record's status update did not apply.
type PersistFailure struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
}

// BatchRunResult aggregates the outcome of one batch screening run.
type BatchRunResult struct {
	Stage     Stage `json:"stage"`
	Total     int   `json:"total"`
	Processed int   `json:"processed"`
	Succeeded int   `json:"succeeded"`
	Errored   int   `json:"errored"`

	Decisions       []BatchDecision  `json:"decisions,omitempty"`
	PersistFailures []PersistFailure `json:"persist_failures,omitempty"`
}

// AppliedDecisions returns the decisions that actually reached storage:
// error-free ones whose record is not listed under PersistFailures.
func (r BatchRunResult) AppliedDecisions() []BatchDecision {
	failed := make(map[string]bool, len(r.PersistFailures))
	for _, f := range r.PersistFailures {
		failed[f.RecordID] = true
	}
	applied := make([]BatchDecision, 0, len(r.Decisions))
	for _, d := range r.Decisions {
		if d.Err == "" && !failed[d.RecordID] {
			applied = append(applied, d)
		}
	}
	return applied
}
