package domain

import (
	"fmt"
	"strings"
	"time"
)

type StageStatus string

const (
	StatusPending    StageStatus = "pending"
	StatusInProgress StageStatus = "in_progress"
	StatusIncluded   StageStatus = "included"
	StatusExcluded   StageStatus = "excluded"
	StatusMaybe      StageStatus = "maybe"
)

func (s StageStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusIncluded, StatusExcluded, StatusMaybe:
		return true
	default:
		return false
	}
}

// Stage is one of the three independent screening tracks on a record.
type Stage string

const (
	StageDedup    Stage = "dedup"
	StageTitle    Stage = "title"
	StageAbstract Stage = "abstract"
)

func ParseStage(raw string) (Stage, error) {
	switch Stage(strings.ToLower(strings.TrimSpace(raw))) {
	case StageDedup:
		return StageDedup, nil
	case StageTitle:
		return StageTitle, nil
	case StageAbstract:
		return StageAbstract, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse stage", fmt.Errorf("unknown stage %q", raw))
	}
}

// Record is one bibliographic entry under review. Fields outside this struct
// are opaque pass-through data carried in Extra.
type Record struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty"`
	DOI      string `json:"doi,omitempty"`

	DedupStatus      StageStatus `json:"dedup_status"`
	IsDuplicate      bool        `json:"is_duplicate"`
	DuplicateGroupID string      `json:"duplicate_group_id,omitempty"`
	IsPrimary        bool        `json:"is_primary"`

	TitleStatus StageStatus `json:"title_status"`
	TitleNotes  string      `json:"title_notes,omitempty"`

	AbstractStatus StageStatus `json:"abstract_status"`
	AbstractNotes  string      `json:"abstract_notes,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordInput carries caller-supplied fields for record creation.
type RecordInput struct {
	ID       string            `json:"id,omitempty"`
	Title    string            `json:"title"`
	Abstract string            `json:"abstract,omitempty"`
	DOI      string            `json:"doi,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

func (r *Record) StageStatusFor(stage Stage) StageStatus {
	switch stage {
	case StageDedup:
		return r.DedupStatus
	case StageTitle:
		return r.TitleStatus
	case StageAbstract:
		return r.AbstractStatus
	default:
		return ""
	}
}

// EligibleFor reports whether the record is visible to a screening stage.
// Title screening sees everything not excluded by deduplication; abstract
// screening sees only records included at the title stage.
func (r *Record) EligibleFor(stage Stage) bool {
	switch stage {
	case StageDedup:
		return true
	case StageTitle:
		return r.DedupStatus != StatusExcluded
	case StageAbstract:
		return r.TitleStatus == StatusIncluded
	default:
		return false
	}
}

// AwaitingClassification reports whether the record should be handed to the
// automatic classifier at the given stage. Records already included or
// excluded are never re-classified; in_progress counts as pending.
func (r *Record) AwaitingClassification(stage Stage) bool {
	if !r.EligibleFor(stage) {
		return false
	}
	switch r.StageStatusFor(stage) {
	case StatusPending, StatusInProgress, StatusMaybe:
		return true
	default:
		return false
	}
}

// ClassificationText returns the text submitted for a stage. The abstract
// stage falls back to the title when no abstract is available.
func (r *Record) ClassificationText(stage Stage) string {
	if stage == StageAbstract && strings.TrimSpace(r.Abstract) != "" {
		return r.Abstract
	}
	return r.Title
}

// DedupeResult summarizes one duplicate-detection pass.
type DedupeResult struct {
	Scanned    int `json:"scanned"`
	Groups     int `json:"groups"`
	Duplicates int `json:"duplicates"`

	// StaleGroups lists group ids found on records that did not re-match in
	// this pass. Prior markings are advisory once manual review has happened;
	// they are reported here rather than cleared.
	StaleGroups []string `json:"stale_groups,omitempty"`
}
