package domain

import "testing"

func TestEligibleForTitleExcludesDedupExcluded(t *testing.T) {
	rec := Record{DedupStatus: StatusExcluded, TitleStatus: StatusPending}
	if rec.EligibleFor(StageTitle) {
		t.Fatalf("dedup-excluded record must not be a title candidate")
	}
	rec.DedupStatus = StatusPending
	if !rec.EligibleFor(StageTitle) {
		t.Fatalf("expected title eligibility for non-excluded record")
	}
}

func TestEligibleForAbstractRequiresTitleIncluded(t *testing.T) {
	cases := []struct {
		titleStatus StageStatus
		want        bool
	}{
		{StatusPending, false},
		{StatusMaybe, false},
		{StatusExcluded, false},
		{StatusIncluded, true},
	}
	for _, tc := range cases {
		rec := Record{DedupStatus: StatusPending, TitleStatus: tc.titleStatus}
		if got := rec.EligibleFor(StageAbstract); got != tc.want {
			t.Fatalf("titleStatus=%s: abstract eligibility = %v, want %v", tc.titleStatus, got, tc.want)
		}
	}
}

func TestAwaitingClassificationSkipsDecidedRecords(t *testing.T) {
	rec := Record{DedupStatus: StatusPending, TitleStatus: StatusIncluded}
	if rec.AwaitingClassification(StageTitle) {
		t.Fatalf("included record must not be re-classified")
	}
	rec.TitleStatus = StatusMaybe
	if !rec.AwaitingClassification(StageTitle) {
		t.Fatalf("maybe record should be re-classified")
	}
	rec.TitleStatus = StatusInProgress
	if !rec.AwaitingClassification(StageTitle) {
		t.Fatalf("in_progress counts as pending for classification")
	}
}

func TestClassificationTextFallsBackToTitle(t *testing.T) {
	rec := Record{Title: "a title", Abstract: ""}
	if got := rec.ClassificationText(StageAbstract); got != "a title" {
		t.Fatalf("expected title fallback, got %q", got)
	}
	rec.Abstract = "an abstract"
	if got := rec.ClassificationText(StageAbstract); got != "an abstract" {
		t.Fatalf("expected abstract, got %q", got)
	}
	if got := rec.ClassificationText(StageTitle); got != "a title" {
		t.Fatalf("title stage must use the title, got %q", got)
	}
}

func TestParseDecisionLabel(t *testing.T) {
	cases := []struct {
		raw  string
		want Decision
	}{
		{"INCLUDE", DecisionInclude},
		{"include this one", DecisionInclude},
		{"Excluded", DecisionExclude},
		{"maybe", DecisionMaybe},
		{"include or exclude", DecisionMaybe},
		{"no verdict here", DecisionMaybe},
	}
	for _, tc := range cases {
		if got := ParseDecisionLabel(tc.raw); got != tc.want {
			t.Fatalf("ParseDecisionLabel(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestRotationStateNormalize(t *testing.T) {
	s := RotationState{Cursor: 2, Size: 3}
	if got := s.Normalize(3); got != s {
		t.Fatalf("in-range state must be unchanged, got %+v", got)
	}
	if got := s.Normalize(2); got.Cursor != 0 || got.Size != 2 {
		t.Fatalf("size change must reset cursor, got %+v", got)
	}
	if got := (RotationState{Cursor: 7, Size: 3}).Normalize(3); got.Cursor != 0 {
		t.Fatalf("out-of-range cursor must reset, got %+v", got)
	}
}

func TestDecisionStageStatus(t *testing.T) {
	if DecisionInclude.StageStatus() != StatusIncluded {
		t.Fatalf("INCLUDE must map to included")
	}
	if DecisionExclude.StageStatus() != StatusExcluded {
		t.Fatalf("EXCLUDE must map to excluded")
	}
	if Decision("WHATEVER").StageStatus() != StatusMaybe {
		t.Fatalf("unknown decisions must map to maybe")
	}
}

func TestParseStage(t *testing.T) {
	if _, err := ParseStage("nope"); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	stage, err := ParseStage(" Title ")
	if err != nil || stage != StageTitle {
		t.Fatalf("ParseStage(Title) = %v, %v", stage, err)
	}
}

func TestAppliedDecisionsExcludesErroredAndPersistFailed(t *testing.T) {
	result := BatchRunResult{
		Decisions: []BatchDecision{
			{RecordID: "r1", Decision: DecisionInclude},
			{RecordID: "r2", Decision: DecisionMaybe, Err: "chunk failed"},
			{RecordID: "r3", Decision: DecisionExclude},
		},
		PersistFailures: []PersistFailure{{RecordID: "r3", Reason: "record not found"}},
	}

	applied := result.AppliedDecisions()
	if len(applied) != 1 || applied[0].RecordID != "r1" {
		t.Fatalf("only persisted decisions count as applied, got %+v", applied)
	}
}

func TestAppliedDecisionsEmptyResult(t *testing.T) {
	if got := (BatchRunResult{}).AppliedDecisions(); len(got) != 0 {
		t.Fatalf("expected no applied decisions, got %+v", got)
	}
}
