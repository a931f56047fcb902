package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/ports"
)

func newDedupeForTests(repo *recordRepoFake) *DedupeUseCase {
	uc := NewDedupeUseCase(repo)
	n := 0
	uc.newGroupID = func() string {
		n++
		return fmt.Sprintf("group-%d", n)
	}
	return uc
}

func marksByRecord(marks []ports.DuplicateMark) map[string]ports.DuplicateMark {
	out := make(map[string]ports.DuplicateMark, len(marks))
	for _, m := range marks {
		out[m.RecordID] = m
	}
	return out
}

func TestDedupeGroupsEqualDOIs(t *testing.T) {
	repo := &recordRepoFake{records: []domain.Record{
		{ID: "a", DOI: "10.1/x"},
		{ID: "b", DOI: "10.1/y"},
		{ID: "c", DOI: "10.1/x"},
		{ID: "d", DOI: "10.1/x"},
	}}
	result, err := newDedupeForTests(repo).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Groups != 1 || result.Duplicates != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}

	marks := marksByRecord(repo.marks)
	if _, ok := marks["b"]; ok {
		t.Fatalf("record with unique DOI must not be marked")
	}
	if marks["a"].GroupID == "" || marks["a"].GroupID != marks["c"].GroupID || marks["a"].GroupID != marks["d"].GroupID {
		t.Fatalf("equal DOIs must share one group id: %+v", repo.marks)
	}
}

func TestDedupePrimaryHasLongestAbstract(t *testing.T) {
	repo := &recordRepoFake{records: []domain.Record{
		{ID: "a", DOI: "10.1/x", Abstract: "short"},
		{ID: "b", DOI: "10.1/x", Abstract: "a much longer abstract"},
		{ID: "c", DOI: "10.1/x", Abstract: "mid size"},
	}}
	if _, err := newDedupeForTests(repo).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	primaries := 0
	for _, m := range repo.marks {
		if m.IsPrimary {
			primaries++
			if m.RecordID != "b" {
				t.Fatalf("expected b as primary, got %s", m.RecordID)
			}
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary, got %d", primaries)
	}
}

func TestDedupePrimaryTieBreaksToFirstEncountered(t *testing.T) {
	repo := &recordRepoFake{records: []domain.Record{
		{ID: "a", DOI: "10.1/x", Abstract: "same len"},
		{ID: "b", DOI: "10.1/x", Abstract: "same len"},
	}}
	if _, err := newDedupeForTests(repo).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	marks := marksByRecord(repo.marks)
	if !marks["a"].IsPrimary || marks["b"].IsPrimary {
		t.Fatalf("tie must resolve to first encountered: %+v", repo.marks)
	}
}

func TestDedupeIgnoresEmptyDOIs(t *testing.T) {
	repo := &recordRepoFake{records: []domain.Record{
		{ID: "a", DOI: ""},
		{ID: "b", DOI: ""},
		{ID: "c", DOI: "  "},
	}}
	result, err := newDedupeForTests(repo).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Groups != 0 || len(repo.marks) != 0 {
		t.Fatalf("empty DOIs must never group: %+v", result)
	}
}

func TestDedupeReportsStaleGroupsWithoutClearing(t *testing.T) {
	repo := &recordRepoFake{records: []domain.Record{
		{ID: "a", DOI: "10.1/x"},
		{ID: "b", DOI: "10.1/x"},
		{ID: "old", DOI: "", DuplicateGroupID: "stale-group", IsDuplicate: true},
	}}
	result, err := newDedupeForTests(repo).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.StaleGroups) != 1 || result.StaleGroups[0] != "stale-group" {
		t.Fatalf("expected stale group report, got %+v", result.StaleGroups)
	}
	if _, marked := marksByRecord(repo.marks)["old"]; marked {
		t.Fatalf("stale record must not be rewritten")
	}
}

func TestDedupeSeparateGroupsPerDOI(t *testing.T) {
	repo := &recordRepoFake{records: []domain.Record{
		{ID: "a", DOI: "10.1/x"},
		{ID: "b", DOI: "10.1/y"},
		{ID: "c", DOI: "10.1/x"},
		{ID: "d", DOI: "10.1/y"},
	}}
	result, err := newDedupeForTests(repo).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Groups != 2 {
		t.Fatalf("expected 2 groups, got %d", result.Groups)
	}
	marks := marksByRecord(repo.marks)
	if marks["a"].GroupID == marks["b"].GroupID {
		t.Fatalf("different DOIs must not share a group")
	}
	if marks["a"].GroupID != marks["c"].GroupID || marks["b"].GroupID != marks["d"].GroupID {
		t.Fatalf("group assignment mismatch: %+v", repo.marks)
	}
}
