package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/ports"
)

// DedupeUseCase groups probable duplicates by exact DOI equality and proposes
// one primary per group. Title-similarity grouping is intentionally not
// applied; DOI equality is the only criterion.
type DedupeUseCase struct {
	repo       ports.RecordRepository
	newGroupID func() string
}

func NewDedupeUseCase(repo ports.RecordRepository) *DedupeUseCase {
	return &DedupeUseCase{
		repo:       repo,
		newGroupID: uuid.NewString,
	}
}

// Run scans the full record set once. The pass does not clear markings from
// earlier passes: after manual review, prior group ids are advisory, and ids
// that no longer re-match are reported as stale instead of being rewritten.
func (uc *DedupeUseCase) Run(ctx context.Context) (domain.DedupeResult, error) {
	records, err := uc.repo.ListAll(ctx)
	if err != nil {
		return domain.DedupeResult{}, fmt.Errorf("list records: %w", err)
	}

	result := domain.DedupeResult{Scanned: len(records)}
	groups := groupByDOI(records)

	matched := make(map[string]bool)
	var marks []ports.DuplicateMark
	for _, group := range groups {
		primary := selectPrimary(group)
		groupID := uc.newGroupID()
		result.Groups++
		for _, rec := range group {
			matched[rec.ID] = true
			result.Duplicates++
			marks = append(marks, ports.DuplicateMark{
				RecordID:  rec.ID,
				GroupID:   groupID,
				IsPrimary: rec.ID == primary.ID,
			})
		}
	}

	result.StaleGroups = staleGroupIDs(records, matched)

	if len(marks) > 0 {
		if err := uc.repo.ApplyDuplicateMarks(ctx, marks); err != nil {
			return domain.DedupeResult{}, fmt.Errorf("persist duplicate marks: %w", err)
		}
	}

	slog.Info("dedupe_pass_complete",
		"scanned", result.Scanned,
		"groups", result.Groups,
		"duplicates", result.Duplicates,
		"stale_groups", len(result.StaleGroups),
	)
	return result, nil
}

// groupByDOI walks the records in input order. A group is opened when an
// unprocessed record first matches a later one; single-member groups are
// never formed. Records with an empty DOI never match.
func groupByDOI(records []domain.Record) [][]domain.Record {
	processed := make([]bool, len(records))
	var groups [][]domain.Record

	for i := range records {
		if processed[i] || strings.TrimSpace(records[i].DOI) == "" {
			continue
		}
		var group []domain.Record
		for j := i + 1; j < len(records); j++ {
			if processed[j] || strings.TrimSpace(records[j].DOI) == "" {
				continue
			}
			if records[i].DOI == records[j].DOI {
				if group == nil {
					group = append(group, records[i])
					processed[i] = true
				}
				group = append(group, records[j])
				processed[j] = true
			}
		}
		if len(group) > 1 {
			groups = append(groups, group)
		}
	}
	return groups
}

// selectPrimary proposes the member with the longest abstract; ties resolve
// to the first encountered.
func selectPrimary(group []domain.Record) domain.Record {
	primary := group[0]
	for _, rec := range group[1:] {
		if len(rec.Abstract) > len(primary.Abstract) {
			primary = rec
		}
	}
	return primary
}

func staleGroupIDs(records []domain.Record, matched map[string]bool) []string {
	seen := make(map[string]bool)
	var stale []string
	for _, rec := range records {
		if rec.DuplicateGroupID == "" || matched[rec.ID] || seen[rec.DuplicateGroupID] {
			continue
		}
		seen[rec.DuplicateGroupID] = true
		stale = append(stale, rec.DuplicateGroupID)
	}
	return stale
}
