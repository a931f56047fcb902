package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/ports"
)

// ScreeningUseCase implements the per-stage status machine: candidate
// selection, manual decisions, and stage resets.
type ScreeningUseCase struct {
	repo ports.RecordRepository
}

func NewScreeningUseCase(repo ports.RecordRepository) *ScreeningUseCase {
	return &ScreeningUseCase{repo: repo}
}

// StageCandidates returns every record the stage currently "sees".
func (uc *ScreeningUseCase) StageCandidates(ctx context.Context, stage domain.Stage) ([]domain.Record, error) {
	records, err := uc.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	candidates := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if rec.EligibleFor(stage) {
			candidates = append(candidates, rec)
		}
	}
	return candidates, nil
}

// ClassificationCandidates returns the pending/maybe subset of the stage's
// candidates, the only records the automatic classifier may touch.
func (uc *ScreeningUseCase) ClassificationCandidates(ctx context.Context, stage domain.Stage) ([]domain.Record, error) {
	records, err := uc.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	candidates := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if rec.AwaitingClassification(stage) {
			candidates = append(candidates, rec)
		}
	}
	return candidates, nil
}

// Decide records a manual screening decision for one record.
func (uc *ScreeningUseCase) Decide(ctx context.Context, id string, stage domain.Stage, status domain.StageStatus, notes string) error {
	if !status.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "decide", fmt.Errorf("unknown status %q", status))
	}
	if err := uc.repo.UpdateStageStatus(ctx, id, stage, status, notes); err != nil {
		return fmt.Errorf("update %s status: %w", stage, err)
	}
	return nil
}

// ResetStage sets the stage status of every record currently eligible for the
// stage back to pending. The reset is explicit and irreversible; records
// outside the eligibility set at the time of the call, and all notes, are
// untouched.
func (uc *ScreeningUseCase) ResetStage(ctx context.Context, stage domain.Stage) (int, error) {
	candidates, err := uc.StageCandidates(ctx, stage)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(candidates))
	for _, rec := range candidates {
		ids = append(ids, rec.ID)
	}
	n, err := uc.repo.ResetStageStatus(ctx, ids, stage)
	if err != nil {
		return 0, fmt.Errorf("reset %s stage: %w", stage, err)
	}
	slog.Info("stage_reset", "stage", stage, "records", n)
	return int(n), nil
}
