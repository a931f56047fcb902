package ports

import (
	"context"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
)

// RecordIngestor is the inbound contract for record creation.
type RecordIngestor interface {
	Create(ctx context.Context, input domain.RecordInput) (*domain.Record, error)
}

// RecordReader is the inbound read model for record state.
type RecordReader interface {
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	ListAll(ctx context.Context) ([]domain.Record, error)
}

// DuplicateDetector runs one duplicate-detection pass over all records.
type DuplicateDetector interface {
	Run(ctx context.Context) (domain.DedupeResult, error)
}

// ScreeningService exposes stage eligibility, manual decisions, and resets.
type ScreeningService interface {
	StageCandidates(ctx context.Context, stage domain.Stage) ([]domain.Record, error)
	ClassificationCandidates(ctx context.Context, stage domain.Stage) ([]domain.Record, error)
	Decide(ctx context.Context, id string, stage domain.Stage, status domain.StageStatus, notes string) error
	ResetStage(ctx context.Context, stage domain.Stage) (int, error)
}

// BatchScreener drives one batch classification run for a stage.
type BatchScreener interface {
	Run(ctx context.Context, stage domain.Stage, batchSize int) (domain.BatchRunResult, error)
}
