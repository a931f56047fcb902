package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/ports"
)

// CollisionStrategy derives a replacement id after an identifier clash.
// attempt starts at 1 and is bounded by maxCollisionAttempts.
type CollisionStrategy func(id string, attempt int) string

const maxCollisionAttempts = 3

// IngestUseCase creates records with all three stage statuses pending.
type IngestUseCase struct {
	repo    ports.RecordRepository
	resolve CollisionStrategy
}

func NewIngestUseCase(repo ports.RecordRepository) *IngestUseCase {
	return &IngestUseCase{
		repo:    repo,
		resolve: suffixCollisionStrategy,
	}
}

func (uc *IngestUseCase) Create(ctx context.Context, input domain.RecordInput) (*domain.Record, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create record", errors.New("title is required"))
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	rec := &domain.Record{
		ID:             id,
		Title:          input.Title,
		Abstract:       input.Abstract,
		DOI:            strings.TrimSpace(input.DOI),
		DedupStatus:    domain.StatusPending,
		TitleStatus:    domain.StatusPending,
		AbstractStatus: domain.StatusPending,
		Extra:          input.Extra,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for attempt := 0; ; attempt++ {
		err := uc.repo.Create(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !domain.IsKind(err, domain.ErrDuplicateID) || attempt >= maxCollisionAttempts {
			return nil, fmt.Errorf("create record: %w", err)
		}
		rec.ID = uc.resolve(id, attempt+1)
	}
}

func suffixCollisionStrategy(id string, _ int) string {
	return fmt.Sprintf("%s-%s", id, uuid.NewString()[:8])
}
