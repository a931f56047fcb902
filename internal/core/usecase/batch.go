package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/ports"
)

// DefaultBatchSize is the chunk size used when a run does not specify one.
const DefaultBatchSize = 50

// recordsPlaceholder marks where the per-record lines are injected into a
// stage prompt template.
const recordsPlaceholder = "{records}"

// BatchScreeningUseCase partitions classification candidates into fixed-size
// chunks, drives one classifier call per chunk, and persists the outcomes in
// a single batched update. Chunks run strictly sequentially: the rotation
// state is shared mutable data and the external service is rate limited.
type BatchScreeningUseCase struct {
	repo         ports.RecordRepository
	settings     ports.SettingsRepository
	classifier   ports.BatchClassifier
	progress     ports.ProgressFunc
	observeChunk ports.ChunkObserver
	defaultSize  int
}

// BatchOptions carries the run-independent tuning of the orchestrator.
// All fields are optional.
type BatchOptions struct {
	// Progress receives processed/total after each completed chunk.
	Progress ports.ProgressFunc
	// ObserveChunk receives each chunk's classification duration.
	ObserveChunk ports.ChunkObserver
	// DefaultBatchSize applies when a run requests size <= 0.
	DefaultBatchSize int
}

func NewBatchScreeningUseCase(
	repo ports.RecordRepository,
	settings ports.SettingsRepository,
	classifier ports.BatchClassifier,
	opts BatchOptions,
) *BatchScreeningUseCase {
	defaultSize := opts.DefaultBatchSize
	if defaultSize <= 0 {
		defaultSize = DefaultBatchSize
	}
	return &BatchScreeningUseCase{
		repo:         repo,
		settings:     settings,
		classifier:   classifier,
		progress:     opts.Progress,
		observeChunk: opts.ObserveChunk,
		defaultSize:  defaultSize,
	}
}

// Run executes one batch screening pass for a stage. Chunk-level failures
// never abort the run: every record of a failed chunk gets an error decision
// and later chunks still execute and persist. The returned result always
// carries final counts, even under partial failure.
func (uc *BatchScreeningUseCase) Run(ctx context.Context, stage domain.Stage, batchSize int) (domain.BatchRunResult, error) {
	if stage != domain.StageTitle && stage != domain.StageAbstract {
		return domain.BatchRunResult{}, domain.WrapError(domain.ErrInvalidInput, "batch run", fmt.Errorf("stage %q is not classifiable", stage))
	}
	if batchSize <= 0 {
		batchSize = uc.defaultSize
	}

	records, err := uc.repo.ListAll(ctx)
	if err != nil {
		return domain.BatchRunResult{}, fmt.Errorf("list records: %w", err)
	}
	candidates := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if rec.AwaitingClassification(stage) {
			candidates = append(candidates, rec)
		}
	}

	result := domain.BatchRunResult{Stage: stage, Total: len(candidates)}
	if len(candidates) == 0 {
		// Zero calls made, zero updates attempted.
		return result, nil
	}

	template, err := uc.settings.PromptTemplate(ctx, stage)
	if err != nil {
		return result, fmt.Errorf("load %s prompt template: %w", stage, err)
	}
	creds, err := uc.settings.Credentials(ctx)
	if err != nil {
		return result, fmt.Errorf("load credentials: %w", err)
	}
	if len(creds) == 0 {
		return result, domain.WrapError(domain.ErrInvalidInput, "batch run", fmt.Errorf("no credentials configured"))
	}
	cursor, err := uc.settings.RotationCursor(ctx)
	if err != nil {
		return result, fmt.Errorf("load rotation cursor: %w", err)
	}
	state := domain.RotationState{Cursor: cursor, Size: len(creds)}.Normalize(len(creds))

	for start := 0; start < len(candidates); start += batchSize {
		end := min(start+batchSize, len(candidates))
		chunk := candidates[start:end]

		chunkStart := time.Now()
		raw, next, err := uc.classifier.Classify(ctx, renderPrompt(template, stage, chunk), creds, state)
		state = next
		if uc.observeChunk != nil {
			uc.observeChunk(stage, time.Since(chunkStart))
		}
		if err != nil {
			slog.Warn("batch_chunk_failed", "stage", stage, "chunk_size", len(chunk), "error", err)
			for _, rec := range chunk {
				result.Decisions = append(result.Decisions, domain.BatchDecision{
					RecordID:   rec.ID,
					Decision:   domain.DecisionMaybe,
					Confidence: 0,
					Err:        err.Error(),
				})
			}
		} else {
			result.Decisions = append(result.Decisions, ParseBatchResponse(raw, recordIDs(chunk))...)
		}

		result.Processed = end
		if uc.progress != nil {
			uc.progress(result.Processed, result.Total)
		}
		slog.Info("batch_progress", "stage", stage, "processed", result.Processed, "total", result.Total)
	}

	if err := uc.settings.SetRotationCursor(ctx, state.Cursor); err != nil {
		slog.Warn("rotation_cursor_persist_failed", "cursor", state.Cursor, "error", err)
	}

	uc.persistDecisions(ctx, stage, &result)

	slog.Info("batch_run_complete",
		"stage", stage,
		"total", result.Total,
		"succeeded", result.Succeeded,
		"errored", result.Errored,
	)
	return result, nil
}

// persistDecisions submits every error-free decision as one batched update
// and folds the per-record outcome back into the result. A transaction-level
// failure keeps the classifications in the result for retry.
func (uc *BatchScreeningUseCase) persistDecisions(ctx context.Context, stage domain.Stage, result *domain.BatchRunResult) {
	var updates []ports.StatusUpdate
	for _, d := range result.Decisions {
		if d.Err != "" {
			result.Errored++
			continue
		}
		updates = append(updates, ports.StatusUpdate{
			RecordID: d.RecordID,
			Stage:    stage,
			Status:   d.Decision.StageStatus(),
			Notes:    d.Rationale,
		})
	}
	if len(updates) == 0 {
		return
	}

	report, err := uc.repo.ApplyStatusUpdates(ctx, updates)
	if err != nil {
		slog.Error("batch_persist_failed", "stage", stage, "updates", len(updates), "error", err)
		for _, u := range updates {
			result.PersistFailures = append(result.PersistFailures, domain.PersistFailure{
				RecordID: u.RecordID,
				Reason:   err.Error(),
			})
		}
		result.Errored += len(updates)
		return
	}

	result.Succeeded = report.Applied
	result.Errored += len(report.Failures)
	result.PersistFailures = append(result.PersistFailures, report.Failures...)
}

// renderPrompt combines the stage template with one line per record in the
// form "id: <id>; <stage>: <text>". Templates without the placeholder get the
// lines appended.
func renderPrompt(template string, stage domain.Stage, chunk []domain.Record) string {
	var b strings.Builder
	for i, rec := range chunk {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "id: %s; %s: %s", rec.ID, stage, rec.ClassificationText(stage))
	}
	lines := b.String()

	if strings.Contains(template, recordsPlaceholder) {
		return strings.ReplaceAll(template, recordsPlaceholder, lines)
	}
	return template + "\n\n" + lines
}

func recordIDs(records []domain.Record) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	return ids
}
