package ports

import (
	"context"
	"time"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
)

// StatusUpdate is one stage-status write within a batched update.
type StatusUpdate struct {
	RecordID string
	Stage    domain.Stage
	Status   domain.StageStatus
	Notes    string
}

// BulkUpdateReport describes a batched update outcome. Failures carry
// per-record reasons; already-applied updates are not rolled back because of
// them.
type BulkUpdateReport struct {
	Applied  int
	Failures []domain.PersistFailure
}

// DuplicateMark assigns a record to a duplicate group.
type DuplicateMark struct {
	RecordID  string
	GroupID   string
	IsPrimary bool
}

// RecordRepository persists and reads bibliographic records.
type RecordRepository interface {
	Create(ctx context.Context, rec *domain.Record) error
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	ListAll(ctx context.Context) ([]domain.Record, error)
	UpdateStageStatus(ctx context.Context, id string, stage domain.Stage, status domain.StageStatus, notes string) error
	// ApplyStatusUpdates submits all updates in one transaction. Records that
	// cannot be updated are reported individually; a non-nil error means the
	// transaction itself failed and nothing was applied.
	ApplyStatusUpdates(ctx context.Context, updates []StatusUpdate) (BulkUpdateReport, error)
	// ApplyDuplicateMarks is all-or-nothing.
	ApplyDuplicateMarks(ctx context.Context, marks []DuplicateMark) error
	// ResetStageStatus sets the stage status of exactly the given records back
	// to pending, leaving notes and other stages untouched.
	ResetStageStatus(ctx context.Context, ids []string, stage domain.Stage) (int64, error)
}

// SettingsRepository stores screening configuration independently of record
// data: per-stage prompt templates, the credential list, and the rotation
// cursor persisted between batch runs.
type SettingsRepository interface {
	PromptTemplate(ctx context.Context, stage domain.Stage) (string, error)
	SetPromptTemplate(ctx context.Context, stage domain.Stage, template string) error
	Credentials(ctx context.Context) ([]string, error)
	SetCredentials(ctx context.Context, creds []string) error
	RotationCursor(ctx context.Context) (int, error)
	SetRotationCursor(ctx context.Context, cursor int) error
}

// BatchClassifier issues one classification request per call, rotating over
// the given credentials starting at state.Cursor. The returned state is the
// caller's to persist.
type BatchClassifier interface {
	Classify(ctx context.Context, prompt string, creds []string, state domain.RotationState) (string, domain.RotationState, error)
}

// ScreeningQueue transports batch screening run requests.
type ScreeningQueue interface {
	PublishScreeningRequested(ctx context.Context, job domain.ScreeningJob) error
	SubscribeScreeningRequested(ctx context.Context, handler func(context.Context, domain.ScreeningJob) error) error
}

// ReportExporter writes a snapshot of records to a report file and returns
// its path.
type ReportExporter interface {
	Export(ctx context.Context, records []domain.Record, filename string) (string, error)
}

// ProgressFunc receives processed/total counts after each completed chunk.
type ProgressFunc func(processed, total int)

// ChunkObserver receives the wall-clock duration of each classified chunk.
type ChunkObserver func(stage domain.Stage, elapsed time.Duration)
