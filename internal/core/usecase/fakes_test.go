package usecase

import (
	"context"
	"errors"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/ports"
)

type resetCall struct {
	ids   []string
	stage domain.Stage
}

type statusCall struct {
	id     string
	stage  domain.Stage
	status domain.StageStatus
	notes  string
}

type recordRepoFake struct {
	records []domain.Record
	listErr error

	createErr    error
	duplicateIDs map[string]bool
	createdIDs   []string

	marks    []ports.DuplicateMark
	marksErr error

	updates     []ports.StatusUpdate
	applyReport *ports.BulkUpdateReport
	applyErr    error

	statusCalls []statusCall
	resetCalls  []resetCall
}

func (f *recordRepoFake) Create(_ context.Context, rec *domain.Record) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.duplicateIDs[rec.ID] {
		return domain.WrapError(domain.ErrDuplicateID, "insert record", errors.New("unique violation"))
	}
	f.createdIDs = append(f.createdIDs, rec.ID)
	f.records = append(f.records, *rec)
	return nil
}

func (f *recordRepoFake) GetByID(_ context.Context, id string) (*domain.Record, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			rec := f.records[i]
			return &rec, nil
		}
	}
	return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", errors.New(id))
}

func (f *recordRepoFake) ListAll(context.Context) ([]domain.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *recordRepoFake) UpdateStageStatus(_ context.Context, id string, stage domain.Stage, status domain.StageStatus, notes string) error {
	f.statusCalls = append(f.statusCalls, statusCall{id: id, stage: stage, status: status, notes: notes})
	return nil
}

func (f *recordRepoFake) ApplyStatusUpdates(_ context.Context, updates []ports.StatusUpdate) (ports.BulkUpdateReport, error) {
	f.updates = append(f.updates, updates...)
	if f.applyErr != nil {
		return ports.BulkUpdateReport{}, f.applyErr
	}
	if f.applyReport != nil {
		return *f.applyReport, nil
	}
	return ports.BulkUpdateReport{Applied: len(updates)}, nil
}

func (f *recordRepoFake) ApplyDuplicateMarks(_ context.Context, marks []ports.DuplicateMark) error {
	if f.marksErr != nil {
		return f.marksErr
	}
	f.marks = append(f.marks, marks...)
	return nil
}

func (f *recordRepoFake) ResetStageStatus(_ context.Context, ids []string, stage domain.Stage) (int64, error) {
	f.resetCalls = append(f.resetCalls, resetCall{ids: ids, stage: stage})
	return int64(len(ids)), nil
}

type settingsFake struct {
	templates map[domain.Stage]string
	creds     []string
	cursor    int

	savedCursor   *int
	templateErr   error
	credentialErr error
}

func (f *settingsFake) PromptTemplate(_ context.Context, stage domain.Stage) (string, error) {
	if f.templateErr != nil {
		return "", f.templateErr
	}
	return f.templates[stage], nil
}

func (f *settingsFake) SetPromptTemplate(_ context.Context, stage domain.Stage, template string) error {
	if f.templates == nil {
		f.templates = make(map[domain.Stage]string)
	}
	f.templates[stage] = template
	return nil
}

func (f *settingsFake) Credentials(context.Context) ([]string, error) {
	if f.credentialErr != nil {
		return nil, f.credentialErr
	}
	return f.creds, nil
}

func (f *settingsFake) SetCredentials(_ context.Context, creds []string) error {
	f.creds = creds
	return nil
}

func (f *settingsFake) RotationCursor(context.Context) (int, error) {
	return f.cursor, nil
}

func (f *settingsFake) SetRotationCursor(_ context.Context, cursor int) error {
	f.savedCursor = &cursor
	return nil
}

type classifyCall struct {
	prompt string
	state  domain.RotationState
}

type classifierFake struct {
	responses []string
	errs      []error
	nextState domain.RotationState
	calls     []classifyCall
}

func (f *classifierFake) Classify(_ context.Context, prompt string, creds []string, state domain.RotationState) (string, domain.RotationState, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, classifyCall{prompt: prompt, state: state})

	next := f.nextState
	if next == (domain.RotationState{}) {
		next = domain.RotationState{Cursor: (state.Cursor + 1) % len(creds), Size: len(creds)}
	}
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", next, f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], next, nil
	}
	return "[]", next, nil
}
