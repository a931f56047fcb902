package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
)

type ingestorFake struct {
	created *domain.Record
	err     error
}

func (f *ingestorFake) Create(_ context.Context, input domain.RecordInput) (*domain.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = &domain.Record{ID: input.ID, Title: input.Title, DOI: input.DOI}
	if f.created.ID == "" {
		f.created.ID = "generated"
	}
	return f.created, nil
}

type readerFake struct {
	records []domain.Record
	err     error
}

func (f *readerFake) GetByID(_ context.Context, id string) (*domain.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i], nil
		}
	}
	return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", errors.New(id))
}

func (f *readerFake) ListAll(context.Context) ([]domain.Record, error) {
	return f.records, f.err
}

type deduperFake struct {
	result domain.DedupeResult
	err    error
}

func (f *deduperFake) Run(context.Context) (domain.DedupeResult, error) {
	return f.result, f.err
}

type screeningFake struct {
	candidates []domain.Record
	decisions  []string
	resetCount int
	err        error
}

func (f *screeningFake) StageCandidates(_ context.Context, _ domain.Stage) ([]domain.Record, error) {
	return f.candidates, f.err
}

func (f *screeningFake) ClassificationCandidates(_ context.Context, _ domain.Stage) ([]domain.Record, error) {
	return f.candidates, f.err
}

func (f *screeningFake) Decide(_ context.Context, id string, stage domain.Stage, status domain.StageStatus, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.decisions = append(f.decisions, id+"/"+string(stage)+"/"+string(status))
	return nil
}

func (f *screeningFake) ResetStage(_ context.Context, _ domain.Stage) (int, error) {
	return f.resetCount, f.err
}

type settingsStub struct {
	templates map[domain.Stage]string
	creds     []string
	cursor    int
}

func (s *settingsStub) PromptTemplate(_ context.Context, stage domain.Stage) (string, error) {
	template, ok := s.templates[stage]
	if !ok {
		return "", domain.WrapError(domain.ErrSettingNotFound, "get setting", errors.New(string(stage)))
	}
	return template, nil
}

func (s *settingsStub) SetPromptTemplate(_ context.Context, stage domain.Stage, template string) error {
	if s.templates == nil {
		s.templates = map[domain.Stage]string{}
	}
	s.templates[stage] = template
	return nil
}

func (s *settingsStub) Credentials(context.Context) ([]string, error) { return s.creds, nil }

func (s *settingsStub) SetCredentials(_ context.Context, creds []string) error {
	s.creds = creds
	return nil
}

func (s *settingsStub) RotationCursor(context.Context) (int, error) { return s.cursor, nil }

func (s *settingsStub) SetRotationCursor(_ context.Context, cursor int) error {
	s.cursor = cursor
	return nil
}

type queueFake struct {
	published []domain.ScreeningJob
	err       error
}

func (f *queueFake) PublishScreeningRequested(_ context.Context, job domain.ScreeningJob) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, job)
	return nil
}

func (f *queueFake) SubscribeScreeningRequested(context.Context, func(context.Context, domain.ScreeningJob) error) error {
	return nil
}

type exporterFake struct {
	path string
	err  error
}

func (f *exporterFake) Export(_ context.Context, _ []domain.Record, _ string) (string, error) {
	return f.path, f.err
}

type routerFixture struct {
	router    *Router
	ingestor  *ingestorFake
	reader    *readerFake
	deduper   *deduperFake
	screening *screeningFake
	settings  *settingsStub
	queue     *queueFake
	exporter  *exporterFake
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		ingestor:  &ingestorFake{},
		reader:    &readerFake{},
		deduper:   &deduperFake{},
		screening: &screeningFake{},
		settings:  &settingsStub{cursor: 7},
		queue:     &queueFake{},
		exporter:  &exporterFake{path: "/tmp/report.xlsx"},
	}
	f.router = NewRouter(f.ingestor, f.reader, f.deduper, f.screening, f.settings, f.queue, f.exporter)
	return f
}

func (f *routerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreateRecord(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(t, http.MethodPost, "/v1/records", `{"title":"A study","doi":"10.1/x"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if f.ingestor.created == nil || f.ingestor.created.Title != "A study" {
		t.Fatalf("ingestor not invoked: %+v", f.ingestor.created)
	}
}

func TestCreateRecordInvalidInputMapsTo400(t *testing.T) {
	f := newRouterFixture()
	f.ingestor.err = domain.WrapError(domain.ErrInvalidInput, "create record", errors.New("title is required"))

	rec := f.do(t, http.MethodPost, "/v1/records", `{"doi":"10.1/x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetRecordNotFoundMapsTo404(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(t, http.MethodGet, "/v1/records/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRunDedupeReturnsResult(t *testing.T) {
	f := newRouterFixture()
	f.deduper.result = domain.DedupeResult{Scanned: 10, Groups: 2, Duplicates: 3}

	rec := f.do(t, http.MethodPost, "/v1/dedupe/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result domain.DedupeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.Groups != 2 || result.Duplicates != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestScreeningDecision(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(t, http.MethodPost, "/v1/screening/title/decision", `{"record_id":"r1","status":"included","notes":"relevant"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(f.screening.decisions) != 1 || f.screening.decisions[0] != "r1/title/included" {
		t.Fatalf("unexpected decisions %v", f.screening.decisions)
	}
}

func TestScreeningUnknownStageMapsTo400(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(t, http.MethodGet, "/v1/screening/fulltext/candidates", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestScreeningRunEnqueuesJob(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(t, http.MethodPost, "/v1/screening/abstract/run", `{"batch_size":25}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(f.queue.published) != 1 {
		t.Fatalf("expected one published job, got %d", len(f.queue.published))
	}
	job := f.queue.published[0]
	if job.Stage != domain.StageAbstract || job.BatchSize != 25 {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestScreeningRunQueueDownMapsTo503(t *testing.T) {
	f := newRouterFixture()
	f.queue.err = domain.WrapError(domain.ErrTemporary, "nats publish", errors.New("no servers"))

	rec := f.do(t, http.MethodPost, "/v1/screening/title/run", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestPromptTemplateRoundTrip(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(t, http.MethodPut, "/v1/settings/prompts/title", `{"template":"screen {records}"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/v1/settings/prompts/title", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "screen {records}") {
		t.Fatalf("template not returned: %s", rec.Body.String())
	}
}

func TestCredentialsNeverEchoed(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(t, http.MethodPut, "/v1/settings/credentials", `{"credentials":["key-a","key-b"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", rec.Code, rec.Body.String())
	}
	if f.settings.cursor != 0 {
		t.Fatalf("replacing credentials must reset the cursor, got %d", f.settings.cursor)
	}

	rec = f.do(t, http.MethodGet, "/v1/settings/credentials", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "key-a") {
		t.Fatalf("credential material leaked: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"count":2`) {
		t.Fatalf("expected count, got %s", rec.Body.String())
	}
}

func TestExportReturnsPath(t *testing.T) {
	f := newRouterFixture()
	f.reader.records = []domain.Record{{ID: "r1"}, {ID: "r2"}}

	rec := f.do(t, http.MethodPost, "/v1/export", `{"filename":"snapshot"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "/tmp/report.xlsx") {
		t.Fatalf("expected export path in body: %s", rec.Body.String())
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}
}
