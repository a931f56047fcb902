package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/ports"
)

type Router struct {
	ingestor  ports.RecordIngestor
	reader    ports.RecordReader
	deduper   ports.DuplicateDetector
	screening ports.ScreeningService
	settings  ports.SettingsRepository
	queue     ports.ScreeningQueue
	exporter  ports.ReportExporter
}

func NewRouter(
	ingestor ports.RecordIngestor,
	reader ports.RecordReader,
	deduper ports.DuplicateDetector,
	screening ports.ScreeningService,
	settings ports.SettingsRepository,
	queue ports.ScreeningQueue,
	exporter ports.ReportExporter,
) *Router {
	return &Router{
		ingestor:  ingestor,
		reader:    reader,
		deduper:   deduper,
		screening: screening,
		settings:  settings,
		queue:     queue,
		exporter:  exporter,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/records", rt.records)
	mux.HandleFunc("/v1/records/", rt.recordByID)
	mux.HandleFunc("/v1/dedupe/run", rt.runDedupe)
	mux.HandleFunc("/v1/screening/", rt.screeningRoutes)
	mux.HandleFunc("/v1/settings/prompts/", rt.promptTemplate)
	mux.HandleFunc("/v1/settings/credentials", rt.credentials)
	mux.HandleFunc("/v1/export", rt.export)
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) records(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var input domain.RecordInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		rec, err := rt.ingestor.Create(r.Context(), input)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	case http.MethodGet:
		records, err := rt.reader.ListAll(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": records, "total": len(records)})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) recordByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/records/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "record id is required"})
		return
	}
	rec, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) runDedupe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	result, err := rt.deduper.Run(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// screeningRoutes dispatches /v1/screening/{stage}/{action}.
func (rt *Router) screeningRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/screening/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	stage, err := domain.ParseStage(parts[0])
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch parts[1] {
	case "candidates":
		rt.stageCandidates(w, r, stage)
	case "decision":
		rt.stageDecision(w, r, stage)
	case "reset":
		rt.stageReset(w, r, stage)
	case "run":
		rt.stageRun(w, r, stage)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) stageCandidates(w http.ResponseWriter, r *http.Request, stage domain.Stage) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	records, err := rt.screening.StageCandidates(r.Context(), stage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stage": stage, "records": records, "total": len(records)})
}

func (rt *Router) stageDecision(w http.ResponseWriter, r *http.Request, stage domain.Stage) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req struct {
		RecordID string `json:"record_id"`
		Status   string `json:"status"`
		Notes    string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.RecordID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "record_id is required"})
		return
	}
	if err := rt.screening.Decide(r.Context(), req.RecordID, stage, domain.StageStatus(req.Status), req.Notes); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) stageReset(w http.ResponseWriter, r *http.Request, stage domain.Stage) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	reset, err := rt.screening.ResetStage(r.Context(), stage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stage": stage, "reset": reset})
}

func (rt *Router) stageRun(w http.ResponseWriter, r *http.Request, stage domain.Stage) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req struct {
		BatchSize int `json:"batch_size"`
	}
	if r.Body != nil {
		// Body is optional; ignore decode failures on an empty body.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	job := domain.ScreeningJob{Stage: stage, BatchSize: req.BatchSize}
	if err := rt.queue.PublishScreeningRequested(r.Context(), job); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"stage": stage, "status": "queued"})
}

func (rt *Router) promptTemplate(w http.ResponseWriter, r *http.Request) {
	stageName := strings.TrimPrefix(r.URL.Path, "/v1/settings/prompts/")
	stage, err := domain.ParseStage(stageName)
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		template, err := rt.settings.PromptTemplate(r.Context(), stage)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stage": stage, "template": template})
	case http.MethodPut:
		var req struct {
			Template string `json:"template"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if strings.TrimSpace(req.Template) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "template is required"})
			return
		}
		if err := rt.settings.SetPromptTemplate(r.Context(), stage, req.Template); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) credentials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		creds, err := rt.settings.Credentials(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		// Never echo key material back; report the count only.
		writeJSON(w, http.StatusOK, map[string]int{"count": len(creds)})
	case http.MethodPut:
		var req struct {
			Credentials []string `json:"credentials"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if err := rt.settings.SetCredentials(r.Context(), req.Credentials); err != nil {
			writeError(w, r, err)
			return
		}
		// Replacing the set invalidates any persisted position in it.
		if err := rt.settings.SetRotationCursor(r.Context(), 0); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": len(req.Credentials)})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req struct {
		Filename string `json:"filename"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	records, err := rt.reader.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	path, err := rt.exporter.Export(r.Context(), records, req.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "records": len(records)})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		requestLogger(r.Context()).Error("handler_failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
