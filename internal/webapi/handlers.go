// Package webapi exposes verification over HTTP: run submission with
// progress polling, plus read endpoints over the run store.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/richardpark-msft/vigil/internal/models"
	"github.com/richardpark-msft/vigil/internal/pipeline"
	"github.com/richardpark-msft/vigil/internal/plan"
	"github.com/richardpark-msft/vigil/internal/statistics"
	"github.com/richardpark-msft/vigil/internal/store"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-dev"

// uploadMemoryLimit is the in-memory threshold for multipart parsing;
// larger uploads spool to disk.
const uploadMemoryLimit = 64 << 20

// VerificationPipeline is the slice of pipeline.Pipeline the handlers use.
type VerificationPipeline interface {
	Run(ctx context.Context, req pipeline.Request) (*models.Report, error)
	OnProgress(listener pipeline.ProgressListener)
	OnTimeline(listener pipeline.TimelineListener)
}

// PipelineFactory builds a fresh pipeline for one verification task.
// Each task gets its own instance so progress listeners stay per-task.
type PipelineFactory func() VerificationPipeline

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	factory PipelineFactory
	tasks   TaskStore
	runs    store.RunStore
}

// NewHandlers creates a new Handlers with the given dependencies.
func NewHandlers(factory PipelineFactory, tasks TaskStore, runs store.RunStore) *Handlers {
	return &Handlers{factory: factory, tasks: tasks, runs: runs}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// HandleSummary returns aggregate KPI metrics across all stored runs,
// with a bootstrap confidence interval and flakiness signal once enough
// runs exist.
func (h *Handlers) HandleSummary(w http.ResponseWriter, _ *http.Request) {
	summary, err := h.runs.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := SummaryResponse{Summary: summary}

	runs, err := h.runs.ListRuns("", "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(runs) >= 2 {
		rates := make([]float64, 0, len(runs))
		byPlan := make(map[string][]float64)
		for _, r := range runs {
			rates = append(rates, r.PassRate)
			byPlan[r.Plan] = append(byPlan[r.Plan], r.PassRate)
		}
		ci := statistics.BootstrapCI(rates, 0.95)
		resp.PassRateCI = &ci
		for _, planRates := range byPlan {
			if statistics.IsFlaky(planRates) {
				resp.Flaky = true
				break
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleRuns returns a list of all runs, with optional sort/order query params.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	sortField := r.URL.Query().Get("sort")
	order := r.URL.Query().Get("order")

	runs, err := h.runs.ListRuns(sortField, order)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleRunDetail returns one stored run with its full report.
func (h *Handlers) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	run, err := h.runs.GetRun(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, RunDetailResponse{
		ID:        run.ID,
		CreatedAt: run.CreatedAt,
		Report:    run.Report,
	})
}

// HandleRunTimeline returns the stored timeline for a run.
func (h *Handlers) HandleRunTimeline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	tl, err := h.runs.Timeline(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "timeline not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

// HandleVerify accepts a verification request, either multipart uploads
// (plan plus video or timeline files) or JSON naming local paths, and
// starts a background task.
func (h *Handlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var (
		testPlan     *models.TestPlan
		videoPath    string
		timelinePath string
		workDir      string
		err          error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		testPlan, videoPath, timelinePath, workDir, err = h.acceptUpload(r)
	} else {
		testPlan, videoPath, timelinePath, err = h.acceptPaths(r)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.New().String()
	h.tasks.Put(id, models.ProgressRecord{
		Status:  models.TaskPending,
		Phase:   models.PhasePlan,
		Message: "Verification queued",
	})
	go h.runTask(id, testPlan, videoPath, timelinePath, workDir)

	writeJSON(w, http.StatusAccepted, VerifyResponse{TaskID: id})
}

// HandleTask reports the latest progress record for a task.
func (h *Handlers) HandleTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, ok := h.tasks.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, TaskResponse{
		TaskID:   id,
		Status:   string(record.Status),
		Progress: record.Progress,
		Phase:    string(record.Phase),
		Message:  record.Message,
		Error:    record.Error,
	})
}

// HandleTaskReport returns the report for a completed task.
func (h *Handlers) HandleTaskReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := h.runs.GetRun(id)
	if err == nil {
		writeJSON(w, http.StatusOK, run.Report)
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if record, ok := h.tasks.Get(id); ok {
		if record.Status == models.TaskFailed {
			writeError(w, http.StatusConflict, "verification failed: "+record.Error)
		} else {
			writeError(w, http.StatusNotFound, "report not ready")
		}
		return
	}
	writeError(w, http.StatusNotFound, "task not found")
}

func (h *Handlers) acceptPaths(r *http.Request) (*models.TestPlan, string, string, error) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, "", "", fmt.Errorf("decoding request: %w", err)
	}
	if req.Plan == "" {
		return nil, "", "", errors.New("plan path is required")
	}

	testPlan, err := plan.Load(req.Plan)
	if err != nil {
		return nil, "", "", err
	}
	if req.Video == "" && req.Timeline == "" && testPlan.Session.Video == "" && testPlan.Session.Timeline == "" {
		return nil, "", "", errors.New("request names neither a video nor a timeline")
	}
	return testPlan, req.Video, req.Timeline, nil
}

func (h *Handlers) acceptUpload(r *http.Request) (*models.TestPlan, string, string, string, error) {
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		return nil, "", "", "", fmt.Errorf("parsing upload: %w", err)
	}

	workDir, err := os.MkdirTemp("", "vigil-upload-*")
	if err != nil {
		return nil, "", "", "", fmt.Errorf("creating upload dir: %w", err)
	}
	fail := func(err error) (*models.TestPlan, string, string, string, error) {
		os.RemoveAll(workDir)
		return nil, "", "", "", err
	}

	planPath, err := saveUpload(r, "plan", workDir)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return fail(errors.New("plan file is required"))
		}
		return fail(err)
	}

	videoPath, err := saveUpload(r, "video", workDir)
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		return fail(err)
	}
	timelinePath, err := saveUpload(r, "timeline", workDir)
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		return fail(err)
	}
	if videoPath == "" && timelinePath == "" {
		return fail(errors.New("upload needs a video or timeline file"))
	}

	testPlan, err := plan.Load(planPath)
	if err != nil {
		return fail(err)
	}
	return testPlan, videoPath, timelinePath, workDir, nil
}

// saveUpload writes one multipart file field into dir, keeping the client's
// filename so extension-based loaders still work.
func saveUpload(r *http.Request, field, dir string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = field
	}
	dst := filepath.Join(dir, name)

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("saving %s upload: %w", field, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return "", fmt.Errorf("saving %s upload: %w", field, err)
	}
	return dst, nil
}

// runTask drives one verification in the background. Failures stay visible
// as the task's terminal progress record; successes are persisted to the
// run store under the task id.
func (h *Handlers) runTask(id string, testPlan *models.TestPlan, videoPath, timelinePath, workDir string) {
	if workDir != "" {
		defer os.RemoveAll(workDir)
	}

	pl := h.factory()
	pl.OnProgress(func(record models.ProgressRecord) { h.tasks.Put(id, record) })

	var tl *models.Timeline
	pl.OnTimeline(func(t *models.Timeline) { tl = t })

	report, err := pl.Run(context.Background(), pipeline.Request{
		Plan:         testPlan,
		VideoPath:    videoPath,
		TimelinePath: timelinePath,
		WorkDir:      workDir,
	})
	if err != nil {
		slog.Error("verification task failed", "task", id, "error", err)
		return
	}

	if h.runs == nil {
		return
	}
	if err := h.runs.SaveRun(&store.Run{ID: id, Report: report, Timeline: tl}); err != nil {
		slog.Warn("persisting run failed", "task", id, "error", err)
	}
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/summary", h.HandleSummary)
	mux.HandleFunc("GET /api/runs", h.HandleRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.HandleRunDetail)
	mux.HandleFunc("GET /api/runs/{id}/timeline", h.HandleRunTimeline)
	mux.HandleFunc("POST /api/verify", h.HandleVerify)
	mux.HandleFunc("GET /api/tasks/{id}", h.HandleTask)
	mux.HandleFunc("GET /api/tasks/{id}/report", h.HandleTaskReport)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
