package webapi

import (
	"time"

	"github.com/richardpark-msft/vigil/internal/models"
	"github.com/richardpark-msft/vigil/internal/statistics"
	"github.com/richardpark-msft/vigil/internal/store"
)

// VerifyRequest is the JSON body for POST /api/verify when the session
// media already exists on disk.
type VerifyRequest struct {
	Plan     string `json:"plan"`
	Video    string `json:"video,omitempty"`
	Timeline string `json:"timeline,omitempty"`
}

// VerifyResponse acknowledges an accepted verification task.
type VerifyResponse struct {
	TaskID string `json:"taskId"`
}

// TaskResponse reports progress for one verification task.
type TaskResponse struct {
	TaskID   string  `json:"taskId"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Phase    string  `json:"phase"`
	Message  string  `json:"message,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// RunDetailResponse is the API response for a single stored run.
type RunDetailResponse struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Report    *models.Report `json:"report"`
}

// SummaryResponse is the aggregate KPI response. PassRateCI and Flaky are
// only populated once at least two runs exist.
type SummaryResponse struct {
	*store.Summary
	PassRateCI *statistics.ConfidenceInterval `json:"passRateCI,omitempty"`
	Flaky      bool                           `json:"flaky"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
