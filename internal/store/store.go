// Package store persists completed verification runs for the serve surface.
// Two backends exist: a directory of JSON files and a SQLite database.
// Timelines are kept apart from the report envelope as gzip blobs and
// loaded on demand.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/richardpark-msft/vigil/internal/models"
)

// ErrNotFound is returned when a run ID does not match any stored run, or
// when a stored run has no timeline blob.
var ErrNotFound = errors.New("run not found")

// Run is one persisted verification run.
type Run struct {
	ID        string         `json:"id"`
	Report    *models.Report `json:"report"`
	CreatedAt time.Time      `json:"created_at"`

	// Timeline travels outside the JSON envelope; backends store it
	// compressed and serve it through RunStore.Timeline.
	Timeline *models.Timeline `json:"-"`
}

// RunSummary is a listing row for one stored run.
type RunSummary struct {
	ID         string           `json:"id"`
	Plan       string           `json:"plan"`
	Status     models.RunStatus `json:"status"`
	PassRate   float64          `json:"passRate"`
	Steps      int              `json:"steps"`
	Observed   int              `json:"observed"`
	Deviations int              `json:"deviations"`
	Uncertain  int              `json:"uncertain"`
	Duration   float64          `json:"duration"`
	Provider   string           `json:"provider,omitempty"`
	Model      string           `json:"model,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// Summary aggregates metrics across all stored runs.
type Summary struct {
	TotalRuns   int            `json:"totalRuns"`
	TotalSteps  int            `json:"totalSteps"`
	PassRate    float64        `json:"passRate"`
	AvgDuration float64        `json:"avgDuration"`
	ByStatus    map[string]int `json:"byStatus"`
}

// RunStore provides access to persisted verification runs.
type RunStore interface {
	// SaveRun persists a completed run, including its timeline when present.
	SaveRun(run *Run) error
	// ListRuns returns all runs, sorted by the given field and order.
	ListRuns(sortField, order string) ([]RunSummary, error)
	// GetRun returns a single run with its full report.
	GetRun(id string) (*Run, error)
	// Timeline returns the stored timeline for a run.
	Timeline(id string) (*models.Timeline, error)
	// Summary returns aggregate metrics across all runs.
	Summary() (*Summary, error)
}

func runToSummary(r *Run) RunSummary {
	s := RunSummary{ID: r.ID, CreatedAt: r.CreatedAt}
	if r.Report == nil {
		return s
	}
	s.Plan = r.Report.PlanName
	s.Status = r.Report.OverallStatus
	s.PassRate = r.Report.PassRate
	s.Steps = r.Report.Total
	s.Observed = r.Report.Observed
	s.Deviations = r.Report.Deviated
	s.Uncertain = r.Report.Uncertain
	s.Duration = r.Report.Duration
	s.Provider = r.Report.Provider
	s.Model = r.Report.Model
	return s
}

func sortRuns(runs []RunSummary, field, order string) {
	less := func(i, j int) bool {
		switch field {
		case "passRate":
			return runs[i].PassRate < runs[j].PassRate
		case "duration":
			return runs[i].Duration < runs[j].Duration
		case "steps":
			return runs[i].Steps < runs[j].Steps
		default: // "createdAt" or empty
			return runs[i].CreatedAt.Before(runs[j].CreatedAt)
		}
	}

	if order == "asc" {
		sort.Slice(runs, less)
	} else {
		sort.Slice(runs, func(i, j int) bool { return less(j, i) })
	}
}

func encodeTimeline(tl *models.Timeline) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(tl); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTimeline(data []byte) (*models.Timeline, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var tl models.Timeline
	if err := json.NewDecoder(zr).Decode(&tl); err != nil {
		return nil, err
	}
	return &tl, nil
}
