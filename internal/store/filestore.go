package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/richardpark-msft/vigil/internal/models"
)

// FileStore keeps one JSON envelope per run in a directory, with timelines
// alongside as <id>.timeline.json.gz blobs.
type FileStore struct {
	dir string

	mu     sync.RWMutex
	runs   map[string]*Run
	loaded bool
}

// NewFileStore creates a FileStore that reads and writes runs under dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir:  dir,
		runs: make(map[string]*Run),
	}
}

// load reads all run envelopes from the configured directory.
func (fs *FileStore) load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.runs = make(map[string]*Run)

	if fs.dir == "" {
		fs.loaded = true
		return nil
	}

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			fs.loaded = true
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.dir, e.Name()))
		if err != nil {
			continue
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			continue
		}
		if run.ID == "" {
			// Use filename (without extension) as fallback ID.
			run.ID = strings.TrimSuffix(e.Name(), ".json")
		}
		fs.runs[run.ID] = &run
	}

	fs.loaded = true
	return nil
}

// ensureLoaded loads data if not already loaded.
func (fs *FileStore) ensureLoaded() error {
	fs.mu.RLock()
	if fs.loaded {
		fs.mu.RUnlock()
		return nil
	}
	fs.mu.RUnlock()
	return fs.load()
}

// Reload forces a fresh reload of all run files from disk.
func (fs *FileStore) Reload() error {
	return fs.load()
}

// SaveRun persists a run envelope and, when present, its timeline blob.
func (fs *FileStore) SaveRun(run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run has no id")
	}
	if run.Report == nil {
		return fmt.Errorf("run %s has no report", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	if err := os.MkdirAll(fs.dir, 0755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run %s: %w", run.ID, err)
	}
	if err := os.WriteFile(fs.runPath(run.ID), data, 0644); err != nil {
		return fmt.Errorf("writing run %s: %w", run.ID, err)
	}

	if run.Timeline != nil {
		blob, err := encodeTimeline(run.Timeline)
		if err != nil {
			return fmt.Errorf("encoding timeline for run %s: %w", run.ID, err)
		}
		if err := os.WriteFile(fs.timelinePath(run.ID), blob, 0644); err != nil {
			return fmt.Errorf("writing timeline for run %s: %w", run.ID, err)
		}
	}

	fs.mu.Lock()
	if fs.loaded {
		fs.runs[run.ID] = run
	}
	fs.mu.Unlock()
	return nil
}

// ListRuns returns all runs sorted by the given field and order.
func (fs *FileStore) ListRuns(sortField, order string) ([]RunSummary, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	runs := make([]RunSummary, 0, len(fs.runs))
	for _, r := range fs.runs {
		runs = append(runs, runToSummary(r))
	}

	sortRuns(runs, sortField, order)
	return runs, nil
}

// GetRun returns a single run with its full report.
func (fs *FileStore) GetRun(id string) (*Run, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	run, ok := fs.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return run, nil
}

// Timeline loads the timeline blob stored for a run.
func (fs *FileStore) Timeline(id string) (*models.Timeline, error) {
	if _, err := fs.GetRun(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fs.timelinePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("timeline for run %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return decodeTimeline(data)
}

// Summary returns aggregate metrics across all runs.
func (fs *FileStore) Summary() (*Summary, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	resp := &Summary{ByStatus: make(map[string]int)}
	if len(fs.runs) == 0 {
		return resp, nil
	}

	totalObserved := 0
	totalDuration := 0.0

	for _, r := range fs.runs {
		resp.TotalRuns++
		if r.Report == nil {
			continue
		}
		resp.TotalSteps += r.Report.Total
		totalObserved += r.Report.Observed
		totalDuration += r.Report.Duration
		resp.ByStatus[string(r.Report.OverallStatus)]++
	}

	if resp.TotalSteps > 0 {
		resp.PassRate = float64(totalObserved) / float64(resp.TotalSteps) * 100.0
	}
	if resp.TotalRuns > 0 {
		resp.AvgDuration = totalDuration / float64(resp.TotalRuns)
	}

	return resp, nil
}

func (fs *FileStore) runPath(id string) string {
	return filepath.Join(fs.dir, id+".json")
}

func (fs *FileStore) timelinePath(id string) string {
	return filepath.Join(fs.dir, id+".timeline.json.gz")
}

// Ensure FileStore satisfies RunStore.
var _ RunStore = (*FileStore)(nil)
