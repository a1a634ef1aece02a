// Package pipeline drives one verification run end to end: sample the
// session video, build the observed-event timeline, match every planned step
// against it, triage the matches, adjudicate the flagged remainder, and fold
// the verdicts into a single report.
//
// Progress is a bounded ordered stream with one writer per run. Registered
// listeners receive every record in registration order; within a run the
// progress value is clamped to [0, 1] and never decreases.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/richardpark-msft/vigil/internal/adjudicate"
	"github.com/richardpark-msft/vigil/internal/aggregate"
	"github.com/richardpark-msft/vigil/internal/cache"
	"github.com/richardpark-msft/vigil/internal/llm"
	"github.com/richardpark-msft/vigil/internal/models"
	"github.com/richardpark-msft/vigil/internal/ocr"
	"github.com/richardpark-msft/vigil/internal/timeline"
	"github.com/richardpark-msft/vigil/internal/triage"
	"github.com/richardpark-msft/vigil/internal/video"
	"github.com/richardpark-msft/vigil/internal/vision"
	"golang.org/x/sync/errgroup"
)

// Phase boundaries of the progress stream. Sampling owns 5-20%, indexing
// 20-30%, timeline analysis 30-60%, verification 60-95%, aggregation the
// rest.
const (
	progressPlanned   = 0.05
	progressIndexing  = 0.20
	progressTimeline  = 0.30
	progressAnalyzing = 0.40
	progressVerify    = 0.60
	progressAggregate = 0.95
	verifySpan        = 0.35
)

// Watchdog pacing while the single long provider call is in flight. The
// watchdog is advisory: it nudges the reported value forward so clients see
// movement, but never past its ceiling and never into the verify band.
const (
	watchdogTick    = time.Second
	watchdogStall   = 2 * time.Second
	watchdogStep    = 0.01
	watchdogCeiling = 0.58
)

// Request identifies the inputs of one verification run. VideoPath and
// TimelinePath override the plan's session block when set; TimelinePath
// skips sampling and analysis entirely.
type Request struct {
	Plan         *models.TestPlan
	VideoPath    string
	TimelinePath string

	// WorkDir receives sampled frames. When empty a temp dir is created
	// and removed when the run finishes.
	WorkDir string
}

// ProgressListener receives progress records.
type ProgressListener func(record models.ProgressRecord)

// TimelineListener receives the normalized timeline once per successful
// timeline phase, before verification starts.
type TimelineListener func(tl *models.Timeline)

// Pipeline runs verification requests. A Pipeline is safe for concurrent
// runs: all per-run state lives in the run, not here.
type Pipeline struct {
	provider   llm.Provider
	sampler    video.Sampler
	recognizer ocr.Recognizer

	cache       *cache.Cache
	keyframeCap int
	maxTokens   int
	temperature float64
	model       string

	progressMu        sync.Mutex
	listeners         []ProgressListener
	timelineListeners []TimelineListener
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCache enables timeline caching.
func WithCache(c *cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithKeyframeCap overrides the default cap on frames sent to the provider.
// A plan's own sampling block still wins over this.
func WithKeyframeCap(n int) Option {
	return func(p *Pipeline) { p.keyframeCap = n }
}

// WithMaxTokens sets the response token budget for provider calls.
func WithMaxTokens(n int) Option {
	return func(p *Pipeline) { p.maxTokens = n }
}

// WithTemperature overrides the sampling temperature for provider calls.
func WithTemperature(t float64) Option {
	return func(p *Pipeline) { p.temperature = t }
}

// WithModel records the model identifier stamped on reports and mixed into
// cache keys. The provider itself is already bound to this model.
func WithModel(model string) Option {
	return func(p *Pipeline) { p.model = model }
}

// New creates a Pipeline. A nil provider disables timeline analysis and
// semantic adjudication, leaving deterministic verification only. A nil
// sampler falls back to ffmpeg on PATH; a nil recognizer disables OCR.
func New(provider llm.Provider, sampler video.Sampler, recognizer ocr.Recognizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider:    provider,
		sampler:     sampler,
		recognizer:  recognizer,
		temperature: -1,
	}
	if p.sampler == nil {
		p.sampler = video.NewFFmpeg()
	}
	if p.recognizer == nil {
		p.recognizer = ocr.Noop{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnProgress registers a listener for progress records.
func (p *Pipeline) OnProgress(listener ProgressListener) {
	p.progressMu.Lock()
	defer p.progressMu.Unlock()
	p.listeners = append(p.listeners, listener)
}

func (p *Pipeline) notify(record models.ProgressRecord) {
	p.progressMu.Lock()
	listeners := make([]ProgressListener, len(p.listeners))
	copy(listeners, p.listeners)
	p.progressMu.Unlock()

	for _, listener := range listeners {
		listener(record)
	}
}

// OnTimeline registers a listener for the run's normalized timeline. Run
// stores and serve surfaces use this to persist the timeline alongside the
// report.
func (p *Pipeline) OnTimeline(listener TimelineListener) {
	p.progressMu.Lock()
	defer p.progressMu.Unlock()
	p.timelineListeners = append(p.timelineListeners, listener)
}

func (p *Pipeline) notifyTimeline(tl *models.Timeline) {
	p.progressMu.Lock()
	listeners := make([]TimelineListener, len(p.timelineListeners))
	copy(listeners, p.timelineListeners)
	p.progressMu.Unlock()

	for _, listener := range listeners {
		listener(tl)
	}
}

// Run executes one verification request. Any phase failure emits a terminal
// failed record carrying the last progress value and returns the error; there
// is no partial report.
func (p *Pipeline) Run(ctx context.Context, req Request) (*models.Report, error) {
	started := time.Now()
	run := &runProgress{pipeline: p, phase: models.PhasePlan}

	plan := req.Plan
	if plan == nil {
		return nil, run.fail(errors.New("verification request has no plan"))
	}
	if err := plan.Validate(); err != nil {
		return nil, run.fail(fmt.Errorf("invalid plan: %w", err))
	}

	videoPath := req.VideoPath
	if videoPath == "" {
		videoPath = plan.Session.Video
	}
	timelinePath := req.TimelinePath
	if timelinePath == "" {
		timelinePath = plan.Session.Timeline
	}
	if videoPath == "" && timelinePath == "" {
		return nil, run.fail(fmt.Errorf("plan %q names neither a session video nor a timeline", plan.Name))
	}

	workDir := req.WorkDir
	if workDir == "" && timelinePath == "" {
		dir, err := os.MkdirTemp("", "vigil-*")
		if err != nil {
			return nil, run.fail(fmt.Errorf("creating work dir: %w", err))
		}
		defer os.RemoveAll(dir)
		workDir = dir
	}

	tl, err := p.timelineFor(ctx, run, plan, videoPath, timelinePath, workDir)
	if err != nil {
		return nil, run.fail(err)
	}
	tl.Normalize()
	p.notifyTimeline(tl)

	run.emit(models.TaskProcessing, progressVerify, models.PhaseVerify,
		fmt.Sprintf("Verifying %d steps against %d observed events", len(plan.Steps), len(tl.Events)))

	verdicts, err := p.verify(ctx, run, plan, tl)
	if err != nil {
		return nil, run.fail(err)
	}

	run.emit(models.TaskProcessing, progressAggregate, models.PhaseAggregate, "Aggregating verdicts")

	report := aggregate.BuildReport(plan.Name, verdicts)
	report.Narrative = tl.Narrative
	report.Duration = time.Since(started).Seconds()
	report.Provider = p.providerName()
	report.Model = p.model

	run.emit(models.TaskCompleted, 1, models.PhaseDone, "Verification complete")
	return &report, nil
}

// timelineFor produces the observed-event timeline for the run: loaded from
// a file, from cache, or built from sampled frames through the provider.
func (p *Pipeline) timelineFor(ctx context.Context, run *runProgress, plan *models.TestPlan, videoPath, timelinePath, workDir string) (*models.Timeline, error) {
	if timelinePath != "" {
		run.emit(models.TaskProcessing, progressPlanned, models.PhaseSample, "Loading precomputed timeline")
		tl, err := loadTimeline(timelinePath)
		if err != nil {
			return nil, fmt.Errorf("loading timeline %s: %w", timelinePath, err)
		}
		run.emit(models.TaskProcessing, progressTimeline, models.PhaseTimeline,
			fmt.Sprintf("Timeline loaded from %s", timelinePath))
		return tl, nil
	}

	run.emit(models.TaskProcessing, progressPlanned, models.PhaseSample, "Extracting frames from session video")

	if info, err := p.sampler.Probe(ctx, videoPath); err != nil {
		slog.Warn("Could not probe session video", "path", videoPath, "error", err)
	} else {
		slog.Info("Session video", "path", videoPath, "duration", info.Duration, "width", info.Width, "height", info.Height)
	}

	frames, err := p.sampler.Sample(ctx, videoPath, workDir, plan.Sampling)
	if err != nil {
		return nil, fmt.Errorf("sampling video: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames sampled from %s", videoPath)
	}

	run.emit(models.TaskProcessing, progressIndexing, models.PhaseIndex,
		fmt.Sprintf("Indexing %d sampled frames", len(frames)))

	if p.provider == nil {
		run.emit(models.TaskProcessing, progressTimeline, models.PhaseTimeline,
			"No provider configured, skipping video analysis")
		return unanalyzedTimeline(frames), nil
	}

	var cacheKey string
	if p.cache != nil {
		key, err := cache.Key(plan, videoPath, p.providerName(), p.model)
		if err != nil {
			slog.Warn("Could not compute timeline cache key", "error", err)
		} else {
			cacheKey = key
			if tl, ok := p.cache.Get(key); ok {
				slog.Info("Timeline cache hit", "key", key[:12])
				run.emit(models.TaskProcessing, progressTimeline, models.PhaseTimeline, "Timeline loaded from cache")
				return tl, nil
			}
		}
	}

	keyframes := vision.SelectKeyframes(frames, p.keyframeCapFor(plan))
	ocrText, err := p.recognizer.RecognizeFrames(ctx, keyframes)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		slog.Warn("Text recognition failed, continuing without OCR", "error", err)
		ocrText = nil
	}

	run.emit(models.TaskProcessing, progressTimeline, models.PhaseTimeline, "Building event timeline")

	tl, err := p.buildTimeline(ctx, run, frames, plan, ocrText)
	if err != nil {
		return nil, fmt.Errorf("timeline analysis: %w", err)
	}

	if cacheKey != "" {
		if err := p.cache.Put(cacheKey, tl); err != nil {
			slog.Warn("Could not cache timeline", "error", err)
		}
	}
	return tl, nil
}

// buildTimeline makes the single long provider call with a watchdog running
// beside it, so progress keeps moving while the call is in flight.
func (p *Pipeline) buildTimeline(ctx context.Context, run *runProgress, frames []models.Frame, plan *models.TestPlan, ocrText map[int][]string) (*models.Timeline, error) {
	opts := []vision.Option{vision.WithKeyframeCap(p.keyframeCapFor(plan))}
	if p.maxTokens > 0 {
		opts = append(opts, vision.WithMaxTokens(p.maxTokens))
	}
	if p.temperature >= 0 {
		opts = append(opts, vision.WithTemperature(p.temperature))
	}
	analyst := vision.NewAnalyst(p.provider, opts...)

	run.emit(models.TaskProcessing, progressAnalyzing, models.PhaseTimeline,
		fmt.Sprintf("Analyzing session video with %s", p.providerName()))

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	started := time.Now()

	g.Go(func() error {
		ticker := time.NewTicker(watchdogTick)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				run.bump(int(time.Since(started).Seconds()))
			}
		}
	})

	var tl *models.Timeline
	g.Go(func() error {
		defer close(done)
		var err error
		tl, err = analyst.BuildTimeline(gctx, frames, plan.Steps, ocrText)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tl, nil
}

// verify matches every step against the timeline, resolves the unambiguous
// ones deterministically, and adjudicates the flagged remainder. Without a
// provider every step is resolved by confidence thresholds alone.
func (p *Pipeline) verify(ctx context.Context, run *runProgress, plan *models.TestPlan, tl *models.Timeline) ([]models.StepVerdict, error) {
	ix := timeline.New(tl)
	total := len(plan.Steps)

	// The temporal floor only advances past steps that actually matched,
	// so one unmatched step cannot strand the rest of the plan.
	evidence := make([]models.StepEvidence, total)
	var prevMatched *float64
	for i, step := range plan.Steps {
		ev := ix.Evidence(step, prevMatched)
		if ev.Found && ev.Timestamp != nil {
			ts := *ev.Timestamp
			prevMatched = &ts
		}
		evidence[i] = ev
	}

	if p.provider == nil {
		verdicts := make([]models.StepVerdict, 0, total)
		for i, step := range plan.Steps {
			verdicts = append(verdicts, aggregate.FromEvidence(step, evidence[i]))
		}
		run.emit(models.TaskProcessing, stepProgress(total, total), models.PhaseVerify,
			fmt.Sprintf("Resolved all %d steps by confidence thresholds", total))
		return verdicts, nil
	}

	verdicts := make([]models.StepVerdict, 0, total)
	var flagged []adjudicate.Item
	for i, step := range plan.Steps {
		decision := triage.Classify(step, evidence[i])
		if decision.Semantic {
			slog.Debug("Step flagged for adjudication", "step", step.Number, "reason", decision.Reason)
			flagged = append(flagged, adjudicate.Item{Step: step, Evidence: evidence[i]})
			continue
		}
		verdicts = append(verdicts, aggregate.FromEvidence(step, evidence[i]))
	}

	if n := len(verdicts); n > 0 {
		run.emit(models.TaskProcessing, stepProgress(n, total), models.PhaseVerify,
			fmt.Sprintf("Resolved %d/%d steps deterministically", n, total))
	}
	if len(flagged) == 0 {
		return verdicts, nil
	}

	completed := len(verdicts)
	opts := []adjudicate.Option{
		adjudicate.WithVerdictCallback(func(v models.StepVerdict) {
			completed++
			run.emit(models.TaskProcessing, stepProgress(completed, total), models.PhaseVerify,
				fmt.Sprintf("Verified step %d (%d/%d)", v.Step.Number, completed, total))
		}),
	}
	if p.maxTokens > 0 {
		opts = append(opts, adjudicate.WithMaxTokens(p.maxTokens))
	}
	if p.temperature >= 0 {
		opts = append(opts, adjudicate.WithTemperature(p.temperature))
	}

	semantic, err := adjudicate.New(p.provider, opts...).Verify(ctx, flagged, verdicts, tl.Narrative)
	if err != nil {
		return nil, err
	}
	return append(verdicts, semantic...), nil
}

func (p *Pipeline) providerName() string {
	if p.provider == nil {
		return ""
	}
	return p.provider.Name()
}

func (p *Pipeline) keyframeCapFor(plan *models.TestPlan) int {
	if plan.Sampling.KeyframeCap > 0 {
		return plan.Sampling.KeyframeCap
	}
	if p.keyframeCap > 0 {
		return p.keyframeCap
	}
	return vision.DefaultKeyframeCap
}

// stepProgress maps verdict completion onto the verify band.
func stepProgress(completed, total int) float64 {
	if total == 0 {
		return progressVerify
	}
	return progressVerify + verifySpan*float64(completed)/float64(total)
}

// unanalyzedTimeline stands in when no provider is configured. Every event
// lookup misses, so downstream verdicts rest on thresholds alone.
func unanalyzedTimeline(frames []models.Frame) *models.Timeline {
	tl := &models.Timeline{
		FrameCount: len(frames),
		Events:     []models.ObservedEvent{},
		Narrative:  "No provider configured; the session video was not analyzed.",
	}
	if n := len(frames); n > 0 {
		tl.TotalDuration = frames[n-1].Timestamp
	}
	return tl
}

// loadTimeline reads a timeline JSON file, transparently decompressing
// .gz files.
func loadTimeline(path string) (*models.Timeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening compressed timeline: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var tl models.Timeline
	if err := json.NewDecoder(r).Decode(&tl); err != nil {
		return nil, fmt.Errorf("decoding timeline: %w", err)
	}
	return &tl, nil
}

// runProgress tracks the progress stream for a single run. Emissions clamp
// to [0, 1] and never decrease; the watchdog nudges between emissions.
type runProgress struct {
	pipeline *Pipeline

	mu     sync.Mutex
	value  float64
	phase  models.Phase
	sentAt time.Time
}

func (r *runProgress) emit(status models.TaskStatus, value float64, phase models.Phase, message string) {
	r.mu.Lock()
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	if value < r.value {
		value = r.value
	}
	r.value = value
	r.phase = phase
	r.sentAt = time.Now()
	record := models.ProgressRecord{Status: status, Progress: value, Phase: phase, Message: message}
	r.mu.Unlock()

	r.pipeline.notify(record)
}

func (r *runProgress) bump(elapsedSec int) {
	r.mu.Lock()
	if time.Since(r.sentAt) < watchdogStall || r.value >= watchdogCeiling {
		r.mu.Unlock()
		return
	}
	value := r.value + watchdogStep
	if value > watchdogCeiling {
		value = watchdogCeiling
	}
	r.value = value
	r.sentAt = time.Now()
	record := models.ProgressRecord{
		Status:   models.TaskProcessing,
		Progress: value,
		Phase:    r.phase,
		Message:  fmt.Sprintf("Analyzing session video (%ds elapsed)", elapsedSec),
	}
	r.mu.Unlock()

	r.pipeline.notify(record)
}

// fail emits the terminal failed record, keeping the last progress value so
// clients see where the run died. Returns err for call-site convenience.
func (r *runProgress) fail(err error) error {
	r.mu.Lock()
	record := models.ProgressRecord{
		Status:   models.TaskFailed,
		Progress: r.value,
		Phase:    r.phase,
		Error:    err.Error(),
	}
	r.mu.Unlock()

	r.pipeline.notify(record)
	return err
}
