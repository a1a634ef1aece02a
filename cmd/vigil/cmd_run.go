package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/richardpark-msft/vigil/internal/cache"
	"github.com/richardpark-msft/vigil/internal/llm"
	"github.com/richardpark-msft/vigil/internal/llmutil"
	"github.com/richardpark-msft/vigil/internal/media"
	"github.com/richardpark-msft/vigil/internal/models"
	"github.com/richardpark-msft/vigil/internal/ocr"
	"github.com/richardpark-msft/vigil/internal/pipeline"
	"github.com/richardpark-msft/vigil/internal/plan"
	"github.com/richardpark-msft/vigil/internal/projectconfig"
	"github.com/richardpark-msft/vigil/internal/report"
	"github.com/richardpark-msft/vigil/internal/spinner"
	"github.com/richardpark-msft/vigil/internal/store"
	"github.com/richardpark-msft/vigil/internal/utils"
	"github.com/richardpark-msft/vigil/internal/video"
)

var (
	runVideo       string
	runTimeline    string
	outputPath     string
	markdownPath   string
	htmlPath       string
	junitPath      string
	verbose        bool
	interpret      bool
	format         string
	providerName   string
	modelName      string
	runMaxTokens   int
	runKeyframeCap int
	enableCache    bool
	disableCache   bool
	runCacheDir    string
	enableOCR      bool
	testOutputPath string
	runWorkDir     string
	resultsDir     string
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Verify a recorded session against a test plan",
		Long: `Verify a recorded UI test session against a test plan.

The plan file lists the steps the session was supposed to perform. The video
(or a precomputed timeline JSON) is resolved from the plan's session block
unless overridden with --video / --timeline. Remote videos (https or Azure
Blob az:// references) are downloaded before sampling.

Plans ending in .json are treated as planner-agent message logs and converted
into a step list automatically.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVar(&runVideo, "video", "", "Session video path or URL (overrides the plan's session block)")
	cmd.Flags().StringVar(&runTimeline, "timeline", "", "Precomputed timeline JSON (skips sampling and analysis)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for the report")
	cmd.Flags().StringVar(&markdownPath, "markdown", "", "Write a markdown report to this path")
	cmd.Flags().StringVar(&htmlPath, "html", "", "Write an HTML report to this path")
	cmd.Flags().StringVar(&junitPath, "junit", "", "Write a JUnit XML report to this path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with per-phase progress")
	cmd.Flags().BoolVar(&interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().StringVar(&format, "format", "default", "Output format: default, github-comment")
	cmd.Flags().StringVar(&providerName, "provider", "", "LLM provider: gemini, anthropic, copilot, stub, none")
	cmd.Flags().StringVar(&modelName, "model", "", "Model to use (overrides project config)")
	cmd.Flags().IntVar(&runMaxTokens, "max-tokens", 0, "Max output tokens per provider call")
	cmd.Flags().IntVar(&runKeyframeCap, "keyframe-cap", 0, "Max frames sent to the provider per call")
	cmd.Flags().BoolVar(&enableCache, "cache", false, "Enable timeline caching")
	cmd.Flags().BoolVar(&disableCache, "no-cache", false, "Disable timeline caching")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", "", "Cache directory for storing timelines")
	cmd.Flags().BoolVar(&enableOCR, "ocr", false, "Run OCR over sampled frames (requires tesseract)")
	cmd.Flags().StringVar(&testOutputPath, "test-output", "", "JUnit XML from the original test run, cross-checked against the verdict")
	cmd.Flags().StringVar(&runWorkDir, "work-dir", "", "Working directory for sampled frames (default: temp dir)")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "Persist the run into this results directory")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	planPath := args[0]

	cfg, err := projectconfig.Load(filepath.Dir(planPath))
	if err != nil {
		return fmt.Errorf("loading project config: %w", err)
	}

	testPlan, err := plan.Load(planPath)
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}

	// CLI flags override the plan's session block. Paths from the plan are
	// relative to the plan file, paths from flags are relative to the CWD.
	planDir, err := filepath.Abs(filepath.Dir(planPath))
	if err != nil {
		return err
	}
	videoRef := runVideo
	if videoRef == "" && testPlan.Session.Video != "" {
		videoRef = resolveSessionRef(testPlan.Session.Video, planDir)
	}
	timelinePath := runTimeline
	if timelinePath == "" && testPlan.Session.Timeline != "" {
		timelinePath = utils.ResolvePaths([]string{testPlan.Session.Timeline}, planDir)[0]
	}
	if videoRef == "" && timelinePath == "" {
		return fmt.Errorf("no session input: set session.video in the plan or pass --video / --timeline")
	}

	provider := providerName
	if provider == "" {
		provider = cfg.Defaults.Provider
	}
	model := modelName
	if model == "" {
		model = cfg.Defaults.Model
	}

	backend, err := buildProvider(cfg, provider, model)
	if err != nil {
		return err
	}
	if backend == nil && timelinePath == "" {
		return fmt.Errorf("provider %q cannot analyze video; supply --timeline or choose a provider", provider)
	}

	workDir := runWorkDir
	if workDir != "" {
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return fmt.Errorf("creating work dir: %w", err)
		}
	}

	// Resolve remote videos before sampling
	videoPath := ""
	if videoRef != "" && timelinePath == "" {
		fetcher := &media.Fetcher{Dir: workDir}
		videoPath, err = fetcher.Fetch(cmd.Context(), videoRef)
		if err != nil {
			return fmt.Errorf("resolving session video: %w", err)
		}
	}

	p := buildPipeline(cfg, backend, model)

	if verbose {
		p.OnProgress(verboseProgressListener)
	}

	var capturedTimeline *models.Timeline
	p.OnTimeline(func(tl *models.Timeline) {
		capturedTimeline = tl
	})

	fmt.Printf("Verifying session: %s\n", testPlan.Name)
	fmt.Printf("Steps: %d\n", len(testPlan.Steps))
	if provider != "" && provider != "none" {
		fmt.Printf("Provider: %s\n", provider)
		fmt.Printf("Model: %s\n", model)
	}
	fmt.Println()

	var spin *spinner.Spinner
	if !verbose && format == "default" {
		spin = spinner.Start(cmd.OutOrStdout(), "Verifying session")
		p.OnProgress(func(record models.ProgressRecord) {
			spin.Update(phaseMessage(record))
		})
	}

	result, err := p.Run(cmd.Context(), pipeline.Request{
		Plan:         testPlan,
		VideoPath:    videoPath,
		TimelinePath: timelinePath,
		WorkDir:      workDir,
	})
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	var testOutput *plan.TestOutput
	if testOutputPath != "" {
		testOutput, err = plan.LoadTestOutput(testOutputPath)
		if err != nil {
			return fmt.Errorf("failed to load test output: %w", err)
		}
	}

	// Print results based on format
	switch format {
	case "github-comment":
		fmt.Print(FormatGitHubComment(result))
	case "default":
		printSummary(result)
		if testOutput != nil {
			printCrossCheck(result, testOutput)
		}
		if interpret {
			fmt.Println()
			fmt.Print(report.FormatSummaryReport(result))
		}
	default:
		return fmt.Errorf("unknown output format: %s (supported: default, github-comment)", format)
	}

	if err := writeReports(result); err != nil {
		return err
	}

	if resultsDir != "" {
		if err := persistRun(result, capturedTimeline); err != nil {
			return fmt.Errorf("failed to persist run: %w", err)
		}
	}

	// Return deviation as error so caller can decide how to handle it
	if result.OverallStatus == models.RunFailed {
		return &VerificationFailedError{
			Message: fmt.Sprintf("verification completed with %d deviation(s) across %d step(s)", result.Deviated, result.Total),
		}
	}

	return nil
}

// buildProvider creates the LLM backend from project config, flags, and
// environment. A nil provider (with nil error) means deterministic-only.
func buildProvider(cfg *projectconfig.ProjectConfig, provider, model string) (llm.Provider, error) {
	factory := llm.NewFactory()
	llmutil.RegisterDefaultProviders(factory)

	llmCfg := llm.DefaultConfig()
	llmCfg.Provider = provider
	llmCfg.Model = model
	llmCfg.APIKey = apiKeyFor(provider)
	if cfg.Defaults.TimeoutSec > 0 {
		llmCfg.Timeout = time.Duration(cfg.Defaults.TimeoutSec) * time.Second
	}

	backend, err := factory.Create(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}
	return backend, nil
}

// resolveSessionRef resolves a plan-relative session path, leaving remote
// references untouched.
func resolveSessionRef(ref, planDir string) string {
	if _, ok := media.ParseBlobRef(ref); ok {
		return ref
	}
	if strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") {
		return ref
	}
	return utils.ResolvePaths([]string{ref}, planDir)[0]
}

// apiKeyFor resolves the provider API key from the environment. VIGIL_API_KEY
// wins over the provider-specific variable.
func apiKeyFor(provider string) string {
	if key := os.Getenv("VIGIL_API_KEY"); key != "" {
		return key
	}
	switch provider {
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

func buildPipeline(cfg *projectconfig.ProjectConfig, backend llm.Provider, model string) *pipeline.Pipeline {
	opts := []pipeline.Option{
		pipeline.WithModel(model),
	}

	maxTokens := runMaxTokens
	if maxTokens == 0 {
		maxTokens = cfg.Defaults.MaxTokens
	}
	if maxTokens > 0 {
		opts = append(opts, pipeline.WithMaxTokens(maxTokens))
	}

	keyframeCap := runKeyframeCap
	if keyframeCap == 0 {
		keyframeCap = cfg.Sampling.KeyframeCap
	}
	if keyframeCap > 0 {
		opts = append(opts, pipeline.WithKeyframeCap(keyframeCap))
	}

	useCaching := enableCache
	if cfg.Cache.Enabled != nil && *cfg.Cache.Enabled {
		useCaching = true
	}
	if disableCache {
		useCaching = false
	}
	if useCaching {
		dir := runCacheDir
		if dir == "" {
			dir = cfg.Cache.Dir
		}
		if absDir, err := filepath.Abs(dir); err == nil {
			dir = absDir
		}
		opts = append(opts, pipeline.WithCache(cache.New(dir)))
		if verbose {
			fmt.Printf("Cache enabled: %s\n", dir)
		}
	}

	return pipeline.New(backend, video.NewFFmpeg(), buildRecognizer(cfg), opts...)
}

// buildRecognizer returns the OCR recognizer configured by flags and project
// config, falling back to the no-op recognizer when tesseract is missing.
func buildRecognizer(cfg *projectconfig.ProjectConfig) ocr.Recognizer {
	useOCR := enableOCR
	if cfg.OCR.Enabled != nil && *cfg.OCR.Enabled {
		useOCR = true
	}
	if !useOCR {
		return ocr.Noop{}
	}

	t := ocr.NewTesseract()
	if cfg.OCR.Language != "" {
		t.Languages = cfg.OCR.Language
	}
	if cfg.OCR.Confidence > 0 {
		t.MinConfidence = cfg.OCR.Confidence
	}
	if cfg.OCR.Workers > 0 {
		t.Concurrency = cfg.OCR.Workers
	}
	if !t.Available() {
		fmt.Fprintln(os.Stderr, "warning: tesseract not found on PATH, OCR disabled")
		return ocr.Noop{}
	}
	return t
}

// phaseMessage renders a progress record as a spinner status line.
func phaseMessage(record models.ProgressRecord) string {
	label := map[models.Phase]string{
		models.PhasePlan:      "Loading plan",
		models.PhaseSample:    "Sampling frames",
		models.PhaseIndex:     "Reading frame text",
		models.PhaseTimeline:  "Building timeline",
		models.PhaseVerify:    "Verifying steps",
		models.PhaseAggregate: "Writing verdicts",
		models.PhaseDone:      "Done",
	}[record.Phase]
	if label == "" {
		label = "Verifying session"
	}
	return fmt.Sprintf("%s (%.0f%%)", label, record.Progress*100)
}

func verboseProgressListener(record models.ProgressRecord) {
	switch record.Status {
	case models.TaskFailed:
		fmt.Printf("[%3.0f%%] %s: FAILED: %s\n", record.Progress*100, record.Phase, record.Error)
	default:
		msg := record.Message
		if msg == "" {
			msg = string(record.Phase)
		}
		fmt.Printf("[%3.0f%%] %s: %s\n", record.Progress*100, record.Phase, msg)
	}
}

// printCrossCheck compares the verdict against the recorded test outcome.
func printCrossCheck(r *models.Report, out *plan.TestOutput) {
	fmt.Println("Test Output Cross-Check:")
	fmt.Printf("  Recorded test:  %s [%s]\n", out.TestName, out.Status)
	fmt.Printf("  Video verdict:  %s\n", r.OverallStatus)
	switch {
	case out.Status == r.OverallStatus:
		fmt.Println("  ✓ The video verdict agrees with the recorded test result.")
	case r.OverallStatus == models.RunUncertain:
		fmt.Println("  ⚠ The video verdict is uncertain; the recorded result stands.")
	default:
		fmt.Println("  ✗ The video verdict disagrees with the recorded test result.")
		if out.FailureMessage != "" {
			fmt.Printf("    Recorded failure: %s\n", out.FailureMessage)
		}
	}
	fmt.Println()
}

// writeReports saves the report in every requested format.
func writeReports(r *models.Report) error {
	writers := []struct {
		path  string
		write func(*models.Report, string) error
		label string
	}{
		{outputPath, report.WriteJSON, "JSON"},
		{markdownPath, report.WriteMarkdown, "markdown"},
		{htmlPath, report.WriteHTML, "HTML"},
		{junitPath, report.WriteJUnitXML, "JUnit"},
	}
	for _, w := range writers {
		if w.path == "" {
			continue
		}
		if err := w.write(r, w.path); err != nil {
			return fmt.Errorf("failed to save %s report: %w", w.label, err)
		}
		fmt.Printf("%s report saved to: %s\n", w.label, w.path)
	}
	return nil
}

// persistRun saves the completed run into the results store so the dashboard
// can list it later.
func persistRun(r *models.Report, tl *models.Timeline) error {
	runs := store.NewFileStore(resultsDir)
	run := &store.Run{
		ID:        uuid.NewString(),
		Report:    r,
		CreatedAt: time.Now().UTC(),
		Timeline:  tl,
	}
	if err := runs.SaveRun(run); err != nil {
		return err
	}
	fmt.Printf("Run saved: %s\n", run.ID)
	return nil
}
