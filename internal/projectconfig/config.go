// Package projectconfig provides the ProjectConfig struct and loader for
// .vigil.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for project configuration. These are the single source of
// truth — New() references them and no other code should duplicate them.
const (
	DefaultPlansDir   = "plans/"
	DefaultResultsDir = "results/"

	DefaultProvider   = "gemini"
	DefaultModel      = "gemini-1.5-flash-latest"
	DefaultTimeoutSec = 300

	DefaultFrameIntervalSec = 2.0
	DefaultMaxFrames        = 50
	DefaultKeyframeCap      = 15

	DefaultCacheDir = ".vigil-cache"

	DefaultServerPort       = 3000
	DefaultServerResultsDir = "."

	DefaultOCRLanguage   = "eng"
	DefaultOCRConfidence = 0.3
	DefaultOCRWorkers    = 3
)

// PathsConfig holds directory paths for plans and results.
type PathsConfig struct {
	Plans   string `yaml:"plans,omitempty"`
	Results string `yaml:"results,omitempty"`
}

// DefaultsConfig holds default verification parameters.
type DefaultsConfig struct {
	Provider   string `yaml:"provider,omitempty"`
	Model      string `yaml:"model,omitempty"`
	TimeoutSec int    `yaml:"timeout,omitempty"`
	MaxTokens  int    `yaml:"max_tokens,omitempty"`
	Verbose    *bool  `yaml:"verbose,omitempty"`
}

// SamplingConfig holds default frame-sampling parameters. A plan's own
// sampling block still wins over these.
type SamplingConfig struct {
	FrameIntervalSec float64 `yaml:"frame_interval_seconds,omitempty"`
	MaxFrames        int     `yaml:"max_frames,omitempty"`
	KeyframeCap      int     `yaml:"keyframe_cap,omitempty"`
}

// OCRConfig holds text-recognition settings.
type OCRConfig struct {
	Enabled    *bool   `yaml:"enabled,omitempty"`
	Language   string  `yaml:"language,omitempty"`
	Confidence float64 `yaml:"confidence,omitempty"`
	Workers    int     `yaml:"workers,omitempty"`
}

// CacheConfig holds timeline cache settings.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// ServerConfig holds dashboard server settings.
type ServerConfig struct {
	Port       int    `yaml:"port,omitempty"`
	ResultsDir string `yaml:"results_dir,omitempty"`
	Database   string `yaml:"database,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .vigil.yaml.
type ProjectConfig struct {
	Paths    PathsConfig    `yaml:"paths,omitempty"`
	Defaults DefaultsConfig `yaml:"defaults,omitempty"`
	Sampling SamplingConfig `yaml:"sampling,omitempty"`
	OCR      OCRConfig      `yaml:"ocr,omitempty"`
	Cache    CacheConfig    `yaml:"cache,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Plans:   DefaultPlansDir,
			Results: DefaultResultsDir,
		},
		Defaults: DefaultsConfig{
			Provider:   DefaultProvider,
			Model:      DefaultModel,
			TimeoutSec: DefaultTimeoutSec,
			Verbose:    boolPtr(false),
		},
		Sampling: SamplingConfig{
			FrameIntervalSec: DefaultFrameIntervalSec,
			MaxFrames:        DefaultMaxFrames,
			KeyframeCap:      DefaultKeyframeCap,
		},
		OCR: OCRConfig{
			Enabled:    boolPtr(false),
			Language:   DefaultOCRLanguage,
			Confidence: DefaultOCRConfidence,
			Workers:    DefaultOCRWorkers,
		},
		Cache: CacheConfig{
			Enabled: boolPtr(false),
			Dir:     DefaultCacheDir,
		},
		Server: ServerConfig{
			Port:       DefaultServerPort,
			ResultsDir: DefaultServerResultsDir,
		},
	}
}

// Load finds .vigil.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading .vigil.yaml: %w", err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing .vigil.yaml: %w", err)
	}

	// Merge file values onto defaults.
	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .vigil.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ".vigil.yaml")
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.Plans != "" {
		dst.Paths.Plans = src.Paths.Plans
	}
	if src.Paths.Results != "" {
		dst.Paths.Results = src.Paths.Results
	}

	// Defaults
	if src.Defaults.Provider != "" {
		dst.Defaults.Provider = src.Defaults.Provider
	}
	if src.Defaults.Model != "" {
		dst.Defaults.Model = src.Defaults.Model
	}
	if src.Defaults.TimeoutSec != 0 {
		dst.Defaults.TimeoutSec = src.Defaults.TimeoutSec
	}
	if src.Defaults.MaxTokens != 0 {
		dst.Defaults.MaxTokens = src.Defaults.MaxTokens
	}
	if src.Defaults.Verbose != nil {
		dst.Defaults.Verbose = src.Defaults.Verbose
	}

	// Sampling
	if src.Sampling.FrameIntervalSec != 0 {
		dst.Sampling.FrameIntervalSec = src.Sampling.FrameIntervalSec
	}
	if src.Sampling.MaxFrames != 0 {
		dst.Sampling.MaxFrames = src.Sampling.MaxFrames
	}
	if src.Sampling.KeyframeCap != 0 {
		dst.Sampling.KeyframeCap = src.Sampling.KeyframeCap
	}

	// OCR
	if src.OCR.Enabled != nil {
		dst.OCR.Enabled = src.OCR.Enabled
	}
	if src.OCR.Language != "" {
		dst.OCR.Language = src.OCR.Language
	}
	if src.OCR.Confidence != 0 {
		dst.OCR.Confidence = src.OCR.Confidence
	}
	if src.OCR.Workers != 0 {
		dst.OCR.Workers = src.OCR.Workers
	}

	// Cache
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}

	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.ResultsDir != "" {
		dst.Server.ResultsDir = src.Server.ResultsDir
	}
	if src.Server.Database != "" {
		dst.Server.Database = src.Server.Database
	}
}

func boolPtr(b bool) *bool {
	return &b
}
