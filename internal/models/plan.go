package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlannedStep is one step of the test plan. Steps are immutable once parsed;
// ordering by Number is the canonical step order.
type PlannedStep struct {
	Number          int    `yaml:"number" json:"number"`
	Description     string `yaml:"description" json:"description"`
	Action          string `yaml:"action,omitempty" json:"action,omitempty"`
	ExpectedOutcome string `yaml:"expected_outcome,omitempty" json:"expected_outcome,omitempty"`
}

// SessionConfig points at the recorded session media for a plan.
type SessionConfig struct {
	Video    string `yaml:"video,omitempty" json:"video,omitempty"`
	Timeline string `yaml:"timeline,omitempty" json:"timeline,omitempty"`
}

// SamplingConfig controls frame extraction from the session video.
type SamplingConfig struct {
	FrameIntervalSec float64 `yaml:"frame_interval_seconds,omitempty" json:"frame_interval_sec,omitempty"`
	MaxFrames        int     `yaml:"max_frames,omitempty" json:"max_frames,omitempty"`
	KeyframeCap      int     `yaml:"keyframe_cap,omitempty" json:"keyframe_cap,omitempty"`
}

// TestPlan represents a complete verification plan loaded from YAML.
type TestPlan struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Session     SessionConfig  `yaml:"session,omitempty" json:"session,omitempty"`
	Sampling    SamplingConfig `yaml:"sampling,omitempty" json:"sampling,omitempty"`
	Steps       []PlannedStep  `yaml:"steps" json:"steps"`
	AuditMode   bool           `yaml:"audit_mode,omitempty" json:"audit_mode,omitempty"`
}

// LoadTestPlan loads a plan from a YAML file.
func LoadTestPlan(path string) (*TestPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var plan TestPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, err
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	return &plan, nil
}

// Validate checks that the plan is usable and assigns sequential step numbers
// when the plan author omitted them.
func (p *TestPlan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("plan name is required")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan %q has no steps", p.Name)
	}

	autoNumber := true
	for _, s := range p.Steps {
		if s.Number != 0 {
			autoNumber = false
			break
		}
	}
	if autoNumber {
		for i := range p.Steps {
			p.Steps[i].Number = i + 1
		}
	}

	seen := make(map[int]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.Number <= 0 {
			return fmt.Errorf("step %d: number must be positive, got %d", i+1, s.Number)
		}
		if seen[s.Number] {
			return fmt.Errorf("duplicate step number %d", s.Number)
		}
		seen[s.Number] = true
		if s.Description == "" {
			return fmt.Errorf("step %d: description is required", s.Number)
		}
	}

	return nil
}
