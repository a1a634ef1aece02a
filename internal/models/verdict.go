package models

import (
	"sort"
	"time"
)

// DecisionRecord is one entry in a verdict's append-only audit trail.
type DecisionRecord struct {
	Source                DecisionSource `json:"source"`
	Reasoning             string         `json:"reasoning"`
	Confidence            float64        `json:"confidence"`
	ContradictionDetected bool           `json:"contradiction_detected,omitempty"`
	Metadata              map[string]any `json:"metadata,omitempty"`
}

// StepVerdict is the final decision for one planned step. A report carries
// exactly one verdict per step number, no duplicates and no gaps.
type StepVerdict struct {
	Step         PlannedStep      `json:"step"`
	Status       StepStatus       `json:"status"`
	Confidence   float64          `json:"confidence"`
	Timestamp    *float64         `json:"timestamp,omitempty"`
	EvidenceText string           `json:"evidence_text,omitempty"`
	Decisions    []DecisionRecord `json:"decisions,omitempty"`
}

// SortVerdicts orders verdicts by step number in place. The deterministic and
// semantic paths complete in arbitrary interleaved order, so this runs before
// any report is built or rendered.
func SortVerdicts(verdicts []StepVerdict) {
	sort.SliceStable(verdicts, func(i, j int) bool {
		return verdicts[i].Step.Number < verdicts[j].Step.Number
	})
}

// Report is the aggregated result of one verification run. It is derived
// from the verdicts and never mutated after construction.
type Report struct {
	PlanName      string        `json:"plan_name,omitempty"`
	Total         int           `json:"total_steps"`
	Observed      int           `json:"observed"`
	Deviated      int           `json:"deviated"`
	Uncertain     int           `json:"uncertain"`
	PassRate      float64       `json:"pass_rate"`
	Verdicts      []StepVerdict `json:"verdicts"`
	OverallStatus RunStatus     `json:"overall_status"`
	Summary       string        `json:"summary,omitempty"`
	Narrative     string        `json:"narrative,omitempty"`
	Duration      float64       `json:"duration_seconds,omitempty"`
	Provider      string        `json:"provider,omitempty"`
	Model         string        `json:"model,omitempty"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

// ProgressRecord is what progress sinks receive on every phase transition
// and watchdog tick.
type ProgressRecord struct {
	Status   TaskStatus `json:"status"`
	Progress float64    `json:"progress"`
	Phase    Phase      `json:"phase"`
	Message  string     `json:"message,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Phase names one stage of the verification pipeline.
type Phase string

const (
	PhasePlan      Phase = "plan"
	PhaseSample    Phase = "sample"
	PhaseIndex     Phase = "index"
	PhaseTimeline  Phase = "timeline"
	PhaseVerify    Phase = "verify"
	PhaseAggregate Phase = "aggregate"
	PhaseDone      Phase = "done"
)
