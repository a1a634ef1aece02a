package models

import "strings"

// StepStatus is the verification outcome for a single planned step.
type StepStatus string

const (
	StepObserved  StepStatus = "observed"
	StepDeviation StepStatus = "deviation"
	StepUncertain StepStatus = "uncertain"
)

// ParseStepStatus normalizes a status string coming from an untrusted source
// (such as a model response) into a StepStatus. Unknown values map to
// StepUncertain so a malformed answer can never invent a new status.
func ParseStepStatus(s string) StepStatus {
	switch StepStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StepObserved:
		return StepObserved
	case StepDeviation:
		return StepDeviation
	case StepUncertain:
		return StepUncertain
	default:
		return StepUncertain
	}
}

// RunStatus is the overall verdict for a verification run.
type RunStatus string

const (
	RunPassed    RunStatus = "PASSED"
	RunFailed    RunStatus = "FAILED"
	RunUncertain RunStatus = "UNCERTAIN"
)

// DecisionSource identifies which path produced a DecisionRecord.
type DecisionSource string

const (
	SourceDeterministic DecisionSource = "deterministic"
	SourceSemantic      DecisionSource = "semantic"
	SourceFallback      DecisionSource = "fallback"
)

// EventKind classifies an observed timeline event.
type EventKind string

const (
	EventNavigation EventKind = "navigation"
	EventClick      EventKind = "click"
	EventType       EventKind = "type"
	EventUIChange   EventKind = "ui_change"
	EventAssertion  EventKind = "assertion"
)

// ParseEventKind normalizes an event kind string from a model response.
// Unknown kinds map to EventUIChange, the least specific category.
func ParseEventKind(s string) EventKind {
	switch EventKind(strings.ToLower(strings.TrimSpace(s))) {
	case EventNavigation:
		return EventNavigation
	case EventClick:
		return EventClick
	case EventType:
		return EventType
	case EventUIChange:
		return EventUIChange
	case EventAssertion:
		return EventAssertion
	default:
		return EventUIChange
	}
}

// TaskStatus is the lifecycle state of a verification task on the serve surface.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)
