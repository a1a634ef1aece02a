// Package triage decides which steps can settle on deterministic timeline
// evidence and which need a semantic adjudication pass.
package triage

import (
	"strings"

	"github.com/richardpark-msft/vigil/internal/models"
)

// negativeIndicators flag evidence text that describes something missing or
// failing even when keyword matching scored well.
var negativeIndicators = []string{
	"not visible",
	"not available",
	"not present",
	"not found",
	"is missing",
	"does not appear",
	"does not exist",
	"cannot see",
	"cannot find",
	"no longer",
	"fails",
	"failed",
	"failure",
	"assertion failed",
	"not displayed",
	"unavailable",
	"absent",
}

// assertionMarkers identify steps that state an expected outcome rather than
// an action. Assertion steps always get a semantic pass.
var assertionMarkers = []string{
	"assertion:",
	"assert that",
	"validate that",
	"verify that",
	"confirm that",
	"ensure that",
	"should be",
	"must be",
	"expect",
}

// interactionVerbs mark actions that can fail without an obvious visual
// change, such as a filter that silently does nothing.
var interactionVerbs = []string{
	"filter", "select", "apply", "click", "choose", "check", "toggle",
}

// Decision is the triage outcome for one step.
type Decision struct {
	Semantic bool
	Reason   string
}

// Classify decides whether a step's deterministic evidence suffices or the
// step must be adjudicated semantically. It is a pure predicate: identical
// inputs always yield the identical decision.
func Classify(step models.PlannedStep, evidence models.StepEvidence) Decision {
	if isAssertion(step) {
		return Decision{Semantic: true, Reason: "assertion step"}
	}
	if containsNegative(evidence.Description) {
		return Decision{Semantic: true, Reason: "negative evidence description"}
	}
	if containsNegative(evidence.Reasoning) {
		return Decision{Semantic: true, Reason: "negative evidence reasoning"}
	}
	if evidence.Confidence >= 0.5 && evidence.Confidence < 0.9 {
		return Decision{Semantic: true, Reason: "borderline confidence"}
	}
	if !evidence.Found && evidence.Confidence > 0.3 {
		return Decision{Semantic: true, Reason: "missing evidence with residual confidence"}
	}
	if isInteraction(step) {
		return Decision{Semantic: true, Reason: "interaction step"}
	}
	return Decision{}
}

func isAssertion(step models.PlannedStep) bool {
	action := strings.ToLower(step.Action)
	desc := strings.ToLower(step.Description)
	for _, marker := range assertionMarkers {
		if strings.Contains(action, marker) || strings.Contains(desc, marker) {
			return true
		}
	}
	return false
}

func isInteraction(step models.PlannedStep) bool {
	action := strings.ToLower(step.Action)
	for _, verb := range interactionVerbs {
		if strings.Contains(action, verb) {
			return true
		}
	}
	return false
}

func containsNegative(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, indicator := range negativeIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
