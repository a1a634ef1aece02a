// Package aggregate folds per-step evidence and adjudication outcomes into
// final step verdicts and the run report.
package aggregate

import (
	"fmt"
	"time"

	"github.com/richardpark-msft/vigil/internal/models"
)

// Confidence thresholds for the deterministic status mapping.
const (
	observedThreshold  = 0.85
	uncertainThreshold = 0.5
)

// StatusFromConfidence maps a deterministic evidence confidence to a status.
func StatusFromConfidence(confidence float64) models.StepStatus {
	switch {
	case confidence >= observedThreshold:
		return models.StepObserved
	case confidence >= uncertainThreshold:
		return models.StepUncertain
	default:
		return models.StepDeviation
	}
}

// FromEvidence builds the verdict for a step that settled on deterministic
// timeline evidence alone.
func FromEvidence(step models.PlannedStep, evidence models.StepEvidence) models.StepVerdict {
	return models.StepVerdict{
		Step:         step,
		Status:       StatusFromConfidence(evidence.Confidence),
		Confidence:   evidence.Confidence,
		Timestamp:    evidence.Timestamp,
		EvidenceText: evidence.Reasoning,
		Decisions: []models.DecisionRecord{{
			Source:     models.SourceDeterministic,
			Reasoning:  "Code-based verification (no LLM)",
			Confidence: evidence.Confidence,
		}},
	}
}

// FromAdjudication builds the verdict for a step decided by the semantic
// path. Confidence is clamped to [0, 1] and an unknown status degrades to
// uncertain rather than failing the step outright.
func FromAdjudication(step models.PlannedStep, evidence models.StepEvidence, adj models.Adjudication, batch bool) models.StepVerdict {
	status := adj.Status
	if status == "" {
		status = models.StepUncertain
	}
	confidence := models.ClampConfidence(adj.Confidence)

	evidenceText := adj.Reasoning
	if adj.ContradictionDetected && adj.ContradictionDetails != "" {
		evidenceText = fmt.Sprintf("CONTRADICTION DETECTED: %s\n\n%s", adj.ContradictionDetails, adj.Reasoning)
	}

	metadata := map[string]any{
		"contradiction_detected": adj.ContradictionDetected,
		"llm_verified":           true,
	}
	if batch {
		metadata["batch_verified"] = true
	} else {
		metadata["contradiction_details"] = adj.ContradictionDetails
	}

	return models.StepVerdict{
		Step:         step,
		Status:       status,
		Confidence:   confidence,
		Timestamp:    evidence.Timestamp,
		EvidenceText: evidenceText,
		Decisions: []models.DecisionRecord{{
			Source:                models.SourceSemantic,
			Reasoning:             adj.Reasoning,
			Confidence:            confidence,
			ContradictionDetected: adj.ContradictionDetected,
			Metadata:              metadata,
		}},
	}
}

// Fallback synthesizes a conservative uncertain verdict when the semantic
// call itself failed. The error lands in the decision metadata and never
// propagates past aggregation.
func Fallback(step models.PlannedStep, evidence models.StepEvidence, err error) models.StepVerdict {
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}
	return models.StepVerdict{
		Step:         step,
		Status:       models.StepUncertain,
		Confidence:   0.5,
		Timestamp:    evidence.Timestamp,
		EvidenceText: fmt.Sprintf("LLM verification failed: %s. Using conservative uncertain status.", message),
		Decisions: []models.DecisionRecord{{
			Source:     models.SourceFallback,
			Reasoning:  fmt.Sprintf("Fallback due to: %s", message),
			Confidence: 0.5,
			Metadata:   map[string]any{"fallback": true, "error": message},
		}},
	}
}

// BuildReport folds verdicts into the final run report. Verdicts arrive in
// completion order and are re-sorted by step number here.
func BuildReport(planName string, verdicts []models.StepVerdict) models.Report {
	models.SortVerdicts(verdicts)

	var observed, deviated, uncertain int
	for _, v := range verdicts {
		switch v.Status {
		case models.StepObserved:
			observed++
		case models.StepDeviation:
			deviated++
		default:
			uncertain++
		}
	}

	report := models.Report{
		PlanName:    planName,
		Total:       len(verdicts),
		Observed:    observed,
		Deviated:    deviated,
		Uncertain:   uncertain,
		Verdicts:    verdicts,
		GeneratedAt: time.Now(),
	}

	switch {
	case deviated == 0 && uncertain == 0:
		report.OverallStatus = models.RunPassed
		report.Summary = "All test steps were successfully verified with high confidence."
	case deviated > 0:
		report.OverallStatus = models.RunFailed
		report.Summary = fmt.Sprintf("%d step(s) showed deviations from planned execution.", deviated)
	default:
		report.OverallStatus = models.RunUncertain
		report.Summary = fmt.Sprintf("%d step(s) could not be verified with high confidence.", uncertain)
	}

	if report.Total > 0 {
		report.PassRate = float64(observed) / float64(report.Total) * 100
	}
	return report
}
