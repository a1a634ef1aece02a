package aggregate

import (
	"errors"
	"testing"

	"github.com/richardpark-msft/vigil/internal/models"
	"github.com/stretchr/testify/require"
)

func TestStatusFromConfidence(t *testing.T) {
	require.Equal(t, models.StepObserved, StatusFromConfidence(1.0))
	require.Equal(t, models.StepObserved, StatusFromConfidence(0.85))
	require.Equal(t, models.StepUncertain, StatusFromConfidence(0.849))
	require.Equal(t, models.StepUncertain, StatusFromConfidence(0.5))
	require.Equal(t, models.StepDeviation, StatusFromConfidence(0.499))
	require.Equal(t, models.StepDeviation, StatusFromConfidence(0))
}

func TestFromEvidence(t *testing.T) {
	ts := 12.5
	frame := 12
	step := models.PlannedStep{Number: 3, Description: "Open checkout"}
	evidence := models.StepEvidence{
		Found:      true,
		Confidence: 0.92,
		Timestamp:  &ts,
		FrameIndex: &frame,
		Reasoning:  "Found 2 matching events.",
	}

	verdict := FromEvidence(step, evidence)
	require.Equal(t, step, verdict.Step)
	require.Equal(t, models.StepObserved, verdict.Status)
	require.Equal(t, 0.92, verdict.Confidence)
	require.Equal(t, &ts, verdict.Timestamp)
	require.Equal(t, "Found 2 matching events.", verdict.EvidenceText)
	require.Len(t, verdict.Decisions, 1)
	require.Equal(t, models.SourceDeterministic, verdict.Decisions[0].Source)
}

func TestFromAdjudication(t *testing.T) {
	ts := 8.0
	step := models.PlannedStep{Number: 2, Description: "Verify discount applied"}
	evidence := models.StepEvidence{Found: true, Confidence: 0.7, Timestamp: &ts, Reasoning: "Found 1 matching events."}

	t.Run("CarriesDecision", func(t *testing.T) {
		adj := models.Adjudication{
			Status:     models.StepObserved,
			Confidence: 0.88,
			Reasoning:  "Timeline confirms the discount banner",
		}
		verdict := FromAdjudication(step, evidence, adj, false)
		require.Equal(t, models.StepObserved, verdict.Status)
		require.Equal(t, 0.88, verdict.Confidence)
		require.Equal(t, "Timeline confirms the discount banner", verdict.EvidenceText)
		require.Len(t, verdict.Decisions, 1)
		require.Equal(t, models.SourceSemantic, verdict.Decisions[0].Source)
		require.Equal(t, true, verdict.Decisions[0].Metadata["llm_verified"])
	})

	t.Run("ContradictionPrefixesEvidence", func(t *testing.T) {
		adj := models.Adjudication{
			Status:                models.StepDeviation,
			Confidence:            0.9,
			Reasoning:             "Step expects the product but timeline says otherwise",
			ContradictionDetected: true,
			ContradictionDetails:  "Turtle Neck is not available",
		}
		verdict := FromAdjudication(step, evidence, adj, false)
		require.Equal(t, models.StepDeviation, verdict.Status)
		require.Contains(t, verdict.EvidenceText, "CONTRADICTION DETECTED: Turtle Neck is not available")
		require.Contains(t, verdict.EvidenceText, "Step expects the product but timeline says otherwise")
		require.True(t, verdict.Decisions[0].ContradictionDetected)
	})

	t.Run("ClampsConfidence", func(t *testing.T) {
		verdict := FromAdjudication(step, evidence, models.Adjudication{Status: models.StepObserved, Confidence: 1.7}, false)
		require.Equal(t, 1.0, verdict.Confidence)

		verdict = FromAdjudication(step, evidence, models.Adjudication{Status: models.StepObserved, Confidence: -0.2}, false)
		require.Equal(t, 0.0, verdict.Confidence)
	})

	t.Run("UnknownStatusDegradesToUncertain", func(t *testing.T) {
		verdict := FromAdjudication(step, evidence, models.Adjudication{Confidence: 0.6}, false)
		require.Equal(t, models.StepUncertain, verdict.Status)
	})

	t.Run("BatchMetadata", func(t *testing.T) {
		verdict := FromAdjudication(step, evidence, models.Adjudication{Status: models.StepObserved, Confidence: 0.9}, true)
		require.Equal(t, true, verdict.Decisions[0].Metadata["batch_verified"])
	})
}

func TestFallback(t *testing.T) {
	ts := 4.0
	step := models.PlannedStep{Number: 5, Description: "Apply filter"}
	evidence := models.StepEvidence{Found: true, Confidence: 0.7, Timestamp: &ts}

	verdict := Fallback(step, evidence, errors.New("model timed out"))
	require.Equal(t, models.StepUncertain, verdict.Status)
	require.Equal(t, 0.5, verdict.Confidence)
	require.Equal(t, &ts, verdict.Timestamp)
	require.Contains(t, verdict.EvidenceText, "LLM verification failed: model timed out")
	require.Len(t, verdict.Decisions, 1)
	require.Equal(t, models.SourceFallback, verdict.Decisions[0].Source)
	require.Equal(t, "model timed out", verdict.Decisions[0].Metadata["error"])
}

func TestBuildReport(t *testing.T) {
	verdict := func(num int, status models.StepStatus, conf float64) models.StepVerdict {
		return models.StepVerdict{
			Step:       models.PlannedStep{Number: num, Description: "step"},
			Status:     status,
			Confidence: conf,
		}
	}

	t.Run("MixedStatuses", func(t *testing.T) {
		report := BuildReport("checkout-flow", []models.StepVerdict{
			verdict(1, StatusFromConfidence(0.95), 0.95),
			verdict(2, StatusFromConfidence(0.6), 0.6),
			verdict(3, StatusFromConfidence(0.3), 0.3),
		})
		require.Equal(t, 3, report.Total)
		require.Equal(t, 1, report.Observed)
		require.Equal(t, 1, report.Uncertain)
		require.Equal(t, 1, report.Deviated)
		require.Equal(t, models.RunFailed, report.OverallStatus)
		require.InDelta(t, 100.0/3.0, report.PassRate, 1e-9)
		require.Equal(t, "1 step(s) showed deviations from planned execution.", report.Summary)
	})

	t.Run("AllObservedPasses", func(t *testing.T) {
		report := BuildReport("checkout-flow", []models.StepVerdict{
			verdict(1, models.StepObserved, 0.9),
			verdict(2, models.StepObserved, 0.95),
		})
		require.Equal(t, models.RunPassed, report.OverallStatus)
		require.Equal(t, 100.0, report.PassRate)
		require.Equal(t, "All test steps were successfully verified with high confidence.", report.Summary)
	})

	t.Run("UncertainWithoutDeviationIsUncertain", func(t *testing.T) {
		report := BuildReport("checkout-flow", []models.StepVerdict{
			verdict(1, models.StepObserved, 0.9),
			verdict(2, models.StepUncertain, 0.6),
		})
		require.Equal(t, models.RunUncertain, report.OverallStatus)
		require.Equal(t, "1 step(s) could not be verified with high confidence.", report.Summary)
	})

	t.Run("SortsVerdictsByStepNumber", func(t *testing.T) {
		report := BuildReport("checkout-flow", []models.StepVerdict{
			verdict(3, models.StepObserved, 0.9),
			verdict(1, models.StepObserved, 0.9),
			verdict(2, models.StepObserved, 0.9),
		})
		require.Equal(t, 1, report.Verdicts[0].Step.Number)
		require.Equal(t, 2, report.Verdicts[1].Step.Number)
		require.Equal(t, 3, report.Verdicts[2].Step.Number)
	})

	t.Run("EmptyGuardsPassRate", func(t *testing.T) {
		report := BuildReport("empty", nil)
		require.Equal(t, 0, report.Total)
		require.Zero(t, report.PassRate)
	})
}
