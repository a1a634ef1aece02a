package adjudicate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/richardpark-msft/vigil/internal/models"
)

func TestParseAdjudication(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		adj, err := parseAdjudication(`{
			"status": "deviation",
			"confidence": 0.92,
			"reasoning": "Timeline states Turtle Neck is NOT visible",
			"contradiction_detected": true,
			"contradiction_details": "'Turtle Neck' is NOT visible in the available filters"
		}`)
		require.NoError(t, err)
		require.Equal(t, models.StepDeviation, adj.Status)
		require.Equal(t, 0.92, adj.Confidence)
		require.True(t, adj.ContradictionDetected)
		require.Equal(t, "'Turtle Neck' is NOT visible in the available filters", adj.ContradictionDetails)
	})

	t.Run("FencedResponse", func(t *testing.T) {
		adj, err := parseAdjudication("Here is my analysis:\n```json\n{\"status\": \"observed\", \"confidence\": 0.9, \"reasoning\": \"confirmed\"}\n```")
		require.NoError(t, err)
		require.Equal(t, models.StepObserved, adj.Status)
	})

	t.Run("UppercaseStatusNormalizes", func(t *testing.T) {
		adj, err := parseAdjudication(`{"status": "OBSERVED", "confidence": 1.0}`)
		require.NoError(t, err)
		require.Equal(t, models.StepObserved, adj.Status)
	})

	t.Run("UnknownStatusDegradesToUncertain", func(t *testing.T) {
		adj, err := parseAdjudication(`{"status": "passed", "confidence": 0.8}`)
		require.NoError(t, err)
		require.Equal(t, models.StepUncertain, adj.Status)
	})

	t.Run("MissingConfidenceDefaults", func(t *testing.T) {
		adj, err := parseAdjudication(`{"status": "observed"}`)
		require.NoError(t, err)
		require.Equal(t, 0.5, adj.Confidence)
	})

	t.Run("NullConfidenceDefaults", func(t *testing.T) {
		adj, err := parseAdjudication(`{"status": "observed", "confidence": null}`)
		require.NoError(t, err)
		require.Equal(t, 0.5, adj.Confidence)
	})

	t.Run("NullContradictionDetails", func(t *testing.T) {
		adj, err := parseAdjudication(`{"status": "observed", "confidence": 0.9, "contradiction_detected": false, "contradiction_details": null}`)
		require.NoError(t, err)
		require.Empty(t, adj.ContradictionDetails)
	})

	t.Run("ArrayIsNotAnObject", func(t *testing.T) {
		_, err := parseAdjudication(`[{"status": "observed"}]`)
		require.ErrorContains(t, err, "not a JSON object")
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := parseAdjudication("I cannot answer that.")
		require.Error(t, err)
	})
}

func TestParseBatchAdjudication(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		adjudications, err := parseBatchAdjudication(`[
			{"step_number": 2, "status": "observed", "confidence": 0.9, "reasoning": "confirmed"},
			{"step_number": 4, "status": "deviation", "confidence": 0.85, "reasoning": "contradicted", "contradiction_detected": true, "contradiction_details": "option missing"}
		]`)
		require.NoError(t, err)
		require.Len(t, adjudications, 2)
		require.Equal(t, 2, adjudications[0].StepNumber)
		require.Equal(t, models.StepObserved, adjudications[0].Status)
		require.Equal(t, models.StepDeviation, adjudications[1].Status)
		require.True(t, adjudications[1].ContradictionDetected)
	})

	t.Run("ObjectIsNotAnArray", func(t *testing.T) {
		_, err := parseBatchAdjudication(`{"status": "observed"}`)
		require.ErrorContains(t, err, "not a JSON array")
	})

	t.Run("NonObjectElementFailsBatch", func(t *testing.T) {
		_, err := parseBatchAdjudication(`[{"status": "observed", "confidence": 0.9}, "not an object"]`)
		require.ErrorContains(t, err, "batch element 1")
	})

	t.Run("UndecodableElementFailsBatch", func(t *testing.T) {
		_, err := parseBatchAdjudication(`[{"status": "observed", "confidence": "quite high"}]`)
		require.ErrorContains(t, err, "batch element 0")
	})
}
