package adjudicate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/richardpark-msft/vigil/internal/models"
	"github.com/richardpark-msft/vigil/internal/utils"
)

func evidenceWithEvents(descriptions ...string) models.StepEvidence {
	events := make([]models.ObservedEvent, len(descriptions))
	for i, d := range descriptions {
		events[i] = models.ObservedEvent{
			Timestamp:   float64(i) * 2.0,
			Kind:        models.EventClick,
			Description: d,
			Confidence:  0.9,
		}
	}
	return models.StepEvidence{
		Found:          true,
		Confidence:     0.7,
		Timestamp:      utils.Ptr(0.0),
		MatchingEvents: events,
		Description:    descriptions[0],
		Reasoning:      "Found matching events",
	}
}

func verdictForStep(n int, status models.StepStatus) models.StepVerdict {
	return models.StepVerdict{
		Step:   models.PlannedStep{Number: n, Description: fmt.Sprintf("Step description %d", n)},
		Status: status,
	}
}

func TestBuildStepPrompt(t *testing.T) {
	item := Item{
		Step: models.PlannedStep{
			Number:      3,
			Description: "Verify the Turtle Neck filter is applied",
			Action:      "assertion: filter state",
		},
		Evidence: evidenceWithEvents("Filter panel opened", "Options listed", "Filter applied", "Extra event"),
	}

	prior := []models.StepVerdict{
		verdictForStep(1, models.StepObserved),
		verdictForStep(2, models.StepDeviation),
	}

	prompt := buildStepPrompt(item, prior, "The session searches for a sweater and applies filters.")

	require.Contains(t, prompt, "**Test Step #3:**")
	require.Contains(t, prompt, "- Description: Verify the Turtle Neck filter is applied")
	require.Contains(t, prompt, "- Action: assertion: filter state")
	require.Contains(t, prompt, "- Expected Outcome: Not specified")
	require.Contains(t, prompt, "- Evidence Found: true")
	require.Contains(t, prompt, "- Initial Confidence: 0.70")

	// Only the first three matching events appear.
	require.Contains(t, prompt, "- [0.0s] click: Filter panel opened...")
	require.Contains(t, prompt, "- [4.0s] click: Filter applied...")
	require.NotContains(t, prompt, "Extra event")

	require.Contains(t, prompt, "Step 1: ✅ observed - Step description 1...")
	require.Contains(t, prompt, "Step 2: ❌ deviation - Step description 2...")
	require.Contains(t, prompt, "The session searches for a sweater and applies filters....")
	require.Contains(t, prompt, `"contradiction_detected": true|false`)
}

func TestBuildStepPromptClipsNarrative(t *testing.T) {
	item := Item{
		Step:     models.PlannedStep{Number: 1, Description: "d", Action: "a"},
		Evidence: models.StepEvidence{},
	}

	narrative := strings.Repeat("n", 600)
	prompt := buildStepPrompt(item, nil, narrative)

	require.Contains(t, prompt, strings.Repeat("n", singleNarrativeCap)+"...")
	require.NotContains(t, prompt, strings.Repeat("n", singleNarrativeCap+1))
	require.Contains(t, prompt, "No previous steps verified yet.")
	require.Contains(t, prompt, "No matching events found.")
}

func TestBuildStepPromptLimitsPriorContext(t *testing.T) {
	item := Item{
		Step:     models.PlannedStep{Number: 9, Description: "d", Action: "a"},
		Evidence: models.StepEvidence{},
	}

	var prior []models.StepVerdict
	for i := 1; i <= 8; i++ {
		prior = append(prior, verdictForStep(i, models.StepObserved))
	}

	prompt := buildStepPrompt(item, prior, "narrative")
	require.NotContains(t, prompt, "Step 3: ")
	require.Contains(t, prompt, "Step 4: ")
	require.Contains(t, prompt, "Step 8: ")
}

func TestBuildBatchPrompt(t *testing.T) {
	items := []Item{
		{Step: models.PlannedStep{Number: 4, Description: "Apply filter", Action: "click filter"}, Evidence: evidenceWithEvents("Panel", "Options", "Applied")},
		{Step: models.PlannedStep{Number: 6, Description: "Check results", Action: "assert results"}, Evidence: models.StepEvidence{Reasoning: "no matches"}},
	}
	prior := []models.StepVerdict{
		verdictForStep(1, models.StepObserved),
		verdictForStep(2, models.StepObserved),
		verdictForStep(3, models.StepUncertain),
		verdictForStep(5, models.StepObserved),
	}

	prompt := buildBatchPrompt(items, prior, strings.Repeat("m", 450))

	require.Contains(t, prompt, "--- STEP 4 ---")
	require.Contains(t, prompt, "--- STEP 6 ---")
	require.Contains(t, prompt, "Description: Apply filter")
	require.Contains(t, prompt, "Evidence Reasoning: no matches")
	require.Contains(t, prompt, `"step_number": 4,`)

	// Batch blocks carry at most two events each.
	require.Contains(t, prompt, "Panel...")
	require.Contains(t, prompt, "Options...")
	require.NotContains(t, prompt, "Applied...")

	// Only the last three prior verdicts survive.
	require.NotContains(t, prompt, "Step 1: ")
	require.Contains(t, prompt, "Step 2: ")
	require.Contains(t, prompt, "Step 5: ")

	require.Contains(t, prompt, strings.Repeat("m", batchNarrativeCap)+"...")
	require.NotContains(t, prompt, strings.Repeat("m", batchNarrativeCap+1))
}

func TestFormatPriorVerdicts(t *testing.T) {
	require.Equal(t, "No previous steps verified yet.", formatPriorVerdicts(nil))

	out := formatPriorVerdicts([]models.StepVerdict{
		verdictForStep(1, models.StepObserved),
		verdictForStep(2, models.StepDeviation),
		verdictForStep(3, models.StepUncertain),
	})
	require.Equal(t, strings.Join([]string{
		"Step 1: ✅ observed - Step description 1...",
		"Step 2: ❌ deviation - Step description 2...",
		"Step 3: ⚠️ uncertain - Step description 3...",
	}, "\n"), out)
}

func TestClip(t *testing.T) {
	require.Equal(t, "abc", clip("abc", 5))
	require.Equal(t, "abc", clip("abcde", 3))
	// Rune-aware: multibyte characters are never split.
	require.Equal(t, "héllo", clip("héllo wörld", 5))
}
