package adjudicate

import (
	"fmt"
	"strings"

	"github.com/richardpark-msft/vigil/internal/models"
)

// Context budgets for the two prompt shapes. The single-step prompt carries
// more surrounding context than each step of a batch.
const (
	singlePriorCap     = 5
	singleEventCap     = 3
	singleNarrativeCap = 500

	batchPriorCap     = 3
	batchEventCap     = 2
	batchNarrativeCap = 400

	priorDescriptionCap = 50
	eventDescriptionCap = 100
)

// buildStepPrompt assembles the single-step semantic verification prompt:
// the step, its deterministic evidence, recent verdicts for temporal context,
// and the false-positive detection rules.
func buildStepPrompt(item Item, prior []models.StepVerdict, narrative string) string {
	expected := item.Step.ExpectedOutcome
	if expected == "" {
		expected = "Not specified"
	}

	var sb strings.Builder
	sb.WriteString("You are a test verification expert. Determine if this test step PASSED or FAILED.\n\n")

	sb.WriteString(`**CRITICAL: Detect False Positives**
The timeline may describe events with keywords matching the step, but the step may still have FAILED.
Look carefully for:
- "NOT visible", "NOT available", "NOT present", "is missing" = FAILURE indicators
- "FAILS", "failed", "assertion failed" = Explicit failure
- Contradiction between what step EXPECTS vs what timeline SHOWS

`)

	sb.WriteString(fmt.Sprintf("**Test Step #%d:**\n", item.Step.Number))
	sb.WriteString(fmt.Sprintf("- Description: %s\n", item.Step.Description))
	sb.WriteString(fmt.Sprintf("- Action: %s\n", item.Step.Action))
	sb.WriteString(fmt.Sprintf("- Expected Outcome: %s\n\n", expected))

	sb.WriteString("**Timeline Evidence (from video analysis):**\n")
	sb.WriteString(fmt.Sprintf("- Evidence Found: %t\n", item.Evidence.Found))
	sb.WriteString(fmt.Sprintf("- Initial Confidence: %.2f\n", item.Evidence.Confidence))
	sb.WriteString(fmt.Sprintf("- Description: %s\n", item.Evidence.Description))
	sb.WriteString(fmt.Sprintf("- Reasoning: %s\n\n", item.Evidence.Reasoning))

	sb.WriteString("**Matching Timeline Events:**\n")
	sb.WriteString(formatMatchingEvents(item.Evidence.MatchingEvents, singleEventCap))
	sb.WriteString("\n\n")

	sb.WriteString("**Previous Steps Context (for temporal understanding):**\n")
	sb.WriteString(formatPriorVerdicts(lastN(prior, singlePriorCap)))
	sb.WriteString("\n\n")

	sb.WriteString("**Overall Video Narrative:**\n")
	sb.WriteString(clip(narrative, singleNarrativeCap))
	sb.WriteString("...\n\n")

	sb.WriteString(`---

**Your Analysis:**
1. What does the step EXPECT to happen?
2. What does the timeline evidence ACTUALLY show happened?
3. Is there a CONTRADICTION between expectation and reality?
4. Are there phrases like "NOT visible", "NOT available", "is missing", "FAILS"?

**Decision Rules:**
- **DEVIATION**: Timeline CONTRADICTS the step (e.g., says "X is NOT visible" when step expects X)
- **OBSERVED**: Timeline CONFIRMS step completed successfully with NO contradictions
- **UNCERTAIN**: Evidence is ambiguous or incomplete

Respond ONLY with valid JSON (no markdown, no extra text):
{
    "status": "observed|deviation|uncertain",
    "confidence": 0.0-1.0,
    "reasoning": "Your detailed analysis explaining the decision",
    "contradiction_detected": true|false,
    "contradiction_details": "Quote the EXACT text showing contradiction, or null if none"
}`)

	return sb.String()
}

// buildBatchPrompt assembles the one-call prompt covering every flagged step.
// The response contract is a JSON array matched back to steps by position.
func buildBatchPrompt(items []Item, prior []models.StepVerdict, narrative string) string {
	var sb strings.Builder
	sb.WriteString("You are a test verification expert. Analyze MULTIPLE test steps and determine if each PASSED or FAILED.\n\n")

	sb.WriteString(`**CRITICAL: Detect False Positives**
For EACH step, look for:
- "NOT visible", "NOT available", "NOT present" = FAILURE
- "FAILS", "failed", "assertion failed" = Explicit failure
- Contradiction between step EXPECTATION vs timeline REALITY

`)

	sb.WriteString("**Previous Steps Context:**\n")
	sb.WriteString(formatPriorVerdicts(lastN(prior, batchPriorCap)))
	sb.WriteString("\n\n")

	sb.WriteString("**Video Timeline Narrative:**\n")
	sb.WriteString(clip(narrative, batchNarrativeCap))
	sb.WriteString("...\n\n")

	sb.WriteString("**STEPS TO VERIFY:**\n")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("\n--- STEP %d ---\n", item.Step.Number))
		sb.WriteString(fmt.Sprintf("Description: %s\n", item.Step.Description))
		sb.WriteString(fmt.Sprintf("Action: %s\n", item.Step.Action))
		sb.WriteString(fmt.Sprintf("Evidence Found: %t\n", item.Evidence.Found))
		sb.WriteString(fmt.Sprintf("Confidence: %.2f\n", item.Evidence.Confidence))
		sb.WriteString(fmt.Sprintf("Evidence Description: %s\n", item.Evidence.Description))
		sb.WriteString(fmt.Sprintf("Evidence Reasoning: %s\n", item.Evidence.Reasoning))
		sb.WriteString(fmt.Sprintf("Matching Events: %s\n", formatMatchingEvents(item.Evidence.MatchingEvents, batchEventCap)))
	}

	sb.WriteString(fmt.Sprintf(`
---

**For EACH step, determine:**
1. Does timeline CONFIRM or CONTRADICT the step?
2. Any negative phrases indicating failure?

Respond ONLY with valid JSON array (no markdown):
[
    {
        "step_number": %d,
        "status": "observed|deviation|uncertain",
        "confidence": 0.0-1.0,
        "reasoning": "Analysis for this step",
        "contradiction_detected": true|false,
        "contradiction_details": "Exact contradiction text or null"
    },
    ... (one object per step, in order)
]`, items[0].Step.Number))

	return sb.String()
}

// formatPriorVerdicts renders recent verdicts as one line each for the
// temporal-context section.
func formatPriorVerdicts(verdicts []models.StepVerdict) string {
	if len(verdicts) == 0 {
		return "No previous steps verified yet."
	}

	lines := make([]string, 0, len(verdicts))
	for _, v := range verdicts {
		marker := "⚠️"
		switch v.Status {
		case models.StepObserved:
			marker = "✅"
		case models.StepDeviation:
			marker = "❌"
		}
		lines = append(lines, fmt.Sprintf("Step %d: %s %s - %s...",
			v.Step.Number, marker, v.Status, clip(v.Step.Description, priorDescriptionCap)))
	}
	return strings.Join(lines, "\n")
}

// formatMatchingEvents renders up to limit evidence events for a prompt.
func formatMatchingEvents(events []models.ObservedEvent, limit int) string {
	if len(events) == 0 {
		return "No matching events found."
	}
	if len(events) > limit {
		events = events[:limit]
	}

	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("- [%.1fs] %s: %s...",
			e.Timestamp, e.Kind, clip(e.Description, eventDescriptionCap)))
	}
	return strings.Join(lines, "\n")
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// lastN returns the trailing n elements of s.
func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
