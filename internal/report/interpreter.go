package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/richardpark-msft/vigil/internal/models"
)

// InterpretConfidence returns a plain-language label for a confidence (0–1).
func InterpretConfidence(confidence float64) string {
	pct := confidence * 100
	switch {
	case pct >= 85:
		return "High (>=85%)"
	case pct >= 50:
		return "Medium (50-85%)"
	default:
		return "Low (<50%)"
	}
}

// InterpretPassRate returns a human-readable explanation of a pass rate.
// Report pass rates are percentages (0–100).
func InterpretPassRate(pct float64) string {
	switch {
	case pct >= 100:
		return fmt.Sprintf("All steps observed (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most steps observed (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the steps observed (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few steps observed (%.0f%%)", pct)
	}
}

// InterpretStatus explains what an overall run status means for the session.
func InterpretStatus(status models.RunStatus) string {
	switch status {
	case models.RunPassed:
		return "The recorded session matches the test plan."
	case models.RunFailed:
		return "The recorded session deviated from the test plan."
	case models.RunUncertain:
		return "Some steps could not be confirmed either way. Review the uncertain steps manually."
	default:
		return "The session produced no usable verdicts."
	}
}

// FormatSummaryReport produces a full plain-language interpretation of a report.
func FormatSummaryReport(r *models.Report) string {
	var b strings.Builder

	b.WriteString("=== Interpretation ===\n\n")

	b.WriteString(fmt.Sprintf("Overall Status: %s — %s\n", r.OverallStatus, InterpretStatus(r.OverallStatus)))
	b.WriteString(fmt.Sprintf("Pass Rate:      %s\n", InterpretPassRate(r.PassRate)))
	if r.Duration > 0 {
		duration := time.Duration(r.Duration * float64(time.Second))
		b.WriteString(fmt.Sprintf("Duration:       %v\n", duration.Round(time.Millisecond)))
	}
	if r.Total > 0 {
		b.WriteString(fmt.Sprintf("Steps:          %d observed, %d deviated, %d uncertain out of %d total\n",
			r.Observed, r.Deviated, r.Uncertain, r.Total))
	}

	// Per-step interpretation
	if len(r.Verdicts) > 0 {
		b.WriteString("\nPer-Step Interpretation:\n")
		for _, v := range r.Verdicts {
			icon := "✓"
			switch v.Status {
			case models.StepDeviation:
				icon = "✗"
			case models.StepUncertain:
				icon = "?"
			}
			b.WriteString(fmt.Sprintf("  %s Step %d: %s\n", icon, v.Step.Number, v.Step.Description))
			b.WriteString(fmt.Sprintf("    Confidence: %.2f — %s\n", v.Confidence, InterpretConfidence(v.Confidence)))
		}
	}

	return b.String()
}
