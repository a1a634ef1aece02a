package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/richardpark-msft/vigil/internal/models"
)

// formatDuration formats a duration in a consistent, human-readable way.
// This ensures stable output regardless of Go version changes.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// truncateText shortens text to maxLen runes, replacing the last rune with
// "…" if needed.
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-1]) + "…"
}

func stepIcon(status models.StepStatus) string {
	switch status {
	case models.StepObserved:
		return "✓"
	case models.StepDeviation:
		return "✗"
	default:
		return "?"
	}
}

func printSummary(r *models.Report) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" VERIFICATION RESULTS")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	if r.PlanName != "" {
		fmt.Printf("Plan:           %s\n", r.PlanName)
	}
	fmt.Printf("Overall Status: %s\n", r.OverallStatus)
	fmt.Printf("Total Steps:    %d\n", r.Total)
	fmt.Printf("Observed:       %d\n", r.Observed)
	fmt.Printf("Deviations:     %d\n", r.Deviated)
	fmt.Printf("Uncertain:      %d\n", r.Uncertain)
	fmt.Printf("Pass Rate:      %.1f%%\n", r.PassRate)
	if r.Duration > 0 {
		fmt.Printf("Duration:       %s\n", formatDuration(time.Duration(r.Duration*float64(time.Second))))
	}
	fmt.Println()

	// Per-step breakdown
	const descWidth = 44
	fmt.Println("-" + strings.Repeat("-", 50))
	fmt.Println(" PER-STEP BREAKDOWN")
	fmt.Println("-" + strings.Repeat("-", 50))
	for _, v := range r.Verdicts {
		desc := truncateText(v.Step.Description, descWidth)
		fmt.Printf("  %s %2d. %s  conf=%.2f", stepIcon(v.Status), v.Step.Number, padRight(desc, descWidth), v.Confidence)
		if v.Timestamp != nil {
			fmt.Printf("  t=%.1fs", *v.Timestamp)
		}
		fmt.Println()
	}
	fmt.Println()

	// Show deviations and uncertain steps with evidence
	if r.Deviated > 0 || r.Uncertain > 0 {
		fmt.Println("Flagged Steps:")
		for _, v := range r.Verdicts {
			if v.Status == models.StepObserved {
				continue
			}
			fmt.Printf("  - Step %d [%s]: %s\n", v.Step.Number, v.Status, v.Step.Description)
			if v.EvidenceText != "" {
				fmt.Printf("    • %s\n", v.EvidenceText)
			}
			for _, d := range v.Decisions {
				if d.Reasoning != "" {
					fmt.Printf("    • [%s] %s\n", d.Source, truncateText(d.Reasoning, 120))
				}
			}
		}
		fmt.Println()
	}

	if r.Summary != "" {
		fmt.Printf("Summary: %s\n\n", r.Summary)
	}
}

// FormatGitHubComment formats a Report as a markdown comment for GitHub PRs
func FormatGitHubComment(r *models.Report) string {
	var b strings.Builder

	// Header with overall status
	b.WriteString("## 🎥 Session Verification Results\n\n")

	statusIcon := "✅ Passed"
	switch r.OverallStatus {
	case models.RunFailed:
		statusIcon = "❌ Failed"
	case models.RunUncertain:
		statusIcon = "⚠️ Uncertain"
	}

	b.WriteString(fmt.Sprintf("**Status:** %s | **Pass Rate:** %.1f%% | **Duration:** %s\n\n",
		statusIcon, r.PassRate, formatDuration(time.Duration(r.Duration*float64(time.Second)))))

	// Summary stats
	b.WriteString(fmt.Sprintf("- **Steps:** %d total, %d observed, %d deviations, %d uncertain\n",
		r.Total, r.Observed, r.Deviated, r.Uncertain))
	if r.Provider != "" {
		b.WriteString(fmt.Sprintf("- **Provider:** %s (%s)\n", r.Provider, r.Model))
	}
	b.WriteString("\n")

	// Per-step table
	b.WriteString("### Step Results\n\n")
	b.WriteString("| # | Step | Status | Confidence | Timestamp |\n")
	b.WriteString("|---|------|--------|------------|----------|\n")

	for _, v := range r.Verdicts {
		icon := "✅"
		switch v.Status {
		case models.StepDeviation:
			icon = "❌"
		case models.StepUncertain:
			icon = "⚠️"
		}
		ts := "—"
		if v.Timestamp != nil {
			ts = fmt.Sprintf("%.1fs", *v.Timestamp)
		}
		b.WriteString(fmt.Sprintf("| %d | %s | %s | %.2f | %s |\n",
			v.Step.Number, escapeTableCell(v.Step.Description), icon, v.Confidence, ts))
	}
	b.WriteString("\n")

	// Flagged step details
	if r.Deviated > 0 || r.Uncertain > 0 {
		b.WriteString("### Flagged Step Details\n\n")
		for _, v := range r.Verdicts {
			if v.Status == models.StepObserved {
				continue
			}
			b.WriteString(fmt.Sprintf("#### Step %d: %s\n\n", v.Step.Number, v.Step.Description))
			b.WriteString(fmt.Sprintf("**Verdict:** %s (confidence %.2f)\n\n", v.Status, v.Confidence))
			if v.EvidenceText != "" {
				b.WriteString(fmt.Sprintf("- Evidence: %s\n", v.EvidenceText))
			}
			for _, d := range v.Decisions {
				if d.Reasoning != "" {
					b.WriteString(fmt.Sprintf("- [%s] %s\n", d.Source, d.Reasoning))
				}
			}
			b.WriteString("\n")
		}
	}

	if r.Narrative != "" {
		b.WriteString("### Session Narrative\n\n")
		b.WriteString(r.Narrative)
		b.WriteString("\n\n")
	}

	// Footer with metadata
	b.WriteString("---\n\n")
	b.WriteString(fmt.Sprintf("**Plan:** %s | **Generated:** %s\n",
		planLabel(r), r.GeneratedAt.UTC().Format(time.RFC3339)))

	return b.String()
}

func planLabel(r *models.Report) string {
	if r.PlanName != "" {
		return r.PlanName
	}
	return "unnamed"
}

// escapeTableCell keeps markdown table rows intact when a step description
// contains pipes or newlines.
func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
