// Package report renders a verification report for its consumers: indented
// JSON for machines, markdown for humans and pull requests, a standalone
// HTML page for browsers, and JUnit XML for CI systems.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/richardpark-msft/vigil/internal/models"
)

// evidenceCellCap bounds evidence text inside the results table. The full
// text still appears in the detailed analysis section.
const evidenceCellCap = 160

// WriteJSON persists the report as indented JSON.
func WriteJSON(r *models.Report, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Markdown renders the report as a markdown document: an executive summary,
// the session narrative, a per-step results table, and a detailed analysis
// section for every step.
func Markdown(r *models.Report) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Test Verification Report: %s\n\n", planName(r)))

	b.WriteString("## Executive Summary\n\n")
	b.WriteString(fmt.Sprintf("- **Overall Status**: %s %s\n", runEmoji(r.OverallStatus), r.OverallStatus))
	b.WriteString(fmt.Sprintf("- **Total Steps**: %d\n", r.Total))
	b.WriteString(fmt.Sprintf("- **Observed**: %d ✅\n", r.Observed))
	b.WriteString(fmt.Sprintf("- **Deviations**: %d ❌\n", r.Deviated))
	b.WriteString(fmt.Sprintf("- **Uncertain**: %d ⚠️\n", r.Uncertain))
	b.WriteString(fmt.Sprintf("- **Pass Rate**: %.1f%%\n", r.PassRate))
	if !r.GeneratedAt.IsZero() {
		b.WriteString(fmt.Sprintf("- **Generated**: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05")))
	}
	b.WriteString("\n")

	if r.Summary != "" {
		b.WriteString(r.Summary + "\n\n")
	}

	if r.Narrative != "" {
		b.WriteString("## Session Narrative\n\n")
		b.WriteString(r.Narrative + "\n\n")
	}

	b.WriteString("## Verification Results\n\n")
	b.WriteString("| # | Step | Status | Confidence | Evidence |\n")
	b.WriteString("|---|------|--------|------------|----------|\n")
	for _, v := range r.Verdicts {
		b.WriteString(fmt.Sprintf("| %d | %s | %s %s | %.0f%% | %s |\n",
			v.Step.Number,
			tableCell(v.Step.Description),
			stepEmoji(v.Status), v.Status,
			v.Confidence*100,
			tableCell(v.EvidenceText)))
	}
	b.WriteString("\n")

	b.WriteString("## Detailed Step Analysis\n\n")
	for _, v := range r.Verdicts {
		writeStepDetail(&b, v)
	}

	meta := make([]string, 0, 3)
	if r.Provider != "" {
		meta = append(meta, fmt.Sprintf("**Provider:** %s", r.Provider))
	}
	if r.Model != "" {
		meta = append(meta, fmt.Sprintf("**Model:** %s", r.Model))
	}
	if r.Duration > 0 {
		meta = append(meta, fmt.Sprintf("**Duration:** %s", formatDuration(time.Duration(r.Duration*float64(time.Second)))))
	}
	if len(meta) > 0 {
		b.WriteString(strings.Join(meta, " | ") + "\n")
	}

	return b.String()
}

// WriteMarkdown renders the report as markdown and writes it to path.
func WriteMarkdown(r *models.Report, path string) error {
	return os.WriteFile(path, []byte(Markdown(r)), 0644)
}

func writeStepDetail(b *strings.Builder, v models.StepVerdict) {
	b.WriteString(fmt.Sprintf("### %s Step %d: %s\n\n", detailEmoji(v.Status), v.Step.Number, v.Step.Description))

	if v.Step.Action != "" {
		b.WriteString(fmt.Sprintf("- **Action**: %s\n", v.Step.Action))
	}
	b.WriteString(fmt.Sprintf("- **Status**: %s\n", strings.ToUpper(string(v.Status))))
	b.WriteString(fmt.Sprintf("- **Confidence**: %.1f%%\n", v.Confidence*100))
	if v.Timestamp != nil {
		b.WriteString(fmt.Sprintf("- **Video Timestamp**: %.2fs\n", *v.Timestamp))
	}
	b.WriteString("\n")

	if v.EvidenceText != "" {
		b.WriteString(fmt.Sprintf("**Evidence**: %s\n\n", v.EvidenceText))
	}

	if len(v.Decisions) > 0 {
		b.WriteString("**Decisions**:\n\n")
		for _, d := range v.Decisions {
			b.WriteString(fmt.Sprintf("- %s: %s (confidence: %.1f%%)\n", d.Source, d.Reasoning, d.Confidence*100))
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
}

func planName(r *models.Report) string {
	if r.PlanName != "" {
		return r.PlanName
	}
	return "Unnamed Session"
}

// tableCell flattens text into a single markdown table cell.
func tableCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > evidenceCellCap {
		s = string(runes[:evidenceCellCap]) + "..."
	}
	if s == "" {
		return "-"
	}
	return s
}

func stepEmoji(status models.StepStatus) string {
	switch status {
	case models.StepObserved:
		return "✅"
	case models.StepDeviation:
		return "❌"
	default:
		return "⚠️"
	}
}

// Section headers use a warning sign for anything not observed.
func detailEmoji(status models.StepStatus) string {
	if status == models.StepObserved {
		return "✅"
	}
	return "⚠️"
}

func runEmoji(status models.RunStatus) string {
	switch status {
	case models.RunPassed:
		return "✅"
	case models.RunFailed:
		return "❌"
	default:
		return "⚠️"
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}
