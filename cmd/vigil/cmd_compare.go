package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/richardpark-msft/vigil/internal/baseline"
	"github.com/richardpark-msft/vigil/internal/models"
)

var compareOutputFormat string

func newCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <baseline.json> <current.json>",
		Short: "Compare two verification report files",
		Long: `Compare a baseline verification report against a later run of the same plan.

Loads two report JSON files and classifies every step's transition: regressed
(was observed, now deviates), fixed (was flagged, now observed), shifted
(moved to or from uncertain), or unchanged. An overall drift score in [-1, 1]
summarizes the change; negative drift means the current run is worse.`,
		Args: cobra.ExactArgs(2),
		RunE: compareCommandE,
	}

	cmd.Flags().StringVarP(&compareOutputFormat, "format", "f", "table", "Output format: table or json")

	return cmd
}

func compareCommandE(_ *cobra.Command, args []string) error {
	if compareOutputFormat != "table" && compareOutputFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", compareOutputFormat)
	}

	baseReport, err := loadReportFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", args[0], err)
	}
	currReport, err := loadReportFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", args[1], err)
	}

	cmp := baseline.Compare(baseReport, currReport)

	if compareOutputFormat == "json" {
		return printComparisonJSON(cmp)
	}
	printComparisonTable(args[0], args[1], cmp)
	return nil
}

func loadReportFile(path string) (*models.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r models.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func printComparisonTable(basePath, currPath string, c *baseline.Comparison) {
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println(" COMPARISON REPORT")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()

	fmt.Printf("  Baseline: %s  (plan: %s)\n", basePath, c.BaselinePlan)
	fmt.Printf("  Current:  %s  (plan: %s)\n", currPath, c.CurrentPlan)
	fmt.Println()

	fmt.Println(strings.Repeat("-", 70))
	fmt.Println(" AGGREGATE")
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("  %-20s  %-9.1f%%  →  %.1f%%  (%+.1f%%)\n", "Pass Rate",
		c.PassRateFrom, c.PassRateTo, c.PassRateTo-c.PassRateFrom)
	fmt.Printf("  %-20s  %+.4f  %s\n", "Drift", c.Drift, driftLabel(c.Drift))
	fmt.Printf("  %-20s  %d regressed, %d fixed, %d shifted, %d unchanged\n",
		"Transitions", c.Regressed, c.Fixed, c.Shifted, c.Unchanged)
	fmt.Println()

	fmt.Println(strings.Repeat("-", 70))
	fmt.Println(" PER-STEP TRANSITIONS")
	fmt.Println(strings.Repeat("-", 70))

	const descWidth = 30
	fmt.Printf("  %s  %-10s  %-10s  %-10s  Δconf\n", padRight("Step", descWidth+4), "Before", "After", "Change")

	for _, tr := range c.Transitions {
		desc := truncateText(tr.Description, descWidth)
		icon := " "
		switch tr.Transition {
		case baseline.TransitionRegressed:
			icon = "↓"
		case baseline.TransitionFixed:
			icon = "↑"
		case baseline.TransitionShifted:
			icon = "~"
		}
		fmt.Printf("  %2d. %s  %-10s  %-10s  %s %-8s  %+.2f\n",
			tr.StepNumber, padRight(desc, descWidth),
			string(tr.Before), string(tr.After),
			icon, string(tr.Transition), tr.ConfidenceDelta)
	}

	if len(c.OnlyBaseline) > 0 {
		fmt.Printf("\n  Only in baseline: steps %v\n", c.OnlyBaseline)
	}
	if len(c.OnlyCurrent) > 0 {
		fmt.Printf("  Only in current:  steps %v\n", c.OnlyCurrent)
	}
	fmt.Println()
}

// driftLabel renders a plain-language reading of the drift score.
func driftLabel(drift float64) string {
	switch {
	case drift > 0.05:
		return "(improved)"
	case drift < -0.05:
		return "(regressed)"
	default:
		return "(stable)"
	}
}

func printComparisonJSON(c *baseline.Comparison) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal comparison report: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
