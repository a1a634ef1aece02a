package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/richardpark-msft/vigil/internal/projectconfig"
	"github.com/richardpark-msft/vigil/internal/validation"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [plan.yaml | plans-dir]",
		Short: "Validate test plans against the plan schema",
		Long: `Validate test plan files against the plan schema.

With a file argument, checks that single plan. With a directory, checks every
.yaml/.yml file in it. With no arguments, checks the project's plans
directory from .vigil.yaml.

When a plan's session block points at a timeline JSON file, the timeline is
validated against the timeline schema too.`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runCheck,
		SilenceErrors: true,
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

// planCheck is the validation result for one plan file.
type planCheck struct {
	Path           string   `json:"path"`
	Valid          bool     `json:"valid"`
	PlanErrors     []string `json:"planErrors,omitempty"`
	TimelineErrors []string `json:"timelineErrors,omitempty"`
	LoadError      string   `json:"loadError,omitempty"`
}

type checkJSONReport struct {
	Timestamp string      `json:"timestamp"`
	Plans     []planCheck `json:"plans"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: expected text or json", format)
	}

	paths, err := resolvePlanPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no plan files found")
	}

	var checks []planCheck
	failed := 0
	for _, path := range paths {
		c := checkPlan(path)
		if !c.Valid {
			failed++
		}
		checks = append(checks, c)
	}

	if format == "json" {
		if err := outputCheckJSON(cmd, checks); err != nil {
			return err
		}
	} else {
		displayChecks(cmd, checks)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d plan(s) failed validation", failed, len(checks))
	}
	return nil
}

// resolvePlanPaths expands the single optional argument into a list of plan
// files. No argument means the configured plans directory.
func resolvePlanPaths(args []string) ([]string, error) {
	target := ""
	if len(args) > 0 {
		target = args[0]
	} else {
		cfg, err := projectconfig.Load(".")
		if err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
		target = cfg.Paths.Plans
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", target, err)
	}
	if !info.IsDir() {
		return []string{target}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(target, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func checkPlan(path string) planCheck {
	c := planCheck{Path: path}

	planErrs, timelineErrs, err := validation.ValidatePlanFile(path)
	if err != nil {
		c.LoadError = err.Error()
		return c
	}
	c.PlanErrors = planErrs
	c.TimelineErrors = timelineErrs
	c.Valid = len(planErrs) == 0 && len(timelineErrs) == 0
	return c
}

//nolint:errcheck // display function — fmt.Fprintf errors to stdout are not actionable
func displayChecks(cmd *cobra.Command, checks []planCheck) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "\n🔍 Plan Validation\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	for _, c := range checks {
		if c.Valid {
			fmt.Fprintf(w, "✅ %s\n", c.Path)
			continue
		}
		fmt.Fprintf(w, "❌ %s\n", c.Path)
		if c.LoadError != "" {
			fmt.Fprintf(w, "   ❌  %s\n", c.LoadError)
		}
		for _, e := range c.PlanErrors {
			fmt.Fprintf(w, "   ❌  %s\n", e)
		}
		for _, e := range c.TimelineErrors {
			fmt.Fprintf(w, "   ⚠️  timeline: %s\n", e)
		}
	}

	if len(checks) > 1 {
		printCheckSummaryTable(w, checks)
	}
	fmt.Fprintf(w, "\n")
}

//nolint:errcheck
func printCheckSummaryTable(w interface{ Write([]byte) (int, error) }, checks []planCheck) {
	const maxNameWidth = 40
	const minNameWidth = 10

	// Compute dynamic column width from the longest plan path.
	nameWidth := len("Plan")
	for _, c := range checks {
		if l := len(c.Path); l > nameWidth {
			nameWidth = l
		}
	}
	if nameWidth > maxNameWidth {
		nameWidth = maxNameWidth
	}
	if nameWidth < minNameWidth {
		nameWidth = minNameWidth
	}

	const colSchema = 8
	const colTimeline = 10
	totalWidth := nameWidth + colSchema + colTimeline + 4

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("═", totalWidth))
	fmt.Fprintf(w, " CHECK SUMMARY\n")
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("═", totalWidth))

	fmt.Fprintf(w, "%s  %s  %s\n",
		padRight("Plan", nameWidth),
		padRight("Schema", colSchema),
		"Timeline")
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", totalWidth))

	for _, c := range checks {
		schemaStatus := "✅"
		if c.LoadError != "" || len(c.PlanErrors) > 0 {
			schemaStatus = "❌"
		}
		timelineStatus := "—"
		if len(c.TimelineErrors) > 0 {
			timelineStatus = "❌"
		} else if c.Valid {
			timelineStatus = "✅"
		}
		fmt.Fprintf(w, "%s  %s  %s\n",
			padRight(truncateText(c.Path, nameWidth), nameWidth),
			padRight(schemaStatus, colSchema),
			timelineStatus)
	}
	fmt.Fprintf(w, "\n")
}

// outputCheckJSON marshals the results as JSON to the command's stdout.
func outputCheckJSON(cmd *cobra.Command, checks []planCheck) error {
	report := checkJSONReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Plans:     checks,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), buf.String())
	return err
}
