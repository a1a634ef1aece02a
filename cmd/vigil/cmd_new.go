package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/richardpark-msft/vigil/internal/projectconfig"
	"github.com/richardpark-msft/vigil/internal/wizard"
)

func newNewCommand() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "new <plan-name>",
		Short: "Create a new test plan",
		Long: `Create a new test plan YAML scaffold.

When running in a terminal (TTY), launches an interactive wizard to collect
the plan description, session video, and step list. In non-interactive
environments (CI, pipes), a commented scaffold with placeholder steps is
written instead.

The plan lands in the project's plans directory (from .vigil.yaml) unless
--dir is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommandE(cmd, args[0], outDir)
		},
	}

	cmd.Flags().StringVarP(&outDir, "dir", "d", "", "Directory to write the plan into")

	return cmd
}

func newCommandE(cmd *cobra.Command, planName, outDir string) error {
	if err := wizard.ValidateName(planName); err != nil {
		return err
	}

	if outDir == "" {
		cfg, err := projectconfig.Load(".")
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		outDir = cfg.Paths.Plans
	}

	var planYAML string
	// Check TTY from the command's input stream, not os.Stdin directly.
	inReader := cmd.InOrStdin()
	isTTY := false
	if f, ok := inReader.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	if isTTY {
		spec, err := wizard.RunPlanWizard(cmd.InOrStdin(), cmd.OutOrStdout(), planName)
		if err != nil {
			return err
		}
		if spec.Name != planName {
			return fmt.Errorf("wizard name %q does not match CLI argument %q", spec.Name, planName)
		}
		content, err := wizard.GeneratePlanYAML(spec)
		if err != nil {
			return fmt.Errorf("failed to generate plan: %w", err)
		}
		planYAML = content
	} else {
		content, err := wizard.GeneratePlanYAML(defaultPlanSpec(planName))
		if err != nil {
			return fmt.Errorf("failed to generate plan: %w", err)
		}
		planYAML = content
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create plans directory: %w", err)
	}

	planPath := filepath.Join(outDir, planName+".yaml")
	if _, err := os.Stat(planPath); err == nil {
		return fmt.Errorf("plan already exists: %s", planPath)
	}

	if err := os.WriteFile(planPath, []byte(planYAML), 0o644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", planPath)                                    //nolint:errcheck
	fmt.Fprintf(cmd.OutOrStdout(), "Run it with: vigil run %s --video <session.mp4>\n", planPath) //nolint:errcheck
	return nil
}

// defaultPlanSpec is the non-interactive scaffold.
func defaultPlanSpec(name string) *wizard.PlanSpec {
	return &wizard.PlanSpec{
		Name:        name,
		Description: "Describe what this session verifies.",
		Steps: []string{
			"Open the application",
			"Perform the action under test",
			"Verify the expected outcome is visible",
		},
	}
}
