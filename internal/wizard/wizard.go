// Package wizard collects the fields of a new test plan through an
// interactive form and renders the plan YAML scaffold.
package wizard

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// PlanSpec holds all fields collected during the interactive wizard.
type PlanSpec struct {
	Name        string
	Description string
	Video       string
	Steps       []string
}

var planNamePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateName checks that a plan name is kebab-case.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("plan name is required")
	}
	if !planNamePattern.MatchString(name) {
		return fmt.Errorf("plan name must be kebab-case (lowercase letters, digits, hyphens): %q", name)
	}
	return nil
}

const planYAMLTemplate = `name: {{ .Name }}
{{- if .Description }}
description: >
  {{ .Description }}
{{- end }}
{{- if .Video }}
session:
  video: {{ .Video }}
{{- end }}
steps:
{{- range $i, $s := .Steps }}
  - number: {{ inc $i }}
    description: {{ $s }}
{{- end }}
`

// RunPlanWizard runs an interactive huh form to collect plan metadata.
// If initialName is non-empty, it pre-populates the name field.
func RunPlanWizard(in io.Reader, out io.Writer, initialName string) (*PlanSpec, error) {
	var (
		name        = initialName
		description string
		video       string
		stepsRaw    string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Plan name").
				Description("A kebab-case name for your test plan").
				Placeholder("checkout-flow").
				Value(&name).
				Validate(func(s string) error {
					return ValidateName(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Description").
				Description("What does this session verify?").
				Placeholder("Verify the checkout happy path").
				Value(&description),
			huh.NewInput().
				Title("Session video").
				Description("Path to the recorded session video (optional)").
				Placeholder("recordings/checkout.mp4").
				Value(&video),
			huh.NewText().
				Title("Planned steps").
				Description("One step description per line").
				Placeholder("Open the product page\nAdd the product to the cart").
				Value(&stepsRaw).
				Validate(func(s string) error {
					if len(splitLines(s)) == 0 {
						return fmt.Errorf("at least one step is required")
					}
					return nil
				}),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	return &PlanSpec{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Video:       strings.TrimSpace(video),
		Steps:       splitLines(stepsRaw),
	}, nil
}

// GeneratePlanYAML renders a plan YAML scaffold from the given spec.
func GeneratePlanYAML(spec *PlanSpec) (string, error) {
	tmpl, err := template.New("plan").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		Parse(planYAMLTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, spec); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

func splitLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
