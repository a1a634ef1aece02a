package triage

import (
	"testing"

	"github.com/richardpark-msft/vigil/internal/models"
	"github.com/stretchr/testify/require"
)

func foundEvidence(conf float64, desc string) models.StepEvidence {
	return models.StepEvidence{Found: true, Confidence: conf, Description: desc}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		step         models.PlannedStep
		evidence     models.StepEvidence
		wantSemantic bool
		wantReason   string
	}{
		{
			name:         "DeterministicFastPath",
			step:         models.PlannedStep{Description: "Wait for the dashboard", Action: "wait for page load"},
			evidence:     foundEvidence(0.95, "Dashboard rendered with order summary"),
			wantSemantic: false,
		},
		{
			name:         "AssertionPrefix",
			step:         models.PlannedStep{Description: "Assertion: cart total equals $10", Action: "observe cart"},
			evidence:     foundEvidence(0.95, "Cart total shows $10"),
			wantSemantic: true,
			wantReason:   "assertion step",
		},
		{
			name:         "AssertionMarkerInAction",
			step:         models.PlannedStep{Description: "Cart total", Action: "verify that the total equals $10"},
			evidence:     foundEvidence(0.95, "Cart total shows $10"),
			wantSemantic: true,
			wantReason:   "assertion step",
		},
		{
			name:         "NegativeEvidenceDescription",
			step:         models.PlannedStep{Description: "Open the promotions tab", Action: "open promotions"},
			evidence:     foundEvidence(0.95, "Promotions tab is not visible in the navigation bar"),
			wantSemantic: true,
			wantReason:   "negative evidence description",
		},
		{
			name: "NegativeEvidenceReasoning",
			step: models.PlannedStep{Description: "Open the promotions tab", Action: "open promotions"},
			evidence: models.StepEvidence{
				Found:       true,
				Confidence:  0.95,
				Description: "Promotions tab highlighted",
				Reasoning:   "Best match notes the tab no longer responds",
			},
			wantSemantic: true,
			wantReason:   "negative evidence reasoning",
		},
		{
			name:         "BorderlineConfidence",
			step:         models.PlannedStep{Description: "Scroll to the reviews section", Action: "scroll down"},
			evidence:     foundEvidence(0.7, "Reviews section partially shown"),
			wantSemantic: true,
			wantReason:   "borderline confidence",
		},
		{
			name:         "MissingEvidenceResidualConfidence",
			step:         models.PlannedStep{Description: "Scroll to the reviews section", Action: "scroll down"},
			evidence:     models.StepEvidence{Found: false, Confidence: 0.35},
			wantSemantic: true,
			wantReason:   "missing evidence with residual confidence",
		},
		{
			name:         "MissingEvidenceNoConfidence",
			step:         models.PlannedStep{Description: "Scroll to the reviews section", Action: "scroll down"},
			evidence:     models.StepEvidence{Found: false, Confidence: 0},
			wantSemantic: false,
		},
		{
			name:         "InteractionVerb",
			step:         models.PlannedStep{Description: "Narrow results to hoodies", Action: "apply the category filter"},
			evidence:     foundEvidence(0.95, "Category filter applied, six results remain"),
			wantSemantic: true,
			wantReason:   "interaction step",
		},
		{
			name:         "InteractionVerbAsSubstring",
			step:         models.PlannedStep{Description: "Go to payment", Action: "navigate to checkout"},
			evidence:     foundEvidence(0.95, "Checkout page rendered"),
			wantSemantic: true,
			wantReason:   "interaction step",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.step, tt.evidence)
			require.Equal(t, tt.wantSemantic, got.Semantic)
			require.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestClassifyConfidenceBoundaries(t *testing.T) {
	step := models.PlannedStep{Description: "Wait for the dashboard", Action: "wait"}

	require.True(t, Classify(step, foundEvidence(0.5, "Dashboard rendered")).Semantic)
	require.True(t, Classify(step, foundEvidence(0.89, "Dashboard rendered")).Semantic)
	require.False(t, Classify(step, foundEvidence(0.9, "Dashboard rendered")).Semantic)
	require.False(t, Classify(step, foundEvidence(0.49, "Dashboard rendered")).Semantic)
}

func TestClassifyNegativeEvidenceOverridesHighConfidence(t *testing.T) {
	// Keyword matching can score a product name highly even when the page
	// says the opposite, so negative evidence wins over confidence.
	step := models.PlannedStep{
		Description: `Check the "Turtle Neck" product listing`,
		Action:      "observe search results",
	}
	evidence := foundEvidence(0.95, "Search results show Turtle Neck is not available")

	got := Classify(step, evidence)
	require.True(t, got.Semantic)
	require.Equal(t, "negative evidence description", got.Reason)
}

func TestClassifyIdempotent(t *testing.T) {
	step := models.PlannedStep{Description: "Open checkout", Action: "navigate"}
	evidence := foundEvidence(0.7, "Checkout page rendered")

	first := Classify(step, evidence)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, Classify(step, evidence))
	}
}
