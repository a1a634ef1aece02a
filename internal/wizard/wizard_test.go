package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richardpark-msft/vigil/internal/models"
	"gopkg.in/yaml.v3"
)

func TestGeneratePlanYAML_BasicSpec(t *testing.T) {
	spec := &PlanSpec{
		Name:        "checkout-flow",
		Description: "Verify the checkout happy path.",
		Video:       "recordings/checkout.mp4",
		Steps: []string{
			"Open the product page",
			"Add the product to the cart",
		},
	}

	result, err := GeneratePlanYAML(spec)
	require.NoError(t, err)

	assert.Contains(t, result, "name: checkout-flow")
	assert.Contains(t, result, "Verify the checkout happy path.")
	assert.Contains(t, result, "video: recordings/checkout.mp4")
	assert.Contains(t, result, "number: 1")
	assert.Contains(t, result, "description: Open the product page")
	assert.Contains(t, result, "number: 2")
	assert.Contains(t, result, "description: Add the product to the cart")
}

func TestGeneratePlanYAML_LoadsAsValidPlan(t *testing.T) {
	spec := &PlanSpec{
		Name:  "smoke",
		Steps: []string{"Open the home page"},
	}

	result, err := GeneratePlanYAML(spec)
	require.NoError(t, err)

	var plan models.TestPlan
	require.NoError(t, yaml.Unmarshal([]byte(result), &plan))
	require.NoError(t, plan.Validate())
	assert.Equal(t, "smoke", plan.Name)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, 1, plan.Steps[0].Number)
}

func TestGeneratePlanYAML_OptionalFieldsOmitted(t *testing.T) {
	spec := &PlanSpec{
		Name:  "minimal",
		Steps: []string{"Only step"},
	}

	result, err := GeneratePlanYAML(spec)
	require.NoError(t, err)

	assert.Contains(t, result, "description: Only step")
	assert.NotContains(t, result, "description: >")
	assert.NotContains(t, result, "session:")
	assert.NotContains(t, result, "action:")
	assert.NotContains(t, result, "expected_outcome:")
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "checkout", false},
		{"valid kebab", "checkout-flow-2", false},
		{"empty", "", true},
		{"uppercase", "CheckoutFlow", true},
		{"spaces", "checkout flow", true},
		{"leading hyphen", "-checkout", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"single", "hello", []string{"hello"}},
		{"multiple", "a\nb\nc", []string{"a", "b", "c"}},
		{"with blanks", "a\n\n b \n \nc", []string{"a", "b", "c"}},
		{"whitespace only", "  \n  \n  ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitLines(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
