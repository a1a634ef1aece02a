// Package baseline compares two verification reports for the same plan,
// classifying the per-step status transitions and computing an overall
// drift score.
package baseline

import (
	"math"

	"github.com/richardpark-msft/vigil/internal/models"
)

// Transition classifies how a step's status changed between two runs.
type Transition string

const (
	TransitionRegressed Transition = "regressed"
	TransitionFixed     Transition = "fixed"
	TransitionUnchanged Transition = "unchanged"
	TransitionShifted   Transition = "shifted" // moved to or from uncertain
)

// StepTransition records one step's status pair across the two reports.
type StepTransition struct {
	StepNumber      int               `json:"step_number"`
	Description     string            `json:"description"`
	Before          models.StepStatus `json:"before"`
	After           models.StepStatus `json:"after"`
	Transition      Transition        `json:"transition"`
	ConfidenceDelta float64           `json:"confidence_delta"`
}

// Comparison is the full result of comparing two reports.
type Comparison struct {
	BaselinePlan string           `json:"baseline_plan"`
	CurrentPlan  string           `json:"current_plan"`
	Regressed    int              `json:"regressed"`
	Fixed        int              `json:"fixed"`
	Shifted      int              `json:"shifted"`
	Unchanged    int              `json:"unchanged"`
	OnlyBaseline []int            `json:"only_in_baseline,omitempty"`
	OnlyCurrent  []int            `json:"only_in_current,omitempty"`
	PassRateFrom float64          `json:"pass_rate_from"`
	PassRateTo   float64          `json:"pass_rate_to"`
	Drift        float64          `json:"drift"`
	Transitions  []StepTransition `json:"transitions"`
}

// Compare builds the step-status transition matrix between a baseline report
// and a later report of the same plan. Steps present in only one report are
// listed separately and excluded from the transition counts.
func Compare(baseline, current *models.Report) *Comparison {
	cmp := &Comparison{
		BaselinePlan: baseline.PlanName,
		CurrentPlan:  current.PlanName,
		PassRateFrom: baseline.PassRate,
		PassRateTo:   current.PassRate,
	}

	before := make(map[int]models.StepVerdict, len(baseline.Verdicts))
	for _, v := range baseline.Verdicts {
		before[v.Step.Number] = v
	}

	seen := make(map[int]bool, len(current.Verdicts))
	for _, cv := range current.Verdicts {
		seen[cv.Step.Number] = true
		bv, ok := before[cv.Step.Number]
		if !ok {
			cmp.OnlyCurrent = append(cmp.OnlyCurrent, cv.Step.Number)
			continue
		}

		tr := StepTransition{
			StepNumber:      cv.Step.Number,
			Description:     cv.Step.Description,
			Before:          bv.Status,
			After:           cv.Status,
			Transition:      classify(bv.Status, cv.Status),
			ConfidenceDelta: cv.Confidence - bv.Confidence,
		}
		cmp.Transitions = append(cmp.Transitions, tr)

		switch tr.Transition {
		case TransitionRegressed:
			cmp.Regressed++
		case TransitionFixed:
			cmp.Fixed++
		case TransitionShifted:
			cmp.Shifted++
		default:
			cmp.Unchanged++
		}
	}

	for _, bv := range baseline.Verdicts {
		if !seen[bv.Step.Number] {
			cmp.OnlyBaseline = append(cmp.OnlyBaseline, bv.Step.Number)
		}
	}

	cmp.Drift = computeDrift(cmp)
	return cmp
}

// classify maps a status pair onto a Transition. Crossing the observed
// boundary in either direction is a regression or a fix; moving to or from
// uncertain without crossing it is a shift.
func classify(before, after models.StepStatus) Transition {
	if before == after {
		return TransitionUnchanged
	}
	if before == models.StepObserved {
		if after == models.StepDeviation {
			return TransitionRegressed
		}
		return TransitionShifted // observed → uncertain
	}
	if after == models.StepObserved {
		return TransitionFixed
	}
	// deviation ↔ uncertain
	if after == models.StepDeviation {
		return TransitionRegressed
	}
	return TransitionShifted
}

// computeDrift produces a [-1, 1] score. Negative means the current run is
// worse than the baseline. Regressions dominate; shifts count half.
func computeDrift(c *Comparison) float64 {
	total := c.Regressed + c.Fixed + c.Shifted + c.Unchanged
	if total == 0 {
		return 0
	}

	score := (float64(c.Fixed)-float64(c.Regressed)-0.5*float64(c.Shifted))/float64(total)*0.8 +
		(c.PassRateTo-c.PassRateFrom)/100*0.2

	return math.Max(-1.0, math.Min(1.0, score))
}
