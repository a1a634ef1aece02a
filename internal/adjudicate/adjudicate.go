// Package adjudicate runs the semantic verification pass over the steps
// triage has flagged. Below the batch threshold every step gets its own
// provider call, and each verdict is folded into the context of the next
// call; at or above it a single batched call covers all flagged steps,
// matched back by position.
//
// Provider and parse failures degrade to conservative uncertain verdicts.
// Only context cancellation aborts the pass.
package adjudicate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/richardpark-msft/vigil/internal/aggregate"
	"github.com/richardpark-msft/vigil/internal/llm"
	"github.com/richardpark-msft/vigil/internal/models"
)

// batchThreshold is the flagged-step count at which verification switches
// from per-step calls to one batched call.
const batchThreshold = 5

const defaultTemperature = 0.1

// Item pairs a flagged step with its deterministic evidence.
type Item struct {
	Step     models.PlannedStep
	Evidence models.StepEvidence
}

// Adjudicator decides flagged steps through an LLM provider.
type Adjudicator struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
	onVerdict   func(models.StepVerdict)
}

// Option configures an Adjudicator.
type Option func(*Adjudicator)

// WithMaxTokens sets the response token budget per call.
func WithMaxTokens(n int) Option {
	return func(a *Adjudicator) { a.maxTokens = n }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Adjudicator) { a.temperature = t }
}

// WithVerdictCallback registers a function invoked as each verdict lands,
// used for progress reporting.
func WithVerdictCallback(fn func(models.StepVerdict)) Option {
	return func(a *Adjudicator) { a.onVerdict = fn }
}

// New creates an Adjudicator bound to the given provider.
func New(provider llm.Provider, opts ...Option) *Adjudicator {
	a := &Adjudicator{
		provider:    provider,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Verify adjudicates all flagged items. The prior verdicts give the model
// temporal context; the returned verdicts cover exactly the given items, in
// order.
func (a *Adjudicator) Verify(ctx context.Context, items []Item, prior []models.StepVerdict, narrative string) ([]models.StepVerdict, error) {
	if len(items) == 0 {
		return nil, nil
	}

	if len(items) < batchThreshold {
		slog.Info("Semantic verification mode: per-step", "steps", len(items))
		return a.sequential(ctx, items, prior, narrative)
	}
	slog.Info("Semantic verification mode: batch", "steps", len(items))
	return a.batch(ctx, items, prior, narrative)
}

// sequential verifies one step per call, folding each verdict into the
// context of the next.
func (a *Adjudicator) sequential(ctx context.Context, items []Item, prior []models.StepVerdict, narrative string) ([]models.StepVerdict, error) {
	verdicts := make([]models.StepVerdict, 0, len(items))
	accumulated := slices.Clone(prior)

	for _, item := range items {
		verdict, err := a.verifyOne(ctx, item, accumulated, narrative)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, verdict)
		accumulated = append(accumulated, verdict)
		a.report(verdict)
	}
	return verdicts, nil
}

func (a *Adjudicator) verifyOne(ctx context.Context, item Item, prior []models.StepVerdict, narrative string) (models.StepVerdict, error) {
	slog.Info("Semantic verification", "step", item.Step.Number, "description", clip(item.Step.Description, priorDescriptionCap))

	temperature := a.temperature
	resp, err := a.provider.Generate(ctx, &llm.Request{
		Prompt:      buildStepPrompt(item, prior, narrative),
		MaxTokens:   a.maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return models.StepVerdict{}, ctx.Err()
		}
		slog.Error("Semantic verification call failed", "step", item.Step.Number, "error", err)
		return aggregate.Fallback(item.Step, item.Evidence, err), nil
	}

	adj, err := parseAdjudication(resp.Content)
	if err != nil {
		slog.Warn("Failed to parse adjudication response", "step", item.Step.Number, "error", err)
		return aggregate.Fallback(item.Step, item.Evidence, fmt.Errorf("Parse error: %w", err)), nil
	}
	return aggregate.FromAdjudication(item.Step, item.Evidence, adj, false), nil
}

// batch verifies all items in a single call. A response the parser cannot
// use falls back for every item; a short response falls back only for the
// unmatched tail.
func (a *Adjudicator) batch(ctx context.Context, items []Item, prior []models.StepVerdict, narrative string) ([]models.StepVerdict, error) {
	temperature := a.temperature
	resp, err := a.provider.Generate(ctx, &llm.Request{
		Prompt:      buildBatchPrompt(items, prior, narrative),
		MaxTokens:   a.maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Error("Batch semantic verification call failed", "error", err)
		return a.fallbackAll(items, err), nil
	}

	adjudications, err := parseBatchAdjudication(resp.Content)
	if err != nil {
		slog.Warn("Failed to parse batch adjudication response", "error", err)
		return a.fallbackAll(items, fmt.Errorf("Batch parse error: %w", err)), nil
	}

	verdicts := make([]models.StepVerdict, 0, len(items))
	for i, item := range items {
		var verdict models.StepVerdict
		if i < len(adjudications) {
			verdict = aggregate.FromAdjudication(item.Step, item.Evidence, adjudications[i], true)
		} else {
			verdict = aggregate.Fallback(item.Step, item.Evidence, errors.New("Missing in batch response"))
		}
		verdicts = append(verdicts, verdict)
		a.report(verdict)
	}
	return verdicts, nil
}

func (a *Adjudicator) fallbackAll(items []Item, err error) []models.StepVerdict {
	verdicts := make([]models.StepVerdict, 0, len(items))
	for _, item := range items {
		verdict := aggregate.Fallback(item.Step, item.Evidence, err)
		verdicts = append(verdicts, verdict)
		a.report(verdict)
	}
	return verdicts
}

func (a *Adjudicator) report(verdict models.StepVerdict) {
	if a.onVerdict != nil {
		a.onVerdict(verdict)
	}
}
