// Package vision builds the semantic timeline of a session recording. One
// comprehensive provider call covers the whole video: a strategic subset of
// the sampled frames goes out with a single analysis prompt, and the response
// comes back as a JSON timeline of observed events plus a narrative.
//
// Analysis failures degrade, they never abort: an unrecoverable response
// produces an empty timeline and the deterministic matcher simply finds
// nothing.
package vision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"

	"github.com/richardpark-msft/vigil/internal/llm"
	"github.com/richardpark-msft/vigil/internal/models"
	"github.com/richardpark-msft/vigil/internal/recovery"
)

// DefaultKeyframeCap bounds how many frames are sent with the single
// timeline call.
const DefaultKeyframeCap = 15

const defaultTemperature = 0.1

// Analyst turns sampled frames into a models.Timeline via an LLM provider.
type Analyst struct {
	provider    llm.Provider
	keyframeCap int
	maxTokens   int
	temperature float64
}

// Option configures an Analyst.
type Option func(*Analyst)

// WithKeyframeCap overrides the maximum number of frames sent to the provider.
func WithKeyframeCap(n int) Option {
	return func(a *Analyst) {
		if n > 0 {
			a.keyframeCap = n
		}
	}
}

// WithMaxTokens sets the response token budget for the timeline call.
func WithMaxTokens(n int) Option {
	return func(a *Analyst) { a.maxTokens = n }
}

// WithTemperature overrides the sampling temperature for the timeline call.
func WithTemperature(t float64) Option {
	return func(a *Analyst) { a.temperature = t }
}

// NewAnalyst creates an Analyst bound to the given provider.
func NewAnalyst(provider llm.Provider, opts ...Option) *Analyst {
	a := &Analyst{
		provider:    provider,
		keyframeCap: DefaultKeyframeCap,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildTimeline selects key frames, sends them with the analysis prompt, and
// decodes the response. Provider transport failures are returned as errors;
// an unusable response yields an empty timeline and no error.
func (a *Analyst) BuildTimeline(ctx context.Context, frames []models.Frame, steps []models.PlannedStep, ocrText map[int][]string) (*models.Timeline, error) {
	keyframes := SelectKeyframes(frames, a.keyframeCap)
	if len(keyframes) == 0 {
		slog.Warn("No frames available for timeline analysis")
		return EmptyTimeline(nil), nil
	}

	images := make([]llm.Image, 0, len(keyframes))
	for _, frame := range keyframes {
		if frame.Path == "" {
			continue
		}
		data, err := os.ReadFile(frame.Path)
		if err != nil {
			slog.Warn("Skipping unreadable frame", "path", frame.Path, "error", err)
			continue
		}
		images = append(images, llm.Image{MIMEType: mimeTypeFor(frame.Path), Data: data})
	}
	if len(images) == 0 {
		slog.Error("No readable frame files, skipping timeline analysis")
		return EmptyTimeline(keyframes), nil
	}

	slog.Info("Starting comprehensive video analysis", "frames", len(images), "steps", len(steps))

	temperature := a.temperature
	resp, err := a.provider.Generate(ctx, &llm.Request{
		Prompt:      buildTimelinePrompt(keyframes, steps, ocrText),
		Images:      images,
		MaxTokens:   a.maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("timeline analysis failed: %w", err)
	}

	timeline := decodeTimeline(resp.Content, keyframes)
	slog.Info("Timeline created", "events", len(timeline.Events), "observations", len(timeline.KeyObservations))
	return timeline, nil
}

// EmptyTimeline is the stand-in produced when analysis fails or returns
// nothing usable. Downstream matching treats it as "no events observed".
func EmptyTimeline(keyframes []models.Frame) *models.Timeline {
	return &models.Timeline{
		TotalDuration:   lastTimestamp(keyframes),
		FrameCount:      len(keyframes),
		Events:          []models.ObservedEvent{},
		Narrative:       "Error: Failed to analyze video",
		KeyObservations: []string{"Analysis failed - check logs for details"},
	}
}

// decodeTimeline recovers the response text into a normalized timeline.
// Events that fail to decode individually are skipped, not fatal.
func decodeTimeline(text string, keyframes []models.Frame) *models.Timeline {
	recovered, err := recovery.Recover(text)
	if err != nil {
		slog.Error("Timeline response unrecoverable", "error", err)
		return EmptyTimeline(keyframes)
	}
	if recovered.Strategy != "direct" {
		slog.Warn("Timeline response needed recovery", "strategy", recovered.Strategy)
	}

	payload, ok := recovered.Value.(map[string]any)
	if !ok {
		slog.Error("Timeline response is not a JSON object")
		return EmptyTimeline(keyframes)
	}

	timeline := &models.Timeline{
		TotalDuration: lastTimestamp(keyframes),
		FrameCount:    len(keyframes),
		Events:        []models.ObservedEvent{},
	}

	if narrative, ok := payload["narrative"].(string); ok {
		timeline.Narrative = narrative
	}
	if observations, ok := payload["key_observations"].([]any); ok {
		for _, obs := range observations {
			if s, ok := obs.(string); ok {
				timeline.KeyObservations = append(timeline.KeyObservations, s)
			}
		}
	}
	if events, ok := payload["events"].([]any); ok {
		for _, raw := range events {
			event, err := decodeEvent(raw)
			if err != nil {
				slog.Warn("Skipping undecodable timeline event", "error", err)
				continue
			}
			timeline.Events = append(timeline.Events, event)
		}
	}

	timeline.Normalize()
	return timeline
}

// decodeEvent converts one recovered event object into a typed event.
// Weak typing tolerates numbers arriving as strings or integers.
func decodeEvent(raw any) (models.ObservedEvent, error) {
	var event models.ObservedEvent
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &event,
	})
	if err != nil {
		return event, err
	}
	if err := decoder.Decode(raw); err != nil {
		return event, err
	}
	return event, nil
}

func lastTimestamp(keyframes []models.Frame) float64 {
	if len(keyframes) == 0 {
		return 0
	}
	return keyframes[len(keyframes)-1].Timestamp
}

func mimeTypeFor(path string) string {
	if filepath.Ext(path) == ".png" {
		return "image/png"
	}
	return "image/jpeg"
}
