package models

import "sort"

// Frame is a single sampled frame of the session video.
type Frame struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	Path      string  `json:"path,omitempty"`
}

// ObservedEvent is one event extracted from the session recording.
// Events are immutable once the timeline is built.
type ObservedEvent struct {
	Timestamp   float64   `json:"timestamp" mapstructure:"timestamp"`
	FrameIndex  int       `json:"frame_index" mapstructure:"frame_index"`
	Kind        EventKind `json:"type" mapstructure:"type"`
	Description string    `json:"description" mapstructure:"description"`
	UIElements  []string  `json:"ui_elements,omitempty" mapstructure:"ui_elements"`
	VisibleText []string  `json:"visible_text,omitempty" mapstructure:"visible_text"`
	Confidence  float64   `json:"confidence" mapstructure:"confidence"`
}

// Timeline is the full chronological record of one session recording.
// It is built once per verification run and read-only afterward.
type Timeline struct {
	TotalDuration   float64         `json:"total_duration" mapstructure:"total_duration"`
	FrameCount      int             `json:"frame_count" mapstructure:"frame_count"`
	Events          []ObservedEvent `json:"events" mapstructure:"events"`
	Narrative       string          `json:"narrative,omitempty" mapstructure:"narrative"`
	KeyObservations []string        `json:"key_observations,omitempty" mapstructure:"key_observations"`
}

// Normalize makes a freshly decoded timeline safe to index: event order by
// timestamp is assumed non-decreasing but not guaranteed, so it is re-sorted
// here, and confidences are clamped to [0, 1].
func (t *Timeline) Normalize() {
	sort.SliceStable(t.Events, func(i, j int) bool {
		return t.Events[i].Timestamp < t.Events[j].Timestamp
	})
	for i := range t.Events {
		t.Events[i].Confidence = ClampConfidence(t.Events[i].Confidence)
		if t.Events[i].Kind == "" {
			t.Events[i].Kind = EventUIChange
		}
	}
}

// Empty reports whether the timeline carries no events at all.
func (t *Timeline) Empty() bool {
	return t == nil || len(t.Events) == 0
}

// StepEvidence is the deterministic match result for one planned step.
// It is derived from the timeline and consumed by triage and aggregation only.
type StepEvidence struct {
	Found          bool            `json:"found"`
	Confidence     float64         `json:"confidence"`
	Timestamp      *float64        `json:"timestamp,omitempty"`
	FrameIndex     *int            `json:"frame_index,omitempty"`
	MatchingEvents []ObservedEvent `json:"matching_events,omitempty"`
	Description    string          `json:"description,omitempty"`
	Reasoning      string          `json:"reasoning,omitempty"`
}

// ClampConfidence bounds a confidence value to [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
