// Package timeline matches planned test steps against the events observed in
// a session recording and shapes the resulting evidence.
package timeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/richardpark-msft/vigil/internal/models"
)

// floorDelta is how far past the previous matched step the search floor moves.
const floorDelta = 0.5

// kindBoosts adjusts match scores per event kind.
var kindBoosts = map[models.EventKind]float64{
	models.EventClick:     0.10,
	models.EventType:      0.10,
	models.EventUIChange:  0.05,
	models.EventAssertion: 0.15,
}

// Index answers keyword queries against a normalized timeline.
type Index struct {
	timeline *models.Timeline
}

// New builds an index over t. The timeline should already be normalized so
// events are in timestamp order.
func New(t *models.Timeline) *Index {
	return &Index{timeline: t}
}

// Match returns the events at or after minTimestamp that match the given
// keywords, best match first. In strict mode an event needs at least two
// keyword hits, otherwise one is enough.
func (ix *Index) Match(keywords []string, minTimestamp float64, strict bool) []models.ObservedEvent {
	if ix.timeline == nil {
		return nil
	}

	type scored struct {
		event models.ObservedEvent
		score float64
	}
	var matches []scored

	for _, event := range ix.timeline.Events {
		if event.Timestamp < minTimestamp {
			continue
		}

		descLower := strings.ToLower(event.Description)
		combined := combinedText(event)

		hits := 0
		for _, kw := range keywords {
			if strings.Contains(combined, strings.ToLower(kw)) {
				hits++
			}
		}
		if strict && hits < 2 {
			continue
		}
		if !strict && hits < 1 {
			continue
		}

		score := float64(hits) / float64(max(len(keywords), 1))
		for _, kw := range keywords {
			if len(kw) > 3 && strings.Contains(descLower, strings.ToLower(kw)) {
				score += 0.2
			}
		}
		score += kindBoosts[event.Kind]

		matches = append(matches, scored{event: event, score: (score + event.Confidence) / 2})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	events := make([]models.ObservedEvent, len(matches))
	for i, m := range matches {
		events[i] = m.event
	}
	return events
}

// Evidence matches one planned step against the timeline. prevMatched is the
// timestamp of the most recent step that was found, or nil when no earlier
// step matched; the search floor sits floorDelta past it so matches only move
// forward in time.
func (ix *Index) Evidence(step models.PlannedStep, prevMatched *float64) models.StepEvidence {
	keywords := ExtractKeywords(step.Description, step.Action)

	prev := 0.0
	if prevMatched != nil {
		prev = *prevMatched
	}
	floor := math.Max(0, prev+floorDelta)

	events := ix.Match(keywords, floor, true)
	if len(events) == 0 {
		events = ix.Match(keywords, floor, false)
	}
	if len(events) == 0 {
		head := keywords
		if len(head) > 5 {
			head = head[:5]
		}
		return models.StepEvidence{
			Found:       false,
			Confidence:  0,
			Description: "No matching events found in timeline",
			Reasoning: fmt.Sprintf("Searched for keywords: %s after timestamp %.1fs - no matches",
				strings.Join(head, ", "), floor),
		}
	}

	best := events[0]
	combined := combinedText(best)
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(combined, strings.ToLower(kw)) {
			matched++
		}
	}
	ratio := float64(matched) / float64(max(len(keywords), 1))

	confidence := best.Confidence
	switch {
	case ratio >= 0.7:
		confidence = math.Min(1, confidence+0.15)
	case ratio >= 0.5:
		confidence = math.Min(1, confidence+0.10)
	case ratio >= 0.3:
		confidence = math.Min(1, confidence+0.05)
	}
	if prevMatched != nil && *prevMatched > 0 && best.Timestamp >= *prevMatched {
		confidence = math.Min(1, confidence+0.05)
	}
	if len(events) == 1 && ratio < 0.4 {
		confidence = math.Max(0.5, confidence-0.2)
	}

	timestamp := best.Timestamp
	frame := best.FrameIndex
	return models.StepEvidence{
		Found:          true,
		Confidence:     confidence,
		Timestamp:      &timestamp,
		FrameIndex:     &frame,
		MatchingEvents: events,
		Description:    best.Description,
		Reasoning: fmt.Sprintf("Found %d matching events. Best match at %.1fs with %d/%d keyword matches. Evidence: %s",
			len(events), best.Timestamp, matched, len(keywords), evidenceSummary(events, keywords)),
	}
}

// evidenceSummary describes the top matching events for verdict reasoning.
func evidenceSummary(events []models.ObservedEvent, keywords []string) string {
	if len(events) == 0 {
		return "No events found"
	}
	if len(events) > 3 {
		events = events[:3]
	}

	parts := make([]string, 0, len(events))
	for i, event := range events {
		descLower := strings.ToLower(event.Description)
		var matched []string
		for _, kw := range keywords {
			if len(matched) == 3 {
				break
			}
			if strings.Contains(descLower, strings.ToLower(kw)) {
				matched = append(matched, kw)
			}
		}
		desc := event.Description
		if runes := []rune(desc); len(runes) > 100 {
			desc = string(runes[:100])
		}
		parts = append(parts, fmt.Sprintf("[%d] %.1fs: %s... (matched: %s)",
			i+1, event.Timestamp, desc, strings.Join(matched, ", ")))
	}
	return strings.Join(parts, " | ")
}

func combinedText(event models.ObservedEvent) string {
	return strings.ToLower(event.Description + " " +
		strings.Join(event.VisibleText, " ") + " " +
		strings.Join(event.UIElements, " "))
}
