package recovery

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	narrativeField     = regexp.MustCompile(`"narrative"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	observationsField  = regexp.MustCompile(`(?s)"key_observations"\s*:\s*\[(.*?)\]`)
	totalDurationField = regexp.MustCompile(`"total_duration"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
	frameCountField    = regexp.MustCompile(`"frame_count"\s*:\s*([0-9]+)`)
	quotedString       = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// extractPartial is strategy 4: pull known top-level fields out of the text
// independently and assemble a best-effort object. Each field is extracted
// from the raw text on its own, so boundary damage elsewhere cannot hide it,
// and it is kept only when it parses cleanly alone, so a half-written event
// never pollutes the result. Succeeds when at least one meaningful field
// was recovered.
func extractPartial(text string) (any, error) {
	s := text
	result := map[string]any{}

	if m := narrativeField.FindStringSubmatch(s); m != nil {
		if narrative, ok := unescapeJSONString(m[1]); ok {
			result["narrative"] = narrative
		}
	}

	if m := observationsField.FindStringSubmatch(s); m != nil {
		var observations []any
		for _, q := range quotedString.FindAllStringSubmatch(m[1], -1) {
			if obs, ok := unescapeJSONString(q[1]); ok {
				observations = append(observations, obs)
			}
		}
		if len(observations) > 0 {
			result["key_observations"] = observations
		}
	}

	if m := totalDurationField.FindStringSubmatch(s); m != nil {
		if d, err := strconv.ParseFloat(m[1], 64); err == nil {
			result["total_duration"] = d
		}
	}

	if m := frameCountField.FindStringSubmatch(s); m != nil {
		if n, err := strconv.ParseFloat(m[1], 64); err == nil {
			result["frame_count"] = n
		}
	}

	if events := extractEventObjects(s); len(events) > 0 {
		result["events"] = events
	}

	// Narrative or events count as meaningful on their own; numbers alone
	// do not reconstruct anything useful.
	if _, ok := result["narrative"]; !ok {
		if _, ok := result["events"]; !ok {
			if _, ok := result["key_observations"]; !ok {
				return nil, fmt.Errorf("no recoverable fields found")
			}
		}
	}

	return result, nil
}

// extractEventObjects scans the events array region for balanced top-level
// objects and keeps each one that parses as standalone JSON.
func extractEventObjects(s string) []any {
	idx := strings.Index(s, `"events"`)
	if idx < 0 {
		return nil
	}
	region := s[idx:]
	open := strings.IndexByte(region, '[')
	if open < 0 {
		return nil
	}
	region = region[open+1:]

	var events []any
	depth := 0
	inString := false
	escaped := false
	start := -1

	for i := 0; i < len(region); i++ {
		c := region[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// string contents are opaque
		case c == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case c == '}':
			depth--
			if depth == 0 && start >= 0 {
				var ev any
				if err := json.Unmarshal([]byte(region[start:i+1]), &ev); err == nil {
					events = append(events, ev)
				}
				start = -1
			}
		case c == ']' && depth == 0:
			return events
		}
	}
	return events
}

// unescapeJSONString decodes the body of a JSON string literal.
func unescapeJSONString(body string) (string, bool) {
	var out string
	if err := json.Unmarshal([]byte(`"`+body+`"`), &out); err != nil {
		return "", false
	}
	return out, true
}
