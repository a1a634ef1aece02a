package recovery

import "strings"

// cleanResponse strips markdown code fences and trims the text down to the
// outermost JSON value boundary. It is deliberately idempotent so later
// strategies can re-apply it to the raw text.
func cleanResponse(text string) string {
	s := strings.TrimSpace(text)

	// Drop a leading fence, with or without a language tag.
	if strings.HasPrefix(s, "```") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	// Drop a trailing fence.
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Trim to the first opening delimiter and its matching closer. When the
	// text is truncated the closer may be missing; keep the tail in that case
	// and let the truncation strategy deal with it.
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}
	end := strings.LastIndexByte(s, close)
	if end > start {
		return s[start : end+1]
	}
	return s[start:]
}
