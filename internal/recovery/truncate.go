package recovery

import "fmt"

// truncateParse is strategy 5: recover a response that was cut off
// mid-generation. The text is scanned forward with a delimiter stack,
// remembering the last offset at which a complete element had just closed;
// everything after that point is dropped and the still-open containers are
// closed in stack order.
func truncateParse(text string) (any, error) {
	s := cleanResponse(text)
	if s == "" {
		return nil, fmt.Errorf("nothing left after cleanup")
	}

	var stack []byte
	inString := false
	escaped := false
	lastComplete := -1

	for i := 0; i < len(s); i++ {
		c := s[i]
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
		case c == '{' || c == '[':
			stack = append(stack, c)
		case c == '}' || c == ']':
			if len(stack) == 0 {
				// Closer with no opener: cut just before it.
				return closeAndParse(s[:i], nil)
			}
			open := stack[len(stack)-1]
			if (c == '}' && open != '{') || (c == ']' && open != '[') {
				return closeAndParse(s[:i], stack)
			}
			stack = stack[:len(stack)-1]
			// A value just completed inside its parent container.
			if len(stack) >= 1 {
				lastComplete = i
			}
			if len(stack) == 0 {
				// The whole value closed; anything after it is noise.
				return parseJSON(s[:i+1])
			}
		}
	}

	if lastComplete < 0 {
		return nil, fmt.Errorf("no complete element before truncation point")
	}

	// Rebuild the stack as it stood just after the last complete element.
	stack = stack[:0]
	inString, escaped = false, false
	for i := 0; i <= lastComplete; i++ {
		c := s[i]
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
		case c == '{' || c == '[':
			stack = append(stack, c)
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	return closeAndParse(s[:lastComplete+1], stack)
}

// closeAndParse appends the closers for every still-open delimiter, dropping
// a dangling comma first, then parses.
func closeAndParse(s string, stack []byte) (any, error) {
	for len(s) > 0 {
		last := s[len(s)-1]
		if last == ',' || last == ' ' || last == '\n' || last == '\t' || last == '\r' {
			s = s[:len(s)-1]
			continue
		}
		break
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			s += "}"
		} else {
			s += "]"
		}
	}
	return parseJSON(s)
}
