// Package recovery turns possibly-malformed structured text, typically a
// model response that was supposed to be JSON, into a parsed value. An
// ordered list of fallback strategies is attempted in sequence; the first
// success wins. Callers must treat ErrUnrecoverable as "empty result",
// never as a reason to abort a run.
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrecoverable is returned when every strategy has failed.
var ErrUnrecoverable = errors.New("structured response unrecoverable")

// Result is a successfully recovered value plus the name of the strategy
// that produced it.
type Result struct {
	Value    any
	Strategy string
}

// strategy is a single recovery attempt. Failures stay inside the strategy
// as ordinary errors; nothing panics across this boundary.
type strategy struct {
	name  string
	apply func(text string) (any, error)
}

// strategies are evaluated in order. The order is a contract: direct parse,
// markdown/boundary cleanup, syntax repair, partial field extraction, and
// truncation recovery.
var strategies = []strategy{
	{name: "direct", apply: directParse},
	{name: "cleanup", apply: cleanupParse},
	{name: "repair", apply: repairParse},
	{name: "partial", apply: extractPartial},
	{name: "truncate", apply: truncateParse},
}

// Recover attempts each strategy in order and returns the first success.
func Recover(text string) (*Result, error) {
	if text == "" {
		return nil, fmt.Errorf("empty response: %w", ErrUnrecoverable)
	}

	var errs []error
	for _, s := range strategies {
		value, err := s.apply(text)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		return &Result{Value: value, Strategy: s.name}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnrecoverable, errors.Join(errs...))
}

// directParse is strategy 1: the text parses as-is.
func directParse(text string) (any, error) {
	return parseJSON(text)
}

// cleanupParse is strategy 2: strip markdown fences, trim to the outermost
// brace/bracket pair, then parse.
func cleanupParse(text string) (any, error) {
	return parseJSON(cleanResponse(text))
}

// repairParse is strategy 3: cleanup plus comma repairs, then parse.
func repairParse(text string) (any, error) {
	return parseJSON(repairSyntax(cleanResponse(text)))
}

func parseJSON(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}
