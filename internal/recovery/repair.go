package recovery

import "regexp"

var (
	// `,}` and `,]` with optional whitespace between.
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)

	// Adjacent objects or arrays with no separating comma.
	adjacentObjects = regexp.MustCompile(`}\s*{`)
	adjacentArrays  = regexp.MustCompile(`]\s*\[`)

	// A string value followed on the next line by the next key, comma lost.
	missingCommaAfterString = regexp.MustCompile(`"\s*\n\s*"`)

	// A number, boolean or null followed on the next line by the next key.
	missingCommaAfterScalar = regexp.MustCompile(`([0-9]|true|false|null)\s*\n\s*"`)
)

// repairSyntax fixes the comma mistakes models most often make: trailing
// commas before closers, and missing commas between adjacent values across
// line breaks. Replacements are textual and can touch string contents that
// contain the same shapes; repaired text that still fails to parse falls
// through to the next strategy.
func repairSyntax(text string) string {
	s := trailingComma.ReplaceAllString(text, "$1")
	s = adjacentObjects.ReplaceAllString(s, "},{")
	s = adjacentArrays.ReplaceAllString(s, "],[")
	s = missingCommaAfterString.ReplaceAllString(s, "\",\n\"")
	s = missingCommaAfterScalar.ReplaceAllString(s, "$1,\n\"")
	return s
}
