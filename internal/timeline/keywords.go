package timeline

import (
	"regexp"
	"strings"
)

// maxKeywords caps how many keywords a single step contributes to matching.
const maxKeywords = 15

var (
	quotedRE = regexp.MustCompile(`"([^"]*)"`)
	wordRE   = regexp.MustCompile(`\b\w+\b`)
)

// stopWords carry no matching signal and are dropped during extraction.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "that": true, "this": true, "it": true,
	"as": true, "by": true, "from": true, "should": true, "will": true,
}

// ExtractKeywords derives match keywords for one planned step from its
// description and action. Quoted substrings are ranked first, then the
// remaining words in order, with stop words and tokens shorter than three
// characters dropped. At most maxKeywords are returned.
func ExtractKeywords(description, action string) []string {
	text := strings.ToLower(description + " " + action)

	var quoted []string
	for _, m := range quotedRE.FindAllStringSubmatch(text, -1) {
		q := strings.TrimSpace(m[1])
		if len(q) > 2 {
			quoted = append(quoted, q)
		}
	}

	inQuoted := make(map[string]bool, len(quoted))
	for _, q := range quoted {
		inQuoted[q] = true
	}

	keywords := quoted
	for _, w := range wordRE.FindAllString(text, -1) {
		if len(w) <= 2 || stopWords[w] || inQuoted[w] {
			continue
		}
		keywords = append(keywords, w)
	}

	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}
