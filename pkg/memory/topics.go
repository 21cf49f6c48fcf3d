package memory

import "strings"

// commonTopics is the fixed vocabulary scanned for in content. Matching is
// lexical on word boundaries, not semantic.
var commonTopics = []string{
	"ai", "technology", "art", "design", "science", "ethics",
	"creativity", "innovation", "future", "philosophy", "education",
	"environment", "health", "business", "politics", "culture",
}

// ExtractTopics returns the known topics mentioned in content, in
// vocabulary order. The result is empty when nothing matches.
func ExtractTopics(content string) []string {
	fields := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})

	present := make(map[string]bool, len(fields))
	for _, f := range fields {
		present[f] = true
	}

	var found []string
	for _, topic := range commonTopics {
		if present[topic] {
			found = append(found, topic)
		}
	}
	return found
}
