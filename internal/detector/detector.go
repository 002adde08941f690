// Package detector finds PII candidates in extracted document text.
// Detection runs in two independent passes over the same immutable text:
//  1. Model pass — a pretrained named-entity recognizer served by Ollama,
//     filtered to a fixed allow-list of entity categories.
//  2. Pattern pass — one regex for Singapore NRIC/FIN numbers.
//
// Both passes return bare literal strings; category and source detector are
// logged but not carried downstream. Combine unions the two result sets, so
// the redactor sees each unique string exactly once.
package detector

import "sort"

// Entity categories considered PII. Categories outside this list are ignored
// even when the model reports them. Dates and locations being included means
// common words and numbers can become redaction targets; that tradeoff is
// baked into the list, not tunable per call.
var piiCategories = map[string]bool{
	"PERSON": true, // people, including fictional
	"GPE":    true, // countries, cities, states
	"LOC":    true, // non-GPE locations
	"ORG":    true, // companies, agencies, institutions
	"DATE":   true, // absolute or relative dates
}

// Entity is one model detection: the literal span text and its category label.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Combine returns the set union of two candidate lists, deduplicated by
// exact string equality. The result is sorted so downstream processing and
// logs are deterministic; callers must not rely on any particular order.
func Combine(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		seen[s] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
