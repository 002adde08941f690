package detector

import (
	"regexp"
	"sort"
)

// nricPattern matches Singapore NRIC/FIN numbers: S, T, F or G, followed by
// seven digits, followed by an uppercase letter. Case-sensitive. The checksum
// letter is not verified — anything matching the shape is flagged.
var nricPattern = regexp.MustCompile(`[STFG]\d{7}[A-Z]`)

// DetectNRIC returns all unique non-overlapping NRIC/FIN-shaped tokens in
// text, sorted. Empty input yields an empty result.
func DetectNRIC(text string) []string {
	if text == "" {
		return nil
	}
	matches := nricPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}
