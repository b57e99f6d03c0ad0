package mask

import "strings"

// SplitOnChar splits text on every occurrence of sep. Each occurrence of sep
// contributes an empty fragment, so the original text can be reconstituted by
// emitting sep for every empty fragment: "this  is" split on ' ' yields
// ["this", "", "", "is"]. An empty input yields a single empty fragment.
func SplitOnChar(text string, sep rune) []string {
	if text == "" {
		return []string{""}
	}
	var parts []string
	var sb strings.Builder
	for _, r := range text {
		if r != sep {
			sb.WriteRune(r)
			continue
		}
		if sb.Len() == 0 {
			parts = append(parts, "")
		} else {
			parts = append(parts, sb.String(), "")
			sb.Reset()
		}
	}
	if sb.Len() > 0 {
		parts = append(parts, sb.String())
	}
	return parts
}
