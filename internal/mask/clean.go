package mask

import "unicode"

// CleanWord splits a token into its leading non-word characters, its word
// core, and its trailing non-word characters. Only leading and trailing
// characters are stripped, never interior ones; prefix+core+suffix always
// reconstructs the input. A token with no word characters comes back with an
// empty core and the whole token as prefix.
func CleanWord(token string) (prefix, core, suffix string) {
	runes := []rune(token)
	start := 0
	for start < len(runes) && !isWordChar(runes[start]) {
		start++
	}
	end := len(runes)
	for end > start && !isWordChar(runes[end-1]) {
		end--
	}
	return string(runes[:start]), string(runes[start:end]), string(runes[end:])
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isAllDigits reports whether the word consists solely of ASCII decimal
// digits. Empty strings are not numbers.
func isAllDigits(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		if word[i] < '0' || word[i] > '9' {
			return false
		}
	}
	return true
}
