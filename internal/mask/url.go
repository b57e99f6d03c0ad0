package mask

import (
	"regexp"
	"strings"
)

var schemePattern = regexp.MustCompile(`https?://`)

// AcceptableURL decides whether a candidate URL reference is exempt from
// masking. A candidate with no scheme is not a URL reference at all and is
// reported unacceptable; the caller falls through to ordinary token handling.
// A candidate containing more than one scheme references a second URL that
// cannot be safely reconstructed, so it is always unacceptable.
func AcceptableURL(candidate string, queryStringFilters, domainPrefixes, domainSuffixes []string) bool {
	url := strings.ToLower(candidate)
	parts := schemePattern.Split(url, -1)
	// Drop trailing empty parts so a bare scheme does not pass as a URL.
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) > 2 {
		// More than one scheme: a URL referencing another URL. Masked
		// unconditionally since the second reference cannot be rebuilt.
		return false
	}
	if len(parts) < 2 {
		// No scheme (or nothing after it): not a URL reference.
		return false
	}

	rest := parts[1]
	portIndex := strings.Index(rest, ":")
	pathIndex := strings.Index(rest, "/")

	if pathIndex != -1 && pathIndex < len(rest)-1 {
		tail := rest[pathIndex+1:]
		for _, filter := range queryStringFilters {
			if strings.Contains(tail, filter) {
				return false
			}
		}
	}

	domain := rest
	switch {
	case portIndex != -1 && pathIndex != -1:
		if portIndex < pathIndex {
			domain = rest[:portIndex]
		} else {
			domain = rest[:pathIndex]
		}
	case portIndex != -1:
		domain = rest[:portIndex]
	case pathIndex != -1:
		domain = rest[:pathIndex]
	}

	for _, suffix := range domainSuffixes {
		if strings.HasSuffix(domain, suffix) {
			return false
		}
	}
	for _, prefix := range domainPrefixes {
		if strings.HasPrefix(domain, prefix) {
			return false
		}
	}
	return true
}
