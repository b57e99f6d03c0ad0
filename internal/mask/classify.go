package mask

import (
	"strings"
	"unicode"
)

// DelimiterPriority is the fixed order in which delimiters are tested against
// a token core. At most one delimiter is applied per recursion level: the
// first one found wins and the core is split on it alone.
var DelimiterPriority = [...]rune{
	'\n', '\r', '\t', '/', '.', '-', '(', ':', '_', '>', ',', '+', ';', ')', '\\', '—',
}

func firstDelimiter(core string) (rune, bool) {
	for _, d := range DelimiterPriority {
		if strings.ContainsRune(core, d) {
			return d, true
		}
	}
	return 0, false
}

// classifier is the accumulator threaded through the recursion: the output
// buffer, the run-length state, and the counters. One classifier serves one
// line; it is never shared between invocations.
type classifier struct {
	out    strings.Builder
	counts *Counts
	tables *Tables

	// templates is the active template list: request-scoped templates
	// followed by the tenant's. Their mask keywords pass through unmasked
	// so that already-masked text is a fixed point of the masker.
	templates []Template

	maskNumbers bool
	recorder    Recorder

	// last is the category of the mask run currently open, or None.
	last Category

	// pending holds whitespace separators emitted while a mask run is open.
	// If the next token continues the same run the separators are dropped,
	// collapsing "John Smith" into a single ~name~ tag; any other output
	// flushes them first. Whitespace still pending when the line ends is
	// dropped with the run it trails.
	pending strings.Builder
}

func (c *classifier) flushPending() {
	if c.pending.Len() > 0 {
		c.out.WriteString(c.pending.String())
		c.pending.Reset()
	}
}

func (c *classifier) write(s string) {
	c.flushPending()
	c.out.WriteString(s)
}

// emit applies the run-length rule for a token that classified into cat: a
// tag is appended and the category counted only when the token starts a new
// run. A continuation drops any pending whitespace between the run's tokens.
func (c *classifier) emit(cat Category) {
	if c.last == cat {
		c.pending.Reset()
		return
	}
	c.write(cat.Tag())
	c.counts.bump(cat)
	c.last = cat
}

// isMaskName reports whether core is the keyword of a fixed mask tag or of
// one of the active template masks.
func (c *classifier) isMaskName(core string) bool {
	if fixedMaskNames.Contains(core) {
		return true
	}
	for _, t := range c.templates {
		if t.Mask == core {
			return true
		}
	}
	return false
}

func (c *classifier) record(word string) {
	if c.recorder != nil {
		c.recorder.Record(word)
	}
}

func (c *classifier) writeSuffix(suffix string) {
	if suffix == "" {
		return
	}
	c.write(suffix)
	if strings.TrimSpace(suffix) != "" {
		c.last = None
	}
}

// maskURLToken handles a core (or embedded URL tail) that failed the
// acceptability check: whitelisted and mask-keyword tokens pass through,
// everything else is masked as ~url~ under the run-length rule.
func (c *classifier) maskURLToken(lower, mixed string) {
	if c.tables.Whitelist.Contains(lower) || c.isMaskName(lower) {
		c.write(mixed)
		c.last = None
		return
	}
	c.record(lower)
	c.emit(URL)
}

// processWords classifies each fragment produced by splitting on splitChar,
// recursing per the delimiter priority until fragments are leaf tokens. The
// run-length state and counters are threaded through the whole recursion.
func (c *classifier) processWords(words []string, splitChar rune) {
	for _, word := range words {
		checkWord := strings.ToLower(word)
		if checkWord == "" {
			// An empty fragment stands for one occurrence of splitChar.
			// Whitespace separators keep the current run open; anything
			// else is real text between tokens and breaks it.
			if unicode.IsSpace(splitChar) && c.last != None {
				c.pending.WriteRune(splitChar)
			} else {
				c.flushPending()
				c.out.WriteRune(splitChar)
				if !unicode.IsSpace(splitChar) {
					c.last = None
				}
			}
			continue
		}

		prefix, core, suffix := CleanWord(checkWord)
		if core == "" {
			// Nothing but punctuation. Passed through verbatim, excluded
			// from the word count, and breaks any open run.
			c.write(word)
			c.last = None
			continue
		}

		// The original-case core. Lowercasing only rewrites letters inside
		// the core, so the prefix/suffix byte lengths carry over.
		mixedCore := word[len(prefix) : len(word)-len(suffix)]

		if prefix != "" {
			c.write(prefix)
			if strings.TrimSpace(prefix) != "" {
				c.last = None
			}
		}

		// A URL embedded after other text, e.g. "meeting:https://zoom.us".
		// The text before the scheme is classified as its own batch, then
		// the URL tail is handled without further delimiter splitting.
		if idx := strings.Index(core, "http"); idx > 0 {
			c.processWords([]string{core[:idx]}, splitChar)
			urlPart := core[idx:]
			mixedURL := urlPart
			if idx < len(mixedCore) {
				mixedURL = mixedCore[idx:]
			}
			c.counts.Words++
			if AcceptableURL(urlPart, c.tables.QueryStringFilters, c.tables.DomainPrefixes, c.tables.DomainSuffixes) {
				c.write(mixedURL)
				c.last = None
				c.writeSuffix(suffix)
				continue
			}
			c.maskURLToken(urlPart, mixedURL)
			c.writeSuffix(suffix)
			continue
		}

		if AcceptableURL(core, c.tables.QueryStringFilters, c.tables.DomainPrefixes, c.tables.DomainSuffixes) {
			c.counts.Words++
			c.write(mixedCore)
			c.last = None
			c.writeSuffix(suffix)
			continue
		}

		if strings.HasPrefix(core, "http") || strings.HasPrefix(core, "file_http") {
			c.counts.Words++
			c.maskURLToken(core, mixedCore)
			c.writeSuffix(suffix)
			continue
		}

		if d, ok := firstDelimiter(core); ok {
			c.processWords(SplitOnChar(mixedCore, d), d)
			c.writeSuffix(suffix)
			continue
		}

		// Leaf token.
		c.counts.Words++
		if c.tables.Whitelist.Contains(core) || c.isMaskName(core) {
			c.write(mixedCore)
			c.last = None
		} else {
			c.record(core)
			switch {
			case c.tables.Names.Contains(core):
				c.emit(Name)
			case c.tables.Geolocations.Contains(core):
				c.emit(Geo)
			case c.tables.Profanities.Contains(core):
				c.emit(Profanity)
			case isAllDigits(core):
				if c.maskNumbers {
					c.emit(Number)
				} else {
					c.write(mixedCore)
					c.last = None
				}
			default:
				c.emit(Misc)
			}
		}
		c.writeSuffix(suffix)
	}
}
