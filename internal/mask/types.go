package mask

// Category identifies the semantic class assigned to a masked token.
type Category int

const (
	// None means no mask run is currently open.
	None Category = iota
	Name
	Geo
	Profanity
	Number
	URL
	Misc
)

// Mask tag literals for the fixed categories.
const (
	TagBad  = "~bad~"
	TagGeo  = "~geo~"
	TagMisc = "~misc~"
	TagName = "~name~"
	TagNum  = "~num~"
	TagURL  = "~url~"

	maskWrap = "~"
)

// Tag returns the literal mask tag for the category, or "" for None.
func (c Category) Tag() string {
	switch c {
	case Name:
		return TagName
	case Geo:
		return TagGeo
	case Profanity:
		return TagBad
	case Number:
		return TagNum
	case URL:
		return TagURL
	case Misc:
		return TagMisc
	}
	return ""
}

// Counts tallies words seen and mask tags emitted for one invocation.
// Category counters increment once per maximal run of adjacent same-category
// tokens; Words increments for every non-punctuation token processed.
type Counts struct {
	Words      int64 `json:"words"`
	MaskedBad  int64 `json:"maskedBad"`
	MaskedGeo  int64 `json:"maskedGeo"`
	MaskedMisc int64 `json:"maskedMisc"`
	MaskedNam  int64 `json:"maskedNam"`
	MaskedNum  int64 `json:"maskedNum"`
	MaskedURL  int64 `json:"maskedURL"`
}

// Masked returns the total number of mask tags emitted across categories.
func (c *Counts) Masked() int64 {
	return c.MaskedBad + c.MaskedGeo + c.MaskedMisc + c.MaskedNam + c.MaskedNum + c.MaskedURL
}

// Add accumulates another Counts value into c.
func (c *Counts) Add(o Counts) {
	c.Words += o.Words
	c.MaskedBad += o.MaskedBad
	c.MaskedGeo += o.MaskedGeo
	c.MaskedMisc += o.MaskedMisc
	c.MaskedNam += o.MaskedNam
	c.MaskedNum += o.MaskedNum
	c.MaskedURL += o.MaskedURL
}

func (c *Counts) bump(cat Category) {
	switch cat {
	case Name:
		c.MaskedNam++
	case Geo:
		c.MaskedGeo++
	case Profanity:
		c.MaskedBad++
	case Number:
		c.MaskedNum++
	case URL:
		c.MaskedURL++
	case Misc:
		c.MaskedMisc++
	}
}

// Set is a lowercase word-presence set.
type Set map[string]struct{}

// NewSet builds a Set from the given words, lowercasing is the caller's job.
func NewSet(words ...string) Set {
	s := make(Set, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Contains reports whether w is present. Safe on a nil Set.
func (s Set) Contains(w string) bool {
	_, ok := s[w]
	return ok
}

// Tables holds the lookup tables and filter lists for one tenant. A Tables
// value is immutable once built; concurrent classification calls may share it.
type Tables struct {
	Whitelist    Set
	Names        Set
	Geolocations Set
	Profanities  Set

	QueryStringFilters []string
	DomainPrefixes     []string
	DomainSuffixes     []string

	// Templates are applied in order to each line before tokenization.
	Templates []Template

	MaskNumbers bool
}

var fixedMaskNames = NewSet("bad", "geo", "misc", "name", "num", "url")

// Recorder receives every word that gets masked, for frequency diagnostics.
// Implementations must be safe for concurrent use.
type Recorder interface {
	Record(word string)
}
