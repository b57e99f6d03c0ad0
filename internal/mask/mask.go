// Package mask implements whitelist-driven masking of conversational text.
//
// A line is first run through the regex template pre-filter (request-scoped
// templates, then tenant templates), then split on spaces and fed to a
// recursive tokenizer that splits tokens further along a fixed delimiter
// priority, classifies leaf tokens against the tenant lookup tables, and
// replaces anything not whitelisted with a semantic mask tag such as ~name~
// or ~url~. Adjacent masked tokens of the same category collapse into a
// single tag; unmasked text and punctuation are preserved byte for byte.
package mask

import (
	"go.uber.org/zap"
)

// Masker masks lines of text against one tenant's lookup tables. A Masker is
// immutable and safe for concurrent use; every call gets its own counters and
// run state.
type Masker struct {
	tables   *Tables
	recorder Recorder
	logger   *zap.Logger
}

// New creates a Masker over the given tables. recorder may be nil to disable
// masked-word frequency recording.
func New(tables *Tables, recorder Recorder, logger *zap.Logger) *Masker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Masker{tables: tables, recorder: recorder, logger: logger}
}

// Tables returns the lookup tables the Masker classifies against.
func (m *Masker) Tables() *Tables {
	return m.tables
}

// LineOptions carries per-request overrides for MaskLine.
type LineOptions struct {
	// Templates are request-scoped substitutions applied before the
	// tenant's own templates.
	Templates []Template
	// MaskNumbers overrides the tenant default when non-nil.
	MaskNumbers *bool
}

// MaskLine masks a single line and returns the masked text with the
// per-category counts for that line. It is total over its input: every
// string, including empty or all-punctuation text, has a defined result.
func (m *Masker) MaskLine(line string, opts *LineOptions) (string, Counts) {
	var counts Counts
	maskNumbers := m.tables.MaskNumbers
	templates := m.tables.Templates
	if opts != nil {
		if opts.MaskNumbers != nil {
			maskNumbers = *opts.MaskNumbers
		}
		if len(opts.Templates) > 0 {
			templates = make([]Template, 0, len(opts.Templates)+len(m.tables.Templates))
			templates = append(templates, opts.Templates...)
			templates = append(templates, m.tables.Templates...)
		}
	}
	line = ApplyTemplates(line, templates)
	if line == "" {
		return "", counts
	}

	c := classifier{
		counts:      &counts,
		tables:      m.tables,
		templates:   templates,
		maskNumbers: maskNumbers,
		recorder:    m.recorder,
	}
	c.out.Grow(len(line))
	c.processWords(SplitOnChar(line, ' '), ' ')
	return c.out.String(), counts
}

// MaskLines masks each line in order and returns the masked lines along with
// counts aggregated across all of them.
func (m *Masker) MaskLines(lines []string, opts *LineOptions) ([]string, Counts) {
	masked := make([]string, len(lines))
	var total Counts
	for i, line := range lines {
		out, counts := m.MaskLine(line, opts)
		masked[i] = out
		total.Add(counts)
	}
	return masked, total
}
