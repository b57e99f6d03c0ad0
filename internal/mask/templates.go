package mask

import (
	"regexp"
	"strings"
)

// TemplateSpec is an uncompiled (regex, mask) pair as supplied by callers.
type TemplateSpec struct {
	Template string `json:"template"`
	Mask     string `json:"mask"`
}

// Template is a compiled substitution: text matching Pattern is replaced by
// the wrapped mask tag before tokenization. Mask is stored unwrapped and
// lowercase.
type Template struct {
	Pattern *regexp.Regexp
	Mask    string
}

// Spec returns the uncompiled form of the template.
func (t Template) Spec() TemplateSpec {
	return TemplateSpec{Template: t.Pattern.String(), Mask: t.Mask}
}

// TemplateError reports a template/mask pair that was rejected. Rejected
// templates are skipped; the remaining templates still apply.
type TemplateError struct {
	Template string `json:"template,omitempty"`
	Mask     string `json:"mask,omitempty"`
	Err      string `json:"error"`
}

// NormalizeMask trims, lowercases, and unwraps a supplied mask so that
// "~Phone~", "phone~" and "phone" all normalize to "phone". An empty result
// means the mask is invalid.
func NormalizeMask(mask string) string {
	mask = strings.ToLower(strings.TrimSpace(mask))
	mask = strings.TrimPrefix(mask, maskWrap)
	mask = strings.TrimSuffix(mask, maskWrap)
	return mask
}

func wrapMask(mask string) string {
	return maskWrap + mask + maskWrap
}

// CompileTemplates compiles template specs in order, collecting a
// TemplateError for every pair whose regex does not compile, whose mask is
// empty after normalization, or whose template is missing. Compilation never
// fails as a whole.
func CompileTemplates(specs []TemplateSpec) ([]Template, []TemplateError) {
	var templates []Template
	var errs []TemplateError
	for _, spec := range specs {
		pattern := strings.TrimSpace(spec.Template)
		if pattern == "" {
			errs = append(errs, TemplateError{
				Mask: spec.Mask,
				Err:  `"template" was missing or empty.`,
			})
			continue
		}
		maskName := NormalizeMask(spec.Mask)
		if maskName == "" {
			errs = append(errs, TemplateError{
				Template: pattern,
				Err:      `"mask" was empty.`,
			})
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			errs = append(errs, TemplateError{
				Template: pattern,
				Mask:     maskName,
				Err:      err.Error(),
			})
			continue
		}
		templates = append(templates, Template{Pattern: re, Mask: maskName})
	}
	return templates, errs
}

// ApplyTemplates substitutes every template match in line with its wrapped
// mask tag, in template order.
func ApplyTemplates(line string, templates []Template) string {
	for _, t := range templates {
		if t.Pattern.MatchString(line) {
			line = t.Pattern.ReplaceAllString(line, wrapMask(t.Mask))
		}
	}
	return line
}
