package server

import (
	"github.com/whitemask/maskd/internal/mask"
)

// MaskRequest is the body of POST /v1/mask.
type MaskRequest struct {
	TenantID string `json:"tenantID"`

	// MaskNumbers overrides the tenant's number-masking default when set.
	MaskNumbers *bool `json:"maskNumbers,omitempty"`

	// Templates are request-scoped regex substitutions applied before the
	// tenant's own templates.
	Templates []mask.TemplateSpec `json:"templates,omitempty"`

	// Unmasked holds the lines to mask. Null entries mask to empty strings.
	Unmasked []*string `json:"unmasked"`
}

// MaskResponse is the body of a successful POST /v1/mask.
type MaskResponse struct {
	Masked []string    `json:"masked"`
	Counts mask.Counts `json:"counts"`

	// MaskedTotal is the sum of all category counters.
	MaskedTotal int64 `json:"maskedTotal"`

	// Errors reports request templates that were rejected; masking still
	// ran with the remaining templates.
	Errors []mask.TemplateError `json:"errors,omitempty"`
}

// TemplatesRequest is the body of POST /v1/templates.
type TemplatesRequest struct {
	TenantID string              `json:"tenantID"`
	Updates  []mask.TemplateSpec `json:"updates,omitempty"`
	Removals []string            `json:"removals,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
