package dto

import "github.com/recast/recast/internal/catalog"

// FormatListResponse lists the available output formats.
type FormatListResponse struct {
	Data []catalog.Format `json:"data"`
}

// ToneListResponse lists the available tones.
type ToneListResponse struct {
	Data []catalog.Tone `json:"data"`
}

// ModelResponse describes a selectable model without provider routing details.
type ModelResponse struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Vendor      string  `json:"vendor"`
	CostPer1K   float64 `json:"cost_per_1k"`
	Description string  `json:"description"`
	Default     bool    `json:"default"`
}

// ModelListResponse lists the available models.
type ModelListResponse struct {
	Data []ModelResponse `json:"data"`
}

// ToModelListResponse converts catalog models to their API form.
func ToModelListResponse(models []catalog.Model) *ModelListResponse {
	out := make([]ModelResponse, len(models))
	for i, m := range models {
		out[i] = ModelResponse{
			ID:          m.ID,
			DisplayName: m.DisplayName,
			Vendor:      m.Vendor,
			CostPer1K:   m.CostPer1K,
			Description: m.Description,
			Default:     m.ID == catalog.DefaultModelID,
		}
	}
	return &ModelListResponse{Data: out}
}
