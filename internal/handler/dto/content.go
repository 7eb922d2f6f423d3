package dto

import (
	"time"

	"github.com/recast/recast/internal/model"
)

// CreateContentRequest represents the request body for submitting source content.
type CreateContentRequest struct {
	Title      string            `json:"title,omitempty"`
	SourceType string            `json:"source_type,omitempty"`
	RawText    string            `json:"raw_text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ContentResponse represents a content item in API responses.
type ContentResponse struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	SourceType string            `json:"source_type"`
	RawText    string            `json:"raw_text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ToContentResponse converts a ContentItem model to ContentResponse DTO.
func ToContentResponse(item *model.ContentItem) *ContentResponse {
	return &ContentResponse{
		ID:         item.ID,
		Title:      item.Title,
		SourceType: string(item.SourceType),
		RawText:    item.RawText,
		Metadata:   item.Metadata,
		CreatedAt:  item.CreatedAt,
	}
}
