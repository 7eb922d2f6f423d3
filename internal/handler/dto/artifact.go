package dto

import (
	"time"

	"github.com/recast/recast/internal/model"
)

// GenerateRequest represents the request body for generating an artifact.
type GenerateRequest struct {
	Format string `json:"format"`
	Tone   string `json:"tone"`
	Model  string `json:"model,omitempty"`
}

// ArtifactResponse represents an artifact in API responses.
type ArtifactResponse struct {
	ID            string    `json:"id"`
	ContentItemID string    `json:"content_item_id"`
	Format        string    `json:"format"`
	Tone          string    `json:"tone"`
	Model         string    `json:"model"`
	OutputText    string    `json:"output_text"`
	TokensUsed    int       `json:"tokens_used"`
	CreatedAt     time.Time `json:"created_at"`
}

// ArtifactListResponse represents a paginated list of artifacts.
type ArtifactListResponse struct {
	Data       []ArtifactResponse `json:"data"`
	Pagination *Pagination        `json:"pagination"`
}

// ToArtifactResponse converts an Artifact model to ArtifactResponse DTO.
func ToArtifactResponse(a *model.Artifact) *ArtifactResponse {
	return &ArtifactResponse{
		ID:            a.ID,
		ContentItemID: a.ContentItemID,
		Format:        a.FormatID,
		Tone:          a.ToneID,
		Model:         a.ModelID,
		OutputText:    a.OutputText,
		TokensUsed:    a.TokensUsed,
		CreatedAt:     a.CreatedAt,
	}
}

// ToArtifactListResponse converts a slice of Artifact models to ArtifactListResponse.
func ToArtifactListResponse(artifacts []*model.Artifact, nextCursor string, hasMore bool) *ArtifactListResponse {
	data := make([]ArtifactResponse, len(artifacts))
	for i, a := range artifacts {
		data[i] = *ToArtifactResponse(a)
	}
	return &ArtifactListResponse{
		Data: data,
		Pagination: &Pagination{
			NextCursor: nextCursor,
			HasMore:    hasMore,
		},
	}
}
