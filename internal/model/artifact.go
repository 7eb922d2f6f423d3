package model

import "time"

// Artifact is one persisted generation result.
// Each regeneration produces a new artifact; existing ones are never overwritten.
type Artifact struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	ContentItemID string    `json:"content_item_id"`
	FormatID      string    `json:"format_id"`
	ToneID        string    `json:"tone_id"`
	OutputText    string    `json:"output_text"`
	TokensUsed    int       `json:"tokens_used"`
	ModelID       string    `json:"model_id"`
	CreatedAt     time.Time `json:"created_at"`
}
