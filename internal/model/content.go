package model

import "time"

// SourceType describes where a content item's text came from.
type SourceType string

const (
	SourceText SourceType = "text"
	SourceURL  SourceType = "url"
	SourceFile SourceType = "file"
)

// IsValid checks if the source type is known.
func (s SourceType) IsValid() bool {
	return s == SourceText || s == SourceURL || s == SourceFile
}

// ContentItem is a piece of source content submitted by an account.
// It is immutable once created.
type ContentItem struct {
	ID         string            `json:"id"`
	AccountID  string            `json:"account_id"`
	Title      string            `json:"title"`
	SourceType SourceType        `json:"source_type"`
	RawText    string            `json:"raw_text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
