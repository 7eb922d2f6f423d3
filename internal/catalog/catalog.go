// Package catalog holds the static registries of output formats, tones and
// provider models a generation request may reference.
package catalog

import (
	"errors"
	"sort"
)

// Lookup errors.
var (
	ErrUnknownFormat = errors.New("unknown output format")
	ErrUnknownTone   = errors.New("unknown tone")
	ErrUnknownModel  = errors.New("unknown model")
)

// DefaultModelID is used when a request does not name a model.
const DefaultModelID = "claude-3-sonnet"

// Format describes a target output format.
type Format struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	MaxLength   string `json:"max_length"`
}

// Tone describes a writing tone.
type Tone struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Model describes a generative model reachable through the provider.
type Model struct {
	ID            string  `json:"id"`
	DisplayName   string  `json:"display_name"`
	Vendor        string  `json:"vendor"`
	ProviderModel string  `json:"provider_model"`
	CostPer1K     float64 `json:"cost_per_1k"`
	Description   string  `json:"description"`
}

var formats = map[string]Format{
	"twitter-thread": {
		ID:          "twitter-thread",
		DisplayName: "Twitter Thread",
		Description: "Engaging thread with hooks and CTAs",
		MaxLength:   "280 chars per tweet",
	},
	"linkedin-post": {
		ID:          "linkedin-post",
		DisplayName: "LinkedIn Post",
		Description: "Professional post with engagement hooks",
		MaxLength:   "3000 characters",
	},
	"instagram-caption": {
		ID:          "instagram-caption",
		DisplayName: "Instagram Caption",
		Description: "Visual-focused caption with hashtags",
		MaxLength:   "2200 characters",
	},
	"email-newsletter": {
		ID:          "email-newsletter",
		DisplayName: "Email Newsletter",
		Description: "Structured newsletter with sections",
		MaxLength:   "No limit",
	},
	"youtube-script": {
		ID:          "youtube-script",
		DisplayName: "YouTube Script",
		Description: "Engaging video script with timestamps",
		MaxLength:   "No limit",
	},
	"blog-summary": {
		ID:          "blog-summary",
		DisplayName: "Blog Summary",
		Description: "Concise summary with key points",
		MaxLength:   "500 words",
	},
}

var tones = map[string]Tone{
	"professional":  {ID: "professional", DisplayName: "Professional", Description: "Formal and business-appropriate"},
	"casual":        {ID: "casual", DisplayName: "Casual", Description: "Friendly and conversational"},
	"engaging":      {ID: "engaging", DisplayName: "Engaging", Description: "Attention-grabbing and dynamic"},
	"educational":   {ID: "educational", DisplayName: "Educational", Description: "Informative and instructional"},
	"humorous":      {ID: "humorous", DisplayName: "Humorous", Description: "Light-hearted and entertaining"},
	"inspirational": {ID: "inspirational", DisplayName: "Inspirational", Description: "Motivating and uplifting"},
}

var models = map[string]Model{
	"gpt-4": {
		ID:            "gpt-4",
		DisplayName:   "GPT-4",
		Vendor:        "OpenAI",
		ProviderModel: "openai/gpt-4",
		CostPer1K:     0.03,
		Description:   "Most capable model, best for complex repurposing",
	},
	"claude-3-sonnet": {
		ID:            "claude-3-sonnet",
		DisplayName:   "Claude 3 Sonnet",
		Vendor:        "Anthropic",
		ProviderModel: "anthropic/claude-3-sonnet",
		CostPer1K:     0.015,
		Description:   "Great balance of capability and cost",
	},
	"mistral-large": {
		ID:            "mistral-large",
		DisplayName:   "Mistral Large",
		Vendor:        "Mistral",
		ProviderModel: "mistralai/mistral-large",
		CostPer1K:     0.008,
		Description:   "Fast and cost-effective for most tasks",
	},
}

// LookupFormat returns the format registered under id.
func LookupFormat(id string) (Format, error) {
	f, ok := formats[id]
	if !ok {
		return Format{}, ErrUnknownFormat
	}
	return f, nil
}

// LookupTone returns the tone registered under id.
func LookupTone(id string) (Tone, error) {
	t, ok := tones[id]
	if !ok {
		return Tone{}, ErrUnknownTone
	}
	return t, nil
}

// LookupModel returns the model registered under id.
// An empty id resolves to DefaultModelID.
func LookupModel(id string) (Model, error) {
	if id == "" {
		id = DefaultModelID
	}
	m, ok := models[id]
	if !ok {
		return Model{}, ErrUnknownModel
	}
	return m, nil
}

// Formats returns all formats sorted by id.
func Formats() []Format {
	out := make([]Format, 0, len(formats))
	for _, f := range formats {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tones returns all tones sorted by id.
func Tones() []Tone {
	out := make([]Tone, 0, len(tones))
	for _, t := range tones {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Models returns all models sorted by id.
func Models() []Model {
	out := make([]Model, 0, len(models))
	for _, m := range models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
