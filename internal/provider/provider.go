// Package provider abstracts generative-text backends behind a uniform call
// interface. A gateway performs exactly one network round trip per call and
// never retries; retry policy belongs to the caller.
package provider

import "context"

// Invocation is one request to a generative backend.
type Invocation struct {
	Instruction  string
	SystemPrompt string
	// ModelID is the catalog identifier recorded on the result.
	ModelID string
	// ProviderModel is the upstream model name; ModelID is used when empty.
	ProviderModel string
}

// Completion is a successful backend response.
type Completion struct {
	OutputText string
	TokensUsed int
	ModelID    string
}

// Gateway invokes a generative backend.
// Failures are always returned as *Error.
type Gateway interface {
	Invoke(ctx context.Context, inv Invocation) (*Completion, error)
}
