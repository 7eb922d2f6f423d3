package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

var tracer = otel.Tracer("github.com/recast/recast/internal/provider")

// maxResponseBytes caps how much of a provider response body is read.
const maxResponseBytes = 8 << 20

// Config configures an OpenAI-compatible gateway.
type Config struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxOutputTokens int
	Temperature     float64
	// Referer and Title are sent as HTTP-Referer and X-Title attribution headers.
	Referer        string
	Title          string
	MaxConcurrency int64
	HTTPClient     *http.Client
}

// OpenAICompat calls any OpenAI-compatible /chat/completions endpoint
// (OpenRouter, vLLM, LiteLLM, ...).
type OpenAICompat struct {
	baseURL         string
	apiKey          string
	timeout         time.Duration
	maxOutputTokens int
	temperature     float64
	referer         string
	title           string
	httpClient      *http.Client
	inflight        *semaphore.Weighted
}

// NewOpenAICompat builds a gateway from cfg.
// baseURL should include the version prefix, e.g. "https://openrouter.ai/api/v1".
func NewOpenAICompat(cfg Config) *OpenAICompat {
	client := cfg.HTTPClient
	if client == nil {
		client = NewHTTPClient()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 16
	}

	return &OpenAICompat{
		baseURL:         strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:          strings.TrimSpace(cfg.APIKey),
		timeout:         timeout,
		maxOutputTokens: maxTokens,
		temperature:     cfg.Temperature,
		referer:         cfg.Referer,
		title:           cfg.Title,
		httpClient:      client,
		inflight:        semaphore.NewWeighted(concurrency),
	}
}

// Invoke performs a single chat completion round trip.
func (g *OpenAICompat) Invoke(ctx context.Context, inv Invocation) (*Completion, error) {
	ctx, span := tracer.Start(ctx, "provider.Invoke")
	defer span.End()
	span.SetAttributes(attribute.String("provider.model", inv.ModelID))

	completion, err := g.invoke(ctx, inv)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
		span.SetAttributes(attribute.String("provider.error_kind", KindOf(err).String()))
		return nil, err
	}

	span.SetAttributes(attribute.Int("provider.tokens_used", completion.TokensUsed))
	return completion, nil
}

func (g *OpenAICompat) invoke(ctx context.Context, inv Invocation) (*Completion, error) {
	// The gateway timeout covers the wait for a slot as well as the round trip.
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.inflight.Acquire(callCtx, 1); err != nil {
		perr := classifyTransportError(ctx, err)
		perr.Message = "waiting for provider slot"
		return nil, perr
	}
	defer g.inflight.Release(1)

	model := inv.ProviderModel
	if model == "" {
		model = inv.ModelID
	}

	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(inv.SystemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: inv.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: inv.Instruction})

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   g.maxOutputTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return nil, newError(KindUnknown, 0, "encode request", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindUnknown, 0, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	if g.referer != "" {
		req.Header.Set("HTTP-Referer", g.referer)
	}
	if g.title != "" {
		req.Header.Set("X-Title", g.title)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil || callCtx.Err() != nil {
			return nil, classifyTransportError(ctx, err)
		}
		return nil, newError(KindInvalidResponse, resp.StatusCode, "read body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(resp, data)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(data, &chatResp); err != nil {
		return nil, newError(KindInvalidResponse, resp.StatusCode, "decode body", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, newError(KindInvalidResponse, resp.StatusCode, "no choices in response", nil)
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return nil, newError(KindInvalidResponse, resp.StatusCode, "empty output", nil)
	}

	tokens := chatResp.Usage.TotalTokens
	if tokens == 0 {
		tokens = chatResp.Usage.PromptTokens + chatResp.Usage.CompletionTokens
	}

	return &Completion{
		OutputText: text,
		TokensUsed: tokens,
		ModelID:    inv.ModelID,
	}, nil
}

// classifyTransportError maps a failed round trip to a failure kind.
// The caller's own cancellation or deadline wins over the gateway timeout.
func classifyTransportError(parent context.Context, err error) *Error {
	if parent.Err() != nil {
		return newError(KindCancelled, 0, "request cancelled", parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, 0, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(KindTimeout, 0, "request timed out", err)
	}
	return newError(KindUnknown, 0, "request failed", err)
}

// classifyStatus maps a non-2xx response to a failure kind.
func classifyStatus(resp *http.Response, body []byte) *Error {
	message := resp.Status
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		perr := newError(KindRateLimited, resp.StatusCode, message, nil)
		perr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return perr
	case http.StatusUnauthorized, http.StatusForbidden:
		return newError(KindUnauthorized, resp.StatusCode, message, nil)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return newError(KindTimeout, resp.StatusCode, message, nil)
	default:
		return newError(KindInvalidResponse, resp.StatusCode, message, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
