package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tubewise/tubewise-backend/internal/platform/ctxutil"
	"github.com/tubewise/tubewise-backend/internal/platform/httpx"
	"github.com/tubewise/tubewise-backend/internal/platform/logger"
)

const (
	maxEmbedBatch = 100
	maxBackoff    = 10 * time.Second
)

// CallMeta tags one outbound model call for correlation and telemetry.
type CallMeta struct {
	UserID    string
	RequestID string
	Stage     string
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TextOptions control one chat generation call.
type TextOptions struct {
	System      string
	Temperature float64
	MaxTokens   int
	Meta        CallMeta
}

// Client is the language-model surface the rest of the backend consumes.
type Client interface {
	// Embed maps texts to fixed-dimension vectors, batching internally.
	Embed(ctx context.Context, texts []string, meta CallMeta) ([][]float32, error)

	// GenerateText runs one plain chat completion.
	GenerateText(ctx context.Context, prompt string, opts TextOptions) (string, Usage, error)

	// GenerateJSON runs one structured-output completion (json_schema) and
	// returns the decoded object.
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any, meta CallMeta) (map[string]any, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	embedModel string

	chatClient  *http.Client
	embedClient *http.Client

	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}
	embedModel := strings.TrimSpace(os.Getenv("OPENAI_EMBED_MODEL"))
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}

	chatTimeout := envSeconds("OPENAI_TIMEOUT_SECONDS", 60)
	embedTimeout := envSeconds("OPENAI_EMBED_TIMEOUT_SECONDS", 30)

	maxRetries := 3
	if v := strings.TrimSpace(os.Getenv("OPENAI_MAX_RETRIES")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:         log.With("service", "OpenAIClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		embedModel:  embedModel,
		chatClient:  &http.Client{Timeout: time.Duration(chatTimeout) * time.Second},
		embedClient: &http.Client{Timeout: time.Duration(embedTimeout) * time.Second},
		maxRetries:  maxRetries,
	}, nil
}

func envSeconds(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

type httpError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string         `json:"type"`
	JSONSchema map[string]any `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	User           string          `json:"user,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
	User  string   `json:"user,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage Usage `json:"usage"`
}

func (c *client) Embed(ctx context.Context, texts []string, meta CallMeta) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		req := embedRequest{Model: c.embedModel, Input: batch, User: meta.UserID}
		var resp embedResponse
		if err := c.doWithRetry(ctx, c.embedClient, "/v1/embeddings", req, &resp, meta); err != nil {
			return nil, err
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("openai embeddings: expected %d vectors, got %d", len(batch), len(resp.Data))
		}
		vectors := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
			}
			vectors[d.Index] = d.Embedding
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *client) GenerateText(ctx context.Context, prompt string, opts TextOptions) (string, Usage, error) {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(opts.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	temp := opts.Temperature
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: &temp,
		MaxTokens:   opts.MaxTokens,
		User:        opts.Meta.UserID,
	}
	var resp chatResponse
	if err := c.doWithRetry(ctx, c.chatClient, "/v1/chat/completions", req, &resp, opts.Meta); err != nil {
		return "", Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", resp.Usage, fmt.Errorf("openai chat: empty choices")
	}
	return resp.Choices[0].Message.Content, resp.Usage, nil
}

func (c *client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any, meta CallMeta) (map[string]any, error) {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	temp := 0.0
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: &temp,
		User:        meta.UserID,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: map[string]any{
				"name":   schemaName,
				"strict": true,
				"schema": schema,
			},
		},
	}
	var resp chatResponse
	if err := c.doWithRetry(ctx, c.chatClient, "/v1/chat/completions", req, &resp, meta); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat: empty choices")
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("openai structured output decode: %w; raw=%q", err, truncate(raw, 256))
	}
	return obj, nil
}

func (c *client) doOnce(ctx context.Context, httpClient *http.Client, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, &httpError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(raw), 512),
			RetryAfter: httpx.RetryAfterDuration(resp, 0, maxBackoff),
		}
	}
	return raw, nil
}

func (c *client) doWithRetry(ctx context.Context, httpClient *http.Client, path string, body any, out any, meta CallMeta) error {
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw, err := c.doOnce(ctx, httpClient, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			return nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			break
		}
		c.log.Warn("openai call retrying",
			"path", path,
			"attempt", attempt+1,
			"request_id", meta.RequestID,
			"stage", meta.Stage,
			"error", err,
		)
		// A server-supplied Retry-After wins over our own backoff.
		wait := httpx.JitterSleep(backoff)
		var he *httpError
		if errors.As(err, &he) && he.RetryAfter > 0 {
			wait = he.RetryAfter
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return lastErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
