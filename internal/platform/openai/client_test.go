package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tubewise/tubewise-backend/internal/platform/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

func newTestClient(t *testing.T, srv *httptest.Server) Client {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", srv.URL)
	t.Setenv("OPENAI_MAX_RETRIES", "2")
	c, err := NewClient(newTestLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func chatCompletion(content string, usage Usage) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
		"usage": usage,
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(newTestLogger(t)); err == nil {
		t.Fatalf("NewClient: want error without OPENAI_API_KEY")
	}
}

func TestGenerateJSONSendsSchemaAndDecodes(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path: got=%q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header: got=%q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeJSON(t, w, http.StatusOK, chatCompletion(`{"intent":"qa","confidence":0.9,"reasoning":"r"}`, Usage{TotalTokens: 10}))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	schema := map[string]any{"type": "object"}
	obj, err := c.GenerateJSON(context.Background(), "system", "user input", "intent_classification_v1", schema, CallMeta{UserID: "u1"})
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if obj["intent"] != "qa" {
		t.Fatalf("decoded intent: got=%v", obj["intent"])
	}
	if gotBody.ResponseFormat == nil || gotBody.ResponseFormat.Type != "json_schema" {
		t.Fatalf("response_format: got=%+v", gotBody.ResponseFormat)
	}
	if gotBody.ResponseFormat.JSONSchema["name"] != "intent_classification_v1" {
		t.Fatalf("schema name: got=%v", gotBody.ResponseFormat.JSONSchema["name"])
	}
	if gotBody.ResponseFormat.JSONSchema["strict"] != true {
		t.Fatalf("strict: got=%v", gotBody.ResponseFormat.JSONSchema["strict"])
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Fatalf("messages: got=%+v", gotBody.Messages)
	}
}

func TestGenerateJSONRejectsNonJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, chatCompletion("sorry, I cannot do that", Usage{}))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, err := c.GenerateJSON(context.Background(), "s", "u", "n", map[string]any{"type": "object"}, CallMeta{}); err == nil {
		t.Fatalf("GenerateJSON: want decode error")
	}
}

func TestGenerateTextReturnsUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Temperature == nil || *req.Temperature != 0.7 {
			t.Errorf("temperature: got=%v", req.Temperature)
		}
		if req.MaxTokens != 2000 {
			t.Errorf("max_tokens: got=%d", req.MaxTokens)
		}
		writeJSON(t, w, http.StatusOK, chatCompletion("an answer", Usage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12}))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	text, usage, err := c.GenerateText(context.Background(), "prompt", TextOptions{System: "sys", Temperature: 0.7, MaxTokens: 2000})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "an answer" {
		t.Fatalf("text: got=%q", text)
	}
	if usage.TotalTokens != 12 {
		t.Fatalf("usage: got=%+v", usage)
	}
}

func TestGenerateTextEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"choices": []any{}, "usage": Usage{}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, _, err := c.GenerateText(context.Background(), "prompt", TextOptions{}); err == nil {
		t.Fatalf("GenerateText: want error on empty choices")
	}
}

func TestEmbedSplitsIntoBatches(t *testing.T) {
	var batchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path: got=%q", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		batchSizes = append(batchSizes, len(req.Input))

		// Return vectors with indexes reversed to exercise index mapping.
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{"index": i, "embedding": []float32{float32(i)}})
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"data": data, "usage": Usage{}})
	}))
	defer srv.Close()

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	c := newTestClient(t, srv)
	vectors, err := c.Embed(context.Background(), texts, CallMeta{})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 250 {
		t.Fatalf("vectors: want=250 got=%d", len(vectors))
	}
	want := []int{100, 100, 50}
	if len(batchSizes) != 3 || batchSizes[0] != want[0] || batchSizes[1] != want[1] || batchSizes[2] != want[2] {
		t.Fatalf("batch sizes: want=%v got=%v", want, batchSizes)
	}
	// Position within the batch survives the out-of-order response.
	if vectors[0][0] != 0 || vectors[99][0] != 99 || vectors[100][0] != 0 {
		t.Fatalf("index mapping broken: %v %v %v", vectors[0], vectors[99], vectors[100])
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for empty input")
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	vectors, err := c.Embed(context.Background(), nil, CallMeta{})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 0 {
		t.Fatalf("vectors: want=0 got=%d", len(vectors))
	}
}

func TestRetryOn429ThenSuccess(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeJSON(t, w, http.StatusTooManyRequests, map[string]any{"error": map[string]any{"message": "rate limited"}})
			return
		}
		writeJSON(t, w, http.StatusOK, chatCompletion("recovered", Usage{}))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	text, _, err := c.GenerateText(context.Background(), "prompt", TextOptions{})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "recovered" {
		t.Fatalf("text: got=%q", text)
	}
	if calls != 2 {
		t.Fatalf("calls: want=2 got=%d", calls)
	}
}

func TestDoOnceCapturesRetryAfterHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		writeJSON(t, w, http.StatusTooManyRequests, map[string]any{"error": map[string]any{"message": "rate limited"}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv).(*client)
	_, err := c.doOnce(context.Background(), c.chatClient, "/chat/completions", chatRequest{Model: c.model})
	if err == nil {
		t.Fatalf("doOnce: want error")
	}
	var he *httpError
	if !errors.As(err, &he) {
		t.Fatalf("error: want httpError, got %v", err)
	}
	if he.RetryAfter != 7*time.Second {
		t.Fatalf("retry after: want=7s got=%v", he.RetryAfter)
	}
}

func TestDoOnceClampsOversizedRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3600")
		writeJSON(t, w, http.StatusTooManyRequests, map[string]any{"error": map[string]any{"message": "rate limited"}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv).(*client)
	_, err := c.doOnce(context.Background(), c.chatClient, "/chat/completions", chatRequest{Model: c.model})
	var he *httpError
	if !errors.As(err, &he) {
		t.Fatalf("error: want httpError, got %v", err)
	}
	if he.RetryAfter != maxBackoff {
		t.Fatalf("retry after: want=%v got=%v", maxBackoff, he.RetryAfter)
	}
}

func TestNonRetryableStatusFailsFast(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(t, w, http.StatusBadRequest, map[string]any{"error": map[string]any{"message": "bad schema"}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, _, err := c.GenerateText(context.Background(), "prompt", TextOptions{})
	if err == nil {
		t.Fatalf("GenerateText: want error")
	}
	var he *httpError
	if !errors.As(err, &he) || he.StatusCode != http.StatusBadRequest {
		t.Fatalf("error: want httpError 400, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Fatalf("error text: got=%q", err.Error())
	}
}
