package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/tubewise/tubewise-backend/internal/platform/ctxutil"
	"github.com/tubewise/tubewise-backend/internal/platform/logger"
)

const maxErrorBodyBytes = 1024

// Vector is one point to store: ID must be a UUID string (chunk id).
type Vector struct {
	ID      string
	Values  []float32
	Payload map[string]any
}

type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorStore is the retrieval surface over Qdrant. Collections are created
// lazily per corpus (one global transcript collection plus one per channel).
type VectorStore interface {
	EnsureCollection(ctx context.Context, collection string, dim int) error
	EnsurePayloadIndexes(ctx context.Context, collection string, fields []string) error
	Upsert(ctx context.Context, collection string, vectors []Vector) error
	Search(ctx context.Context, collection string, query []float32, filter map[string]any, limit int) ([]Match, error)
	Delete(ctx context.Context, collection string, ids []string) error
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error
	DropCollection(ctx context.Context, collection string) error
}

type vectorStore struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewVectorStore(log *logger.Logger, cfg Config) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	s := &vectorStore{
		log:     log.With("service", "QdrantVectorStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}

	if err := s.verifyReady(context.Background()); err != nil {
		return nil, err
	}

	log.Info("Qdrant vector store ready", "url", s.baseURL)
	return s, nil
}

func (s *vectorStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	const op = "ensure_collection"
	if strings.TrimSpace(collection) == "" {
		return opErr(op, OperationErrorValidation, "collection name required", nil)
	}
	if dim <= 0 {
		return opErr(op, OperationErrorValidation, "vector dimension must be positive", nil)
	}

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := s.doJSON(ctx, op, http.MethodGet, collectionPath(collection, ""), nil, &info)
	if err == nil {
		if info.Config.Params.Vectors.Size != 0 && info.Config.Params.Vectors.Size != dim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("collection %q vector size mismatch: expected=%d actual=%d",
					collection, dim, info.Config.Params.Vectors.Size), nil)
		}
		return nil
	}
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) || opErrTyped.StatusCode != http.StatusNotFound {
		return err
	}

	req := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if createErr := s.doJSON(ctx, op, http.MethodPut, collectionPath(collection, ""), req, nil); createErr != nil {
		// Concurrent creation loses the race with a 409; the collection exists
		// either way.
		var created *OperationError
		if errors.As(createErr, &created) && created.StatusCode == http.StatusConflict {
			return nil
		}
		return createErr
	}
	s.log.Info("qdrant collection created", "collection", collection, "dim", dim)
	return nil
}

func (s *vectorStore) EnsurePayloadIndexes(ctx context.Context, collection string, fields []string) error {
	const op = "ensure_payload_indexes"
	if strings.TrimSpace(collection) == "" {
		return opErr(op, OperationErrorValidation, "collection name required", nil)
	}
	for _, field := range fields {
		f := strings.TrimSpace(field)
		if f == "" {
			continue
		}
		req := map[string]any{
			"field_name":   f,
			"field_schema": "keyword",
		}
		if err := s.doJSON(ctx, op, http.MethodPut, collectionPath(collection, "/index?wait=true"), req, nil); err != nil {
			var typed *OperationError
			if errors.As(err, &typed) && typed.StatusCode >= 400 && typed.StatusCode < 500 {
				// Index already present.
				continue
			}
			return err
		}
	}
	return nil
}

func (s *vectorStore) Upsert(ctx context.Context, collection string, vectors []Vector) error {
	const op = "upsert"
	if strings.TrimSpace(collection) == "" {
		return opErr(op, OperationErrorValidation, "collection name required", nil)
	}
	if len(vectors) == 0 {
		return nil
	}

	points := make([]map[string]any, 0, len(vectors))
	for _, v := range vectors {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "vector id is required", nil)
		}
		if len(v.Values) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("vector %q has empty values", id), nil)
		}
		points = append(points, map[string]any{
			"id":      id,
			"vector":  v.Values,
			"payload": clonePayload(v.Payload),
		})
	}

	req := map[string]any{"points": points}
	return s.doJSON(ctx, op, http.MethodPut, collectionPath(collection, "/points?wait=true"), req, nil)
}

func (s *vectorStore) Search(ctx context.Context, collection string, query []float32, filter map[string]any, limit int) ([]Match, error) {
	const op = "search"
	if strings.TrimSpace(collection) == "" {
		return nil, opErr(op, OperationErrorValidation, "collection name required", nil)
	}
	if len(query) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if limit <= 0 {
		limit = 10
	}

	req := map[string]any{
		"vector":       query,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if len(filter) > 0 {
		translated, err := translateFilter(filter)
		if err != nil {
			return nil, err
		}
		req["filter"] = translated
	}

	var rawResults []qdrantSearchResultItem
	if err := s.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/search"), req, &rawResults); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(rawResults))
	for _, item := range rawResults {
		id := decodePointID(item.ID)
		if id == "" {
			continue
		}
		out = append(out, Match{ID: id, Score: item.Score, Payload: item.Payload})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (s *vectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	const op = "delete"
	if strings.TrimSpace(collection) == "" {
		return opErr(op, OperationErrorValidation, "collection name required", nil)
	}
	pointIDs := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		pointIDs = append(pointIDs, trimmed)
	}
	if len(pointIDs) == 0 {
		return nil
	}

	req := map[string]any{"points": pointIDs}
	return s.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/delete?wait=true"), req, nil)
}

func (s *vectorStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	const op = "delete_by_filter"
	if strings.TrimSpace(collection) == "" {
		return opErr(op, OperationErrorValidation, "collection name required", nil)
	}
	if len(filter) == 0 {
		return opErr(op, OperationErrorValidation, "filter required for filtered delete", nil)
	}
	translated, err := translateFilter(filter)
	if err != nil {
		return err
	}
	req := map[string]any{"filter": translated}
	return s.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/delete?wait=true"), req, nil)
}

func (s *vectorStore) DropCollection(ctx context.Context, collection string) error {
	const op = "drop_collection"
	if strings.TrimSpace(collection) == "" {
		return opErr(op, OperationErrorValidation, "collection name required", nil)
	}
	err := s.doJSON(ctx, op, http.MethodDelete, collectionPath(collection, ""), nil, nil)
	var typed *OperationError
	if errors.As(err, &typed) && typed.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

func (s *vectorStore) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"

	readyReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	s.authorize(readyReq)
	readyResp, err := s.http.Do(readyReq)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = readyResp.Body.Close()
	if readyResp.StatusCode < 200 || readyResp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: readyResp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", readyResp.StatusCode),
		}
	}
	return nil
}

func (s *vectorStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func (s *vectorStore) authorize(req *http.Request) {
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}

	return fmt.Sprintf("qdrant status=%s", status)
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber int64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func clonePayload(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func collectionPath(collection, suffix string) string {
	path := "/collections/" + collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}
