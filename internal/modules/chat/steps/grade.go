package steps

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tubewise/tubewise-backend/internal/platform/openai"
)

// GradeChunks keeps the chunks the model judges relevant, preserving
// retrieval order. Per-chunk failures are logged and the chunk dropped;
// grading is advisory and one transient failure must not sink the turn.
func GradeChunks(ctx context.Context, deps Deps, state *State) ([]RetrievedChunk, error) {
	chunks := state.RetrievedChunks
	if len(chunks) == 0 {
		return nil, nil
	}

	concurrency := deps.GraderConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"is_relevant": map[string]any{"type": "boolean"},
			"reasoning":   map[string]any{"type": "string"},
		},
		"required": []any{"is_relevant", "reasoning"},
	}
	system := strings.TrimSpace(strings.Join([]string{
		"You judge whether a transcript excerpt helps answer a user question.",
		"Relevant means the excerpt contains information the answer would cite.",
		"Return ONLY JSON matching the schema.",
	}, "\n"))

	relevant := make([]bool, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range chunks {
		g.Go(func() error {
			chunk := chunks[i]
			user := strings.TrimSpace(strings.Join([]string{
				"QUESTION:",
				state.UserQuery,
				"",
				"EXCERPT:",
				trimToChars(chunk.ChunkText, 1200),
			}, "\n"))
			meta := openai.CallMeta{
				UserID:    state.UserID.String(),
				RequestID: state.RequestID,
				Stage:     "grade",
			}
			obj, err := deps.AI.GenerateJSON(gctx, system, user, "chunk_grade_v1", schema, meta)
			if err != nil {
				deps.Log.Warn("grader call failed, dropping chunk",
					"chunk_id", chunk.ChunkID.String(),
					"request_id", state.RequestID,
					"error", err,
				)
				return nil
			}
			if isRelevant, _ := obj["is_relevant"].(bool); isRelevant {
				relevant[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Per-chunk errors are swallowed above; cancellation is not.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]RetrievedChunk, 0, len(chunks))
	for i, keep := range relevant {
		if keep {
			out = append(out, chunks[i])
		}
	}
	return out, nil
}
