package steps

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/tubewise/tubewise-backend/internal/platform/openai"
	"github.com/tubewise/tubewise-backend/internal/platform/qdrant"
	"github.com/tubewise/tubewise-backend/internal/types"
)

// RetrieveChunks embeds the query, searches the tenant's collection, and
// hydrates matching chunk rows. The row store is authoritative: a vector hit
// with no surviving row is silently dropped. Empty output is a legitimate
// outcome; the generator handles "no context".
func RetrieveChunks(ctx context.Context, deps Deps, state *State) ([]RetrievedChunk, error) {
	query := strings.TrimSpace(state.UserQuery)
	if query == "" || deps.TopK <= 0 {
		return nil, nil
	}

	meta := openai.CallMeta{
		UserID:    state.UserID.String(),
		RequestID: state.RequestID,
		Stage:     "retrieve_embed",
	}
	vectors, err := deps.AI.Embed(ctx, []string{query}, meta)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, nil
	}

	collection, filter, err := retrievalScope(ctx, deps, state)
	if err != nil {
		return nil, err
	}

	matches, err := deps.Vec.Search(ctx, collection, vectors[0], filter, deps.TopK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	return hydrateMatches(ctx, deps, matches)
}

// retrievalScope picks the channel collection plus channel_id filter when the
// conversation is channel-scoped, else the global collection filtered to the
// user's own chunks.
func retrievalScope(ctx context.Context, deps Deps, state *State) (string, map[string]any, error) {
	if state.ChannelID == nil {
		return deps.GlobalCollection, map[string]any{"user_id": state.UserID.String()}, nil
	}
	channel, err := deps.Channels.GetByID(ctx, nil, *state.ChannelID)
	if err != nil {
		return "", nil, err
	}
	return channel.QdrantCollectionName, map[string]any{"channel_id": channel.ID.String()}, nil
}

func hydrateMatches(ctx context.Context, deps Deps, matches []qdrant.Match) ([]RetrievedChunk, error) {
	scoreByID := map[uuid.UUID]float64{}
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		id, err := uuid.Parse(strings.TrimSpace(m.ID))
		if err != nil || id == uuid.Nil {
			continue
		}
		if _, exists := scoreByID[id]; exists {
			continue
		}
		scoreByID[id] = m.Score
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := deps.Chunks.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	chunkByID := map[uuid.UUID]*types.Chunk{}
	transcriptIDs := make([]uuid.UUID, 0, len(rows))
	seenTranscripts := map[uuid.UUID]bool{}
	for _, c := range rows {
		if c == nil || c.ID == uuid.Nil {
			continue
		}
		chunkByID[c.ID] = c
		if !seenTranscripts[c.TranscriptID] {
			seenTranscripts[c.TranscriptID] = true
			transcriptIDs = append(transcriptIDs, c.TranscriptID)
		}
	}
	if len(chunkByID) == 0 {
		return nil, nil
	}

	transcripts, err := deps.Transcripts.GetByIDs(ctx, nil, transcriptIDs)
	if err != nil {
		return nil, err
	}
	transcriptByID := map[uuid.UUID]*types.Transcript{}
	for _, t := range transcripts {
		if t != nil && t.ID != uuid.Nil {
			transcriptByID[t.ID] = t
		}
	}

	// Preserve vector-store score ordering.
	out := make([]RetrievedChunk, 0, len(ids))
	for _, id := range ids {
		chunk := chunkByID[id]
		if chunk == nil {
			continue
		}
		retrieved := RetrievedChunk{
			ChunkID:    chunk.ID,
			Score:      scoreByID[id],
			ChunkText:  chunk.ChunkText,
			ChunkIndex: chunk.ChunkIndex,
		}
		if t := transcriptByID[chunk.TranscriptID]; t != nil {
			retrieved.YoutubeVideoID = t.YoutubeVideoID
			retrieved.VideoTitle = t.Title
		}
		out = append(out, retrieved)
	}
	return out, nil
}
