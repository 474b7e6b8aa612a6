package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tubewise/tubewise-backend/internal/platform/logger"
	"github.com/tubewise/tubewise-backend/internal/platform/openai"
	"github.com/tubewise/tubewise-backend/internal/platform/qdrant"
	"github.com/tubewise/tubewise-backend/internal/services"
)

type Clients struct {
	AI      openai.Client
	Vec     qdrant.VectorStore
	Fetcher services.TranscriptFetcher
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	ai, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("resolve qdrant config: %w", err)
	}
	vec, err := qdrant.NewVectorStore(log, qdrantCfg)
	if err != nil {
		return Clients{}, fmt.Errorf("init qdrant client: %w", err)
	}

	// The global transcript collection must exist before the first turn.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := vec.EnsureCollection(ctx, cfg.GlobalCollection, cfg.EmbedDim); err != nil {
		return Clients{}, fmt.Errorf("ensure global collection: %w", err)
	}
	if err := vec.EnsurePayloadIndexes(ctx, cfg.GlobalCollection, []string{"user_id", "youtube_video_id"}); err != nil {
		return Clients{}, fmt.Errorf("ensure global payload indexes: %w", err)
	}

	fetcher, err := services.NewHTTPTranscriptFetcher(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init transcript fetcher: %w", err)
	}

	return Clients{AI: ai, Vec: vec, Fetcher: fetcher}, nil
}
