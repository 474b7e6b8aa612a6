package app

import (
	"gorm.io/gorm"

	"github.com/tubewise/tubewise-backend/internal/platform/logger"
	"github.com/tubewise/tubewise-backend/internal/ratelimit"
	"github.com/tubewise/tubewise-backend/internal/services"
)

type Services struct {
	Conversation        services.ConversationService
	ChannelConversation services.ChannelConversationService
	Channel             services.ChannelService
	Transcript          services.TranscriptService
	Ingestion           services.IngestionService
	Turn                services.TurnService
	Limiter             ratelimit.Limiter
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, clients Clients, reposet Repos) Services {
	log.Info("Wiring services...")

	ingestion := services.NewIngestionService(
		db, log, clients.AI, clients.Vec, clients.Fetcher,
		reposet.Transcript, reposet.Chunk,
		cfg.GlobalCollection, cfg.EmbedDim,
		services.ChunkingOptions{SizeTokens: cfg.ChunkSizeTokens, OverlapPct: cfg.ChunkOverlapPct},
	)

	return Services{
		Conversation:        services.NewConversationService(db, log, reposet.Conversation, reposet.Message),
		ChannelConversation: services.NewChannelConversationService(db, log, reposet.ChannelConversation, reposet.Channel, reposet.Message),
		Channel: services.NewChannelService(
			db, log, clients.Vec,
			reposet.Channel, reposet.ChannelVideo, reposet.Transcript, reposet.Chunk,
			ingestion,
			cfg.GlobalCollection, cfg.EmbedDim, cfg.ChannelDeleteOrphans,
		),
		Transcript: services.NewTranscriptService(db, log, clients.Vec, reposet.Transcript, reposet.Chunk, cfg.GlobalCollection),
		Ingestion:  ingestion,
		Turn:       services.NewTurnService(db, log, reposet.Message, reposet.Conversation, reposet.ChannelConversation),
		Limiter:    ratelimit.NewSlidingWindow(cfg.RateLimitPerWindow, cfg.RateLimitWindow, log),
	}
}
