package app

import (
	"gorm.io/gorm"

	"github.com/tubewise/tubewise-backend/internal/gateway"
	"github.com/tubewise/tubewise-backend/internal/handlers"
	"github.com/tubewise/tubewise-backend/internal/modules/chat/steps"
	"github.com/tubewise/tubewise-backend/internal/platform/logger"
)

type Handlers struct {
	WS                  *handlers.WSHandler
	Conversation        *handlers.ConversationHandler
	ChannelConversation *handlers.ChannelConversationHandler
	Channel             *handlers.ChannelHandler
	Transcript          *handlers.TranscriptHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, cfg Config, clients Clients, reposet Repos, serviceset Services, registry *gateway.Registry) Handlers {
	log.Info("Wiring handlers...")

	gatewayDeps := gateway.Deps{
		Log: log,
		Pipeline: steps.Deps{
			Log:               log,
			DB:                db,
			AI:                clients.AI,
			Vec:               clients.Vec,
			Chunks:            reposet.Chunk,
			Transcripts:       reposet.Transcript,
			Channels:          reposet.Channel,
			Ingest:            serviceset.Ingestion,
			GlobalCollection:  cfg.GlobalCollection,
			TopK:              cfg.RetrievalTopK,
			GraderConcurrency: cfg.GraderConcurrency,
		},
		Conversations:        serviceset.Conversation,
		ChannelConversations: serviceset.ChannelConversation,
		Turns:                serviceset.Turn,
		Limiter:              serviceset.Limiter,
		Config: gateway.Config{
			HeartbeatInterval: cfg.HeartbeatInterval,
			MaxMissedPongs:    cfg.MaxMissedPongs,
			MaxHistory:        cfg.MaxHistoryMessages,
			MaxContentChars:   cfg.MaxContentChars,
			TurnTimeout:       cfg.TurnTimeout,
		},
	}

	return Handlers{
		WS:                  handlers.NewWSHandler(log, gatewayDeps, serviceset.Channel, registry),
		Conversation:        handlers.NewConversationHandler(log, serviceset.Conversation),
		ChannelConversation: handlers.NewChannelConversationHandler(log, serviceset.ChannelConversation),
		Channel:             handlers.NewChannelHandler(log, serviceset.Channel),
		Transcript:          handlers.NewTranscriptHandler(log, serviceset.Transcript),
	}
}
