package app

import (
	"github.com/gin-gonic/gin"

	"github.com/tubewise/tubewise-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers, middlewareset Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AuthMiddleware:             middlewareset.Auth,
		WSHandler:                  handlerset.WS,
		ConversationHandler:        handlerset.Conversation,
		ChannelConversationHandler: handlerset.ChannelConversation,
		ChannelHandler:             handlerset.Channel,
		TranscriptHandler:          handlerset.Transcript,
		AllowedOrigins:             cfg.AllowedOrigins,
	})
}
