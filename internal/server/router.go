package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "github.com/tubewise/tubewise-backend/internal/handlers"
  "github.com/tubewise/tubewise-backend/internal/middleware"
)

type RouterConfig struct {
  AuthMiddleware             *middleware.AuthMiddleware
  WSHandler                  *handlers.WSHandler
  ConversationHandler        *handlers.ConversationHandler
  ChannelConversationHandler *handlers.ChannelConversationHandler
  ChannelHandler             *handlers.ChannelHandler
  TranscriptHandler          *handlers.TranscriptHandler
  AllowedOrigins             []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  origins := cfg.AllowedOrigins
  if len(origins) == 0 {
    origins = []string{"http://localhost:3000", "http://localhost:5173"}
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     origins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)

// ===============
// || Protected ||
// ===============
  protected := router.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  // Chat gateway
  protected.GET("/ws", cfg.WSHandler.Serve)
  // Conversations
  protected.GET("/conversations", cfg.ConversationHandler.List)
  protected.POST("/conversations", cfg.ConversationHandler.Create)
  protected.GET("/conversations/:id", cfg.ConversationHandler.Get)
  protected.PATCH("/conversations/:id", cfg.ConversationHandler.UpdateTitle)
  protected.DELETE("/conversations/:id", cfg.ConversationHandler.Delete)
  // Channel conversations
  protected.GET("/channel-conversations", cfg.ChannelConversationHandler.List)
  protected.POST("/channel-conversations", cfg.ChannelConversationHandler.GetOrCreate)
  protected.GET("/channel-conversations/:id", cfg.ChannelConversationHandler.Get)
  protected.DELETE("/channel-conversations/:id", cfg.ChannelConversationHandler.Delete)
  // Channels (reads for everyone, curation is admin only)
  protected.GET("/channels", cfg.ChannelHandler.List)
  protected.GET("/channels/:id", cfg.ChannelHandler.Get)
  admin := protected.Group("/")
  admin.Use(cfg.AuthMiddleware.RequireAdmin())
  admin.POST("/channels", cfg.ChannelHandler.Create)
  admin.POST("/channels/:id/videos", cfg.ChannelHandler.AddVideo)
  admin.DELETE("/channels/:id/videos/:transcript_id", cfg.ChannelHandler.RemoveVideo)
  admin.DELETE("/channels/:id", cfg.ChannelHandler.Delete)
  // Transcripts
  protected.GET("/transcripts", cfg.TranscriptHandler.List)
  protected.GET("/transcripts/:id", cfg.TranscriptHandler.Get)
  protected.DELETE("/transcripts/:id", cfg.TranscriptHandler.Delete)

  return router
}
