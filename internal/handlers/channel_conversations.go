package handlers

import (
  "fmt"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/tubewise/tubewise-backend/internal/platform/apierr"
  "github.com/tubewise/tubewise-backend/internal/platform/ctxutil"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/services"
)

type ChannelConversationHandler struct {
  log                        *logger.Logger
  channelConversationService services.ChannelConversationService
}

func NewChannelConversationHandler(log *logger.Logger, channelConversationService services.ChannelConversationService) *ChannelConversationHandler {
  return &ChannelConversationHandler{
    log:                        log.With("handler", "ChannelConversationHandler"),
    channelConversationService: channelConversationService,
  }
}

func (h *ChannelConversationHandler) List(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  limit, offset := pageParams(c)
  conversations, total, err := h.channelConversationService.List(c.Request.Context(), rd.UserID, limit, offset)
  if err != nil {
    h.log.Error("List failed", "error", err, "user_id", rd.UserID.String())
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"items": conversations, "total": total, "limit": limit, "offset": offset})
}

type getOrCreateChannelConversationRequest struct {
  ChannelID string `json:"channel_id"`
}

// GetOrCreate returns the caller's single thread in a channel, creating it on
// first use.
func (h *ChannelConversationHandler) GetOrCreate(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  var req getOrCreateChannelConversationRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid request body"))
    return
  }
  channelID, err := uuid.Parse(req.ChannelID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid channel id"))
    return
  }
  conversation, err := h.channelConversationService.GetOrCreate(c.Request.Context(), rd.UserID, channelID)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"channel_conversation": conversation})
}

func (h *ChannelConversationHandler) Get(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  channelConversationID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid channel conversation id"))
    return
  }
  conversation, messages, err := h.channelConversationService.GetDetail(c.Request.Context(), rd.UserID, channelConversationID)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"channel_conversation": conversation, "messages": messages})
}

func (h *ChannelConversationHandler) Delete(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  channelConversationID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid channel conversation id"))
    return
  }
  if err := h.channelConversationService.Delete(c.Request.Context(), rd.UserID, channelConversationID); err != nil {
    RespondAPIError(c, err)
    return
  }
  c.Status(http.StatusNoContent)
}
