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

type ConversationHandler struct {
  log                 *logger.Logger
  conversationService services.ConversationService
}

func NewConversationHandler(log *logger.Logger, conversationService services.ConversationService) *ConversationHandler {
  return &ConversationHandler{
    log:                 log.With("handler", "ConversationHandler"),
    conversationService: conversationService,
  }
}

func (h *ConversationHandler) List(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  limit, offset := pageParams(c)
  conversations, total, err := h.conversationService.List(c.Request.Context(), rd.UserID, limit, offset)
  if err != nil {
    h.log.Error("List failed", "error", err, "user_id", rd.UserID.String())
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"items": conversations, "total": total, "limit": limit, "offset": offset})
}

func (h *ConversationHandler) Create(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  conversation, err := h.conversationService.GetOrCreate(c.Request.Context(), rd.UserID, nil)
  if err != nil {
    h.log.Error("Create failed", "error", err, "user_id", rd.UserID.String())
    RespondAPIError(c, err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"conversation": conversation})
}

func (h *ConversationHandler) Get(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  conversationID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid conversation id"))
    return
  }
  conversation, messages, err := h.conversationService.GetDetail(c.Request.Context(), rd.UserID, conversationID)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"conversation": conversation, "messages": messages})
}

type updateConversationTitleRequest struct {
  Title string `json:"title"`
}

func (h *ConversationHandler) UpdateTitle(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  conversationID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid conversation id"))
    return
  }
  var req updateConversationTitleRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid request body"))
    return
  }
  conversation, err := h.conversationService.UpdateTitle(c.Request.Context(), rd.UserID, conversationID, req.Title)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"conversation": conversation})
}

func (h *ConversationHandler) Delete(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  conversationID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid conversation id"))
    return
  }
  if err := h.conversationService.Delete(c.Request.Context(), rd.UserID, conversationID); err != nil {
    RespondAPIError(c, err)
    return
  }
  c.Status(http.StatusNoContent)
}
