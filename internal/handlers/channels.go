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

type ChannelHandler struct {
  log            *logger.Logger
  channelService services.ChannelService
}

func NewChannelHandler(log *logger.Logger, channelService services.ChannelService) *ChannelHandler {
  return &ChannelHandler{
    log:            log.With("handler", "ChannelHandler"),
    channelService: channelService,
  }
}

func (h *ChannelHandler) List(c *gin.Context) {
  channels, err := h.channelService.List(c.Request.Context())
  if err != nil {
    h.log.Error("List failed", "error", err)
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"channels": channels})
}

func (h *ChannelHandler) Get(c *gin.Context) {
  channelID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid channel id"))
    return
  }
  channel, err := h.channelService.Get(c.Request.Context(), channelID)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"channel": channel})
}

type createChannelRequest struct {
  Name         string `json:"name"`
  DisplayTitle string `json:"display_title"`
  Description  string `json:"description"`
}

func (h *ChannelHandler) Create(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  var req createChannelRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid request body"))
    return
  }
  channel, err := h.channelService.Create(c.Request.Context(), rd.UserID, req.Name, req.DisplayTitle, req.Description)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"channel": channel})
}

type addChannelVideoRequest struct {
  TranscriptID string `json:"transcript_id"`
}

func (h *ChannelHandler) AddVideo(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  channelID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid channel id"))
    return
  }
  var req addChannelVideoRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid request body"))
    return
  }
  transcriptID, err := uuid.Parse(req.TranscriptID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid transcript id"))
    return
  }
  if err := h.channelService.AddVideo(c.Request.Context(), channelID, transcriptID, rd.UserID); err != nil {
    h.log.Error("AddVideo failed", "error", err, "channel_id", channelID.String())
    RespondAPIError(c, err)
    return
  }
  c.Status(http.StatusNoContent)
}

func (h *ChannelHandler) RemoveVideo(c *gin.Context) {
  channelID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid channel id"))
    return
  }
  transcriptID, err := uuid.Parse(c.Param("transcript_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid transcript id"))
    return
  }
  if err := h.channelService.RemoveVideo(c.Request.Context(), channelID, transcriptID); err != nil {
    h.log.Error("RemoveVideo failed", "error", err, "channel_id", channelID.String())
    RespondAPIError(c, err)
    return
  }
  c.Status(http.StatusNoContent)
}

func (h *ChannelHandler) Delete(c *gin.Context) {
  channelID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid channel id"))
    return
  }
  if err := h.channelService.Delete(c.Request.Context(), channelID); err != nil {
    h.log.Error("Delete failed", "error", err, "channel_id", channelID.String())
    RespondAPIError(c, err)
    return
  }
  c.Status(http.StatusNoContent)
}
