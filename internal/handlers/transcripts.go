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

type TranscriptHandler struct {
  log               *logger.Logger
  transcriptService services.TranscriptService
}

func NewTranscriptHandler(log *logger.Logger, transcriptService services.TranscriptService) *TranscriptHandler {
  return &TranscriptHandler{
    log:               log.With("handler", "TranscriptHandler"),
    transcriptService: transcriptService,
  }
}

func (h *TranscriptHandler) List(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  transcripts, err := h.transcriptService.List(c.Request.Context(), rd.UserID)
  if err != nil {
    h.log.Error("List failed", "error", err, "user_id", rd.UserID.String())
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"transcripts": transcripts})
}

func (h *TranscriptHandler) Get(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  transcriptID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid transcript id"))
    return
  }
  transcript, err := h.transcriptService.Get(c.Request.Context(), rd.UserID, transcriptID)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"transcript": transcript})
}

func (h *TranscriptHandler) Delete(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }
  transcriptID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid transcript id"))
    return
  }
  if err := h.transcriptService.Delete(c.Request.Context(), rd.UserID, transcriptID); err != nil {
    h.log.Error("Delete failed", "error", err, "transcript_id", transcriptID.String())
    RespondAPIError(c, err)
    return
  }
  c.Status(http.StatusNoContent)
}
