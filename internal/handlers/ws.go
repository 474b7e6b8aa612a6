package handlers

import (
  "fmt"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/gorilla/websocket"
  "github.com/tubewise/tubewise-backend/internal/gateway"
  "github.com/tubewise/tubewise-backend/internal/platform/apierr"
  "github.com/tubewise/tubewise-backend/internal/platform/ctxutil"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/services"
)

type WSHandler struct {
  log      *logger.Logger
  deps     gateway.Deps
  channels services.ChannelService
  registry *gateway.Registry
  upgrader websocket.Upgrader
}

func NewWSHandler(log *logger.Logger, deps gateway.Deps, channels services.ChannelService, registry *gateway.Registry) *WSHandler {
  return &WSHandler{
    log:      log.With("handler", "WSHandler"),
    deps:     deps,
    channels: channels,
    registry: registry,
    upgrader: websocket.Upgrader{
      ReadBufferSize:  4096,
      WriteBufferSize: 4096,
      // Origins are enforced by the CORS layer; the token gate already ran.
      CheckOrigin: func(*http.Request) bool { return true },
    },
  }
}

// Serve upgrades the request and runs the session until the socket closes.
// An optional ?channel_id= scopes the whole session to that channel.
func (h *WSHandler) Serve(c *gin.Context) {
  rd := ctxutil.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, nil)
    return
  }

  var channelID *uuid.UUID
  if raw := c.Query("channel_id"); raw != "" {
    id, err := uuid.Parse(raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid channel id"))
      return
    }
    // A channel scope must reference a live channel before the socket opens;
    // the channel read already excludes soft-deleted rows.
    if _, err := h.channels.Get(c.Request.Context(), id); err != nil {
      h.log.Warn("rejected session for unavailable channel", "channel_id", id.String(), "user_id", rd.UserID.String(), "error", err)
      RespondError(c, http.StatusForbidden, apierr.CodeForbidden, fmt.Errorf("channel %s is not available", id))
      return
    }
    channelID = &id
  }

  conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
  if err != nil {
    h.log.Warn("websocket upgrade failed", "error", err, "user_id", rd.UserID.String())
    return
  }

  session := gateway.NewSession(conn, rd.UserID, channelID, h.deps)
  h.registry.Add(session)
  defer h.registry.Remove(session)

  h.log.Info("session opened", "user_id", rd.UserID.String())
  session.Run(c.Request.Context())
  h.log.Info("session closed", "user_id", rd.UserID.String())
}
