package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tubewise/tubewise-backend/internal/modules/chat"
	"github.com/tubewise/tubewise-backend/internal/modules/chat/steps"
	"github.com/tubewise/tubewise-backend/internal/platform/apierr"
	"github.com/tubewise/tubewise-backend/internal/platform/ctxutil"
	"github.com/tubewise/tubewise-backend/internal/platform/logger"
	"github.com/tubewise/tubewise-backend/internal/ratelimit"
	"github.com/tubewise/tubewise-backend/internal/services"
	"github.com/tubewise/tubewise-backend/internal/types"
)

// Config holds the gateway knobs. Zero values fall back to the defaults
// documented on each field.
type Config struct {
	HeartbeatInterval time.Duration // ping cadence, default 30s
	MaxMissedPongs    int           // close after this many silent pings, default 2
	MaxHistory        int           // prompt history window, default 10
	MaxContentChars   int           // inbound content cap, default 2000
	TurnTimeout       time.Duration // end-to-end turn budget, default 120s
	WriteTimeout      time.Duration // per-frame write deadline, default 10s
	SendBuffer        int           // outbound queue depth, default 32
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.MaxMissedPongs <= 0 {
		c.MaxMissedPongs = 2
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = 10
	}
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = 2000
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 120 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 32
	}
	return c
}

// Deps bundles everything a session needs to run turns.
type Deps struct {
	Log                  *logger.Logger
	Pipeline             steps.Deps
	Conversations        services.ConversationService
	ChannelConversations services.ChannelConversationService
	Turns                services.TurnService
	Limiter              ratelimit.Limiter
	Config               Config
}

// Session is one websocket connection. The write loop owns the socket for
// writes; everything else goes through sendCh. At most one turn runs at a
// time with one more queued; further frames are rejected busy.
type Session struct {
	log       *logger.Logger
	conn      *websocket.Conn
	deps      Deps
	cfg       Config
	userID    uuid.UUID
	channelID *uuid.UUID

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	inFlight  bool
	queued    *inboundFrame
	requestID string
}

func NewSession(conn *websocket.Conn, userID uuid.UUID, channelID *uuid.UUID, deps Deps) *Session {
	cfg := deps.Config.withDefaults()
	return &Session{
		log:       deps.Log.With("service", "Session"),
		conn:      conn,
		deps:      deps,
		cfg:       cfg,
		userID:    userID,
		channelID: channelID,
		sendCh:    make(chan []byte, cfg.SendBuffer),
		done:      make(chan struct{}),
	}
}

// Run blocks until the connection dies. It owns both loops.
func (s *Session) Run(ctx context.Context) {
	go s.writeLoop()
	s.readLoop(ctx)
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

func (s *Session) readLoop(ctx context.Context) {
	defer s.Close()

	pongWait := s.cfg.HeartbeatInterval * time.Duration(s.cfg.MaxMissedPongs+1)
	s.conn.SetReadLimit(1 << 20)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket closed unexpectedly", "user_id", s.userID.String(), "error", err)
			}
			return
		}
		frame, err := decodeInbound(raw)
		if err != nil {
			s.sendError("", apierr.CodeInvalidInput, "malformed frame")
			continue
		}
		s.handleFrame(ctx, frame)
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.sendCh:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}

// handleFrame enforces the one-in-flight-plus-one-queued turn discipline.
func (s *Session) handleFrame(ctx context.Context, frame *inboundFrame) {
	if frame.Type != FrameMessage {
		s.sendError(frame.RequestID, apierr.CodeInvalidInput, fmt.Sprintf("unsupported frame type %q", frame.Type))
		return
	}

	s.mu.Lock()
	if s.inFlight {
		if s.queued == nil {
			s.queued = frame
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		s.sendError(frame.RequestID, apierr.CodeConversationBusy, "a turn is already running and one is queued")
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	go s.turnLoop(ctx, frame)
}

func (s *Session) turnLoop(ctx context.Context, frame *inboundFrame) {
	for frame != nil {
		s.runTurn(ctx, frame)

		s.mu.Lock()
		frame = s.queued
		s.queued = nil
		if frame == nil {
			s.inFlight = false
		}
		s.mu.Unlock()
	}
}

func (s *Session) runTurn(parent context.Context, frame *inboundFrame) {
	requestID := strings.TrimSpace(frame.RequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	s.setRequestID(requestID)
	defer s.setRequestID("")

	// Rate limiting comes first; a denied turn must persist nothing.
	if !s.deps.Limiter.Allow(s.userID) {
		s.sendAPIError(requestID, apierr.RateLimited(errors.New("message rate limit exceeded, slow down")))
		return
	}

	content := strings.TrimSpace(frame.Content)
	if content == "" {
		s.sendError(requestID, apierr.CodeInvalidInput, "content must not be empty")
		return
	}
	if len([]rune(content)) > s.cfg.MaxContentChars {
		s.sendError(requestID, apierr.CodeInvalidInput, fmt.Sprintf("content exceeds %d characters", s.cfg.MaxContentChars))
		return
	}

	ctx, cancel := context.WithTimeout(parent, s.cfg.TurnTimeout)
	defer cancel()
	ctx = ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: s.userID, RequestID: requestID})

	conversationID, channelConversationID, wireConversationID, err := s.resolveConversation(ctx, frame)
	if err != nil {
		s.sendAPIError(requestID, err)
		return
	}

	history, err := s.deps.Turns.History(ctx, conversationID, channelConversationID, s.cfg.MaxHistory)
	if err != nil {
		s.sendAPIError(requestID, err)
		return
	}

	state := &steps.State{
		UserID:    s.userID,
		RequestID: requestID,
		ChannelID: s.channelID,
		UserQuery: content,
		History:   history,
	}
	if conversationID != nil {
		state.ConversationID = *conversationID
	} else if channelConversationID != nil {
		state.ConversationID = *channelConversationID
	}

	pipelineDeps := s.deps.Pipeline
	pipelineDeps.VideoFrames = s
	graph := chat.NewGraph(pipelineDeps)

	result, err := graph.Run(ctx, state, func(step, message string) {
		s.send(encodeFrame(statusFrame{
			Type:      FrameStatus,
			Step:      step,
			Message:   message,
			RequestID: requestID,
		}))
	})
	if err != nil {
		// A failed turn persists nothing.
		s.sendAPIError(requestID, err)
		return
	}

	_, assistantMsg, err := s.deps.Turns.CommitTurn(ctx, services.CommitTurnInput{
		ConversationID:        conversationID,
		ChannelConversationID: channelConversationID,
		UserContent:           content,
		AssistantContent:      result.Response,
		AssistantMetadata:     result.Metadata,
	})
	if err != nil {
		s.sendAPIError(requestID, err)
		return
	}

	s.send(encodeFrame(messageFrame{
		Type:           FrameMessage,
		MessageID:      assistantMsg.ID.String(),
		ConversationID: wireConversationID,
		Role:           types.MessageRoleAssistant,
		Content:        result.Response,
		Metadata:       result.Metadata,
		RequestID:      requestID,
	}))
}

// resolveConversation maps the session scope and optional frame conversation
// id to exactly one conversation kind.
func (s *Session) resolveConversation(ctx context.Context, frame *inboundFrame) (*uuid.UUID, *uuid.UUID, string, error) {
	if s.channelID != nil {
		conversation, err := s.deps.ChannelConversations.GetOrCreate(ctx, s.userID, *s.channelID)
		if err != nil {
			return nil, nil, "", err
		}
		return nil, &conversation.ID, conversation.ID.String(), nil
	}

	// "new" (or absent) means start a fresh conversation.
	var requested *uuid.UUID
	if raw := strings.TrimSpace(frame.ConversationID); raw != "" && raw != "new" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, nil, "", apierr.InvalidInput(errors.New("conversation_id is not a valid uuid"))
		}
		requested = &id
	}
	conversation, err := s.deps.Conversations.GetOrCreate(ctx, s.userID, requested)
	if err != nil {
		return nil, nil, "", err
	}
	return &conversation.ID, nil, conversation.ID.String(), nil
}

// VideoLoadConfirmation implements steps.VideoLoadEmitter.
func (s *Session) VideoLoadConfirmation(youtubeURL, videoID string) {
	s.send(encodeFrame(videoLoadConfirmationFrame{
		Type:           FrameVideoLoadConfirmation,
		YoutubeURL:     youtubeURL,
		YoutubeVideoID: videoID,
		RequestID:      s.currentRequestID(),
	}))
}

// VideoLoadStatus implements steps.VideoLoadEmitter.
func (s *Session) VideoLoadStatus(status, videoID, videoTitle, errMsg string) {
	s.send(encodeFrame(videoLoadStatusFrame{
		Type:           FrameVideoLoadStatus,
		Status:         status,
		YoutubeVideoID: videoID,
		VideoTitle:     videoTitle,
		Error:          errMsg,
		RequestID:      s.currentRequestID(),
	}))
}

func (s *Session) sendAPIError(requestID string, err error) {
	code := apierr.CodeOf(err)
	message := "something went wrong, try again"
	switch code {
	case apierr.CodeInvalidInput, apierr.CodeNotFound, apierr.CodeForbidden, apierr.CodeRateLimit, apierr.CodeConversationBusy:
		message = err.Error()
	case apierr.CodeExternalAPI:
		message = "an upstream service failed, try again shortly"
	}
	s.log.Warn("turn failed",
		"user_id", s.userID.String(),
		"request_id", requestID,
		"code", code,
		"error", err,
	)
	s.sendError(requestID, code, message)
}

func (s *Session) sendError(requestID, code, message string) {
	s.send(encodeFrame(errorFrame{
		Type:      FrameError,
		Code:      code,
		Message:   message,
		RequestID: requestID,
	}))
}

// send enqueues a frame for the write loop, dropping it if the session is
// closed or the queue is saturated. Slow consumers lose frames rather than
// wedging the pipeline.
func (s *Session) send(payload []byte) {
	select {
	case <-s.done:
	case s.sendCh <- payload:
	default:
		s.log.Warn("outbound frame dropped, send queue full", "user_id", s.userID.String())
	}
}

func (s *Session) setRequestID(id string) {
	s.mu.Lock()
	s.requestID = id
	s.mu.Unlock()
}

func (s *Session) currentRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestID
}
