package gateway

import (
	"encoding/json"
	"strings"
)

// Frame types crossing the socket. Inbound traffic is `message` only;
// everything else is outbound.
const (
	FrameMessage               = "message"
	FrameStatus                = "status"
	FrameError                 = "error"
	FrameVideoLoadConfirmation = "video_load_confirmation"
	FrameVideoLoadStatus       = "video_load_status"
)

// inboundFrame is one user turn request.
type inboundFrame struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

type statusFrame struct {
	Type      string `json:"type"`
	Step      string `json:"step"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type messageFrame struct {
	Type           string         `json:"type"`
	MessageID      string         `json:"message_id"`
	ConversationID string         `json:"conversation_id"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
}

type errorFrame struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type videoLoadConfirmationFrame struct {
	Type           string `json:"type"`
	YoutubeURL     string `json:"youtube_url"`
	YoutubeVideoID string `json:"youtube_video_id"`
	RequestID      string `json:"request_id,omitempty"`
}

type videoLoadStatusFrame struct {
	Type           string `json:"type"`
	Status         string `json:"status"`
	YoutubeVideoID string `json:"youtube_video_id"`
	VideoTitle     string `json:"video_title,omitempty"`
	Error          string `json:"error,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

func encodeFrame(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		// Frames are plain structs; a marshal failure is a programming error.
		return []byte(`{"type":"error","code":"INTERNAL","message":"frame encoding failed"}`)
	}
	return raw
}

func decodeInbound(raw []byte) (*inboundFrame, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, err
	}
	frame.Type = strings.TrimSpace(frame.Type)
	if frame.Type == "" {
		frame.Type = FrameMessage
	}
	return &frame, nil
}
