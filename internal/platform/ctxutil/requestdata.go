package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

// RequestData carries the authenticated identity and the correlation id
// assigned to one inbound request or socket frame.
type RequestData struct {
	UserID    uuid.UUID
	IsAdmin   bool
	RequestID string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestID returns the correlation id for ctx, or "" when none was assigned.
func RequestID(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.RequestID
	}
	return ""
}
