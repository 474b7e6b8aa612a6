package ctxutil

import "context"

// Default returns ctx, or context.Background when ctx is nil. Keeps
// net/http request construction safe for callers that pass nil contexts.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
