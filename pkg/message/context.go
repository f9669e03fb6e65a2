package message

import (
	"context"

	"github.com/google/uuid"
)

type messageIDKey struct{}

// WithMessageID returns a copy of ctx carrying the message id.
func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey{}, id)
}

// MessageIDFrom returns the message id carried by ctx.
func MessageIDFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(messageIDKey{}).(string)
	return id, ok && id != ""
}

// NewMessageID returns a fresh random message id.
func NewMessageID() string {
	return uuid.NewString()
}

// MessageIDMarker returns a MarkerFunc producing prefix + id + suffix, where
// id is the context's message id or a fresh one when the context has none.
func MessageIDMarker(prefix, suffix string) MarkerFunc {
	return func(ctx context.Context) string {
		id, ok := MessageIDFrom(ctx)
		if !ok {
			id = NewMessageID()
		}
		return prefix + id + suffix
	}
}
