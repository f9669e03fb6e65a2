package engine

import (
	"context"

	"logmark/pkg/message"
)

// ProcessingContext holds per-entry state handed to every processor.
type ProcessingContext struct {
	context.Context

	// MessageID correlates the entry across processors. Empty until a
	// processor assigns one.
	MessageID string
}

// NewProcessingContext wraps ctx.
func NewProcessingContext(ctx context.Context) *ProcessingContext {
	return &ProcessingContext{Context: ctx}
}

// Reset prepares the context for the next entry.
func (c *ProcessingContext) Reset() {
	c.MessageID = ""
}

// MessageContext returns a context carrying the entry's message id, for
// resolving per-message markers.
func (c *ProcessingContext) MessageContext() context.Context {
	var ctx context.Context = context.Background()
	if c != nil && c.Context != nil {
		ctx = c.Context
	}
	if c != nil && c.MessageID != "" {
		ctx = message.WithMessageID(ctx, c.MessageID)
	}
	return ctx
}
