package logging

import (
	"github.com/apex/log"

	"logmark/pkg/message"
)

// ApexHandler is an apex/log handler that annotates each entry's message
// before passing a copy of the entry on to the next handler.
type ApexHandler struct {
	annotator message.Annotator
	next      log.Handler
}

var _ log.Handler = (*ApexHandler)(nil)

// NewApexHandler wraps next.
func NewApexHandler(annotator message.Annotator, next log.Handler) *ApexHandler {
	return &ApexHandler{annotator: annotator, next: next}
}

// HandleLog implements log.Handler.
func (h *ApexHandler) HandleLog(e *log.Entry) error {
	annotated := *e
	annotated.Message = h.annotator.Annotate(e.Message)
	return h.next.HandleLog(&annotated)
}
