package engine

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"logmark/pkg/message"
	"logmark/pkg/model"
)

// DefaultMessageField is the JSON field annotated in structured entries.
const DefaultMessageField = "message"

// AnnotateProcessor prefixes the annotator's marker onto every entry.
//
// Plain text entries get the marker in front of the whole line. JSON objects
// get it in front of their message field; when the object also carries an
// args array the message is a template and is rendered with those args.
// JSON objects without a string message field pass through unchanged.
//
// When an object repeats the message field, only the first occurrence is
// annotated; later duplicates are left as they are.
type AnnotateProcessor struct {
	name         string
	annotator    message.Annotator
	messageField string
	annotated    prometheus.Counter
}

// AnnotateOption configures an AnnotateProcessor.
type AnnotateOption func(*AnnotateProcessor)

// WithMessageField sets the JSON field holding the message.
func WithMessageField(field string) AnnotateOption {
	return func(p *AnnotateProcessor) {
		if field != "" {
			p.messageField = field
		}
	}
}

// WithAnnotatedCounter counts annotated entries.
func WithAnnotatedCounter(c prometheus.Counter) AnnotateOption {
	return func(p *AnnotateProcessor) {
		p.annotated = c
	}
}

func NewAnnotateProcessor(name string, annotator message.Annotator, opts ...AnnotateOption) *AnnotateProcessor {
	p := &AnnotateProcessor{
		name:         name,
		annotator:    annotator,
		messageField: DefaultMessageField,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *AnnotateProcessor) Name() string {
	return p.name
}

// RunOnBypass keeps annotation on entries that skip the rest of the chain.
func (p *AnnotateProcessor) RunOnBypass() bool {
	return true
}

func (p *AnnotateProcessor) Process(ctx *ProcessingContext, entry []byte) ([]byte, bool, error) {
	if ctx == nil {
		ctx = &ProcessingContext{}
	}

	e, err := model.ParseEntry(entry, p.messageField)
	switch {
	case errors.Is(err, model.ErrNotObject):
		p.assignMessageID(ctx, "")
		return p.annotateText(ctx, entry), false, nil
	case err != nil:
		return entry, false, nil
	}

	p.assignMessageID(ctx, e.MessageID)
	out, err := p.annotateJSON(ctx, e)
	if err != nil {
		return entry, false, err
	}
	return out, false, nil
}

// assignMessageID keeps the entry's own id, or mints one when the marker
// needs it and no earlier stage assigned one.
func (p *AnnotateProcessor) assignMessageID(ctx *ProcessingContext, id string) {
	switch {
	case id != "":
		ctx.MessageID = id
	case ctx.MessageID == "" && p.annotator.PerMessage():
		ctx.MessageID = message.NewMessageID()
	}
}

func (p *AnnotateProcessor) annotateText(ctx *ProcessingContext, entry []byte) []byte {
	marker := p.annotator.WithContext(ctx.MessageContext()).Marker()
	if marker == "" {
		return entry
	}
	out := make([]byte, 0, len(marker)+len(entry))
	out = append(out, marker...)
	out = append(out, entry...)
	p.count()
	return out
}

func (p *AnnotateProcessor) annotateJSON(ctx *ProcessingContext, e *model.Entry) ([]byte, error) {
	a := p.annotator.WithContext(ctx.MessageContext())

	var text string
	if e.Templated() {
		text = a.NewParameterized(e.Message, e.Args...).Format()
	} else {
		if a.Marker() == "" {
			return e.Raw, nil
		}
		text = a.Annotate(e.Message)
	}

	quoted, err := encodeString(text)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(e.Raw)-(e.MessageEnd-e.MessageStart)+len(quoted))
	out = append(out, e.Raw[:e.MessageStart]...)
	out = append(out, quoted...)
	out = append(out, e.Raw[e.MessageEnd:]...)
	p.count()
	return out, nil
}

func (p *AnnotateProcessor) count() {
	if p.annotated != nil {
		p.annotated.Inc()
	}
}

// encodeString returns s as a JSON string without HTML escaping.
func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
