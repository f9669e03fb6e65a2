// Package message builds log messages that carry a marker prefix ahead of
// their text. The marker is applied to the message template before any
// placeholder substitution takes place, so the positional arguments of a
// parameterized message are never touched by annotation.
package message

import (
	"context"
	"fmt"
)

// DefaultMarker is the marker used by the package-level helpers.
const DefaultMarker = "@#[messageId]@#"

// MarkerFunc resolves the marker for a context, e.g. from a correlation id
// carried by the context.
type MarkerFunc func(ctx context.Context) string

// Annotator prefixes a marker onto log messages.
//
// An Annotator is an immutable value and is safe for concurrent use. The
// zero value applies no marker.
type Annotator struct {
	marker   string
	markerFn MarkerFunc
}

// NewAnnotator returns an Annotator that prefixes marker onto every message.
// An empty marker yields a passthrough annotator.
func NewAnnotator(marker string) Annotator {
	return Annotator{marker: marker}
}

// NewContextAnnotator returns an Annotator whose marker is resolved through fn.
// Without a context the marker is resolved against context.Background.
func NewContextAnnotator(fn MarkerFunc) Annotator {
	return Annotator{markerFn: fn}
}

var defaultAnnotator = NewAnnotator(DefaultMarker)

// Default returns the Annotator using DefaultMarker.
func Default() Annotator {
	return defaultAnnotator
}

// WithContext resolves the marker for ctx and returns a static Annotator
// using it. Static annotators are returned unchanged.
func (a Annotator) WithContext(ctx context.Context) Annotator {
	if a.markerFn == nil {
		return a
	}
	return Annotator{marker: a.markerFn(ctx)}
}

// PerMessage reports whether the marker is resolved per context rather than
// fixed.
func (a Annotator) PerMessage() bool {
	return a.markerFn != nil
}

// Marker returns the marker the annotator applies.
func (a Annotator) Marker() string {
	return a.resolve(context.Background())
}

func (a Annotator) resolve(ctx context.Context) string {
	if a.markerFn != nil {
		return a.markerFn(ctx)
	}
	return a.marker
}

// Annotate converts raw to text and prefixes the marker.
// A nil raw renders as "<nil>". Annotating an already annotated message adds
// a second marker.
func (a Annotator) Annotate(raw any) string {
	return annotate(a.resolve(context.Background()), raw)
}

// AnnotateContext is Annotate with the marker resolved against ctx.
func (a Annotator) AnnotateContext(ctx context.Context, raw any) string {
	return annotate(a.resolve(ctx), raw)
}

// NewMessage returns a plain annotated message. Placeholders in raw are not
// substituted.
func (a Annotator) NewMessage(raw any) Message {
	return SimpleMessage(a.Annotate(raw))
}

// NewParameterized returns a message whose template is annotated and whose
// args are kept, in order, for substitution at render time.
func (a Annotator) NewParameterized(template string, args ...any) *ParameterizedMessage {
	return newParameterized(a.resolve(context.Background()), template, args)
}

// NewParameterizedContext is NewParameterized with the marker resolved
// against ctx.
func (a Annotator) NewParameterizedContext(ctx context.Context, template string, args ...any) *ParameterizedMessage {
	return newParameterized(a.resolve(ctx), template, args)
}

// Annotate prefixes DefaultMarker onto the textual form of raw.
func Annotate(raw any) string {
	return defaultAnnotator.Annotate(raw)
}

// NewParameterized builds a parameterized message annotated with DefaultMarker.
func NewParameterized(template string, args ...any) *ParameterizedMessage {
	return newParameterized(DefaultMarker, template, args)
}

func annotate(marker string, raw any) string {
	s := stringify(raw)
	if marker == "" {
		return s
	}
	return marker + s
}

// stringify never fails: fmt recovers from panicking String methods and
// renders nil values as "<nil>".
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
