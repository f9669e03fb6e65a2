package message

import (
	"sync"
)

// Message is a log message ready for deferred rendering.
type Message interface {
	// Format renders the final text.
	Format() string

	// Template returns the annotated, unsubstituted text.
	Template() string

	// Args returns the positional arguments. Callers must not modify them.
	Args() []any

	// Err returns the trailing error argument, if any.
	Err() error
}

// SimpleMessage is an annotated message without arguments.
type SimpleMessage string

func (m SimpleMessage) Format() string   { return string(m) }
func (m SimpleMessage) Template() string { return string(m) }
func (m SimpleMessage) Args() []any      { return nil }
func (m SimpleMessage) Err() error       { return nil }
func (m SimpleMessage) String() string   { return string(m) }

// inlineArgs is the number of arguments stored inside the message itself.
const inlineArgs = 10

// ParameterizedMessage pairs an annotated template with its positional
// arguments. Substitution runs once, on the first call to Format, String or
// Err; a message that is never rendered is never substituted.
//
// Surplus arguments are not rendered. When the last argument is an error and
// no placeholder consumed it, it is reported by Err.
type ParameterizedMessage struct {
	marker   string
	template string
	args     []any
	inline   [inlineArgs]any

	once     sync.Once
	rendered string
	err      error
}

var _ Message = (*ParameterizedMessage)(nil)

func newParameterized(marker, template string, args []any) *ParameterizedMessage {
	m := &ParameterizedMessage{marker: marker, template: template}
	// args is copied so the caller's variadic slice does not escape.
	if len(args) <= inlineArgs {
		n := copy(m.inline[:], args)
		m.args = m.inline[:n:n]
	} else {
		m.args = append([]any(nil), args...)
	}
	return m
}

// Format renders the marker followed by the template with its placeholders
// substituted.
func (m *ParameterizedMessage) Format() string {
	m.once.Do(m.render)
	return m.rendered
}

// String implements fmt.Stringer.
func (m *ParameterizedMessage) String() string {
	return m.Format()
}

// Template returns the annotated template.
func (m *ParameterizedMessage) Template() string {
	return m.marker + m.template
}

// Args returns the positional arguments in call order.
func (m *ParameterizedMessage) Args() []any {
	return m.args
}

// Err returns the trailing error argument left over by substitution.
func (m *ParameterizedMessage) Err() error {
	m.once.Do(m.render)
	return m.err
}

func (m *ParameterizedMessage) render() {
	text, used := substitute(m.template, m.args)
	m.rendered = m.marker + text
	if n := len(m.args); n > used {
		if err, ok := m.args[n-1].(error); ok {
			m.err = err
		}
	}
}
