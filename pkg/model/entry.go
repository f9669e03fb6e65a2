package model

import (
	"bytes"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// Field names read from structured entries.
const (
	ArgsField      = "args"
	MessageIDField = "message_id"
)

var (
	ErrNotObject = errors.New("entry is not a JSON object")
	ErrNoMessage = errors.New("entry has no string message field")
)

// Entry is the structured view of a JSON log line flowing through the
// gateway. It references the raw line and never modifies it.
type Entry struct {
	// Raw is the underlying byte slice of the log line.
	Raw []byte

	// Message is the decoded message string.
	Message string

	// MessageStart and MessageEnd delimit the JSON-encoded message value
	// inside Raw.
	MessageStart, MessageEnd int

	// Args holds the positional arguments of a templated message, nil when
	// the entry has no args array.
	Args []any

	// MessageID is the correlation id carried by the entry, if any.
	MessageID string
}

// Templated reports whether the message carries positional arguments.
func (e *Entry) Templated() bool {
	return e.Args != nil
}

// IsObject reports whether raw looks like a JSON object.
func IsObject(raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{' && gjson.ValidBytes(raw)
}

// ParseEntry extracts the entry view of raw, reading the message from the
// top-level messageField. It returns ErrNotObject when raw is not a JSON
// object and ErrNoMessage when the message is missing or not a string.
func ParseEntry(raw []byte, messageField string) (*Entry, error) {
	if !IsObject(raw) {
		return nil, ErrNotObject
	}

	msg := gjson.GetBytes(raw, EscapeKey(messageField))
	// Index 0 means the position of the value is unknown.
	if msg.Type != gjson.String || msg.Index <= 0 {
		return nil, ErrNoMessage
	}

	e := &Entry{
		Raw:          raw,
		Message:      msg.Str,
		MessageStart: msg.Index,
		MessageEnd:   msg.Index + len(msg.Raw),
	}

	if args := gjson.GetBytes(raw, ArgsField); args.IsArray() {
		e.Args = []any{}
		args.ForEach(func(_, v gjson.Result) bool {
			e.Args = append(e.Args, argValue(v))
			return true
		})
	}
	if id := gjson.GetBytes(raw, MessageIDField); id.Type == gjson.String {
		e.MessageID = id.Str
	}
	return e, nil
}

// argValue keeps the JSON text of numbers, objects and arrays so that they
// render as they were written.
func argValue(v gjson.Result) any {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.True, gjson.False:
		return v.Bool()
	case gjson.Null:
		return "null"
	default:
		return v.Raw
	}
}

// keyEscaper covers the gjson path separators, wildcards and the prefixes
// of modifiers, literals, queries and multipaths.
var keyEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
	"!", `\!`,
	"[", `\[`,
	"{", `\{`,
)

// EscapeKey escapes the gjson path characters of a literal key.
func EscapeKey(key string) string {
	return keyEscaper.Replace(key)
}
