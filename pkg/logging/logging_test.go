package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"logmark/pkg/message"
)

const tag = "@#[TAG]@#"

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_AnnotatesAndSubstitutes(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf), message.NewAnnotator(tag))

	l.Info("hello {} world", "X")
	l.Warn("{} of {}", 1)

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	want := []string{tag + "hello X world", tag + "1 of {}"}
	got := []string{lines[0]["message"].(string), lines[1]["message"].(string)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if lines[1]["level"] != "warn" {
		t.Errorf("level = %v, want warn", lines[1]["level"])
	}
}

func TestLogger_TrailingErrorField(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf), message.NewAnnotator(tag))

	l.Error("write {} failed", "out.log", io.EOF)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if got := lines[0]["message"]; got != tag+"write out.log failed" {
		t.Errorf("message = %v", got)
	}
	if got := lines[0]["error"]; got != "EOF" {
		t.Errorf("error = %v, want EOF", got)
	}
}

type countingStringer struct{ calls *atomic.Int32 }

func (c countingStringer) String() string {
	c.calls.Add(1)
	return "v"
}

func TestLogger_FilteredLevelNotRendered(t *testing.T) {
	var buf bytes.Buffer
	var calls atomic.Int32
	l := New(zerolog.New(&buf).Level(zerolog.WarnLevel), message.NewAnnotator(tag))

	l.Debug("value={}", countingStringer{&calls})
	l.Info("value={}", countingStringer{&calls})

	if buf.Len() != 0 {
		t.Errorf("unexpected output: %s", buf.String())
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("String() called %d times for filtered messages", n)
	}

	l.Warn("value={}", countingStringer{&calls})
	if n := calls.Load(); n != 1 {
		t.Errorf("String() called %d times, want 1", n)
	}
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf), message.NewContextAnnotator(message.MessageIDMarker("@#[", "]@#")))

	ctx := message.WithMessageID(context.Background(), "m-1")
	l.WithContext(ctx).Info("ready")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if got := lines[0]["message"]; got != "@#[m-1]@#ready" {
		t.Errorf("message = %v", got)
	}
	if got := lines[0][MessageIDField]; got != "m-1" {
		t.Errorf("%s = %v", MessageIDField, got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{in: "", want: zerolog.InfoLevel},
		{in: "debug", want: zerolog.DebugLevel},
		{in: "INFO", want: zerolog.InfoLevel},
		{in: "Warn", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "trace", wantErr: true},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupAndComponent(t *testing.T) {
	prevLevel, prevLogger := zerolog.GlobalLevel(), zlog.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		zlog.Logger = prevLogger
	})

	var buf bytes.Buffer
	Setup(&buf, zerolog.InfoLevel)

	zl := Component("pipeline")
	zl.Debug().Msg("hidden")
	zl.Info().Msg("shown")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if got := lines[0][ComponentField]; got != "pipeline" {
		t.Errorf("%s = %v", ComponentField, got)
	}
	if _, ok := lines[0]["time"]; !ok {
		t.Error("missing time field")
	}
}

func TestApexHandler(t *testing.T) {
	mem := memory.New()
	l := &log.Logger{
		Handler: NewApexHandler(message.NewAnnotator(tag), mem),
		Level:   log.InfoLevel,
	}

	l.Infof("connected to %s", "peer")
	l.WithField("n", 1).Warn("slow")
	l.Debug("dropped")

	if len(mem.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(mem.Entries))
	}
	if got := mem.Entries[0].Message; got != tag+"connected to peer" {
		t.Errorf("Message = %q", got)
	}
	if got := mem.Entries[1].Message; got != tag+"slow" {
		t.Errorf("Message = %q", got)
	}
	if got := mem.Entries[1].Fields.Get("n"); got != 1 {
		t.Errorf("field n = %v, want 1", got)
	}
}
