package engine

import (
	"context"
	"errors"
	"testing"

	"logmark/pkg/message"
)

func mustRedact(tb testing.TB, name, target, mask string) *RedactionProcessor {
	tb.Helper()
	p, err := NewRedactionProcessor(name, target, mask)
	if err != nil {
		tb.Fatalf("NewRedactionProcessor() error = %v", err)
	}
	return p
}

func TestRedactionProcessor(t *testing.T) {
	tests := []struct {
		name   string
		target string
		mask   string
		input  string
		want   string
	}{
		{"same length mask", "secret", "xxxxxx", "a secret and a secret", "a xxxxxx and a xxxxxx"},
		{"shorter mask", "secret", "***", "a secret here", "a *** here"},
		{"longer mask", "cc", "[REDACTED]", "cc=1 cc=2", "[REDACTED]=1 [REDACTED]=2"},
		{"no match", "secret", "xxxxxx", "nothing to hide", "nothing to hide"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustRedact(t, "redact", tt.target, tt.mask)
			out, drop, err := p.Process(nil, []byte(tt.input))
			if err != nil || drop {
				t.Fatalf("Process() drop = %v, error = %v", drop, err)
			}
			if string(out) != tt.want {
				t.Errorf("Process() = %q, want %q", out, tt.want)
			}
		})
	}

	if _, err := NewRedactionProcessor("empty", "", "x"); err == nil {
		t.Error("expected an error for an empty target")
	}
}

func TestFilterProcessor(t *testing.T) {
	f := NewFilterProcessor("filter", []string{"DEBUG", ""})
	if _, drop, _ := f.Process(nil, []byte("DEBUG noisy")); !drop {
		t.Error("expected DEBUG entry to be dropped")
	}
	// The empty word is ignored rather than matching everything.
	if _, drop, _ := f.Process(nil, []byte("INFO useful")); drop {
		t.Error("expected INFO entry to pass")
	}
}

type failingProcessor struct{ err error }

func (f failingProcessor) Name() string { return "failing" }

func (f failingProcessor) Process(_ *ProcessingContext, entry []byte) ([]byte, bool, error) {
	return entry, false, f.err
}

func TestProcessorChain(t *testing.T) {
	chain := NewProcessorChain(
		NewFilterProcessor("filter", []string{"bad"}),
		NewAnnotateProcessor("annotate", message.NewAnnotator("[m]")),
	)
	if got := chain.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
	if names := chain.Names(); names[0] != "filter" || names[1] != "annotate" {
		t.Errorf("Names() = %v", names)
	}

	ctx := NewProcessingContext(context.Background())
	out, drop, err := chain.Process(ctx, []byte("good"))
	if err != nil || drop || string(out) != "[m]good" {
		t.Errorf("Process() = %q, %v, %v", out, drop, err)
	}
	// A dropped entry stops before annotation.
	out, drop, _ = chain.Process(ctx, []byte("bad"))
	if !drop || string(out) != "bad" {
		t.Errorf("Process() = %q, drop = %v", out, drop)
	}

	boom := errors.New("boom")
	_, _, err = NewProcessorChain(failingProcessor{err: boom}).Process(ctx, []byte("x"))
	var perr *ProcessError
	if !errors.As(err, &perr) || perr.Processor != "failing" || !errors.Is(err, boom) {
		t.Errorf("Process() error = %v, want ProcessError wrapping boom", err)
	}
}

func TestProcessorChain_ProcessBypass(t *testing.T) {
	chain := NewProcessorChain(
		NewFilterProcessor("filter", []string{"bad"}),
		NewAnnotateProcessor("annotate", message.NewAnnotator("[m]")),
	)
	ctx := NewProcessingContext(context.Background())
	// The filter is skipped, annotation still applies.
	out, err := chain.ProcessBypass(ctx, []byte("bad"))
	if err != nil || string(out) != "[m]bad" {
		t.Errorf("ProcessBypass() = %q, %v", out, err)
	}

	// No bypass processors leaves the entry untouched.
	out, err = NewProcessorChain(failingProcessor{err: errors.New("boom")}).ProcessBypass(ctx, []byte("x"))
	if err != nil || string(out) != "x" {
		t.Errorf("ProcessBypass() = %q, %v", out, err)
	}
}

func BenchmarkPipeline_NoAlloc(b *testing.B) {
	chain := NewProcessorChain(
		NewFilterProcessor("drop_debug", []string{"DEBUG"}),
		// Redaction only allocates on a match; this is the happy path.
		mustRedact(b, "redact_cc", "4111-1234", "xxxx"),
	)

	ctx := NewProcessingContext(context.Background())
	data := []byte("INFO: User login successful for ID 9999")
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _, _ = chain.Process(ctx, data)
	}
}

func BenchmarkPipeline_WithRedaction(b *testing.B) {
	chain := NewProcessorChain(
		mustRedact(b, "redact_secret", "SECRET", "XXX"),
	)
	ctx := NewProcessingContext(context.Background())
	data := []byte("This log contains a SECRET value")
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		// A mask of a different length forces bytes.ReplaceAll to allocate.
		_, _, _ = chain.Process(ctx, data)
	}
}

func BenchmarkPipeline_Annotate(b *testing.B) {
	chain := NewProcessorChain(
		NewAnnotateProcessor("annotate", message.Default()),
	)
	ctx := NewProcessingContext(context.Background())
	data := []byte(`{"level":"info","message":"user {} logged in","args":["alice"]}`)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		ctx.Reset()
		_, _, _ = chain.Process(ctx, data)
	}
}
