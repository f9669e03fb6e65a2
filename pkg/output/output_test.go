package output

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestConsoleOutput_OneEntryPerLine(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriterOutput(&buf)

	err := out.WriteBatch([][]byte{[]byte("tcp line\n"), []byte("udp packet"), {}})
	if err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}
	if got, want := buf.String(), "tcp line\nudp packet\n\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestHTTPOutput(t *testing.T) {
	var (
		mu      sync.Mutex
		body    string
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		body, headers = string(b), r.Header.Clone()
		mu.Unlock()
	}))
	defer srv.Close()

	out := NewHTTPOutput(srv.URL, map[string]string{"X-Api-Key": "k"})
	if err := out.WriteBatch([][]byte{[]byte("a\n"), []byte("b")}); err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if body != "a\nb" {
		t.Errorf("body = %q, want %q", body, "a\nb")
	}
	if headers.Get("X-Api-Key") != "k" || headers.Get("Content-Type") != "text/plain" {
		t.Errorf("unexpected headers: %v", headers)
	}
}

func TestHTTPOutput_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPOutput(srv.URL, nil).WriteBatch([][]byte{[]byte("x")})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("WriteBatch() error = %v, want status 503", err)
	}
}

type failingOutput struct{ err error }

func (f failingOutput) WriteBatch([][]byte) error { return f.err }

func TestFanOutOutput_JoinsErrors(t *testing.T) {
	errA, errB := errors.New("a down"), errors.New("b down")
	var buf bytes.Buffer

	fan := NewFanOutOutput(failingOutput{errA}, NewWriterOutput(&buf), failingOutput{errB})
	err := fan.WriteBatch([][]byte{[]byte("entry")})

	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("WriteBatch() error = %v, want both failures", err)
	}
	if buf.String() != "entry\n" {
		t.Errorf("healthy output got %q", buf.String())
	}
	if fan.Len() != 3 {
		t.Errorf("Len() = %d, want 3", fan.Len())
	}
}
