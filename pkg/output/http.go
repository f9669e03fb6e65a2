package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 5 * time.Second

// HTTPOutput sends logs to a remote URL via POST, newline delimited.
type HTTPOutput struct {
	url         string
	headers     map[string]string
	compression Compression
	client      *http.Client
}

// HTTPOption configures an HTTPOutput.
type HTTPOption func(*HTTPOutput)

// WithCompression compresses request bodies and sets Content-Encoding.
func WithCompression(c Compression) HTTPOption {
	return func(h *HTTPOutput) {
		h.compression = c
	}
}

func NewHTTPOutput(url string, headers map[string]string, opts ...HTTPOption) *HTTPOutput {
	h := &HTTPOutput{
		url:     url,
		headers: headers,
		client: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPOutput) WriteBatch(entries [][]byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultHTTPTimeout)
	defer cancel()
	return h.Send(ctx, entries)
}

// Send posts entries within ctx.
func (h *HTTPOutput) Send(ctx context.Context, entries [][]byte) error {
	body := make([][]byte, len(entries))
	for i, e := range entries {
		body[i] = bytes.TrimSuffix(e, []byte("\n"))
	}
	joined, err := h.compression.encode(bytes.Join(body, []byte("\n")))
	if err != nil {
		return fmt.Errorf("http output: compressing body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(joined))
	if err != nil {
		return fmt.Errorf("http output: %w", err)
	}

	req.Header.Set("Content-Type", "text/plain")
	if h.compression != CompressionNone {
		req.Header.Set("Content-Encoding", string(h.compression))
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http output: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http output failed with status: %d", resp.StatusCode)
	}

	return nil
}
