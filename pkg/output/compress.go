package output

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression is the Content-Encoding applied to HTTP output bodies.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseCompression accepts "", "none", "gzip" or "zstd".
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case string(CompressionGzip):
		return CompressionGzip, nil
	case string(CompressionZstd):
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", name)
	}
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdErr  error
)

// zstdEncoder returns the shared encoder. EncodeAll is safe for concurrent use.
func zstdEncoder() (*zstd.Encoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return zstdEnc, zstdErr
}

func (c Compression) encode(body []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return body, nil
	case CompressionGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(body, make([]byte, 0, len(body)/2)), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", string(c))
	}
}
