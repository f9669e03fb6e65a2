package ingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"logmark/pkg/logging"
)

// maxLineSize bounds a single TCP log line.
const maxLineSize = 1 << 20

// TCPIngestor listens for TCP connections and pushes newline-delimited logs
// to the buffer.
type TCPIngestor struct {
	addr   string
	buffer Pusher
	logger zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

func NewTCPIngestor(addr string, buffer Pusher) *TCPIngestor {
	return &TCPIngestor{
		addr:   addr,
		buffer: buffer,
		logger: logging.Component("ingest.tcp"),
		ready:  make(chan struct{}),
	}
}

// Addr returns the bound address once Ready is closed.
func (t *TCPIngestor) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Ready is closed once the listener is bound.
func (t *TCPIngestor) Ready() <-chan struct{} {
	return t.ready
}

// Start listens on the TCP address until ctx is done. Blocking call.
func (t *TCPIngestor) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", t.addr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()
	close(t.ready)
	t.logger.Info().Str("addr", listener.Addr().String()).Msg("TCP ingestor listening")

	var conns sync.WaitGroup
	defer conns.Wait()

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			t.logger.Warn().Err(err).Msg("error accepting connection")
			continue
		}
		conns.Add(1)
		go func() {
			defer conns.Done()
			t.handleConnection(ctx, conn)
		}()
	}
}

func (t *TCPIngestor) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		// The scanner reuses its buffer; entries outlive this iteration.
		line := make([]byte, len(scanner.Bytes())+1)
		copy(line, scanner.Bytes())
		line[len(line)-1] = '\n'

		// On buffer full, silently drop (tail drop strategy).
		// The buffer counts drops.
		_ = t.buffer.Push(line)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		t.logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("read error")
	}
}
