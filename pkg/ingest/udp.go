package ingest

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"logmark/pkg/logging"
)

// UDPIngestor listens for UDP packets and pushes logs to the buffer, one
// entry per datagram.
type UDPIngestor struct {
	addr   string
	buffer Pusher
	logger zerolog.Logger

	mu    sync.Mutex
	conn  net.PacketConn
	ready chan struct{}
}

func NewUDPIngestor(addr string, buffer Pusher) *UDPIngestor {
	return &UDPIngestor{
		addr:   addr,
		buffer: buffer,
		logger: logging.Component("ingest.udp"),
		ready:  make(chan struct{}),
	}
}

// Addr returns the bound address once Ready is closed.
func (u *UDPIngestor) Addr() net.Addr {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

// Ready is closed once the socket is bound.
func (u *UDPIngestor) Ready() <-chan struct{} {
	return u.ready
}

// Start reads datagrams until ctx is done. Blocking call.
func (u *UDPIngestor) Start(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", u.addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	u.mu.Lock()
	u.conn = conn
	u.mu.Unlock()
	close(u.ready)
	u.logger.Info().Str("addr", conn.LocalAddr().String()).Msg("UDP ingestor listening")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// Max UDP payload; the read buffer is reused across packets.
	buf := make([]byte, 65535)

	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			u.logger.Warn().Err(err).Msg("UDP read error")
			continue
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])

		// On buffer full, silently drop (tail drop strategy).
		_ = u.buffer.Push(packet)
	}
}
