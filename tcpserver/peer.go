package tcpserver

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/galaxy-relay/logger"
)

var (
	// ErrPeerGone is returned by Send once the peer is closing.
	ErrPeerGone = errors.New("peer gone")

	// ErrQueueFull is returned by Send when the outbound queue overflowed.
	// The peer is closed as a side effect.
	ErrQueueFull = errors.New("outbound queue full")
)

// Peer is one live connection. Send and Close are safe for concurrent use.
type Peer struct {
	id     int32
	conn   net.Conn
	server *TCPServer

	mu      sync.Mutex
	closing bool
	out     chan []byte

	writerDone chan struct{}
	done       chan struct{}
}

func newPeer(id int32, conn net.Conn, s *TCPServer) *Peer {
	return &Peer{
		id:         id,
		conn:       conn,
		server:     s,
		out:        make(chan []byte, s.Config.OutboundQueue),
		writerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// ID returns the server-assigned peer id.
func (p *Peer) ID() int32 {
	return p.id
}

// RemoteAddr returns the remote address as a string.
func (p *Peer) RemoteAddr() string {
	if addr := p.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}

	return ""
}

// Done is closed after OnClose has returned for this peer.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Send queues data for writing. It never blocks.
//
// Parameters:
//   - data: Bytes to write; must not be modified afterwards
//
// Returns:
//   - ErrPeerGone after Close, ErrQueueFull when the peer cannot keep up
func (p *Peer) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closing {
		return ErrPeerGone
	}

	select {
	case p.out <- data:
		return nil
	default:
		p.shutdownLocked()
		_ = p.conn.Close()
		return ErrQueueFull
	}
}

// Close stops accepting writes, flushes what is queued best-effort and then
// closes the socket. It is safe to call multiple times.
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.shutdownLocked()
	return nil
}

func (p *Peer) shutdownLocked() {
	if p.closing {
		return
	}

	p.closing = true
	close(p.out)
}

func (p *Peer) writeLoop() {
	defer close(p.writerDone)
	defer p.conn.Close()

	timeout := p.server.Config.WriteTimeout
	for data := range p.out {
		if timeout > 0 {
			_ = p.conn.SetWriteDeadline(time.Now().Add(timeout))
		}

		if _, err := p.conn.Write(data); err != nil {
			p.server.Logger.Debug("peer write failed", logger.Conn(p.id), logger.Err(err))
			_ = p.conn.Close()
			for range p.out {
			}
			return
		}
	}
}

func (p *Peer) readLoop() {
	buf := make([]byte, p.server.Config.ReadChunkSize)

	var readErr error
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			p.server.handler.OnData(p, data)
		}

		if err != nil {
			readErr = err
			break
		}
	}

	p.mu.Lock()
	p.shutdownLocked()
	p.mu.Unlock()

	_ = p.conn.Close()
	<-p.writerDone

	p.server.release(p, readErr)
	close(p.done)
}
