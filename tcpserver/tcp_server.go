// Package tcpserver accepts stream connections and turns each one into a
// Peer: a reader goroutine feeding a Handler with raw chunks, and a writer
// goroutine draining a bounded outbound queue. It knows nothing about message
// framing; reassembly happens above it.
package tcpserver

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/galaxy-relay/idgenerator"
	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/protocol"
	"github.com/cyberinferno/galaxy-relay/safemap"
)

// Handler receives peer lifecycle and data events. Calls for one peer are
// sequential: OnOpen, then OnData in receipt order, then exactly one
// OnClose. Calls for different peers may run concurrently.
type Handler interface {
	OnOpen(p *Peer)
	OnData(p *Peer, data []byte)
	OnClose(p *Peer, err error)
}

// Config holds transport settings.
type Config struct {
	// Name labels log lines, e.g. "relay".
	Name string
	// Addr is the listen address, e.g. ":16309".
	Addr string
	// ReadChunkSize is the maximum number of bytes taken per read.
	ReadChunkSize int
	// OutboundQueue is the number of pending writes a peer may have before
	// it is considered gone.
	OutboundQueue int
	// WriteTimeout bounds a single socket write; 0 means no timeout.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config listening on addr with the protocol's
// chunk size, a 256-message queue and a 10s write timeout.
//
// Parameters:
//   - addr: The listen address
//
// Returns:
//   - A Config with defaults applied
func DefaultConfig(addr string) Config {
	return Config{
		Name:          "relay",
		Addr:          addr,
		ReadChunkSize: protocol.ChunkSize,
		OutboundQueue: 256,
		WriteTimeout:  10 * time.Second,
	}
}

// TCPServer accepts connections and hands each to the Handler as a Peer.
// Peers are tracked by id until their OnClose has run.
type TCPServer struct {
	Logger logger.Logger
	Config Config

	handler  Handler
	listener net.Listener
	peers    *safemap.SafeMap[int32, *Peer]
	ids      *idgenerator.IdGenerator
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewTCPServer builds a server that has not started listening yet.
//
// Parameters:
//   - cfg: Transport settings; zero sizes fall back to DefaultConfig values
//   - handler: Receiver of peer events
//   - log: Logger for lifecycle and I/O errors
//
// Returns:
//   - A new *TCPServer
func NewTCPServer(cfg Config, handler Handler, log logger.Logger) *TCPServer {
	def := DefaultConfig(cfg.Addr)
	if cfg.ReadChunkSize <= 0 {
		cfg.ReadChunkSize = def.ReadChunkSize
	}
	if cfg.OutboundQueue <= 0 {
		cfg.OutboundQueue = def.OutboundQueue
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}

	return &TCPServer{
		Logger:  log,
		Config:  cfg,
		handler: handler,
		peers:   safemap.NewSafeMap[int32, *Peer](),
		ids:     idgenerator.NewIdGenerator(0),
	}
}

// Start binds Config.Addr and runs the accept loop in a goroutine.
//
// Returns:
//   - An error if the server is already running or if listening fails
func (s *TCPServer) Start() error {
	if s.running.Load() {
		return fmt.Errorf("server %s already running", s.Config.Name)
	}

	ln, err := net.Listen("tcp", s.Config.Addr)
	if err != nil {
		s.Logger.Error("server failed to start", logger.Err(err))
		return fmt.Errorf("server %s failed to start: %w", s.Config.Name, err)
	}

	s.listener = ln
	s.running.Store(true)
	s.Logger.Info(fmt.Sprintf("%s server started", s.Config.Name), logger.Field{Key: "addr", Value: ln.Addr().String()})

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Stop closes the listener, closes every peer and waits for the accept loop
// to exit. Safe to call when the server is not running.
func (s *TCPServer) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	_ = s.listener.Close()
	s.wg.Wait()

	s.peers.Range(func(_ int32, p *Peer) bool {
		_ = p.Close()
		return true
	})

	s.Logger.Info(fmt.Sprintf("%s server stopped", s.Config.Name))
}

// Peer returns the live peer with the given id.
func (s *TCPServer) Peer(id int32) (*Peer, bool) {
	return s.peers.Load(id)
}

// Len returns the number of live peers.
func (s *TCPServer) Len() int {
	return s.peers.Len()
}

// Adopt serves an already established connection (for example a websocket
// wrapped as a net.Conn) exactly like an accepted socket.
//
// Parameters:
//   - conn: The connection to serve; the peer owns it from now on
//
// Returns:
//   - The new Peer; wait on Done to learn when it has been torn down
func (s *TCPServer) Adopt(conn net.Conn) *Peer {
	p := newPeer(s.ids.Id(), conn, s)
	s.peers.Store(p.id, p)
	s.Logger.Debug("peer opened", logger.Conn(p.id), logger.Field{Key: "addr", Value: p.RemoteAddr()})

	s.handler.OnOpen(p)
	go p.writeLoop()
	go p.readLoop()

	return p
}

func (s *TCPServer) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}

			s.Logger.Error(fmt.Sprintf("%s server accept error", s.Config.Name), logger.Err(err))
			continue
		}

		s.Adopt(conn)
	}
}

func (s *TCPServer) release(p *Peer, err error) {
	s.peers.Delete(p.id)
	s.Logger.Debug("peer closed", logger.Conn(p.id), logger.Err(err))
	s.handler.OnClose(p, err)
}
