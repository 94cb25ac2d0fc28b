// Package relay is the session server. One event loop owns every
// connection, the lobby and all connection state; socket readers and game
// goroutines only post events to it. Games reach remote players through
// the Relay controller, which turns engine calls into wire messages.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cyberinferno/galaxy-relay/controller"
	"github.com/cyberinferno/galaxy-relay/engine"
	"github.com/cyberinferno/galaxy-relay/idgenerator"
	"github.com/cyberinferno/galaxy-relay/lobby"
	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/metrics"
	"github.com/cyberinferno/galaxy-relay/protocol"
	"github.com/cyberinferno/galaxy-relay/tcpserver"
)

// ErrStopped is returned by posting operations once the loop has exited.
var ErrStopped = errors.New("relay stopped")

// Authenticator checks login credentials. It may block; the relay calls it
// off the event loop.
type Authenticator interface {
	Authenticate(ctx context.Context, user, password string) error
}

// AIFactory builds the controller for a computer-player seat.
type AIFactory func(seat int, name string) controller.Controller

// Option customises a Server.
type Option func(*Server)

// WithAuthenticator validates logins against a.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithMetrics records traffic into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAI enables ADD_AI, building seats with f.
func WithAI(f AIFactory) Option {
	return func(s *Server) { s.newAI = f }
}

type eventKind int

const (
	evOpen eventKind = iota
	evData
	evClose
	evCall
)

type event struct {
	kind eventKind
	link Link
	id   int32
	data []byte
	err  error
	fn   func()
}

// Server is the relay. Create it with NewServer and drive it with Run or
// ListenAndServe.
type Server struct {
	cfg     Config
	log     logger.Logger
	rules   engine.Rules
	auth    Authenticator
	metrics *metrics.Metrics
	newAI   AIFactory

	transport *tcpserver.TCPServer
	lobby     *lobby.Manager
	conns     map[int32]*Connection
	online    map[string]int32
	games     map[int32]*gameRun
	choiceIDs *idgenerator.IdGenerator

	events  chan event
	quit    chan struct{}
	running sync.Once
	gameWG  sync.WaitGroup
}

// NewServer builds a relay for rules.
//
// Parameters:
//   - cfg: Server settings, usually from DefaultConfig
//   - rules: The engine used for every started session
//   - log: Base logger; connections derive scoped loggers from it
//   - opts: Optional authenticator, metrics and AI factory
//
// Returns:
//   - A new *Server
func NewServer(cfg Config, rules engine.Rules, log logger.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		rules:     rules,
		lobby:     lobby.NewManager(cfg.Lobby),
		conns:     make(map[int32]*Connection),
		online:    make(map[string]int32),
		games:     make(map[int32]*gameRun),
		choiceIDs: idgenerator.NewIdGenerator(0),
		events:    make(chan event, cfg.EventQueue),
		quit:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.transport = tcpserver.NewTCPServer(cfg.transport(), s, log)
	return s
}

// Transport returns the socket layer, for adopting non-TCP links.
func (s *Server) Transport() *tcpserver.TCPServer {
	return s.transport
}

// ListenAndServe binds Config.Addr and runs the loop until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.transport.Start(); err != nil {
		return err
	}

	err := s.Run(ctx)
	s.transport.Stop()
	return err
}

// Run processes events until ctx is done. On exit every game is cancelled
// and every connection is told GOODBYE and closed.
func (s *Server) Run(ctx context.Context) error {
	started := false
	s.running.Do(func() { started = true })
	if !started {
		return fmt.Errorf("relay already running")
	}

	gameCtx, cancelGames := context.WithCancel(ctx)
	defer cancelGames()

	for {
		select {
		case <-ctx.Done():
			s.shutdown(cancelGames)
			return nil
		case ev := <-s.events:
			s.handle(gameCtx, ev)
		}
	}
}

func (s *Server) shutdown(cancelGames context.CancelFunc) {
	close(s.quit)
	cancelGames()

	for _, c := range s.sortedConns() {
		c.resolve(choiceReply{err: controller.ErrResigned})
		c.send(&protocol.Goodbye{Reason: "server shutting down"})
		c.state = protocol.StateDisconn
		_ = c.link.Close()
	}

	s.gameWG.Wait()
	s.log.Info("relay stopped")
}

// OnOpen implements tcpserver.Handler.
func (s *Server) OnOpen(p *tcpserver.Peer) {
	_ = s.Attach(p)
}

// OnData implements tcpserver.Handler.
func (s *Server) OnData(p *tcpserver.Peer, data []byte) {
	_ = s.Receive(p.ID(), data)
}

// OnClose implements tcpserver.Handler.
func (s *Server) OnClose(p *tcpserver.Peer, err error) {
	_ = s.Detach(p.ID(), err)
}

// Attach registers a new link in state INIT.
func (s *Server) Attach(link Link) error {
	return s.post(event{kind: evOpen, link: link, id: link.ID()})
}

// Receive hands bytes read from link id to the loop.
func (s *Server) Receive(id int32, data []byte) error {
	return s.post(event{kind: evData, id: id, data: data})
}

// Detach reports that link id is gone.
func (s *Server) Detach(id int32, err error) error {
	return s.post(event{kind: evClose, id: id, err: err})
}

// call runs fn on the event loop.
func (s *Server) call(fn func()) error {
	return s.post(event{kind: evCall, fn: fn})
}

func (s *Server) post(ev event) error {
	select {
	case <-s.quit:
		return ErrStopped
	default:
	}

	select {
	case s.events <- ev:
		return nil
	case <-s.quit:
		return ErrStopped
	}
}

func (s *Server) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evOpen:
		c := newConnection(ev.link, s.cfg.MaxPayload, s.log)
		s.conns[c.id] = c
		s.metrics.ConnOpened()
		c.log.Debug("connection opened")

	case evData:
		c, ok := s.conns[ev.id]
		if !ok || c.state == protocol.StateDisconn {
			return
		}

		_, err := c.demux.Feed(ev.data, func(msg protocol.Message) bool {
			s.dispatch(ctx, c, msg)
			return c.state != protocol.StateDisconn
		})
		if err != nil {
			c.log.Warn("protocol error", logger.Err(err))
			c.send(&protocol.Denied{Reason: err.Error()})
			c.send(&protocol.Goodbye{Reason: "protocol error"})
			s.drop(c, "protocol error")
		}

	case evClose:
		c, ok := s.conns[ev.id]
		if !ok {
			return
		}

		s.drop(c, "connection lost")
		delete(s.conns, c.id)
		s.metrics.ConnClosed()
		c.log.Debug("connection released", logger.Err(ev.err))

	case evCall:
		ev.fn()
	}
}

// drop moves c to DISCONN: the pending choice resolves as a resignation,
// its seat is released or marked gone, the roster is told and the link is
// closed. The slot itself is freed when the transport reports the close.
func (s *Server) drop(c *Connection, reason string) {
	if c.state == protocol.StateDisconn {
		return
	}

	wasLoggedIn := c.loggedIn()
	c.state = protocol.StateDisconn
	c.resolve(choiceReply{err: controller.ErrResigned})

	if sess, seat, ok := s.lobby.Disconnect(c.id); ok {
		s.seatLost(sess, seat, c.user)
	}

	if wasLoggedIn {
		delete(s.online, c.user)
		for _, other := range s.loggedIn() {
			other.send(&protocol.PlayerLeft{User: c.user})
		}
	}

	_ = c.link.Close()
	c.log.Info("connection dropped", logger.Field{Key: "reason", Value: reason}, logger.Field{Key: "user", Value: c.user})
}

// loggedIn returns connections in LOBBY or PLAYING ordered by id.
func (s *Server) loggedIn() []*Connection {
	var out []*Connection
	for _, c := range s.sortedConns() {
		if c.loggedIn() {
			out = append(out, c)
		}
	}

	return out
}

func (s *Server) sortedConns() []*Connection {
	out := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// seated returns the live connections of sess in seat order.
func (s *Server) seated(sess *lobby.Session) []*Connection {
	var out []*Connection
	for _, id := range sess.Connections() {
		if c, ok := s.conns[id]; ok && c.state != protocol.StateDisconn {
			out = append(out, c)
		}
	}

	return out
}

// Snapshot is a point-in-time view of one connection.
type Snapshot struct {
	ID    int32
	User  string
	State protocol.ConnState
	Wait  protocol.WaitState
}

// Connections returns a snapshot of every connection, taken on the loop.
func (s *Server) Connections() ([]Snapshot, error) {
	done := make(chan []Snapshot, 1)
	err := s.call(func() {
		var out []Snapshot
		for _, c := range s.sortedConns() {
			out = append(out, Snapshot{ID: c.id, User: c.user, State: c.state, Wait: c.wait})
		}
		done <- out
	})
	if err != nil {
		return nil, err
	}

	select {
	case out := <-done:
		return out, nil
	case <-s.quit:
		return nil, ErrStopped
	}
}
