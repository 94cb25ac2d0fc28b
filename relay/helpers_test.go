package relay

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cyberinferno/galaxy-relay/controller"
	"github.com/cyberinferno/galaxy-relay/engine"
	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/mux"
	"github.com/cyberinferno/galaxy-relay/protocol"
	"github.com/cyberinferno/galaxy-relay/tcpserver"
	"github.com/stretchr/testify/require"
)

// fakeLink decodes everything the server sends it.
type fakeLink struct {
	id     int32
	mu     sync.Mutex
	demux  *mux.Demuxer
	msgs   []protocol.Message
	closed bool
}

func newFakeLink(id int32) *fakeLink {
	return &fakeLink{id: id, demux: mux.NewDemuxer(0)}
}

func (l *fakeLink) ID() int32 { return l.id }

func (l *fakeLink) Send(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return tcpserver.ErrPeerGone
	}

	_, err := l.demux.Feed(data, func(m protocol.Message) bool {
		l.msgs = append(l.msgs, m)
		return true
	})
	return err
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// take returns and forgets everything received so far.
func (l *fakeLink) take() []protocol.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.msgs
	l.msgs = nil
	return out
}

func types(msgs []protocol.Message) []protocol.MsgType {
	out := make([]protocol.MsgType, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}

	return out
}

func find(t *testing.T, msgs []protocol.Message, mt protocol.MsgType, p protocol.Payload) {
	t.Helper()

	for _, m := range msgs {
		if m.Type == mt {
			require.NoError(t, protocol.Unmarshal(m, p))
			return
		}
	}

	t.Fatalf("no %s among %v", mt, types(msgs))
}

type harness struct {
	t *testing.T
	s *Server
}

func newHarness(t *testing.T, rules engine.Rules, opts ...Option) *harness {
	t.Helper()

	s := NewServer(DefaultConfig(), rules, logger.Nop(), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &harness{t: t, s: s}
}

// settle waits until the loop has processed everything posted so far and
// returns the connection snapshot.
func (h *harness) settle() map[int32]Snapshot {
	h.t.Helper()

	snaps, err := h.s.Connections()
	require.NoError(h.t, err)

	out := make(map[int32]Snapshot, len(snaps))
	for _, s := range snaps {
		out[s.ID] = s
	}

	return out
}

func (h *harness) state(l *fakeLink) protocol.ConnState {
	h.t.Helper()

	snap, ok := h.settle()[l.id]
	if !ok {
		return protocol.StateEmpty
	}

	return snap.State
}

func (h *harness) connect(id int32) *fakeLink {
	h.t.Helper()

	l := newFakeLink(id)
	require.NoError(h.t, h.s.Attach(l))
	return l
}

// send delivers p from l and waits for the loop to process it.
func (h *harness) send(l *fakeLink, p protocol.Payload) {
	h.t.Helper()
	require.NoError(h.t, h.s.Receive(l.id, protocol.Marshal(p)))
	h.settle()
}

func (h *harness) login(id int32, name string) *fakeLink {
	h.t.Helper()

	l := h.connect(id)
	h.send(l, &protocol.Login{User: name, Password: "pw"})
	require.Equal(h.t, protocol.StateLobby, h.state(l))
	l.take()
	return l
}

// create opens a session owned by l and returns its id.
func (h *harness) create(l *fakeLink, seats int32) int32 {
	h.t.Helper()

	h.send(l, &protocol.Create{Description: "game", Seats: seats})
	h.settle()

	var ack protocol.JoinAck
	find(h.t, l.take(), protocol.MsgJoinAck, &ack)
	return ack.SessionID
}

// scriptRules runs script as the game's only round.
type scriptRules struct {
	script   func(ctx context.Context, players []engine.Player) error
	mu       sync.Mutex
	declared int
}

func (r *scriptRules) ReadCards() error { return nil }

func (r *scriptRules) NewGame(players []engine.Player) (engine.Game, error) {
	return &scriptGame{rules: r, players: players}, nil
}

func (r *scriptRules) LoadGame(string, []engine.Player) (engine.Game, error) {
	return nil, nil
}

func (r *scriptRules) winners() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.declared
}

type scriptGame struct {
	rules   *scriptRules
	players []engine.Player
}

func (g *scriptGame) Init() error  { return nil }
func (g *scriptGame) Begin() error { return nil }

func (g *scriptGame) Round(ctx context.Context) (bool, error) {
	return false, g.rules.script(ctx, g.players)
}

func (g *scriptGame) DeclareWinner() {
	g.rules.mu.Lock()
	defer g.rules.mu.Unlock()
	g.rules.declared++
}

// blockingRules never finishes a round on its own.
func blockingRules() *scriptRules {
	return &scriptRules{script: func(ctx context.Context, _ []engine.Player) error {
		<-ctx.Done()
		return ctx.Err()
	}}
}

func firstCandidate() AIFactory {
	return func(seat int, _ string) controller.Controller {
		return controller.NewAI(controller.DeciderFunc(func(_ context.Context, _ int, req controller.ChoiceRequest) (controller.Choice, error) {
			if len(req.Candidates) == 0 {
				return controller.Choice{}, nil
			}
			return controller.Choice{Selected: req.Candidates[:1]}, nil
		}), seat)
	}
}

// wireClient speaks the protocol over a real socket.
type wireClient struct {
	t     *testing.T
	conn  net.Conn
	demux *mux.Demuxer
	inbox []protocol.Message
}

func dial(t *testing.T, addr string) *wireClient {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &wireClient{t: t, conn: conn, demux: mux.NewDemuxer(0)}
}

func (c *wireClient) send(p protocol.Payload) {
	c.t.Helper()

	_, err := c.conn.Write(protocol.Marshal(p))
	require.NoError(c.t, err)
}

// next returns the next message, reading from the socket as needed.
func (c *wireClient) next() protocol.Message {
	c.t.Helper()

	buf := make([]byte, protocol.ChunkSize)
	for len(c.inbox) == 0 {
		require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		n, err := c.conn.Read(buf)
		require.NoError(c.t, err)

		_, err = c.demux.Feed(buf[:n], func(m protocol.Message) bool {
			c.inbox = append(c.inbox, m)
			return true
		})
		require.NoError(c.t, err)
	}

	m := c.inbox[0]
	c.inbox = c.inbox[1:]
	return m
}

// until skips messages until one of type mt arrives and decodes it into p.
func (c *wireClient) until(mt protocol.MsgType, p protocol.Payload) {
	c.t.Helper()

	for {
		m := c.next()
		if m.Type == mt {
			require.NoError(c.t, protocol.Unmarshal(m, p))
			return
		}
	}
}
