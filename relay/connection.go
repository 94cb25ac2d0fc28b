package relay

import (
	"time"

	"github.com/cyberinferno/galaxy-relay/controller"
	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/mux"
	"github.com/cyberinferno/galaxy-relay/protocol"
)

// Link is the transport side of a connection. *tcpserver.Peer satisfies it.
type Link interface {
	ID() int32
	Send(data []byte) error
	Close() error
}

// Connection is the loop-owned state of one client. Only the event loop
// reads or writes its fields.
type Connection struct {
	id    int32
	link  Link
	state protocol.ConnState
	wait  protocol.WaitState
	demux *mux.Demuxer
	log   logger.Logger

	user        string
	authPending bool
	pending     *pendingChoice
}

type pendingChoice struct {
	id    int32
	reply chan<- choiceReply
	since time.Time
}

type choiceReply struct {
	choice controller.Choice
	err    error
}

func newConnection(link Link, maxPayload uint32, log logger.Logger) *Connection {
	return &Connection{
		id:    link.ID(),
		link:  link,
		state: protocol.StateInit,
		wait:  protocol.WaitReady,
		demux: mux.NewDemuxer(maxPayload),
		log:   log.With(logger.Conn(link.ID())),
	}
}

// ID returns the connection id.
func (c *Connection) ID() int32 {
	return c.id
}

// State returns the lifecycle state.
func (c *Connection) State() protocol.ConnState {
	return c.state
}

// User returns the login name, empty before login.
func (c *Connection) User() string {
	return c.user
}

func (c *Connection) loggedIn() bool {
	return c.state == protocol.StateLobby || c.state == protocol.StatePlaying
}

func (c *Connection) send(p protocol.Payload) {
	if c.state == protocol.StateDisconn {
		return
	}

	if err := c.link.Send(protocol.Marshal(p)); err != nil {
		c.log.Debug("send failed", logger.Field{Key: "type", Value: p.MsgType().String()}, logger.Err(err))
	}
}

// resolve answers the outstanding choice, if any, exactly once.
func (c *Connection) resolve(reply choiceReply) (time.Duration, bool) {
	p := c.pending
	if p == nil {
		return 0, false
	}

	c.pending = nil
	p.reply <- reply
	return time.Since(p.since), true
}
