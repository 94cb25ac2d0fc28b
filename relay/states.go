package relay

import (
	"fmt"

	"github.com/cyberinferno/galaxy-relay/protocol"
)

// legal lists the messages a client may send in each state. DISCONN has
// no entry: nothing is processed once a connection is going away.
var legal = map[protocol.ConnState]map[protocol.MsgType]bool{
	protocol.StateInit: set(
		protocol.MsgLogin, protocol.MsgPing, protocol.MsgGoodbye,
	),
	protocol.StateLobby: set(
		protocol.MsgCreate, protocol.MsgJoin, protocol.MsgLeave, protocol.MsgStart,
		protocol.MsgRemove, protocol.MsgAddAI, protocol.MsgChat, protocol.MsgGameChat,
		protocol.MsgPing, protocol.MsgGoodbye,
	),
	protocol.StatePlaying: set(
		protocol.MsgPrepare, protocol.MsgResign, protocol.MsgChat, protocol.MsgGameChat,
		protocol.MsgPing, protocol.MsgGoodbye,
	),
}

// choosing lists what a connection with a choice outstanding may send: the
// answer, a resignation, liveness and leaving.
var choosing = set(protocol.MsgPrepare, protocol.MsgResign, protocol.MsgPing, protocol.MsgGoodbye)

func set(types ...protocol.MsgType) map[protocol.MsgType]bool {
	m := make(map[protocol.MsgType]bool, len(types))
	for _, t := range types {
		m[t] = true
	}

	return m
}

// Legal reports whether a client may send t while in state.
func Legal(state protocol.ConnState, t protocol.MsgType) bool {
	return legal[state][t]
}

// StateError rejects a message that is not allowed right now. The
// connection stays open and receives DENIED with Reason.
type StateError struct {
	State  protocol.ConnState
	Type   protocol.MsgType
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed in %s: %s", e.Type, e.State, e.Reason)
}

func stateError(c *Connection, t protocol.MsgType, format string, args ...any) *StateError {
	return &StateError{State: c.state, Type: t, Reason: fmt.Sprintf(format, args...)}
}
