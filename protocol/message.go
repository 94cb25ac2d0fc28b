// Package protocol implements the session wire protocol: an 8-byte header
// (message type, payload length) followed by a payload of big-endian
// integers and length-prefixed strings written in a fixed per-type order.
package protocol

import "fmt"

const (
	// HeaderLen is the size of the fixed message header in bytes.
	HeaderLen = 8

	// ChunkSize is the single-read buffer size shared by both ends. It is an
	// I/O hint only; messages longer than a chunk are reassembled.
	ChunkSize = 1024

	// DefaultMaxPayload caps the declared payload length of a single message.
	DefaultMaxPayload uint32 = 64 * 1024
)

// MsgType identifies the kind of a message. Values are grouped by decade.
type MsgType uint32

// Session lifecycle.
const (
	MsgLogin   MsgType = 1
	MsgHello   MsgType = 2
	MsgDenied  MsgType = 3
	MsgGoodbye MsgType = 4
	MsgPing    MsgType = 5
)

// Roster.
const (
	MsgPlayerNew  MsgType = 10
	MsgPlayerLeft MsgType = 11
)

// Lobby and session control.
const (
	MsgOpenGame   MsgType = 20
	MsgGamePlayer MsgType = 21
	MsgCloseGame  MsgType = 22
	MsgJoin       MsgType = 23
	MsgLeave      MsgType = 24
	MsgJoinAck    MsgType = 25
	MsgJoinNak    MsgType = 26
	MsgCreate     MsgType = 27
	MsgStart      MsgType = 28
	MsgRemove     MsgType = 29
	MsgResign     MsgType = 30
	MsgAddAI      MsgType = 31
)

// In-game status and broadcast.
const (
	MsgStatusMeta   MsgType = 40
	MsgStatusPlayer MsgType = 41
	MsgStatusCard   MsgType = 42
	MsgStatusGoal   MsgType = 43
	MsgStatusMisc   MsgType = 44
	MsgLog          MsgType = 45
	MsgChat         MsgType = 46
	MsgWaiting      MsgType = 47
	MsgSeat         MsgType = 48
	MsgGameChat     MsgType = 49
	MsgLogFormat    MsgType = 50
)

// Decision exchange.
const (
	MsgChoose  MsgType = 60
	MsgPrepare MsgType = 61
)

// Terminal.
const (
	MsgGameOver MsgType = 70
)

var msgNames = map[MsgType]string{
	MsgLogin:        "LOGIN",
	MsgHello:        "HELLO",
	MsgDenied:       "DENIED",
	MsgGoodbye:      "GOODBYE",
	MsgPing:         "PING",
	MsgPlayerNew:    "PLAYER_NEW",
	MsgPlayerLeft:   "PLAYER_LEFT",
	MsgOpenGame:     "OPENGAME",
	MsgGamePlayer:   "GAME_PLAYER",
	MsgCloseGame:    "CLOSE_GAME",
	MsgJoin:         "JOIN",
	MsgLeave:        "LEAVE",
	MsgJoinAck:      "JOINACK",
	MsgJoinNak:      "JOINNAK",
	MsgCreate:       "CREATE",
	MsgStart:        "START",
	MsgRemove:       "REMOVE",
	MsgResign:       "RESIGN",
	MsgAddAI:        "ADD_AI",
	MsgStatusMeta:   "STATUS_META",
	MsgStatusPlayer: "STATUS_PLAYER",
	MsgStatusCard:   "STATUS_CARD",
	MsgStatusGoal:   "STATUS_GOAL",
	MsgStatusMisc:   "STATUS_MISC",
	MsgLog:          "LOG",
	MsgChat:         "CHAT",
	MsgWaiting:      "WAITING",
	MsgSeat:         "SEAT",
	MsgGameChat:     "GAMECHAT",
	MsgLogFormat:    "LOG_FORMAT",
	MsgChoose:       "CHOOSE",
	MsgPrepare:      "PREPARE",
	MsgGameOver:     "GAMEOVER",
}

// String returns the protocol name of the message type.
func (t MsgType) String() string {
	if name, ok := msgNames[t]; ok {
		return name
	}

	return fmt.Sprintf("MSG(%d)", uint32(t))
}

// Known reports whether t belongs to the closed set of message types.
func (t MsgType) Known() bool {
	_, ok := msgNames[t]
	return ok
}

// IsStatus reports whether t is one of the STATUS_* broadcast types.
func (t MsgType) IsStatus() bool {
	return t >= MsgStatusMeta && t <= MsgStatusMisc
}

// MsgTypes returns every known message type in ascending order.
func MsgTypes() []MsgType {
	types := make([]MsgType, 0, len(msgNames))
	for t := MsgType(0); t <= MsgGameOver; t++ {
		if t.Known() {
			types = append(types, t)
		}
	}

	return types
}

// Message is one decoded frame. Payload holds exactly the declared number
// of bytes following the header.
type Message struct {
	Type    MsgType
	Payload []byte
}

// Length returns the payload length carried in the header.
func (m Message) Length() int {
	return len(m.Payload)
}

// ConnState is the lifecycle state of a server-side connection.
type ConnState int32

const (
	StateEmpty   ConnState = iota // Slot unused
	StateInit                     // Accepted, not authenticated
	StateLobby                    // Authenticated, not in a started game
	StatePlaying                  // Seated in a started session
	StateDisconn                  // Terminal, awaiting reclamation
)

// String returns a human-readable name for the connection state.
func (s ConnState) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateInit:
		return "INIT"
	case StateLobby:
		return "LOBBY"
	case StatePlaying:
		return "PLAYING"
	case StateDisconn:
		return "DISCONN"
	default:
		return "UNKNOWN"
	}
}

// WaitState tells a playing client whether it must act.
type WaitState int32

const (
	WaitReady   WaitState = iota // Must act now
	WaitBlocked                  // Waiting on another seat
	WaitOption                   // Optional decision pending
)

// String returns a human-readable name for the wait state.
func (w WaitState) String() string {
	switch w {
	case WaitReady:
		return "READY"
	case WaitBlocked:
		return "BLOCKED"
	case WaitOption:
		return "OPTION"
	default:
		return "UNKNOWN"
	}
}
