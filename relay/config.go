package relay

import (
	"time"

	"github.com/cyberinferno/galaxy-relay/lobby"
	"github.com/cyberinferno/galaxy-relay/protocol"
	"github.com/cyberinferno/galaxy-relay/tcpserver"
)

// Config holds relay server settings.
type Config struct {
	// Addr is the TCP listen address.
	Addr string
	// ProtocolVersion is the version LOGIN must carry; empty accepts any.
	ProtocolVersion string
	// MaxPayload is the largest inbound payload accepted before the
	// connection is dropped.
	MaxPayload uint32
	// MaxNameLength bounds login names in bytes.
	MaxNameLength int
	// EventQueue is the capacity of the event loop's inbox.
	EventQueue int
	// AuthTimeout bounds one login check against the account store.
	AuthTimeout time.Duration
	// ReadChunkSize is the largest single socket read.
	ReadChunkSize int
	// OutboundQueue is the number of messages a peer may have pending.
	OutboundQueue int
	// Lobby bounds seats and chat history.
	Lobby lobby.Config
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Addr:          ":16309",
		MaxPayload:    protocol.DefaultMaxPayload,
		MaxNameLength: 32,
		EventQueue:    1024,
		AuthTimeout:   10 * time.Second,
		ReadChunkSize: protocol.ChunkSize,
		OutboundQueue: 256,
		Lobby:         lobby.DefaultConfig(),
	}
}

func (c Config) transport() tcpserver.Config {
	t := tcpserver.DefaultConfig(c.Addr)
	t.ReadChunkSize = c.ReadChunkSize
	t.OutboundQueue = c.OutboundQueue
	return t
}
