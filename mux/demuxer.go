// Package mux reassembles the byte stream of one connection into discrete
// protocol messages. A Demuxer never blocks: bytes that do not yet form a
// complete message stay buffered until the next Feed.
package mux

import (
	"github.com/cyberinferno/galaxy-relay/protocol"
)

// DispatchFunc receives each decoded message in arrival order. Returning
// false stops the current Feed; undispatched bytes stay buffered.
type DispatchFunc func(msg protocol.Message) bool

// Demuxer holds the inbound buffer of a single connection. It is not safe
// for concurrent use; the owning event loop serialises access.
type Demuxer struct {
	buf        []byte
	maxPayload uint32
}

// NewDemuxer creates a Demuxer that rejects messages whose declared payload
// exceeds maxPayload.
//
// Parameters:
//   - maxPayload: Largest payload length accepted; 0 selects protocol.DefaultMaxPayload
//
// Returns:
//   - A new, empty Demuxer
func NewDemuxer(maxPayload uint32) *Demuxer {
	if maxPayload == 0 {
		maxPayload = protocol.DefaultMaxPayload
	}

	return &Demuxer{maxPayload: maxPayload}
}

// Feed appends data to the buffer and dispatches every complete message.
// Each dispatched payload is a private copy and may be retained.
//
// Parameters:
//   - data: Bytes just read from the connection
//   - dispatch: Called once per complete message, in order
//
// Returns:
//   - The number of messages dispatched
//   - A *protocol.ProtocolError when the stream cannot be decoded; the
//     connection must then be closed
func (d *Demuxer) Feed(data []byte, dispatch DispatchFunc) (int, error) {
	d.buf = append(d.buf, data...)

	dispatched := 0
	offset := 0
	defer func() {
		d.compact(offset)
	}()

	for offset < len(d.buf) {
		msg, n, err := protocol.Decode(d.buf[offset:], d.maxPayload)
		if err != nil {
			return dispatched, err
		}

		if n == 0 {
			break
		}

		offset += n
		msg.Payload = append([]byte(nil), msg.Payload...)
		dispatched++

		if !dispatch(msg) {
			break
		}
	}

	return dispatched, nil
}

// Buffered returns the number of bytes held for an incomplete message.
func (d *Demuxer) Buffered() int {
	return len(d.buf)
}

// Reset discards all buffered bytes.
func (d *Demuxer) Reset() {
	d.buf = d.buf[:0]
}

func (d *Demuxer) compact(offset int) {
	if offset == 0 {
		return
	}

	remaining := copy(d.buf, d.buf[offset:])
	d.buf = d.buf[:remaining]
}
