package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a connection-fatal protocol failure.
type ErrorKind int

const (
	UnknownType ErrorKind = iota + 1
	Oversized
	Malformed
	UnexpectedType
)

// String returns the name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case UnknownType:
		return "UnknownType"
	case Oversized:
		return "Oversized"
	case Malformed:
		return "Malformed"
	case UnexpectedType:
		return "UnexpectedType"
	default:
		return "Unknown"
	}
}

// ProtocolError reports a malformed, oversized or unknown message. A peer
// that triggers one is disconnected.
type ProtocolError struct {
	Kind   ErrorKind
	Type   MsgType
	Detail string
}

// Error implements error.
func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("protocol error %s (type %s)", e.Kind, e.Type)
	}

	return fmt.Sprintf("protocol error %s (type %s): %s", e.Kind, e.Type, e.Detail)
}

// IsKind reports whether err is a ProtocolError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var perr *ProtocolError
	return errors.As(err, &perr) && perr.Kind == kind
}
