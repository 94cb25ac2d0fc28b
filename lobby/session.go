package lobby

import (
	"github.com/samber/lo"
)

// SeatKind says who occupies a seat.
type SeatKind int32

const (
	SeatEmpty SeatKind = iota
	SeatHuman
	SeatAI
	// SeatGone marks a human seat whose connection disappeared after start.
	SeatGone
)

// String returns the lowercase name of the kind.
func (k SeatKind) String() string {
	switch k {
	case SeatEmpty:
		return "empty"
	case SeatHuman:
		return "human"
	case SeatAI:
		return "ai"
	case SeatGone:
		return "gone"
	default:
		return "unknown"
	}
}

// Status is the session lifecycle.
type Status int32

const (
	StatusOpen Status = iota
	StatusStarted
	StatusClosed
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusStarted:
		return "started"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Member identifies a logged-in connection.
type Member struct {
	ConnID int32
	Name   string
}

// Seat is one slot of a session. ConnID is a weak reference: the session
// never owns the connection.
type Seat struct {
	Kind   SeatKind
	ConnID int32
	Name   string
}

// Session is one forming or running game.
type Session struct {
	ID          int32
	Description string
	Password    string
	Owner       Member
	Seats       []Seat
	Status      Status

	history      []string
	historyLimit int
}

// HasPassword reports whether joining requires a password.
func (s *Session) HasPassword() bool {
	return s.Password != ""
}

// Filled reports whether no seat is empty.
func (s *Session) Filled() bool {
	return !lo.ContainsBy(s.Seats, func(seat Seat) bool { return seat.Kind == SeatEmpty })
}

// SeatOf returns the seat index held by connID.
func (s *Session) SeatOf(connID int32) (int, bool) {
	_, idx, ok := lo.FindIndexOf(s.Seats, func(seat Seat) bool {
		return seat.Kind == SeatHuman && seat.ConnID == connID
	})

	return idx, ok
}

// Connections returns the connection ids of human seats in seat order.
func (s *Session) Connections() []int32 {
	humans := lo.Filter(s.Seats, func(seat Seat, _ int) bool { return seat.Kind == SeatHuman })
	return lo.Map(humans, func(seat Seat, _ int) int32 { return seat.ConnID })
}

// Occupied returns the number of non-empty seats.
func (s *Session) Occupied() int {
	return lo.CountBy(s.Seats, func(seat Seat) bool { return seat.Kind != SeatEmpty })
}

// Record appends a chat or log line to the bounded history.
func (s *Session) Record(line string) {
	s.history = append(s.history, line)
	if s.historyLimit > 0 && len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}
}

// History returns a copy of the recorded lines, oldest first.
func (s *Session) History() []string {
	return append([]string(nil), s.history...)
}

func (s *Session) firstEmpty() (int, bool) {
	idx := lo.IndexOf(lo.Map(s.Seats, func(seat Seat, _ int) SeatKind { return seat.Kind }), SeatEmpty)
	return idx, idx >= 0
}

func (s *Session) seatByName(name string) (int, bool) {
	_, idx, ok := lo.FindIndexOf(s.Seats, func(seat Seat) bool {
		return seat.Kind != SeatEmpty && seat.Name == name
	})

	return idx, ok
}
