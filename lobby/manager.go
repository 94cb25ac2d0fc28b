// Package lobby tracks game sessions, their seats and their lifecycle.
//
// The Manager is not safe for concurrent use. It is owned by the relay's
// event loop, which is the only goroutine that mutates it.
package lobby

import (
	"fmt"
	"sort"

	"github.com/cyberinferno/galaxy-relay/idgenerator"
	"github.com/samber/lo"
)

// Config bounds session shapes.
type Config struct {
	MinSeats     int
	MaxSeats     int
	HistoryLimit int
}

// DefaultConfig returns 2 to 6 seats and 100 lines of history.
func DefaultConfig() Config {
	return Config{
		MinSeats:     2,
		MaxSeats:     6,
		HistoryLimit: 100,
	}
}

// Manager owns the session table.
type Manager struct {
	cfg      Config
	sessions map[int32]*Session
	seated   map[int32]int32
	ids      *idgenerator.IdGenerator
}

// NewManager creates an empty session table.
//
// Parameters:
//   - cfg: Seat bounds and history size
//
// Returns:
//   - A new *Manager
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		sessions: make(map[int32]*Session),
		seated:   make(map[int32]int32),
		ids:      idgenerator.NewIdGenerator(0),
	}
}

// Create opens a session and seats the owner at seat 0.
//
// Parameters:
//   - owner: The creating connection
//   - description: Free text shown in the lobby listing
//   - password: Join password; empty for none
//   - seats: Number of seats, within the configured bounds
//
// Returns:
//   - The new session
//   - ErrAlreadySeated, or ErrInvalidState for a seat count out of bounds
func (m *Manager) Create(owner Member, description, password string, seats int) (*Session, error) {
	if _, ok := m.seated[owner.ConnID]; ok {
		return nil, ErrAlreadySeated
	}

	if seats < m.cfg.MinSeats || seats > m.cfg.MaxSeats {
		return nil, fmt.Errorf("%w: %d seats outside %d..%d", ErrInvalidState, seats, m.cfg.MinSeats, m.cfg.MaxSeats)
	}

	s := &Session{
		ID:           m.ids.Id(),
		Description:  description,
		Password:     password,
		Owner:        owner,
		Seats:        make([]Seat, seats),
		Status:       StatusOpen,
		historyLimit: m.cfg.HistoryLimit,
	}
	s.Seats[0] = Seat{Kind: SeatHuman, ConnID: owner.ConnID, Name: owner.Name}

	m.sessions[s.ID] = s
	m.seated[owner.ConnID] = s.ID
	return s, nil
}

// Join seats who in the first empty seat of session id. Nothing changes
// on failure.
//
// Returns:
//   - The session and the seat index taken
//   - ErrNotFound, ErrClosed, ErrBadPassword, ErrAlreadySeated or ErrFull
func (m *Manager) Join(id int32, who Member, password string) (*Session, int, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, -1, ErrNotFound
	}

	if s.Status != StatusOpen {
		return s, -1, ErrClosed
	}

	if _, ok := m.seated[who.ConnID]; ok {
		return s, -1, ErrAlreadySeated
	}

	if s.Password != password {
		return s, -1, ErrBadPassword
	}

	seat, ok := s.firstEmpty()
	if !ok {
		return s, -1, ErrFull
	}

	s.Seats[seat] = Seat{Kind: SeatHuman, ConnID: who.ConnID, Name: who.Name}
	m.seated[who.ConnID] = s.ID
	return s, seat, nil
}

// AddAI fills the first empty seat with a computer player. Only the owner
// may add one, and only before start.
//
// Returns:
//   - The session and the seat index filled
//   - ErrNotFound, ErrNotOwner, ErrClosed or ErrFull
func (m *Manager) AddAI(id int32, requester int32, name string) (*Session, int, error) {
	s, err := m.ownedOpen(id, requester)
	if err != nil {
		return s, -1, err
	}

	seat, ok := s.firstEmpty()
	if !ok {
		return s, -1, ErrFull
	}

	s.Seats[seat] = Seat{Kind: SeatAI, Name: name}
	return s, seat, nil
}

// Remove empties the seat of the named player before start. The owner may
// remove anyone but themselves.
//
// Returns:
//   - The session and the seat that was emptied, as it was before removal
//   - ErrNotFound, ErrNotOwner, ErrClosed, ErrNotSeated or ErrInvalidState
func (m *Manager) Remove(id int32, requester int32, name string) (*Session, Seat, error) {
	s, err := m.ownedOpen(id, requester)
	if err != nil {
		return s, Seat{}, err
	}

	idx, ok := s.seatByName(name)
	if !ok {
		return s, Seat{}, ErrNotSeated
	}

	removed := s.Seats[idx]
	if removed.Kind == SeatHuman && removed.ConnID == s.Owner.ConnID {
		return s, Seat{}, fmt.Errorf("%w: owner cannot remove themselves", ErrInvalidState)
	}

	s.Seats[idx] = Seat{}
	if removed.Kind == SeatHuman {
		delete(m.seated, removed.ConnID)
	}

	return s, removed, nil
}

// Leave frees the seat held by connID in an open session. When the owner
// leaves, the session is closed instead and its Status says so.
//
// Returns:
//   - The session
//   - ErrNotFound, ErrNotSeated, or ErrInvalidState once started
func (m *Manager) Leave(id int32, connID int32) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	idx, ok := s.SeatOf(connID)
	if !ok {
		return s, ErrNotSeated
	}

	if s.Status != StatusOpen {
		return s, fmt.Errorf("%w: session already %s", ErrInvalidState, s.Status)
	}

	if connID == s.Owner.ConnID {
		return m.Close(id)
	}

	s.Seats[idx] = Seat{}
	delete(m.seated, connID)
	return s, nil
}

// Start moves an open session to started. It requires the owner as
// requester and every seat filled; otherwise nothing changes.
//
// Returns:
//   - The session
//   - ErrNotFound, ErrNotOwner, ErrClosed or ErrInvalidState
func (m *Manager) Start(id int32, requester int32) (*Session, error) {
	s, err := m.ownedOpen(id, requester)
	if err != nil {
		return s, err
	}

	if !s.Filled() {
		return s, fmt.Errorf("%w: %d of %d seats filled", ErrInvalidState, s.Occupied(), len(s.Seats))
	}

	s.Status = StatusStarted
	return s, nil
}

// Close ends a session and drops it from the table. The returned session
// still lists its seats so callers can notify them.
//
// Returns:
//   - The closed session, or ErrNotFound
func (m *Manager) Close(id int32) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	s.Status = StatusClosed
	for _, conn := range s.Connections() {
		delete(m.seated, conn)
	}

	delete(m.sessions, id)
	return s, nil
}

// Disconnect handles the loss of connID. In an open session the seat is
// freed (or the session closed when the owner left); in a started session
// the seat becomes SeatGone.
//
// Returns:
//   - The affected session and the seat index connID held
//   - false when connID was not seated anywhere
func (m *Manager) Disconnect(connID int32) (*Session, int, bool) {
	id, ok := m.seated[connID]
	if !ok {
		return nil, -1, false
	}

	s := m.sessions[id]
	idx, _ := s.SeatOf(connID)

	if s.Status == StatusStarted {
		s.Seats[idx].Kind = SeatGone
		delete(m.seated, connID)
		return s, idx, true
	}

	s, _ = m.Leave(id, connID)
	return s, idx, true
}

// Lookup returns the session with the given id.
func (m *Manager) Lookup(id int32) (*Session, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

// SeatOf returns the session and seat held by connID.
func (m *Manager) SeatOf(connID int32) (*Session, int, bool) {
	id, ok := m.seated[connID]
	if !ok {
		return nil, -1, false
	}

	s := m.sessions[id]
	idx, ok := s.SeatOf(connID)
	return s, idx, ok
}

// Sessions returns every live session ordered by id.
func (m *Manager) Sessions() []*Session {
	out := lo.Values(m.sessions)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return len(m.sessions)
}

func (m *Manager) ownedOpen(id int32, requester int32) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	if s.Owner.ConnID != requester {
		return s, ErrNotOwner
	}

	if s.Status != StatusOpen {
		return s, ErrClosed
	}

	return s, nil
}
