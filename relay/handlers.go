package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyberinferno/galaxy-relay/lobby"
	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/protocol"
	"github.com/samber/lo"
)

type handlerFunc func(s *Server, ctx context.Context, c *Connection, msg protocol.Message) error

var handlers = map[protocol.MsgType]handlerFunc{
	protocol.MsgLogin:    (*Server).handleLogin,
	protocol.MsgPing:     (*Server).handlePing,
	protocol.MsgGoodbye:  (*Server).handleGoodbye,
	protocol.MsgCreate:   (*Server).handleCreate,
	protocol.MsgJoin:     (*Server).handleJoin,
	protocol.MsgLeave:    (*Server).handleLeave,
	protocol.MsgStart:    (*Server).handleStart,
	protocol.MsgRemove:   (*Server).handleRemove,
	protocol.MsgAddAI:    (*Server).handleAddAI,
	protocol.MsgChat:     (*Server).handleChat,
	protocol.MsgGameChat: (*Server).handleGameChat,
	protocol.MsgPrepare:  (*Server).handlePrepare,
	protocol.MsgResign:   (*Server).handleResign,
}

// dispatch applies one decoded message. Illegal messages and StateErrors
// are answered with DENIED; malformed payloads drop the connection.
func (s *Server) dispatch(ctx context.Context, c *Connection, msg protocol.Message) {
	s.metrics.Received(msg.Type)
	c.log.Debug("message received", logger.Field{Key: "type", Value: msg.Type.String()})

	if !Legal(c.state, msg.Type) {
		s.deny(c, msg.Type, stateError(c, msg.Type, "illegal message"))
		return
	}

	if c.pending != nil && !choosing[msg.Type] {
		s.deny(c, msg.Type, stateError(c, msg.Type, "choice %d outstanding", c.pending.id))
		return
	}

	err := handlers[msg.Type](s, ctx, c, msg)
	if err == nil {
		return
	}

	var perr *protocol.ProtocolError
	if errors.As(err, &perr) {
		c.log.Warn("malformed message", logger.Err(err))
		c.send(&protocol.Denied{Reason: perr.Error()})
		c.send(&protocol.Goodbye{Reason: "protocol error"})
		s.drop(c, "protocol error")
		return
	}

	s.deny(c, msg.Type, err)
}

func (s *Server) deny(c *Connection, t protocol.MsgType, err error) {
	s.metrics.Denied(t)

	reason := err.Error()
	var serr *StateError
	if errors.As(err, &serr) {
		reason = serr.Reason
	}

	c.log.Debug("message denied", logger.Field{Key: "type", Value: t.String()}, logger.Field{Key: "reason", Value: reason})
	c.send(&protocol.Denied{Reason: reason})
}

func (s *Server) handlePing(_ context.Context, c *Connection, _ protocol.Message) error {
	c.send(&protocol.Ping{})
	return nil
}

func (s *Server) handleGoodbye(_ context.Context, c *Connection, _ protocol.Message) error {
	s.drop(c, "goodbye")
	return nil
}

func (s *Server) handleLogin(ctx context.Context, c *Connection, msg protocol.Message) error {
	var p protocol.Login
	if err := protocol.Unmarshal(msg, &p); err != nil {
		return err
	}

	if c.authPending {
		return stateError(c, msg.Type, "login already in progress")
	}

	if reason := s.checkLogin(p); reason != "" {
		s.metrics.Login(false)
		return stateError(c, msg.Type, "%s", reason)
	}

	if s.auth == nil {
		s.finishLogin(c.id, p.User, nil)
		return nil
	}

	c.authPending = true
	id, auth, timeout := c.id, s.auth, s.cfg.AuthTimeout
	go func() {
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := auth.Authenticate(actx, p.User, p.Password)
		_ = s.call(func() { s.finishLogin(id, p.User, err) })
	}()

	return nil
}

func (s *Server) checkLogin(p protocol.Login) string {
	switch {
	case p.User == "":
		return "empty user name"
	case len(p.User) > s.cfg.MaxNameLength:
		return fmt.Sprintf("user name longer than %d bytes", s.cfg.MaxNameLength)
	case s.cfg.ProtocolVersion != "" && p.Version != s.cfg.ProtocolVersion:
		return fmt.Sprintf("protocol version %q required", s.cfg.ProtocolVersion)
	}

	if _, taken := s.online[p.User]; taken {
		return "user already logged in"
	}

	return ""
}

// finishLogin runs on the loop once authentication has an answer.
func (s *Server) finishLogin(id int32, user string, authErr error) {
	c, ok := s.conns[id]
	if !ok || c.state != protocol.StateInit {
		return
	}

	c.authPending = false
	if authErr != nil {
		s.metrics.Login(false)
		c.log.Warn("login rejected", logger.Field{Key: "user", Value: user}, logger.Err(authErr))
		c.send(&protocol.Denied{Reason: authErr.Error()})
		return
	}

	if _, taken := s.online[user]; taken {
		s.metrics.Login(false)
		c.send(&protocol.Denied{Reason: "user already logged in"})
		return
	}

	others := s.loggedIn()

	c.state = protocol.StateLobby
	c.user = user
	c.log = c.log.With(logger.Field{Key: "user", Value: user})
	s.online[user] = id
	s.metrics.Login(true)

	c.send(&protocol.Hello{User: user})
	for _, o := range others {
		c.send(&protocol.PlayerNew{User: o.user})
		o.send(&protocol.PlayerNew{User: user})
	}

	for _, sess := range s.lobby.Sessions() {
		sendSession(c, sess)
	}

	c.log.Info("player logged in")
}

func (s *Server) handleCreate(_ context.Context, c *Connection, msg protocol.Message) error {
	var p protocol.Create
	if err := protocol.Unmarshal(msg, &p); err != nil {
		return err
	}

	sess, err := s.lobby.Create(s.member(c), p.Description, p.Password, int(p.Seats))
	if err != nil {
		return err
	}

	s.metrics.Sessions(s.lobby.Len())
	s.announce(sess)
	c.send(&protocol.JoinAck{SessionID: sess.ID, Seat: 0})
	c.log.Info("session created", logger.Session(sess.ID))
	return nil
}

func (s *Server) handleJoin(_ context.Context, c *Connection, msg protocol.Message) error {
	var p protocol.Join
	if err := protocol.Unmarshal(msg, &p); err != nil {
		return err
	}

	sess, seat, err := s.lobby.Join(p.SessionID, s.member(c), p.Password)
	if err != nil {
		c.send(&protocol.JoinNak{SessionID: p.SessionID, Reason: err.Error()})
		return nil
	}

	c.send(&protocol.JoinAck{SessionID: sess.ID, Seat: int32(seat)})
	for _, line := range sess.History() {
		c.send(&protocol.GameChat{SessionID: sess.ID, Text: line})
	}

	s.announce(sess)
	return nil
}

func (s *Server) handleLeave(_ context.Context, c *Connection, msg protocol.Message) error {
	var p protocol.Leave
	if err := protocol.Unmarshal(msg, &p); err != nil {
		return err
	}

	sess, err := s.lobby.Leave(p.SessionID, c.id)
	if err != nil {
		return err
	}

	s.afterSeatChange(sess)
	return nil
}

func (s *Server) handleRemove(_ context.Context, c *Connection, msg protocol.Message) error {
	var p protocol.Remove
	if err := protocol.Unmarshal(msg, &p); err != nil {
		return err
	}

	sess, removed, err := s.lobby.Remove(p.SessionID, c.id, p.Name)
	if err != nil {
		return err
	}

	if removed.Kind == lobby.SeatHuman {
		if kicked, ok := s.conns[removed.ConnID]; ok {
			kicked.send(&protocol.CloseGame{SessionID: sess.ID})
		}
	}

	s.announce(sess)
	return nil
}

func (s *Server) handleAddAI(_ context.Context, c *Connection, msg protocol.Message) error {
	var p protocol.AddAI
	if err := protocol.Unmarshal(msg, &p); err != nil {
		return err
	}

	if s.newAI == nil {
		return stateError(c, msg.Type, "computer players are not available")
	}

	sess, ok := s.lobby.Lookup(p.SessionID)
	if !ok {
		return lobby.ErrNotFound
	}

	sess, _, err := s.lobby.AddAI(p.SessionID, c.id, aiName(sess))
	if err != nil {
		return err
	}

	s.announce(sess)
	return nil
}

// aiName returns the lowest "AI n" that no seat of sess carries, so REMOVE
// by name always finds the seat it means.
func aiName(sess *lobby.Session) string {
	for n := 1; ; n++ {
		name := fmt.Sprintf("AI %d", n)
		taken := lo.ContainsBy(sess.Seats, func(seat lobby.Seat) bool {
			return seat.Kind != lobby.SeatEmpty && seat.Name == name
		})
		if !taken {
			return name
		}
	}
}

func (s *Server) handleStart(ctx context.Context, c *Connection, msg protocol.Message) error {
	var p protocol.Start
	if err := protocol.Unmarshal(msg, &p); err != nil {
		return err
	}

	sess, err := s.lobby.Start(p.SessionID, c.id)
	if err != nil {
		return err
	}

	s.startGame(ctx, sess)
	return nil
}

func (s *Server) handleChat(_ context.Context, c *Connection, msg protocol.Message) error {
	var p protocol.Chat
	if err := protocol.Unmarshal(msg, &p); err != nil {
		return err
	}

	for _, o := range s.loggedIn() {
		o.send(&protocol.Chat{From: c.user, Text: p.Text})
	}

	return nil
}

func (s *Server) handleGameChat(_ context.Context, c *Connection, msg protocol.Message) error {
	var p protocol.GameChat
	if err := protocol.Unmarshal(msg, &p); err != nil {
		return err
	}

	sess, _, ok := s.lobby.SeatOf(c.id)
	if !ok || sess.ID != p.SessionID {
		return stateError(c, msg.Type, "not seated in session %d", p.SessionID)
	}

	sess.Record(fmt.Sprintf("%s: %s", c.user, p.Text))
	for _, o := range s.seated(sess) {
		o.send(&protocol.GameChat{SessionID: sess.ID, From: c.user, Text: p.Text})
	}

	return nil
}

func (s *Server) handlePrepare(_ context.Context, c *Connection, msg protocol.Message) error {
	var p protocol.Prepare
	if err := protocol.Unmarshal(msg, &p); err != nil {
		return err
	}

	if c.pending == nil || c.pending.id != p.RequestID {
		return stateError(c, msg.Type, "no choice %d outstanding", p.RequestID)
	}

	c.wait = protocol.WaitBlocked
	elapsed, _ := c.resolve(choiceReply{choice: fromWire(p)})
	s.metrics.ChoiceAnswered(elapsed)

	if sess, _, ok := s.lobby.SeatOf(c.id); ok {
		s.broadcastWaiting(sess)
	}

	return nil
}

func (s *Server) handleResign(_ context.Context, c *Connection, msg protocol.Message) error {
	var p protocol.Resign
	if err := protocol.Unmarshal(msg, &p); err != nil {
		return err
	}

	sess, _, ok := s.lobby.SeatOf(c.id)
	if !ok || sess.ID != p.SessionID {
		return stateError(c, msg.Type, "not playing in session %d", p.SessionID)
	}

	c.send(&protocol.Goodbye{Reason: "resigned"})
	s.drop(c, "resigned")
	return nil
}

func (s *Server) member(c *Connection) lobby.Member {
	return lobby.Member{ConnID: c.id, Name: c.user}
}

// announce sends the session listing to every logged-in connection: seated
// players first in seat order, then everyone else by id.
func (s *Server) announce(sess *lobby.Session) {
	seated := s.seated(sess)
	done := make(map[int32]bool, len(seated))
	for _, c := range seated {
		sendSession(c, sess)
		done[c.id] = true
	}

	for _, c := range s.loggedIn() {
		if !done[c.id] {
			sendSession(c, sess)
		}
	}
}

func sendSession(c *Connection, sess *lobby.Session) {
	c.send(&protocol.OpenGame{
		SessionID:   sess.ID,
		Description: sess.Description,
		Owner:       sess.Owner.Name,
		Seats:       int32(len(sess.Seats)),
		Status:      int32(sess.Status),
		HasPassword: sess.HasPassword(),
	})

	for i, seat := range sess.Seats {
		c.send(&protocol.GamePlayer{SessionID: sess.ID, Seat: int32(i), Name: seat.Name, Kind: int32(seat.Kind)})
	}
}

// afterSeatChange notifies the lobby after a seat was freed. A session the
// owner abandoned is withdrawn with CLOSE_GAME.
func (s *Server) afterSeatChange(sess *lobby.Session) {
	if sess.Status != lobby.StatusClosed {
		s.announce(sess)
		return
	}

	s.metrics.Sessions(s.lobby.Len())
	for _, c := range s.loggedIn() {
		c.send(&protocol.CloseGame{SessionID: sess.ID})
	}
}

// seatLost handles a connection vanishing from sess.
func (s *Server) seatLost(sess *lobby.Session, seat int, user string) {
	if sess.Status != lobby.StatusStarted {
		s.afterSeatChange(sess)
		return
	}

	sess.Record(fmt.Sprintf("%s left the game.", user))
	s.broadcastWaiting(sess)

	if len(s.seated(sess)) == 0 {
		if run, ok := s.games[sess.ID]; ok {
			run.cancel()
		}
	}

	s.log.Info("seat lost", logger.Session(sess.ID), logger.Field{Key: "seat", Value: seat})
}
