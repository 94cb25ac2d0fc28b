package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyberinferno/galaxy-relay/controller"
	"github.com/cyberinferno/galaxy-relay/engine"
	"github.com/cyberinferno/galaxy-relay/lobby"
	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/protocol"
)

type gameRun struct {
	cancel context.CancelFunc
}

// startGame moves every seated connection to PLAYING, tells them START in
// seat order and runs the engine in its own goroutine.
func (s *Server) startGame(ctx context.Context, sess *lobby.Session) {
	players := make([]engine.Player, len(sess.Seats))
	for i, seat := range sess.Seats {
		var ctrl controller.Controller
		if seat.Kind == lobby.SeatAI {
			ctrl = s.newAI(i, seat.Name)
		} else {
			ctrl = &Relay{server: s, connID: seat.ConnID, sessionID: sess.ID, seat: i}
		}
		players[i] = engine.Player{Seat: i, Name: seat.Name, Controller: ctrl}
	}

	for _, c := range s.seated(sess) {
		seat, _ := sess.SeatOf(c.id)
		c.state = protocol.StatePlaying
		c.wait = protocol.WaitBlocked
		c.send(&protocol.Start{SessionID: sess.ID, Seat: int32(seat)})
	}

	for _, c := range s.loggedIn() {
		if c.state == protocol.StateLobby {
			sendSession(c, sess)
		}
	}

	sess.Record("Game started.")
	s.broadcastWaiting(sess)

	gctx, cancel := context.WithCancel(ctx)
	s.games[sess.ID] = &gameRun{cancel: cancel}
	s.metrics.Game("started")

	log := s.log.With(logger.Session(sess.ID))
	log.Info("game started", logger.Field{Key: "seats", Value: len(players)})

	s.gameWG.Add(1)
	go func() {
		defer s.gameWG.Done()
		defer cancel()

		finished, err := s.play(gctx, players)
		if err != nil {
			log.Warn("game aborted", logger.Err(err))
		}

		for _, p := range players {
			p.Controller.NotifyGameOver(controller.GameResult{Finished: finished})
		}

		_ = s.call(func() { s.finishGame(sess.ID, finished) })
	}()
}

// play drives one game to its end. A resignation out of a round is not
// fatal; ErrGameOver or any other error ends the game without a winner.
func (s *Server) play(ctx context.Context, players []engine.Player) (bool, error) {
	game, err := s.rules.NewGame(players)
	if err != nil {
		return false, fmt.Errorf("new game: %w", err)
	}

	if err := game.Init(); err != nil {
		return false, fmt.Errorf("init game: %w", err)
	}

	if err := game.Begin(); err != nil {
		return false, fmt.Errorf("begin game: %w", err)
	}

	for {
		more, err := game.Round(ctx)
		switch {
		case errors.Is(err, controller.ErrResigned):
		case err != nil:
			return false, fmt.Errorf("game round: %w", err)
		}

		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		if !more {
			break
		}
	}

	game.DeclareWinner()
	return true, nil
}

// finishGame runs on the loop when the engine goroutine is done. Remaining
// players return to LOBBY and the session is withdrawn.
func (s *Server) finishGame(id int32, finished bool) {
	delete(s.games, id)

	outcome := "finished"
	if !finished {
		outcome = "aborted"
	}
	s.metrics.Game(outcome)

	sess, ok := s.lobby.Lookup(id)
	if !ok {
		return
	}

	seated := s.seated(sess)
	if _, err := s.lobby.Close(id); err != nil {
		return
	}

	for _, c := range seated {
		c.state = protocol.StateLobby
		c.wait = protocol.WaitReady
		c.resolve(choiceReply{err: controller.ErrGameOver})
	}

	s.metrics.Sessions(s.lobby.Len())
	for _, c := range s.loggedIn() {
		c.send(&protocol.CloseGame{SessionID: id})
	}

	s.log.Info("game over", logger.Session(id), logger.Field{Key: "outcome", Value: outcome})
}

// broadcastWaiting tells every seated player who the game is waiting on.
func (s *Server) broadcastWaiting(sess *lobby.Session) {
	states := make([]int32, len(sess.Seats))
	for i, seat := range sess.Seats {
		states[i] = int32(protocol.WaitBlocked)
		if seat.Kind != lobby.SeatHuman {
			continue
		}
		if c, ok := s.conns[seat.ConnID]; ok && c.state == protocol.StatePlaying {
			states[i] = int32(c.wait)
		}
	}

	for _, c := range s.seated(sess) {
		c.send(&protocol.Waiting{States: states})
	}
}

// beginChoice sends CHOOSE for r and parks reply until it is resolved.
func (s *Server) beginChoice(r *Relay, req controller.ChoiceRequest, reply chan<- choiceReply) {
	c, ok := s.conns[r.connID]
	if !ok || c.state != protocol.StatePlaying {
		reply <- choiceReply{err: controller.ErrResigned}
		return
	}

	sess, _, ok := s.lobby.SeatOf(c.id)
	if !ok || sess.ID != r.sessionID {
		reply <- choiceReply{err: controller.ErrResigned}
		return
	}

	c.resolve(choiceReply{err: controller.ErrResigned})

	id := s.choiceIDs.Id()
	c.pending = &pendingChoice{id: id, reply: reply, since: time.Now()}
	c.wait = protocol.WaitReady
	if req.Optional {
		c.wait = protocol.WaitOption
	}

	c.send(toWire(id, req))
	s.broadcastWaiting(sess)
}

// abandonChoice clears a pending choice whose caller stopped waiting.
func (s *Server) abandonChoice(connID int32, reply chan<- choiceReply) {
	c, ok := s.conns[connID]
	if !ok || c.pending == nil || c.pending.reply != reply {
		return
	}

	c.pending = nil
	c.wait = protocol.WaitBlocked
}

func toWire(id int32, req controller.ChoiceRequest) *protocol.Choose {
	return &protocol.Choose{
		RequestID:  id,
		Kind:       int32(req.Kind),
		Candidates: ints32(req.Candidates),
		Specials:   ints32(req.Specials),
		Arg1:       int32(req.Arg1),
		Arg2:       int32(req.Arg2),
		Arg3:       int32(req.Arg3),
		Optional:   req.Optional,
	}
}

func fromWire(p protocol.Prepare) controller.Choice {
	return controller.Choice{Selected: ints(p.Selected), Specials: ints(p.Specials)}
}

func ints32(vs []int) []int32 {
	if len(vs) == 0 {
		return nil
	}

	out := make([]int32, len(vs))
	for i, v := range vs {
		out[i] = int32(v)
	}

	return out
}

func ints(vs []int32) []int {
	if len(vs) == 0 {
		return nil
	}

	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = int(v)
	}

	return out
}
