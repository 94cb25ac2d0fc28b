package relay

import (
	"context"

	"github.com/cyberinferno/galaxy-relay/controller"
	"github.com/cyberinferno/galaxy-relay/protocol"
)

// Relay is the controller for a player on another machine. Every call is
// posted to the event loop; RequestChoice then waits for the matching
// PREPARE or for the connection to go away, whichever comes first.
type Relay struct {
	server    *Server
	connID    int32
	sessionID int32
	seat      int
}

// Seat returns the seat index the relay speaks for.
func (r *Relay) Seat() int {
	return r.seat
}

// NotifySeatRotation implements controller.Controller.
func (r *Relay) NotifySeatRotation(playerIndex int) {
	r.sendTo(&protocol.Seat{Index: int32(playerIndex)})
}

// RequestChoice implements controller.Controller.
func (r *Relay) RequestChoice(ctx context.Context, req controller.ChoiceRequest) (controller.Choice, error) {
	reply := make(chan choiceReply, 1)
	if err := r.server.call(func() { r.server.beginChoice(r, req, reply) }); err != nil {
		return controller.Choice{}, controller.ErrResigned
	}

	select {
	case rep := <-reply:
		return rep.choice, rep.err
	case <-ctx.Done():
		_ = r.server.call(func() { r.server.abandonChoice(r.connID, reply) })
		return controller.Choice{}, ctx.Err()
	}
}

// NotifyPrivateMessage implements controller.Controller.
func (r *Relay) NotifyPrivateMessage(text string, tag controller.FormatTag) {
	r.sendTo(&protocol.LogFormat{Text: text, Tag: string(tag)})
}

// NotifyPublicLog implements controller.Controller.
func (r *Relay) NotifyPublicLog(text string) {
	r.sendTo(&protocol.Log{Text: text})
}

// NotifyCardPlayed implements controller.Controller.
func (r *Relay) NotifyCardPlayed(seat, card int) {
	r.sendTo(&protocol.Status{
		Type:    protocol.MsgStatusCard,
		Subject: int32(card),
		Values:  []int32{int32(seat)},
		Text:    protocol.CardPlayedText,
	})
}

// NotifyStatus implements controller.Controller.
func (r *Relay) NotifyStatus(update controller.StatusUpdate) {
	r.sendTo(&protocol.Status{
		Type:    statusType(update.Kind),
		Subject: int32(update.Subject),
		Values:  ints32(update.Values),
		Text:    update.Text,
	})
}

// NotifyGameOver implements controller.Controller.
func (r *Relay) NotifyGameOver(result controller.GameResult) {
	r.sendTo(&protocol.GameOver{SessionID: r.sessionID, Finished: result.Finished})
}

// sendTo delivers p to the relay's connection while it is still playing in
// the relay's session.
func (r *Relay) sendTo(p protocol.Payload) {
	s := r.server
	_ = s.call(func() {
		c, ok := s.conns[r.connID]
		if !ok || c.state != protocol.StatePlaying {
			return
		}

		if sess, _, ok := s.lobby.SeatOf(c.id); ok && sess.ID == r.sessionID {
			c.send(p)
		}
	})
}

func statusType(k controller.StatusKind) protocol.MsgType {
	switch k {
	case controller.StatusPlayer:
		return protocol.MsgStatusPlayer
	case controller.StatusCard:
		return protocol.MsgStatusCard
	case controller.StatusGoal:
		return protocol.MsgStatusGoal
	case controller.StatusMisc:
		return protocol.MsgStatusMisc
	default:
		return protocol.MsgStatusMeta
	}
}
