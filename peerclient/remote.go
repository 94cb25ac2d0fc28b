package peerclient

import (
	"context"
	"errors"
	"sync"

	"github.com/cyberinferno/galaxy-relay/controller"
	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/protocol"
)

// Sender is the write side Remote answers through. *Client satisfies it.
type Sender interface {
	Send(p protocol.Payload) error
}

// Remote drives a local controller from relay messages: CHOOSE becomes
// RequestChoice answered with PREPARE, and game notifications become the
// matching controller calls. Lobby traffic goes to the lobby handler.
type Remote struct {
	sender Sender
	ctrl   controller.Controller
	log    logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	session int32
	waiting []protocol.WaitState
	onLobby MessageHandler
	over    chan controller.GameResult
}

// NewRemote binds ctrl to sender. Pass Handle to Client.OnMessage.
//
// Parameters:
//   - sender: Where PREPARE and RESIGN are written
//   - ctrl: The local controller taking decisions
//   - log: Logger for dropped or failed answers
//
// Returns:
//   - A new *Remote; call Close to cancel decisions in progress
func NewRemote(sender Sender, ctrl controller.Controller, log logger.Logger) *Remote {
	ctx, cancel := context.WithCancel(context.Background())
	return &Remote{
		sender: sender,
		ctrl:   ctrl,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		over:   make(chan controller.GameResult, 1),
	}
}

// OnLobby registers the handler for messages that are not game traffic.
func (r *Remote) OnLobby(handler MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLobby = handler
}

// Session returns the id of the session last started.
func (r *Remote) Session() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Waiting returns the last per-seat wait states.
func (r *Remote) Waiting() []protocol.WaitState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.WaitState(nil), r.waiting...)
}

// GameOver delivers the result of the game once it ends.
func (r *Remote) GameOver() <-chan controller.GameResult {
	return r.over
}

// Close cancels decisions in progress and waits for them to return.
func (r *Remote) Close() {
	r.cancel()
	r.wg.Wait()
}

// Handle applies one message. It never blocks on a decision.
func (r *Remote) Handle(msg protocol.Message) {
	p := protocol.NewPayload(msg.Type)
	if p == nil {
		return
	}

	if err := protocol.Unmarshal(msg, p); err != nil {
		r.log.Warn("undecodable message", logger.Field{Key: "type", Value: msg.Type.String()}, logger.Err(err))
		return
	}

	switch m := p.(type) {
	case *protocol.Start:
		r.mu.Lock()
		r.session = m.SessionID
		r.mu.Unlock()
		r.lobby(msg)
	case *protocol.Choose:
		r.choose(m)
	case *protocol.Seat:
		r.ctrl.NotifySeatRotation(int(m.Index))
	case *protocol.Log:
		r.ctrl.NotifyPublicLog(m.Text)
	case *protocol.LogFormat:
		r.ctrl.NotifyPrivateMessage(m.Text, controller.FormatTag(m.Tag))
	case *protocol.Status:
		r.status(m)
	case *protocol.Waiting:
		states := make([]protocol.WaitState, len(m.States))
		for i, s := range m.States {
			states[i] = protocol.WaitState(s)
		}
		r.mu.Lock()
		r.waiting = states
		r.mu.Unlock()
	case *protocol.GameOver:
		result := controller.GameResult{Finished: m.Finished}
		r.ctrl.NotifyGameOver(result)
		select {
		case r.over <- result:
		default:
		}
	default:
		r.lobby(msg)
	}
}

func (r *Remote) lobby(msg protocol.Message) {
	r.mu.Lock()
	handler := r.onLobby
	r.mu.Unlock()

	if handler != nil {
		handler(msg)
	}
}

func (r *Remote) status(m *protocol.Status) {
	if m.Type == protocol.MsgStatusCard && m.Text == protocol.CardPlayedText && len(m.Values) == 1 {
		r.ctrl.NotifyCardPlayed(int(m.Values[0]), int(m.Subject))
		return
	}

	r.ctrl.NotifyStatus(controller.StatusUpdate{
		Kind:    statusKind(m.Type),
		Subject: int(m.Subject),
		Values:  ints(m.Values),
		Text:    m.Text,
	})
}

// choose asks the controller off the read goroutine so pings and chat keep
// flowing while the player thinks.
func (r *Remote) choose(m *protocol.Choose) {
	req := controller.ChoiceRequest{
		Kind:       controller.ChoiceKind(m.Kind),
		Candidates: ints(m.Candidates),
		Specials:   ints(m.Specials),
		Arg1:       int(m.Arg1),
		Arg2:       int(m.Arg2),
		Arg3:       int(m.Arg3),
		Optional:   m.Optional,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		choice, err := r.ctrl.RequestChoice(r.ctx, req)
		if err != nil {
			// Every CHOOSE gets a reply; a failed decision resigns.
			if !errors.Is(err, controller.ErrResigned) {
				r.log.Warn("choice failed", logger.Field{Key: "kind", Value: req.Kind.String()}, logger.Err(err))
			}
			if serr := r.sender.Send(&protocol.Resign{SessionID: r.Session()}); serr != nil {
				r.log.Warn("resign not sent", logger.Err(serr))
			}
			return
		}

		answer := &protocol.Prepare{RequestID: m.RequestID, Selected: ints32(choice.Selected), Specials: ints32(choice.Specials)}
		if serr := r.sender.Send(answer); serr != nil {
			r.log.Warn("answer not sent", logger.Err(serr))
		}
	}()
}

func statusKind(t protocol.MsgType) controller.StatusKind {
	switch t {
	case protocol.MsgStatusPlayer:
		return controller.StatusPlayer
	case protocol.MsgStatusCard:
		return controller.StatusCard
	case protocol.MsgStatusGoal:
		return controller.StatusGoal
	case protocol.MsgStatusMisc:
		return controller.StatusMisc
	default:
		return controller.StatusMeta
	}
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
