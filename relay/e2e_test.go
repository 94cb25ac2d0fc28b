package relay

import (
	"context"
	"testing"

	"github.com/cyberinferno/galaxy-relay/controller"
	"github.com/cyberinferno/galaxy-relay/engine"
	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveTCP runs a relay on a loopback port and returns its address.
func serveTCP(t *testing.T, rules engine.Rules) string {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	s := NewServer(cfg, rules, logger.Nop())
	require.NoError(t, s.Transport().Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-done
		s.Transport().Stop()
	})

	return s.Transport().Addr().String()
}

func loginOver(t *testing.T, addr, name string) *wireClient {
	t.Helper()

	c := dial(t, addr)
	c.send(&protocol.Login{User: name, Password: "pw"})

	var hello protocol.Hello
	c.until(protocol.MsgHello, &hello)
	require.Equal(t, name, hello.User)
	return c
}

func TestScenarioCreateThenStartAlone(t *testing.T) {
	addr := serveTCP(t, blockingRules())
	alice := loginOver(t, addr, "alice")

	alice.send(&protocol.Create{Description: "two seats", Seats: 2})
	var open protocol.OpenGame
	alice.until(protocol.MsgOpenGame, &open)
	assert.Equal(t, "two seats", open.Description)
	assert.Positive(t, open.SessionID)

	var ack protocol.JoinAck
	alice.until(protocol.MsgJoinAck, &ack)
	assert.Equal(t, open.SessionID, ack.SessionID)

	alice.send(&protocol.Start{SessionID: open.SessionID})
	var denied protocol.Denied
	alice.until(protocol.MsgDenied, &denied)
	assert.Contains(t, denied.Reason, "invalid session state")
}

func TestScenarioChoiceRoundTrip(t *testing.T) {
	rules := &scriptRules{script: func(ctx context.Context, players []engine.Player) error {
		choice, err := players[0].Controller.RequestChoice(ctx, controller.ChoiceRequest{
			Kind:       controller.ChooseAction,
			Candidates: []int{1, 2, 3},
		})
		if err != nil {
			return err
		}

		for _, p := range players {
			p.Controller.NotifyStatus(controller.StatusUpdate{Kind: controller.StatusPlayer, Subject: 0, Values: choice.Selected})
		}
		return nil
	}}

	addr := serveTCP(t, rules)
	alice := loginOver(t, addr, "alice")
	bob := loginOver(t, addr, "bob")

	alice.send(&protocol.Create{Seats: 2})
	var ack protocol.JoinAck
	alice.until(protocol.MsgJoinAck, &ack)

	bob.send(&protocol.Join{SessionID: ack.SessionID})
	bob.until(protocol.MsgJoinAck, &ack)
	assert.EqualValues(t, 1, ack.Seat)

	alice.send(&protocol.Start{SessionID: ack.SessionID})

	var start protocol.Start
	alice.until(protocol.MsgStart, &start)
	assert.EqualValues(t, 0, start.Seat)
	bob.until(protocol.MsgStart, &start)
	assert.EqualValues(t, 1, start.Seat)

	var choose protocol.Choose
	alice.until(protocol.MsgChoose, &choose)
	assert.Equal(t, []int32{1, 2, 3}, choose.Candidates)

	alice.send(&protocol.Prepare{RequestID: choose.RequestID, Selected: []int32{2}})

	var status protocol.Status
	bob.until(protocol.MsgStatusPlayer, &status)
	assert.Equal(t, []int32{2}, status.Values)

	var over protocol.GameOver
	bob.until(protocol.MsgGameOver, &over)
	assert.True(t, over.Finished)
	assert.Equal(t, ack.SessionID, over.SessionID)

	var closed protocol.CloseGame
	bob.until(protocol.MsgCloseGame, &closed)
	assert.Equal(t, ack.SessionID, closed.SessionID)
}

func TestScenarioDisconnectDuringChoice(t *testing.T) {
	resigned := make(chan error, 1)
	rules := &scriptRules{script: func(ctx context.Context, players []engine.Player) error {
		_, err := players[1].Controller.RequestChoice(ctx, controller.ChoiceRequest{Kind: controller.ChoosePlace})
		resigned <- err

		for _, p := range players {
			p.Controller.NotifyPublicLog(players[1].Name + " resigned.")
		}

		_, err = players[0].Controller.RequestChoice(ctx, controller.ChoiceRequest{Kind: controller.ChooseYesNo})
		return err
	}}

	addr := serveTCP(t, rules)
	alice := loginOver(t, addr, "alice")
	bob := loginOver(t, addr, "bob")

	alice.send(&protocol.Create{Seats: 2})
	var ack protocol.JoinAck
	alice.until(protocol.MsgJoinAck, &ack)
	bob.send(&protocol.Join{SessionID: ack.SessionID})
	bob.until(protocol.MsgJoinAck, &ack)
	alice.send(&protocol.Start{SessionID: ack.SessionID})

	var choose protocol.Choose
	bob.until(protocol.MsgChoose, &choose)
	require.NoError(t, bob.conn.Close())

	require.ErrorIs(t, <-resigned, controller.ErrResigned)

	var left protocol.PlayerLeft
	alice.until(protocol.MsgPlayerLeft, &left)
	assert.Equal(t, "bob", left.User)

	var log protocol.Log
	alice.until(protocol.MsgLog, &log)
	assert.Equal(t, "bob resigned.", log.Text)

	alice.until(protocol.MsgChoose, &choose)
	assert.EqualValues(t, controller.ChooseYesNo, choose.Kind)
	alice.send(&protocol.Prepare{RequestID: choose.RequestID, Selected: []int32{1}})

	var over protocol.GameOver
	alice.until(protocol.MsgGameOver, &over)
	assert.True(t, over.Finished)
}
