// Package controller defines the capability interface the game engine
// calls on every participant. Each variant (local AI, local human, network
// relay, replay renderer) implements the same operation set; the engine only
// ever holds a Controller.
package controller

import (
	"context"
	"errors"
)

var (
	// ErrResigned is returned by RequestChoice when the player resigned or
	// disconnected. The engine treats the seat as resigned and carries on.
	ErrResigned = errors.New("player resigned")

	// ErrGameOver is returned by RequestChoice when the controller ends the
	// game instead of deciding, as a replay does.
	ErrGameOver = errors.New("game over")
)

// Controller is the set of callbacks the engine invokes for one player.
//
// RequestChoice and NotifyPrivateMessage are the required operations.
// Variants embed Base to get no-op bodies for the remaining notifications.
type Controller interface {
	// NotifySeatRotation tells the controller its new player index after
	// seats were renumbered. Calling it twice with the same index is
	// harmless.
	NotifySeatRotation(playerIndex int)

	// RequestChoice asks for a decision and blocks until one is made, the
	// player resigns, or ctx is done.
	RequestChoice(ctx context.Context, req ChoiceRequest) (Choice, error)

	// NotifyPrivateMessage delivers text only this player should see.
	NotifyPrivateMessage(text string, tag FormatTag)

	// NotifyPublicLog delivers a log line every player sees.
	NotifyPublicLog(text string)

	// NotifyCardPlayed reports that seat played card.
	NotifyCardPlayed(seat, card int)

	// NotifyStatus delivers an engine status update.
	NotifyStatus(update StatusUpdate)

	// NotifyGameOver reports the end of the game.
	NotifyGameOver(result GameResult)
}

// Base implements every optional notification as a no-op.
type Base struct{}

func (Base) NotifySeatRotation(int) {}
func (Base) NotifyPublicLog(string) {}
func (Base) NotifyCardPlayed(int, int) {}
func (Base) NotifyStatus(StatusUpdate) {}
func (Base) NotifyGameOver(GameResult) {}

// ChoiceRequest is the single generic decision request.
type ChoiceRequest struct {
	Kind       ChoiceKind
	Candidates []int
	Specials   []int
	Arg1       int
	Arg2       int
	Arg3       int

	// Optional marks a decision the player may answer at leisure.
	Optional bool
}

// Choice is the answer to a ChoiceRequest.
type Choice struct {
	Selected []int
	Specials []int
}

// StatusKind selects which part of the game a StatusUpdate describes.
type StatusKind int

const (
	StatusMeta StatusKind = iota
	StatusPlayer
	StatusCard
	StatusGoal
	StatusMisc
)

// StatusUpdate is an opaque engine status record.
type StatusUpdate struct {
	Kind    StatusKind
	Subject int
	Values  []int
	Text    string
}

// GameResult summarises how a game ended.
type GameResult struct {
	// Finished is false when the game was aborted.
	Finished bool
	Winners  []int
}
