package controller

import (
	"context"
	"fmt"
)

// Decider computes a decision for a computer player.
type Decider interface {
	Decide(ctx context.Context, seat int, req ChoiceRequest) (Choice, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, seat int, req ChoiceRequest) (Choice, error)

// Decide implements Decider.
func (f DeciderFunc) Decide(ctx context.Context, seat int, req ChoiceRequest) (Choice, error) {
	return f(ctx, seat, req)
}

// AI is the local computer-player variant. It answers synchronously and
// ignores private messages.
type AI struct {
	Base
	decider Decider
	seat    int
}

// NewAI binds a Decider to a seat.
//
// Parameters:
//   - decider: The decision logic
//   - seat: Player index the AI starts at
//
// Returns:
//   - A Controller for the seat
func NewAI(decider Decider, seat int) *AI {
	return &AI{decider: decider, seat: seat}
}

// Seat returns the AI's current player index.
func (a *AI) Seat() int {
	return a.seat
}

// NotifySeatRotation implements Controller.
func (a *AI) NotifySeatRotation(playerIndex int) {
	a.seat = playerIndex
}

// RequestChoice implements Controller.
func (a *AI) RequestChoice(ctx context.Context, req ChoiceRequest) (Choice, error) {
	if err := ctx.Err(); err != nil {
		return Choice{}, err
	}

	choice, err := a.decider.Decide(ctx, a.seat, req)
	if err != nil {
		return Choice{}, fmt.Errorf("ai seat %d %s choice: %w", a.seat, req.Kind, err)
	}

	return choice, nil
}

// NotifyPrivateMessage implements Controller.
func (a *AI) NotifyPrivateMessage(string, FormatTag) {}

// Prompter is the user interface behind a local human player.
type Prompter interface {
	// Prompt asks the user to decide and blocks until they do.
	Prompt(ctx context.Context, req ChoiceRequest) (Choice, error)

	// Show displays a line of text with a presentation tag.
	Show(text string, tag FormatTag)
}

// Human is the local human-player variant.
type Human struct {
	Base
	prompter Prompter
	seat     int
}

// NewHuman binds a Prompter to a seat.
func NewHuman(prompter Prompter, seat int) *Human {
	return &Human{prompter: prompter, seat: seat}
}

// Seat returns the player's current index.
func (h *Human) Seat() int {
	return h.seat
}

// NotifySeatRotation implements Controller.
func (h *Human) NotifySeatRotation(playerIndex int) {
	h.seat = playerIndex
}

// RequestChoice implements Controller.
func (h *Human) RequestChoice(ctx context.Context, req ChoiceRequest) (Choice, error) {
	return h.prompter.Prompt(ctx, req)
}

// NotifyPrivateMessage implements Controller.
func (h *Human) NotifyPrivateMessage(text string, tag FormatTag) {
	h.prompter.Show(text, tag)
}

// NotifyPublicLog implements Controller.
func (h *Human) NotifyPublicLog(text string) {
	h.prompter.Show(text, FormatNone)
}

// NotifyGameOver implements Controller.
func (h *Human) NotifyGameOver(result GameResult) {
	if result.Finished {
		h.prompter.Show("Game over.", FormatBold)
		return
	}

	h.prompter.Show("Game aborted.", FormatBold)
}
