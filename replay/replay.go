package replay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cyberinferno/galaxy-relay/controller"
	"github.com/cyberinferno/galaxy-relay/engine"
	"github.com/cyberinferno/galaxy-relay/logger"
)

// Separator is printed between the game log and the table dump.
const Separator = "======================"

// DefaultNames are the player names used when none are given.
var DefaultNames = []string{"Blue", "Red", "Green", "Yellow", "Cyan", "Purple"}

// Options controls a replay.
type Options struct {
	// Verbose prints the game log; otherwise only the dump is printed.
	Verbose bool

	// Formatted wraps tagged text and player names in BBCode.
	Formatted bool

	// Substitutions replaces card and goal names in the dump. May be nil.
	Substitutions *Substitutions

	// SubstitutionsFile is read once the cards are known when
	// Substitutions is nil.
	SubstitutionsFile string

	// Names are the player names by seat; DefaultNames when empty.
	Names []string

	// Watch is the seat whose private messages and hand are shown.
	Watch int
}

// Run replays the saved game at path and writes the output to w.
//
// The game is loaded, initialised and played round by round until the
// engine stops or a renderer is asked for a choice the save no longer
// holds. A winner is declared only when the game ended normally.
//
// Parameters:
//   - ctx: Cancels the replay between rounds
//   - rules: The rules engine that reads the save
//   - path: The saved game
//   - opts: Output settings
//   - w: Where the log and dump are written
//   - log: Logger for lifecycle and engine failures
//
// Returns:
//   - An error if the cards or the save cannot be read or the engine fails
func Run(ctx context.Context, rules engine.Rules, path string, opts Options, w io.Writer, log logger.Logger) error {
	if err := rules.ReadCards(); err != nil {
		return fmt.Errorf("read cards: %w", err)
	}

	if opts.Substitutions == nil && opts.SubstitutionsFile != "" {
		lib, ok := rules.(engine.Library)
		if !ok {
			return fmt.Errorf("rules cannot name their cards for substitution")
		}

		subs, err := LoadSubstitutions(opts.SubstitutionsFile, lib)
		if err != nil {
			return err
		}
		opts.Substitutions = subs
	}

	names := opts.Names
	if len(names) == 0 {
		names = DefaultNames
	}
	if opts.Watch < 0 || opts.Watch >= len(names) {
		return fmt.Errorf("watched seat %d out of range for %d players", opts.Watch, len(names))
	}

	out := &printer{w: w, verbose: opts.Verbose, formatted: opts.Formatted}
	renderers := make([]*Renderer, len(names))
	players := make([]engine.Player, len(names))
	for i, name := range names {
		renderers[i] = &Renderer{out: out, seat: i, us: i == opts.Watch}
		players[i] = engine.Player{Seat: i, Name: name, Controller: renderers[i]}
	}

	game, err := rules.LoadGame(path, players)
	if err != nil {
		return fmt.Errorf("failed to load game from file %s: %w", path, err)
	}

	if err := game.Init(); err != nil {
		return fmt.Errorf("init game: %w", err)
	}
	if err := game.Begin(); err != nil {
		return fmt.Errorf("begin game: %w", err)
	}

	finished, err := play(ctx, game)
	if err != nil {
		return err
	}

	if finished {
		game.DeclareWinner()
	}
	log.Info("replay finished", logger.Field{Key: "path", Value: path}, logger.Field{Key: "finished", Value: finished})

	if opts.Verbose {
		fmt.Fprintln(w, Separator)
	}

	sum, ok := game.(engine.Summarizer)
	if !ok {
		return fmt.Errorf("rules cannot summarize a game")
	}

	watch := renderers[opts.Watch].Seat()
	d := &dumper{w: w, formatted: opts.Formatted, subs: opts.Substitutions}
	d.dump(sum.Summary(watch), watch)
	return nil
}

// play runs rounds and reports whether the game reached its normal end.
func play(ctx context.Context, game engine.Game) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		more, err := game.Round(ctx)
		switch {
		case errors.Is(err, controller.ErrGameOver):
			return false, nil
		case err != nil:
			return false, fmt.Errorf("game round: %w", err)
		case !more:
			return true, nil
		}
	}
}
