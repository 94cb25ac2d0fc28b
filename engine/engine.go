// Package engine is the call surface of the external rules engine. The
// relay and the replay driver only ever talk to a game through these
// interfaces; rules themselves live elsewhere.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cyberinferno/galaxy-relay/controller"
)

// ErrUnknownRules is returned by Lookup for an unregistered name.
var ErrUnknownRules = errors.New("unknown rules")

// Player binds one seat to the controller the engine calls for it.
type Player struct {
	Seat       int
	Name       string
	Controller controller.Controller
}

// Rules creates games. ReadCards must succeed before any game is created.
type Rules interface {
	ReadCards() error
	NewGame(players []Player) (Game, error)
	LoadGame(path string, players []Player) (Game, error)
}

// Game is one running game. Round plays one round and reports whether the
// game continues; it may call any number of controller operations.
type Game interface {
	Init() error
	Begin() error
	Round(ctx context.Context) (bool, error)
	DeclareWinner()
}

// Library is implemented by games that can name their cards and goals.
type Library interface {
	CardNames() []string
	GoalNames() []string
}

// Summarizer is implemented by games that can describe their final state
// from one seat's point of view.
type Summarizer interface {
	Summary(seat int) Summary
}

// Summary is an end-of-game snapshot.
type Summary struct {
	Deck     int
	Discard  int
	Pool     int
	Goals    []string
	Players  []PlayerSummary
	Hand     []Card
	Prestige bool
}

// PlayerSummary describes one seat in a Summary.
type PlayerSummary struct {
	Seat     int
	Name     string
	Tableau  []Card
	Goals    []string
	HandSize int
	VP       int
	Prestige int
	Score    int
}

// Card is a card as listed in a Summary.
type Card struct {
	Index int
	Name  string
	World bool
	Cost  int
	Order int
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Rules)
)

// Register makes rules available under name. Registering a name twice
// replaces the previous rules.
func Register(name string, rules Rules) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = rules
}

// Lookup returns the rules registered under name.
//
// Returns:
//   - The rules, or an error wrapping ErrUnknownRules
func Lookup(name string) (Rules, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	rules, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRules, name)
	}

	return rules, nil
}

// Names returns the registered rule names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
