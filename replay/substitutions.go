package replay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cyberinferno/galaxy-relay/engine"
)

// Substitutions replaces card and goal names in the table dump, typically
// with forum image tags.
type Substitutions struct {
	// CardsPerLine is how many cards print before a line break.
	CardsPerLine int

	cards map[int]string
	goals map[string]string
}

// Card returns the substitute for the card with the given index.
func (s *Substitutions) Card(index int) string {
	return s.cards[index]
}

// Goal returns the substitute for the named goal.
func (s *Substitutions) Goal(name string) string {
	return s.goals[name]
}

// LoadSubstitutions reads a substitutions file.
func LoadSubstitutions(path string, lib engine.Library) (*Substitutions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open substitute file %s: %w", path, err)
	}
	defer f.Close()

	return ParseSubstitutions(f, lib)
}

// ParseSubstitutions reads substitutions from r.
//
// The first line is the number of cards per line. Each later line is
// "name;substitute"; blank lines and lines starting with '#' are skipped.
// Every card and goal lib names must receive a substitute.
//
// Parameters:
//   - r: The file contents
//   - lib: The card and goal names the game uses
//
// Returns:
//   - The parsed substitutions, or an error naming the first bad line
func ParseSubstitutions(r io.Reader, lib engine.Library) (*Substitutions, error) {
	sc := bufio.NewScanner(r)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("substitute file is empty")
	}

	first := sc.Text()
	perLine, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || perLine == 0 {
		return nil, fmt.Errorf("could not parse first line of substitute file as non-zero integer: %q", first)
	}

	cardIndex := make(map[string][]int)
	for i, name := range lib.CardNames() {
		cardIndex[name] = append(cardIndex[name], i)
	}
	goalNames := lib.GoalNames()
	isGoal := make(map[string]bool, len(goalNames))
	for _, name := range goalNames {
		isGoal[name] = true
	}

	s := &Substitutions{
		CardsPerLine: perLine,
		cards:        make(map[int]string),
		goals:        make(map[string]string),
	}

	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}

		name, sub, ok := strings.Cut(line, ";")
		if !ok {
			return nil, fmt.Errorf("could not find separator (;) in line %q", line)
		}

		indexes, isCard := cardIndex[name]
		if !isCard && !isGoal[name] {
			return nil, fmt.Errorf("could not recognize card or goal name %q", name)
		}

		for _, i := range indexes {
			s.cards[i] = sub
		}
		if isGoal[name] {
			s.goals[name] = sub
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for i, name := range lib.CardNames() {
		if s.cards[i] == "" {
			return nil, fmt.Errorf("did not find substitute string for card %q", name)
		}
	}
	for _, name := range goalNames {
		if s.goals[name] == "" {
			return nil, fmt.Errorf("did not find substitute string for goal %q", name)
		}
	}

	return s, nil
}
