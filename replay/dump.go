package replay

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/cyberinferno/galaxy-relay/engine"
	"github.com/samber/lo"
)

func plural(n int) string {
	return lo.Ternary(n == 1, "", "s")
}

// dumper prints an end-of-game Summary.
type dumper struct {
	w         io.Writer
	formatted bool
	subs      *Substitutions
}

func (d *dumper) perLine() int {
	if d.subs == nil {
		return 1
	}

	return d.subs.CardsPerLine
}

func (d *dumper) cards(cards []engine.Card) {
	for i, c := range cards {
		if d.subs != nil {
			fmt.Fprint(d.w, d.subs.Card(c.Index))
		} else {
			fmt.Fprint(d.w, c.Name)
		}

		if (i+1)%d.perLine() == 0 {
			fmt.Fprintln(d.w)
		}
	}
}

func (d *dumper) goal(name string) {
	if d.subs != nil {
		fmt.Fprint(d.w, d.subs.Goal(name))
		return
	}

	fmt.Fprintln(d.w, name)
}

func (d *dumper) goals(names []string) {
	for _, name := range names {
		d.goal(name)
	}

	if len(names) > 0 {
		fmt.Fprintln(d.w)
	}
}

// byPlayOrder sorts a tableau in the order its cards were played.
func byPlayOrder(a, b engine.Card) int {
	return cmp.Compare(a.Order, b.Order)
}

// byHandOrder puts worlds before developments, then sorts by cost and
// finally by card index.
func byHandOrder(a, b engine.Card) int {
	if a.World != b.World {
		return lo.Ternary(a.World, -1, 1)
	}

	if c := cmp.Compare(a.Cost, b.Cost); c != 0 {
		return c
	}

	return cmp.Compare(a.Index, b.Index)
}

func sorted(cards []engine.Card, by func(a, b engine.Card) int) []engine.Card {
	out := slices.Clone(cards)
	slices.SortStableFunc(out, by)
	return out
}

// dump prints the piles, the unclaimed goals, every player starting with
// the one after who and ending with who, then who's hand.
func (d *dumper) dump(s engine.Summary, who int) {
	fmt.Fprintf(d.w, "Deck: %d card%s\nDiscard: %d card%s\nPool: %d chip%s\n",
		s.Deck, plural(s.Deck), s.Discard, plural(s.Discard), s.Pool, plural(s.Pool))

	d.goals(s.Goals)

	n := len(s.Players)
	for k := 1; k <= n; k++ {
		p := s.Players[(who+k)%n]

		if d.formatted {
			fmt.Fprintf(d.w, "[b][size=18]%s[/size][/b]\n", p.Name)
		} else {
			fmt.Fprintln(d.w, p.Name)
		}

		d.cards(sorted(p.Tableau, byPlayOrder))
		fmt.Fprintln(d.w)

		d.goals(p.Goals)

		fmt.Fprintf(d.w, "Hand: %d card%s\n", p.HandSize, plural(p.HandSize))
		fmt.Fprintf(d.w, "VP chips: %d\n", p.VP)
		if s.Prestige {
			fmt.Fprintf(d.w, "Prestige: %d\n", p.Prestige)
		}
		fmt.Fprintf(d.w, "Score: %d VP%s\n\n", p.Score, plural(p.Score))
	}

	fmt.Fprintln(d.w, "Hand:")
	d.cards(sorted(s.Hand, byHandOrder))
}
