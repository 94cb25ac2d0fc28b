// Package replay re-runs a saved game with every seat answered by a
// renderer, printing the game log and a final table dump.
package replay

import (
	"context"
	"fmt"
	"io"

	"github.com/cyberinferno/galaxy-relay/controller"
)

// colours maps a format tag to its BBCode colour.
var colours = map[controller.FormatTag]string{
	controller.FormatPhase:    "#0000aa",
	controller.FormatTakeover: "#ff0000",
	controller.FormatGoal:     "#eeaa00",
	controller.FormatPrestige: "#8800bb",
	controller.FormatVerbose:  "#aaaaaa",
	controller.FormatDiscard:  "#aaaaaa",
}

// printer is the output shared by every renderer of one replay.
type printer struct {
	w         io.Writer
	verbose   bool
	formatted bool
}

func (p *printer) plain(text string) {
	if p.verbose {
		fmt.Fprint(p.w, text)
	}
}

func (p *printer) tagged(text string, tag controller.FormatTag) {
	if !p.verbose {
		return
	}

	if !p.formatted {
		fmt.Fprint(p.w, text)
		return
	}

	if tag == controller.FormatBold {
		fmt.Fprintf(p.w, "[b]%s[/b]", text)
		return
	}

	if colour, ok := colours[tag]; ok {
		fmt.Fprintf(p.w, "[color=%s]%s[/color]", colour, text)
		return
	}

	fmt.Fprint(p.w, text)
}

// Renderer is the replay controller for one seat. Only the watched seat's
// renderer prints; the others exist so the engine has someone to call.
type Renderer struct {
	controller.Base
	out  *printer
	seat int
	us   bool
}

// Seat returns the renderer's current player index.
func (r *Renderer) Seat() int {
	return r.seat
}

// Watched reports whether this renderer prints for its seat.
func (r *Renderer) Watched() bool {
	return r.us
}

// NotifySeatRotation implements controller.Controller.
func (r *Renderer) NotifySeatRotation(playerIndex int) {
	r.seat = playerIndex
}

// RequestChoice ends the replay: the saved choice log has run out.
func (r *Renderer) RequestChoice(context.Context, controller.ChoiceRequest) (controller.Choice, error) {
	return controller.Choice{}, controller.ErrGameOver
}

// NotifyPrivateMessage implements controller.Controller.
func (r *Renderer) NotifyPrivateMessage(text string, tag controller.FormatTag) {
	if r.us {
		r.out.tagged(text, tag)
	}
}

// NotifyPublicLog implements controller.Controller. Every seat hears the
// public log, so only the watched seat prints it.
func (r *Renderer) NotifyPublicLog(text string) {
	if r.us {
		r.out.plain(text)
	}
}
