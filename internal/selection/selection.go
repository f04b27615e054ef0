// Package selection tracks whether an entity's popup is closed, open on
// hover, or pinned open by a click.
package selection

import "fmt"

type State int

const (
	Closed State = iota
	Open
	Pinned
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Pinned:
		return "pinned"
	default:
		return "closed"
	}
}

type Event string

const (
	Hover      Event = "hover"
	Unhover    Event = "unhover"
	Click      Event = "click"
	CloseClick Event = "close"
)

func ParseEvent(s string) (Event, error) {
	switch e := Event(s); e {
	case Hover, Unhover, Click, CloseClick:
		return e, nil
	}
	return "", fmt.Errorf("unknown selection event %q", s)
}

// Next applies ev to s. Hover only opens a closed popup, unhover only
// closes an unpinned one, click toggles between pinned and closed.
func Next(s State, ev Event) State {
	switch ev {
	case Hover:
		if s == Closed {
			return Open
		}
	case Unhover:
		if s == Open {
			return Closed
		}
	case Click:
		if s == Pinned {
			return Closed
		}
		return Pinned
	case CloseClick:
		return Closed
	}
	return s
}

// Visible reports whether the popup is on screen.
func (s State) Visible() bool {
	return s != Closed
}
