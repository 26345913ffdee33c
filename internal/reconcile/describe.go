package reconcile

import (
	"fmt"

	nchess "github.com/corentings/chess/v2"
)

// Describer turns a step event into display text. Localized implementations
// live outside this package.
type Describer interface {
	Describe(ev Event, side nchess.Color, notation string) string
}

type englishDescriber struct{}

func (englishDescriber) Describe(ev Event, side nchess.Color, notation string) string {
	who := "White"
	if side == nchess.Black {
		who = "Black"
	}
	switch ev {
	case EventGameStart:
		return "Game start"
	case EventMoveMade:
		return fmt.Sprintf("%s: %s", who, notation)
	case EventIllegalAttempt:
		return fmt.Sprintf("%s: illegal move %s, turn forfeited", who, notation)
	case EventAlternativeFound:
		return fmt.Sprintf("%s: legal alternative found %s", who, notation)
	case EventNoLegalMove:
		return fmt.Sprintf("%s: no legal move found", who)
	default:
		return string(ev)
	}
}

// DescriberFunc adapts a function.
type DescriberFunc func(ev Event, side nchess.Color, notation string) string

func (f DescriberFunc) Describe(ev Event, side nchess.Color, notation string) string {
	return f(ev, side, notation)
}

