// Package reconcile replays two blind move lists against one authoritative board.
package reconcile

import (
	"fmt"
	"strings"
)

// Policy decides what happens when a side's next notation is illegal.
type Policy string

const (
	// PolicyStrict forfeits the turn on an illegal notation.
	PolicyStrict Policy = "strict"
	// PolicySeekNext scans forward in the same list; running out ends the game.
	PolicySeekNext Policy = "seek-next"
)

const DefaultPolicy = PolicySeekNext

func (p Policy) String() string { return string(p) }

// ParsePolicy accepts the canonical names plus a few aliases used by the bot.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "mode1", "1", "엄격":
		return PolicyStrict, nil
	case "seek-next", "seeknext", "seek", "next", "mode2", "2", "탐색":
		return PolicySeekNext, nil
	case "":
		return DefaultPolicy, nil
	default:
		return "", fmt.Errorf("unknown policy %q", s)
	}
}

// Event tags what a step represents.
type Event string

const (
	EventGameStart        Event = "game_start"
	EventMoveMade         Event = "move_made"
	EventIllegalAttempt   Event = "illegal_attempt"
	EventAlternativeFound Event = "alternative_found"
	EventNoLegalMove      Event = "no_legal_move"
)

// Termination explains why a run stopped.
type Termination string

const (
	TerminationGameOver    Termination = "game_over"
	TerminationExhausted   Termination = "exhausted"
	TerminationNoLegalMove Termination = "no_legal_move"
)

const (
	MateBonus    = 500
	CheckBonus   = 10
	MaterialBase = 39
)

// Step is one entry of a trace: the position after zero or one move.
type Step struct {
	Index           int      `json:"index"`
	FEN             string   `json:"fen"`
	MoveSAN         string   `json:"move_san,omitempty"`
	Attempted       string   `json:"attempted,omitempty"`
	Skipped         []string `json:"skipped,omitempty"`
	Event           Event    `json:"event"`
	Description     string   `json:"description"`
	WhiteScore      int      `json:"white_score"`
	BlackScore      int      `json:"black_score"`
	WhiteMaterial   int      `json:"white_material"`
	BlackMaterial   int      `json:"black_material"`
	CapturedByWhite []string `json:"captured_by_white"`
	CapturedByBlack []string `json:"captured_by_black"`
	Turn            string   `json:"turn"`
	Check           bool     `json:"check"`
	Mate            bool     `json:"mate"`
	IllegalAttempt  bool     `json:"illegal_attempt"`
}

// HasMove reports whether a move was applied in this step.
func (s Step) HasMove() bool { return s.MoveSAN != "" }

// Trace is the read-only result of one run. Steps[0] is always the start.
type Trace struct {
	Policy      Policy      `json:"policy"`
	Steps       []Step      `json:"steps"`
	Termination Termination `json:"termination"`
	Outcome     string      `json:"outcome"`
	Method      string      `json:"method"`
}

func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Steps)
}

// Final returns the last step.
func (t *Trace) Final() Step {
	if t == nil || len(t.Steps) == 0 {
		return Step{}
	}
	return t.Steps[len(t.Steps)-1]
}

// Winner compares the final cumulative scores: "white", "black" or "draw".
func (t *Trace) Winner() string {
	last := t.Final()
	switch {
	case last.WhiteScore > last.BlackScore:
		return "white"
	case last.BlackScore > last.WhiteScore:
		return "black"
	default:
		return "draw"
	}
}

// AppliedSAN lists every applied move in order.
func (t *Trace) AppliedSAN() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.Steps))
	for _, s := range t.Steps {
		if s.HasMove() {
			out = append(out, s.MoveSAN)
		}
	}
	return out
}
