package reconcile

import (
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

// Summary is the end-of-run digest shown after a reconciliation.
type Summary struct {
	Policy        Policy      `json:"policy"`
	Winner        string      `json:"winner"`
	WhiteScore    int         `json:"white_score"`
	BlackScore    int         `json:"black_score"`
	WhiteMaterial int         `json:"white_material"`
	BlackMaterial int         `json:"black_material"`
	WhiteMoves    int         `json:"white_moves"`
	BlackMoves    int         `json:"black_moves"`
	WhiteIllegal  int         `json:"white_illegal"`
	BlackIllegal  int         `json:"black_illegal"`
	WhiteChecks   int         `json:"white_checks"`
	BlackChecks   int         `json:"black_checks"`
	Termination   Termination `json:"termination"`
	Outcome       string      `json:"outcome"`
	Method        string      `json:"method"`
	OpeningCode   string      `json:"opening_code,omitempty"`
	OpeningName   string      `json:"opening_name,omitempty"`
}

func (t *Trace) Summary() Summary {
	final := t.Final()
	sum := Summary{
		Policy:        t.Policy,
		Winner:        t.Winner(),
		WhiteScore:    final.WhiteScore,
		BlackScore:    final.BlackScore,
		WhiteMaterial: final.WhiteMaterial,
		BlackMaterial: final.BlackMaterial,
		Termination:   t.Termination,
		Outcome:       t.Outcome,
		Method:        t.Method,
	}
	for _, s := range t.Steps {
		white := s.Turn == "white"
		switch {
		case s.Event == EventGameStart:
		case s.HasMove():
			if white {
				sum.WhiteMoves++
			} else {
				sum.BlackMoves++
			}
			if s.Check {
				if white {
					sum.WhiteChecks++
				} else {
					sum.BlackChecks++
				}
			}
		}
		if s.IllegalAttempt || len(s.Skipped) > 0 {
			n := len(s.Skipped)
			if s.Event == EventIllegalAttempt {
				n = 1
			}
			if white {
				sum.WhiteIllegal += n
			} else {
				sum.BlackIllegal += n
			}
		}
	}
	sum.OpeningCode, sum.OpeningName = t.Opening()
	return sum
}

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

// Opening names the ECO line of the longest prefix of alternating applied moves.
// Everything after the first forfeited turn is ignored.
func (t *Trace) Opening() (string, string) {
	if t == nil {
		return "", ""
	}
	game := nchess.NewGame()
	for _, s := range t.Steps {
		if s.Event == EventGameStart {
			continue
		}
		if !s.HasMove() {
			break
		}
		if err := game.PushNotationMove(s.MoveSAN, nchess.AlgebraicNotation{}, nil); err != nil {
			break
		}
	}
	if len(game.Moves()) == 0 {
		return "", ""
	}
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	if ecoBook == nil {
		return "", ""
	}
	if eco := ecoBook.Find(game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}
