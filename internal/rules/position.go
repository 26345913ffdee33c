// Package rules adapts corentings/chess to the narrow position contract the
// blind authoring and reconciliation code depends on.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

const InitialFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrInvalidFEN    = errors.New("invalid fen")
	ErrInvalidSquare = errors.New("invalid square")
)

// Position is a mutable chess position with a move-level undo stack.
// It is not safe for concurrent use; every owner keeps its own instance.
type Position struct {
	game    *nchess.Game
	history []*nchess.Game
}

// Snapshot is an exact copy of a Position's state, including its undo stack depth.
type Snapshot struct {
	game  *nchess.Game
	depth int
}

// NewPosition returns the standard initial position.
func NewPosition() *Position {
	p, err := FromFEN(InitialFEN)
	if err != nil {
		// InitialFEN is a constant; failing here means the rules library is broken.
		panic(err)
	}
	return p
}

// FromFEN loads a position from a FEN string.
func FromFEN(fen string) (*Position, error) {
	game, err := loadGame(fen)
	if err != nil {
		return nil, err
	}
	return &Position{game: game}, nil
}

func loadGame(fen string) (*nchess.Game, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return nchess.NewGame(opt), nil
}

func (p *Position) FEN() string { return p.game.FEN() }

func (p *Position) Turn() nchess.Color { return p.game.Position().Turn() }

func (p *Position) Board() *nchess.Board { return p.game.Position().Board() }

func (p *Position) Piece(sq nchess.Square) nchess.Piece { return p.Board().Piece(sq) }

// Outcome and Method expose the library's verdict for the current position.
func (p *Position) Outcome() nchess.Outcome { return p.game.Outcome() }
func (p *Position) Method() nchess.Method   { return p.game.Method() }

// LegalTargets returns the unique destinations of legal moves starting on from.
func (p *Position) LegalTargets(from nchess.Square) []nchess.Square {
	moves := p.game.Position().ValidMoves()
	seen := make(map[nchess.Square]struct{}, 8)
	out := make([]nchess.Square, 0, 8)
	for i := range moves {
		if moves[i].S1() != from {
			continue
		}
		to := moves[i].S2()
		if _, ok := seen[to]; ok {
			continue
		}
		seen[to] = struct{}{}
		out = append(out, to)
	}
	return out
}

// MoveSquares plays from→to. An empty promo on a promoting pawn move means queen.
func (p *Position) MoveSquares(from, to nchess.Square, promo nchess.PieceType) (string, error) {
	if promo == nchess.NoPieceType && promotes(p.Piece(from), to) {
		promo = nchess.Queen
	}
	mv, ok := p.lookup(from, to, promo)
	if !ok {
		return "", fmt.Errorf("%w: %s%s", ErrIllegalMove, from.String(), to.String())
	}
	return p.play(mv)
}

// Apply plays a move given in SAN or UCI and returns its SAN.
// SAN is matched loosely: capture, check and promotion markers are optional, so a
// move authored without sight of the target piece still resolves to the capture.
// Annotated or otherwise malformed notation is rejected as illegal.
func (p *Position) Apply(notation string) (string, error) {
	s := strings.TrimSpace(notation)
	if !wellFormed(s) {
		return "", fmt.Errorf("%w: malformed %q", ErrIllegalMove, notation)
	}
	mv, ok := p.resolve(s)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrIllegalMove, notation)
	}
	return p.play(mv)
}

var uciPattern = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// resolve maps notation to exactly one legal move.
func (p *Position) resolve(s string) (*nchess.Move, bool) {
	pos := p.game.Position()
	if uciPattern.MatchString(s) {
		decoded, err := nchess.UCINotation{}.Decode(pos, s)
		if err != nil {
			return nil, false
		}
		return p.lookup(decoded.S1(), decoded.S2(), decoded.Promo())
	}

	want := looseSAN(s)
	var hit *nchess.Move
	moves := pos.ValidMoves()
	for i := range moves {
		if !sanMatches(want, looseSAN(nchess.AlgebraicNotation{}.Encode(pos, &moves[i])), moves[i].S1()) {
			continue
		}
		if hit != nil {
			return nil, false
		}
		mv := moves[i]
		hit = &mv
	}
	return hit, hit != nil
}

// looseSAN drops the markers a blind author cannot know and normalizes zero castling.
func looseSAN(s string) string {
	s = strings.ReplaceAll(s, "0", "O")
	return strings.Map(func(r rune) rune {
		switch r {
		case 'x', '+', '#', '=':
			return -1
		}
		return r
	}, s)
}

// sanMatches compares loose SAN forms. A piece move may carry more
// disambiguation than needed ("Ng1f3") as long as it names the real origin.
func sanMatches(in, enc string, from nchess.Square) bool {
	if in == enc {
		return true
	}
	if len(in) < len(enc) || len(enc) < 3 || !strings.ContainsRune("KQRBN", rune(enc[0])) {
		return false
	}
	if in[0] != enc[0] || in[len(in)-2:] != enc[len(enc)-2:] {
		return false
	}
	origin := from.String()
	switch in[1 : len(in)-2] {
	case origin, origin[:1], origin[1:]:
		return true
	}
	return false
}

// Probe reports whether notation is legal here without changing the position.
func (p *Position) Probe(notation string) (string, bool) {
	san, err := p.Apply(notation)
	if err != nil {
		return "", false
	}
	p.Undo()
	return san, true
}

// Undo reverts the most recent successful move. It returns false when there is none.
func (p *Position) Undo() bool {
	n := len(p.history)
	if n == 0 {
		return false
	}
	p.game = p.history[n-1]
	p.history = p.history[:n-1]
	return true
}

func (p *Position) Snapshot() Snapshot {
	return Snapshot{game: p.game.Clone(), depth: len(p.history)}
}

func (p *Position) Restore(s Snapshot) {
	if s.game == nil {
		return
	}
	p.game = s.game
	if s.depth < len(p.history) {
		p.history = p.history[:s.depth]
	}
}

// Clone returns an independent copy without undo history.
func (p *Position) Clone() *Position {
	return &Position{game: p.game.Clone()}
}

// IsCheckmate reports whether the side to move is mated.
func (p *Position) IsCheckmate() bool {
	return p.game.Position().Status() == nchess.Checkmate
}

// IsGameOver covers mate, stalemate, the library's automatic draws, and the
// claimable threefold-repetition and fifty-move draws.
func (p *Position) IsGameOver() bool {
	if p.game.Outcome() != nchess.NoOutcome {
		return true
	}
	if st := p.game.Position().Status(); st == nchess.Checkmate || st == nchess.Stalemate {
		return true
	}
	for _, m := range p.game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			return true
		}
	}
	return false
}

func (p *Position) lookup(from, to nchess.Square, promo nchess.PieceType) (*nchess.Move, bool) {
	moves := p.game.Position().ValidMoves()
	for i := range moves {
		if moves[i].S1() == from && moves[i].S2() == to && moves[i].Promo() == promo {
			mv := moves[i]
			return &mv, true
		}
	}
	return nil, false
}

func (p *Position) play(mv *nchess.Move) (string, error) {
	san := nchess.AlgebraicNotation{}.Encode(p.game.Position(), mv)
	prev := p.game.Clone()
	if err := p.game.Move(mv, nil); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	p.history = append(p.history, prev)
	return san, nil
}

func promotes(piece nchess.Piece, to nchess.Square) bool {
	if piece.Type() != nchess.Pawn {
		return false
	}
	if piece.Color() == nchess.White {
		return to.Rank() == nchess.Rank8
	}
	return to.Rank() == nchess.Rank1
}

const notationAlphabet = "abcdefgh12345678xKQRBNOqrn0-=+#"

func wellFormed(s string) bool {
	if s == "" || len(s) > 10 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(notationAlphabet, r) {
			return false
		}
	}
	return true
}
