// Package blind implements move authoring against a board that shows only the
// author's own pieces and the opposing king.
package blind

import (
	"errors"
	"fmt"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BlindChess-bot/internal/rules"
)

const (
	WhiteStartFEN = "7k/8/8/8/8/8/PPPPPPPP/RNBQKBNR w KQ - 0 1"
	BlackStartFEN = "rnbqkbnr/pppppppp/8/8/8/8/8/K7 b kq - 0 1"
)

var ErrIllegalMove = errors.New("blind: move not accepted")

// StartFEN returns the restricted starting position for color.
func StartFEN(color nchess.Color) string {
	if color == nchess.Black {
		return BlackStartFEN
	}
	return WhiteStartFEN
}

// Destinations lists where the piece on from may go on a restricted board:
// the legal targets plus, for pawns, the empty forward diagonals.
func Destinations(pos *rules.Position, from nchess.Square) []nchess.Square {
	piece := pos.Piece(from)
	if piece == nchess.NoPiece || piece.Color() != pos.Turn() {
		return nil
	}
	out := pos.LegalTargets(from)
	if piece.Type() != nchess.Pawn {
		return out
	}
	seen := make(map[nchess.Square]struct{}, len(out)+2)
	for _, sq := range out {
		seen[sq] = struct{}{}
	}
	for _, sq := range blindDiagonals(pos, from, piece.Color()) {
		if _, dup := seen[sq]; dup {
			continue
		}
		seen[sq] = struct{}{}
		out = append(out, sq)
	}
	return out
}

func blindDiagonals(pos *rules.Position, from nchess.Square, color nchess.Color) []nchess.Square {
	dir := 1
	if color == nchess.Black {
		dir = -1
	}
	file, rank := int(from.File()), int(from.Rank())
	out := make([]nchess.Square, 0, 2)
	for _, df := range [2]int{-1, 1} {
		sq, ok := rules.SquareAt(file+df, rank+dir)
		if !ok || pos.Piece(sq) != nchess.NoPiece {
			continue
		}
		out = append(out, sq)
	}
	return out
}

// CommitMove plays from→to for actor on a restricted board. A pawn stepping
// diagonally onto an empty square captures a phantom opposing pawn placed there
// for the attempt. On success the actor stays on move with en passant cleared;
// on failure pos is left exactly as it was.
func CommitMove(pos *rules.Position, from, to nchess.Square, actor nchess.Color) (string, error) {
	snap := pos.Snapshot()
	piece := pos.Piece(from)
	if piece == nchess.NoPiece || piece.Color() != actor {
		return "", fmt.Errorf("%w: no %s piece on %s", ErrIllegalMove, rules.ColorName(actor), from.String())
	}
	if needsPhantom(pos, piece, from, to) {
		if err := pos.Put(to, phantomFor(actor)); err != nil {
			pos.Restore(snap)
			return "", fmt.Errorf("place phantom: %w", err)
		}
	}
	san, err := pos.MoveSquares(from, to, nchess.NoPieceType)
	if err != nil {
		pos.Restore(snap)
		return "", fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	if err := pos.ForceTurn(actor); err != nil {
		pos.Restore(snap)
		return "", err
	}
	return san, nil
}

func needsPhantom(pos *rules.Position, piece nchess.Piece, from, to nchess.Square) bool {
	return piece.Type() == nchess.Pawn &&
		pos.Piece(to) == nchess.NoPiece &&
		from.File() != to.File()
}

func phantomFor(actor nchess.Color) nchess.Piece {
	if actor == nchess.White {
		return nchess.BlackPawn
	}
	return nchess.WhitePawn
}
