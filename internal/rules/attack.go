package rules

import nchess "github.com/corentings/chess/v2"

var (
	knightJumps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	orthogonals = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonals   = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// InCheck reports whether the side to move has its king attacked.
func (p *Position) InCheck() bool {
	board := p.Board()
	side := p.Turn()
	for sq, piece := range board.SquareMap() {
		if piece.Type() == nchess.King && piece.Color() == side {
			return attacked(board, sq, Opponent(side))
		}
	}
	return false
}

// attacked reports whether any piece of color by attacks target.
func attacked(board *nchess.Board, target nchess.Square, by nchess.Color) bool {
	file, rank := int(target.File()), int(target.Rank())
	at := func(df, dr int) nchess.Piece {
		sq, ok := SquareAt(file+df, rank+dr)
		if !ok {
			return nchess.NoPiece
		}
		return board.Piece(sq)
	}
	is := func(pc nchess.Piece, types ...nchess.PieceType) bool {
		if pc == nchess.NoPiece || pc.Color() != by {
			return false
		}
		for _, t := range types {
			if pc.Type() == t {
				return true
			}
		}
		return false
	}

	// a white pawn attacks upward, so it sits one rank below its target
	pawnDir := -1
	if by == nchess.Black {
		pawnDir = 1
	}
	if is(at(-1, pawnDir), nchess.Pawn) || is(at(1, pawnDir), nchess.Pawn) {
		return true
	}
	for _, j := range knightJumps {
		if is(at(j[0], j[1]), nchess.Knight) {
			return true
		}
	}
	for _, s := range kingSteps {
		if is(at(s[0], s[1]), nchess.King) {
			return true
		}
	}
	slide := func(dirs [4][2]int, types ...nchess.PieceType) bool {
		for _, d := range dirs {
			for step := 1; step < 8; step++ {
				sq, in := SquareAt(file+d[0]*step, rank+d[1]*step)
				if !in {
					break
				}
				pc := board.Piece(sq)
				if pc == nchess.NoPiece {
					continue
				}
				if is(pc, types...) {
					return true
				}
				break
			}
		}
		return false
	}
	return slide(orthogonals, nchess.Rook, nchess.Queen) || slide(diagonals, nchess.Bishop, nchess.Queen)
}
