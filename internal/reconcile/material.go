package reconcile

import (
	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BlindChess-bot/internal/rules"
)

var (
	pieceValues = map[nchess.PieceType]int{
		nchess.Pawn:   1,
		nchess.Knight: 3,
		nchess.Bishop: 3,
		nchess.Rook:   5,
		nchess.Queen:  9,
	}
	startingCounts = map[nchess.PieceType]int{
		nchess.Pawn:   8,
		nchess.Knight: 2,
		nchess.Bishop: 2,
		nchess.Rook:   2,
		nchess.Queen:  1,
	}
	captureOrder = []nchess.PieceType{nchess.Pawn, nchess.Knight, nchess.Bishop, nchess.Rook, nchess.Queen}
)

type material struct {
	white, black                     int
	capturedByWhite, capturedByBlack []string
}

// PieceValue is the material value of a piece kind; kings count zero.
func PieceValue(name string) int {
	for pt, v := range pieceValues {
		if rules.PieceName(pt) == name {
			return v
		}
	}
	return 0
}

func computeMaterial(board *nchess.Board) material {
	counts := map[nchess.Color]map[nchess.PieceType]int{
		nchess.White: {},
		nchess.Black: {},
	}
	var m material
	for _, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		pt := piece.Type()
		counts[piece.Color()][pt]++
		if piece.Color() == nchess.White {
			m.white += pieceValues[pt]
		} else {
			m.black += pieceValues[pt]
		}
	}
	m.capturedByWhite = missing(counts[nchess.Black])
	m.capturedByBlack = missing(counts[nchess.White])
	return m
}

func missing(current map[nchess.PieceType]int) []string {
	out := make([]string, 0, 4)
	for _, pt := range captureOrder {
		for i := current[pt]; i < startingCounts[pt]; i++ {
			out = append(out, rules.PieceName(pt))
		}
	}
	return out
}
