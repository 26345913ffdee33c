package rules

import (
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// ParseSquare converts "e4" style coordinates.
func ParseSquare(s string) (nchess.Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), nil
}

// SquareAt builds a square from zero-based file and rank, reporting false off the board.
func SquareAt(file, rank int) (nchess.Square, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(file), nchess.Rank(rank)), true
}

func Opponent(c nchess.Color) nchess.Color {
	if c == nchess.White {
		return nchess.Black
	}
	return nchess.White
}

// Put replaces the occupant of sq. NoPiece empties the square.
// Side to move, castling rights, en passant and clocks are preserved.
func (p *Position) Put(sq nchess.Square, piece nchess.Piece) error {
	if sq == nchess.NoSquare {
		return ErrInvalidSquare
	}
	occupancy := p.Board().SquareMap()
	if piece == nchess.NoPiece {
		delete(occupancy, sq)
	} else {
		occupancy[sq] = piece
	}
	fields := strings.Fields(p.game.FEN())
	if len(fields) != 6 {
		return fmt.Errorf("%w: %q", ErrInvalidFEN, p.game.FEN())
	}
	fields[0] = encodePlacement(occupancy)
	return p.reload(fields)
}

func (p *Position) Remove(sq nchess.Square) error { return p.Put(sq, nchess.NoPiece) }

// ForceTurn makes c the side to move and clears the en passant target.
func (p *Position) ForceTurn(c nchess.Color) error {
	fields := strings.Fields(p.game.FEN())
	if len(fields) != 6 {
		return fmt.Errorf("%w: %q", ErrInvalidFEN, p.game.FEN())
	}
	fields[1] = colorField(c)
	fields[3] = "-"
	return p.reload(fields)
}

func (p *Position) reload(fields []string) error {
	game, err := loadGame(strings.Join(fields, " "))
	if err != nil {
		return err
	}
	p.game = game
	return nil
}

func colorField(c nchess.Color) string {
	if c == nchess.Black {
		return "b"
	}
	return "w"
}

func encodePlacement(occupancy map[nchess.Square]nchess.Piece) string {
	var b strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			piece, ok := occupancy[nchess.NewSquare(nchess.File(file), nchess.Rank(rank))]
			if !ok || piece == nchess.NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			b.WriteByte(pieceLetter(piece))
		}
		if empty > 0 {
			b.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			b.WriteByte('/')
		}
	}
	return b.String()
}

func pieceLetter(piece nchess.Piece) byte {
	var c byte
	switch piece.Type() {
	case nchess.King:
		c = 'k'
	case nchess.Queen:
		c = 'q'
	case nchess.Rook:
		c = 'r'
	case nchess.Bishop:
		c = 'b'
	case nchess.Knight:
		c = 'n'
	default:
		c = 'p'
	}
	if piece.Color() == nchess.White {
		c -= 'a' - 'A'
	}
	return c
}

// PieceName is the lowercase English label used in traces and catalogs.
func PieceName(pt nchess.PieceType) string {
	switch pt {
	case nchess.King:
		return "king"
	case nchess.Queen:
		return "queen"
	case nchess.Rook:
		return "rook"
	case nchess.Bishop:
		return "bishop"
	case nchess.Knight:
		return "knight"
	case nchess.Pawn:
		return "pawn"
	default:
		return ""
	}
}

// ColorName returns "white" or "black".
func ColorName(c nchess.Color) string {
	if c == nchess.Black {
		return "black"
	}
	return "white"
}

// ParseColor accepts english and korean side names.
func ParseColor(s string) (nchess.Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w", "백", "백색":
		return nchess.White, true
	case "black", "b", "흑", "흑색":
		return nchess.Black, true
	default:
		return nchess.NoColor, false
	}
}
