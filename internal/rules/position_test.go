package rules

import (
	"errors"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func mustSquare(t *testing.T, s string) nchess.Square {
	t.Helper()
	sq, err := ParseSquare(s)
	if err != nil {
		t.Fatalf("ParseSquare(%q): %v", s, err)
	}
	return sq
}

func TestApplySANAndUndo(t *testing.T) {
	p := NewPosition()
	if p.FEN() != InitialFEN {
		t.Fatalf("initial fen = %q", p.FEN())
	}
	san, err := p.Apply("e4")
	if err != nil || san != "e4" {
		t.Fatalf("Apply e4: san=%q err=%v", san, err)
	}
	if p.Turn() != nchess.Black {
		t.Fatalf("expected black to move")
	}
	if !p.Undo() {
		t.Fatalf("Undo returned false")
	}
	if p.FEN() != InitialFEN {
		t.Fatalf("fen after undo = %q", p.FEN())
	}
	if p.Undo() {
		t.Fatalf("Undo on empty history should return false")
	}
}

func TestApplyUCI(t *testing.T) {
	cases := []struct {
		uci  string
		want string
	}{
		{"g1f3", "Nf3"},
		{"b1c3", "Nc3"},
		{"e2e4", "e4"},
	}
	for _, tc := range cases {
		p := NewPosition()
		san, err := p.Apply(tc.uci)
		if err != nil {
			t.Fatalf("Apply %s: %v", tc.uci, err)
		}
		if san != tc.want {
			t.Fatalf("Apply %s: san = %q, want %q", tc.uci, san, tc.want)
		}
	}

	p, err := FromFEN("7k/P7/8/8/8/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if san, err := p.Apply("a7a8n"); err != nil || san != "a8=N" {
		t.Fatalf("underpromotion: san=%q err=%v", san, err)
	}
}

func TestApplyLooseSAN(t *testing.T) {
	cases := []struct {
		name  string
		moves []string
		want  string
	}{
		{"capture without marker", []string{"Nc3", "d5", "Nd5"}, "Nxd5"},
		{"explicit capture", []string{"Nc3", "d5", "Nxd5"}, "Nxd5"},
		{"capture marker on quiet move", []string{"Nxf3"}, "Nf3"},
		{"check without marker", []string{"e4", "f6", "Qh5"}, "Qh5+"},
		{"mate without marker", []string{"f3", "e5", "g4", "Qh4"}, "Qh4#"},
		{"over disambiguated", []string{"Ng1f3"}, "Nf3"},
		{"zero castling", []string{"e4", "e5", "Nf3", "Nc6", "Bc4", "Nf6", "0-0"}, "O-O"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPosition()
			var san string
			for _, mv := range tc.moves {
				var err error
				if san, err = p.Apply(mv); err != nil {
					t.Fatalf("Apply %s: %v", mv, err)
				}
			}
			if san != tc.want {
				t.Fatalf("san = %q, want %q", san, tc.want)
			}
		})
	}
}

func TestApplyLooseSANStaysStrictOnIdentity(t *testing.T) {
	p := NewPosition()
	// a pawn capture onto an empty square is not a push
	for _, bad := range []string{"exd3", "Nb1f3", "Nd2"} {
		if _, err := p.Apply(bad); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("Apply(%q) err = %v, want ErrIllegalMove", bad, err)
		}
	}
	// both knights reach d2: the bare form is ambiguous
	amb, err := FromFEN("4k3/8/8/8/8/5N2/8/1N2K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := amb.Apply("Nd2"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("ambiguous Nd2 err = %v", err)
	}
	if san, err := amb.Apply("Nbd2"); err != nil || san != "Nbd2" {
		t.Fatalf("Nbd2: san=%q err=%v", san, err)
	}
}

func TestApplyRejectsAnnotatedAndGarbage(t *testing.T) {
	p := NewPosition()
	for _, mv := range []string{"e4", "e5"} {
		if _, err := p.Apply(mv); err != nil {
			t.Fatalf("Apply %s: %v", mv, err)
		}
	}
	before := p.FEN()
	for _, bad := range []string{"Ke2??", "Qh5!?", "", "   ", "hello", "Ke9", "e2e5"} {
		if _, err := p.Apply(bad); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("Apply(%q) err = %v, want ErrIllegalMove", bad, err)
		}
	}
	if p.FEN() != before {
		t.Fatalf("illegal attempts changed the position")
	}
	if _, err := p.Apply("Ke2"); err != nil {
		t.Fatalf("plain Ke2 should be legal: %v", err)
	}
}

func TestProbeHasNoSideEffect(t *testing.T) {
	p := NewPosition()
	san, ok := p.Probe("d4")
	if !ok || san != "d4" {
		t.Fatalf("Probe d4: san=%q ok=%v", san, ok)
	}
	if p.FEN() != InitialFEN {
		t.Fatalf("probe mutated the position: %q", p.FEN())
	}
	if _, ok := p.Probe("d5"); ok {
		t.Fatalf("d5 is not legal for white")
	}
}

func TestLegalTargets(t *testing.T) {
	p := NewPosition()
	got := p.LegalTargets(mustSquare(t, "e2"))
	if len(got) != 2 {
		t.Fatalf("targets = %v", got)
	}
	want := map[nchess.Square]bool{mustSquare(t, "e3"): true, mustSquare(t, "e4"): true}
	for _, sq := range got {
		if !want[sq] {
			t.Fatalf("unexpected target %s", sq.String())
		}
	}
	if n := len(p.LegalTargets(mustSquare(t, "e5"))); n != 0 {
		t.Fatalf("empty square should have no targets, got %d", n)
	}
}

func TestMoveSquaresAutoQueen(t *testing.T) {
	p, err := FromFEN("7k/P7/8/8/8/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	san, err := p.MoveSquares(mustSquare(t, "a7"), mustSquare(t, "a8"), nchess.NoPieceType)
	if err != nil {
		t.Fatalf("MoveSquares: %v", err)
	}
	if !strings.HasPrefix(san, "a8=Q") {
		t.Fatalf("san = %q, want queen promotion", san)
	}
	if pc := p.Piece(mustSquare(t, "a8")); pc != nchess.WhiteQueen {
		t.Fatalf("a8 holds %v", pc)
	}
}

func TestPutAndForceTurn(t *testing.T) {
	p, err := FromFEN("7k/8/8/8/8/8/PPPPPPPP/RNBQKBNR w KQ - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	if _, err := p.MoveSquares(mustSquare(t, "e2"), mustSquare(t, "e4"), nchess.NoPieceType); err != nil {
		t.Fatalf("e2e4: %v", err)
	}
	if err := p.ForceTurn(nchess.White); err != nil {
		t.Fatalf("ForceTurn: %v", err)
	}
	fields := strings.Fields(p.FEN())
	if fields[1] != "w" || fields[3] != "-" {
		t.Fatalf("unexpected fen after ForceTurn: %q", p.FEN())
	}

	d5 := mustSquare(t, "d5")
	if err := p.Put(d5, nchess.BlackPawn); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if p.Piece(d5) != nchess.BlackPawn {
		t.Fatalf("phantom pawn missing")
	}
	if fields := strings.Fields(p.FEN()); fields[1] != "w" || fields[2] != "KQ" {
		t.Fatalf("Put must keep turn and castling: %q", p.FEN())
	}
	san, err := p.MoveSquares(mustSquare(t, "e4"), d5, nchess.NoPieceType)
	if err != nil || san != "exd5" {
		t.Fatalf("capture: san=%q err=%v", san, err)
	}
	if err := p.Remove(d5); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if p.Piece(d5) != nchess.NoPiece {
		t.Fatalf("d5 should be empty")
	}
}

func TestSnapshotRestore(t *testing.T) {
	p := NewPosition()
	if _, err := p.Apply("e4"); err != nil {
		t.Fatal(err)
	}
	snap := p.Snapshot()
	fen := p.FEN()
	_ = p.Put(mustSquare(t, "d5"), nchess.WhitePawn)
	if _, err := p.Apply("e5"); err != nil {
		t.Fatal(err)
	}
	p.Restore(snap)
	if p.FEN() != fen {
		t.Fatalf("restore: got %q want %q", p.FEN(), fen)
	}
	if !p.Undo() || p.FEN() != InitialFEN {
		t.Fatalf("undo history should survive restore")
	}
}

func TestInCheckAndMate(t *testing.T) {
	cases := []struct {
		fen  string
		want bool
	}{
		{"4k3/8/8/8/8/8/8/4R2K b - - 0 1", true},
		{"4k3/3P4/8/8/8/8/8/7K b - - 0 1", true},
		{"4k3/8/5N2/8/8/8/8/7K b - - 0 1", true},
		{"4k3/8/8/1B6/8/8/8/7K b - - 0 1", true},
		{"4k3/4p3/8/8/8/8/8/4R2K b - - 0 1", false},
		{"4k3/8/8/8/8/8/8/3R3K b - - 0 1", false},
	}
	for _, tc := range cases {
		p, err := FromFEN(tc.fen)
		if err != nil {
			t.Fatalf("FromFEN(%q): %v", tc.fen, err)
		}
		if got := p.InCheck(); got != tc.want {
			t.Fatalf("InCheck(%q) = %v, want %v", tc.fen, got, tc.want)
		}
	}

	p := NewPosition()
	for _, mv := range []string{"f3", "e5", "g4", "Qh4#"} {
		if _, err := p.Apply(mv); err != nil {
			t.Fatalf("Apply %s: %v", mv, err)
		}
	}
	if !p.InCheck() || !p.IsCheckmate() || !p.IsGameOver() {
		t.Fatalf("expected fool's mate: check=%v mate=%v over=%v", p.InCheck(), p.IsCheckmate(), p.IsGameOver())
	}
	if p.Outcome() != nchess.BlackWon {
		t.Fatalf("outcome = %v", p.Outcome())
	}
}

func TestParseSquareAndColor(t *testing.T) {
	if _, err := ParseSquare("i1"); !errors.Is(err, ErrInvalidSquare) {
		t.Fatalf("expected ErrInvalidSquare, got %v", err)
	}
	if sq := mustSquare(t, "H8"); sq != nchess.H8 {
		t.Fatalf("H8 parsed as %v", sq)
	}
	if c, ok := ParseColor("흑"); !ok || c != nchess.Black {
		t.Fatalf("ParseColor 흑")
	}
	if _, ok := SquareAt(8, 0); ok {
		t.Fatalf("file 8 is off board")
	}
}
