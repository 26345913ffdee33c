package blind

import (
	"errors"
	"sort"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BlindChess-bot/internal/rules"
)

func sq(t *testing.T, s string) nchess.Square {
	t.Helper()
	v, err := rules.ParseSquare(s)
	if err != nil {
		t.Fatalf("ParseSquare(%q): %v", s, err)
	}
	return v
}

func names(list []nchess.Square) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.String())
	}
	sort.Strings(out)
	return out
}

func newRecorder(t *testing.T, c nchess.Color) *Recorder {
	t.Helper()
	r, err := NewRecorder(c)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	return r
}

func TestDestinationsOnRestrictedBoard(t *testing.T) {
	pos, err := rules.FromFEN(WhiteStartFEN)
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	cases := []struct {
		from string
		want string
	}{
		{"e2", "d3,e3,e4,f3"},
		{"a2", "a3,a4,b3"},
		{"h2", "g3,h3,h4"},
		{"g1", "f3,h3"},
		{"h8", ""},
		{"e5", ""},
	}
	for _, tc := range cases {
		got := strings.Join(names(Destinations(pos, sq(t, tc.from))), ",")
		if got != tc.want {
			t.Fatalf("Destinations(%s) = %q, want %q", tc.from, got, tc.want)
		}
	}
}

func TestDestinationsDoesNotDuplicateRealCapture(t *testing.T) {
	pos, err := rules.FromFEN("4k3/8/8/8/8/3n4/4P3/7K w - - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	got := strings.Join(names(Destinations(pos, sq(t, "e2"))), ",")
	if got != "d3,e3,e4,f3" {
		t.Fatalf("Destinations = %q", got)
	}
}

func TestPhantomCaptureKeepsWhiteOnMove(t *testing.T) {
	r := newRecorder(t, nchess.White)
	if san, err := r.Commit(sq(t, "e2"), sq(t, "e4")); err != nil || san != "e4" {
		t.Fatalf("Commit e2e4: san=%q err=%v", san, err)
	}
	targets := names(r.Targets(sq(t, "e4")))
	if strings.Join(targets, ",") != "d5,e5,f5" {
		t.Fatalf("targets from e4 = %v", targets)
	}
	san, err := r.Commit(sq(t, "e4"), sq(t, "d5"))
	if err != nil || san != "exd5" {
		t.Fatalf("phantom capture: san=%q err=%v", san, err)
	}
	fields := strings.Fields(r.FEN())
	if fields[1] != "w" || fields[3] != "-" {
		t.Fatalf("side to move must stay white with no en passant: %q", r.FEN())
	}
	if got := strings.Join(r.Moves(), " "); got != "e4 exd5" {
		t.Fatalf("moves = %q", got)
	}
	if r.Board().Piece(sq(t, "d5")) != nchess.WhitePawn {
		t.Fatalf("white pawn should stand on d5")
	}
}

func TestBlackPhantomCapture(t *testing.T) {
	r := newRecorder(t, nchess.Black)
	if _, err := r.Commit(sq(t, "e7"), sq(t, "e5")); err != nil {
		t.Fatalf("e7e5: %v", err)
	}
	san, err := r.Commit(sq(t, "e5"), sq(t, "d4"))
	if err != nil || san != "exd4" {
		t.Fatalf("black phantom: san=%q err=%v", san, err)
	}
	if strings.Fields(r.FEN())[1] != "b" {
		t.Fatalf("black should stay on move: %q", r.FEN())
	}
}

func TestCommitRejectsUnofferedMove(t *testing.T) {
	r := newRecorder(t, nchess.White)
	before := r.FEN()
	if _, err := r.Commit(sq(t, "e2"), sq(t, "e5")); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
	if _, err := r.Commit(sq(t, "h8"), sq(t, "h7")); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("moving the visible enemy king must fail, got %v", err)
	}
	if r.FEN() != before || r.Len() != 0 {
		t.Fatalf("failed commits must not change state")
	}
}

func TestCommitMoveRestoresOnFailure(t *testing.T) {
	// e2 is pinned by the rook on e8, so exd3 is illegal even with a phantom on d3
	pos, err := rules.FromFEN("4r2k/8/8/8/8/8/4P3/4K3 w - - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	before := pos.FEN()
	if _, err := CommitMove(pos, sq(t, "e2"), sq(t, "d3"), nchess.White); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
	if pos.FEN() != before {
		t.Fatalf("board not restored: %q != %q", pos.FEN(), before)
	}
	if pos.Piece(sq(t, "d3")) != nchess.NoPiece {
		t.Fatalf("phantom left behind on d3")
	}
}

func TestUndoReplaysPhantoms(t *testing.T) {
	r := newRecorder(t, nchess.White)
	steps := [][2]string{{"e2", "e4"}, {"e4", "d5"}, {"d5", "d6"}}
	for _, s := range steps {
		if _, err := r.Commit(sq(t, s[0]), sq(t, s[1])); err != nil {
			t.Fatalf("Commit %s%s: %v", s[0], s[1], err)
		}
	}
	if got := strings.Join(r.Moves(), " "); got != "e4 exd5 d6" {
		t.Fatalf("moves = %q", got)
	}

	if !r.Undo() {
		t.Fatalf("Undo returned false")
	}
	if got := strings.Join(r.Moves(), " "); got != "e4 exd5" {
		t.Fatalf("moves after undo = %q", got)
	}
	if r.Board().Piece(sq(t, "d5")) != nchess.WhitePawn || r.Board().Piece(sq(t, "d6")) != nchess.NoPiece {
		t.Fatalf("replay did not rebuild the phantom capture: %q", r.FEN())
	}
	if strings.Fields(r.FEN())[1] != "w" {
		t.Fatalf("turn must be forced to white after replay")
	}

	r.Undo()
	r.Undo()
	if r.Len() != 0 || r.FEN() != WhiteStartFEN {
		t.Fatalf("expected restricted start, got %q", r.FEN())
	}
	if r.Undo() {
		t.Fatalf("Undo on empty list should return false")
	}
}

func TestResetAndRestore(t *testing.T) {
	r := newRecorder(t, nchess.White)
	_, _ = r.Commit(sq(t, "d2"), sq(t, "d4"))
	r.Reset()
	if r.Len() != 0 || r.FEN() != WhiteStartFEN {
		t.Fatalf("Reset: len=%d fen=%q", r.Len(), r.FEN())
	}

	restored, dropped, err := Restore(nchess.White, []string{"e4", " exd5 ", "Qh5??", "", "Nf3"})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if got := strings.Join(restored.Moves(), " "); got != "e4 exd5 Nf3" {
		t.Fatalf("restored moves = %q", got)
	}
}
