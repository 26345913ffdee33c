package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
)

func TestEmbeddedLanguages(t *testing.T) {
	langs := Languages()
	if len(langs) != 2 || langs[0] != "en" || langs[1] != "ko" {
		t.Fatalf("languages = %v", langs)
	}
	if _, err := New("fr", ""); err == nil {
		t.Fatal("expected error for missing language")
	}
}

func TestRenderKoreanDefault(t *testing.T) {
	c, err := New("", "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := c.Render("recorder.committed", map[string]any{"Count": 3, "Move": "Nf3"})
	if err != nil || got != "✔ 3. Nf3" {
		t.Fatalf("render = %q, %v", got, err)
	}
	if _, err := c.Render("recorder.committed", map[string]any{"Count": 3}); err == nil {
		t.Fatal("missing data key should fail")
	}
	if c.Text("nope.nope", nil) != "nope.nope" {
		t.Fatal("Text should fall back to key")
	}
	if c.Piece("knight") != "나이트" || c.Piece("dragon") != "dragon" {
		t.Fatal("piece names")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("side:\n  white: \"하양\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New("ko", dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.Side(nchess.White) != "하양" || c.Side(nchess.Black) != "흑" {
		t.Fatalf("sides = %s/%s", c.Side(nchess.White), c.Side(nchess.Black))
	}

	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("side:\n  white: \"W\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New("ko", dir); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestDescriberDrivesSimulator(t *testing.T) {
	c, err := New("ko", "")
	if err != nil {
		t.Fatal(err)
	}
	sim := reconcile.New(reconcile.PolicySeekNext, reconcile.WithDescriber(NewDescriber(c)))
	tr := sim.Run([]string{"e4", "Qh5??", "Nf3"}, []string{"e5"})
	if got := tr.Steps[0].Description; got != "게임 시작" {
		t.Fatalf("start = %q", got)
	}
	if got := tr.Steps[3].Description; got != "백: 대체 합법 수 발견 Nf3" {
		t.Fatalf("alternative = %q", got)
	}

	en, err := New("en", "")
	if err != nil {
		t.Fatal(err)
	}
	if got := NewDescriber(en).Describe(reconcile.EventIllegalAttempt, nchess.Black, "Ke2??"); got != "Black: illegal move Ke2??, turn forfeited" {
		t.Fatalf("english = %q", got)
	}
	if en.Termination(reconcile.TerminationNoLegalMove) != "no legal move found" {
		t.Fatal("termination")
	}
}
