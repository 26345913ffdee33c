package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/park285/Cheese-BlindChess-bot/internal/movelist"
)

func writeLists(t *testing.T, white, black []string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	w := filepath.Join(dir, "w.txt")
	b := filepath.Join(dir, "b.txt")
	if err := movelist.WriteFile(w, white); err != nil {
		t.Fatal(err)
	}
	if err := movelist.WriteFile(b, black); err != nil {
		t.Fatal(err)
	}
	return w, b
}

func TestRunPrintsTraceAndSummary(t *testing.T) {
	w, b := writeLists(t, []string{"e4", "Ke3"}, []string{"e5", "Nc6"})
	var out bytes.Buffer
	o := options{white: w, black: b, policy: "strict", lang: "en"}
	if err := run(context.Background(), o, &out, zap.NewNop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "0. ") || !strings.Contains(text, "Ke3") {
		t.Fatalf("trace missing steps:\n%s", text)
	}
}

func TestRunJSONAndPNG(t *testing.T) {
	w, b := writeLists(t, []string{"f3", "g4"}, []string{"e5", "Qh4#"})
	pngPath := filepath.Join(t.TempDir(), "final.png")
	var out bytes.Buffer
	o := options{white: w, black: b, policy: "seek-next", lang: "ko", asJSON: true, png: pngPath, size: 240}
	if err := run(context.Background(), o, &out, zap.NewNop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	var decoded struct {
		Summary struct {
			Winner string `json:"winner"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil || decoded.Summary.Winner != "black" {
		t.Fatalf("json: %v %+v", err, decoded)
	}
	f, err := os.Open(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Fatalf("png: %v", err)
	}
}

func TestRunRejectsUnknownPolicy(t *testing.T) {
	w, b := writeLists(t, []string{"e4"}, []string{"e5"})
	if err := run(context.Background(), options{white: w, black: b, policy: "loose", lang: "en"}, &bytes.Buffer{}, zap.NewNop()); err == nil {
		t.Fatal("expected policy error")
	}
}
