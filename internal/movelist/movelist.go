// Package movelist reads and writes the plain-text move-list artifact: one
// notation per line.
package movelist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// MaxLines caps how many notations a single artifact may carry.
const MaxLines = 1024

var ErrTooLong = errors.New("move list too long")

func Parse(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	moves := make([]string, 0, 32)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" {
			continue
		}
		if len(moves) == MaxLines {
			return nil, fmt.Errorf("%w: more than %d lines", ErrTooLong, MaxLines)
		}
		moves = append(moves, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read move list: %w", err)
	}
	return moves, nil
}

// Format joins moves with newlines, ending with one.
func Format(moves []string) string {
	var buf bytes.Buffer
	_ = Write(&buf, moves)
	return buf.String()
}

func Write(w io.Writer, moves []string) error {
	bw := bufio.NewWriter(w)
	for _, m := range moves {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, err := bw.WriteString(m + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func WriteFile(path string, moves []string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(Format(moves)), 0o644)
}

// DefaultFileName is the artifact name used when saving a recorder's list.
func DefaultFileName(color nchess.Color) string {
	if color == nchess.Black {
		return "blind-black-moves.txt"
	}
	return "blind-white-moves.txt"
}
