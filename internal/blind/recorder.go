package blind

import (
	"fmt"
	"regexp"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BlindChess-bot/internal/rules"
	"go.uber.org/zap"
)

var squareToken = regexp.MustCompile(`[a-h][1-8]`)

// Recorder accumulates one side's blind moves. Undo rebuilds the position by
// replaying the remaining list from the restricted start, because forced turn
// resets make incremental rollback unsound.
type Recorder struct {
	color  nchess.Color
	pos    *rules.Position
	moves  []string
	logger *zap.Logger
}

type Option func(*Recorder)

func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRecorder(color nchess.Color, opts ...Option) (*Recorder, error) {
	if color != nchess.White && color != nchess.Black {
		return nil, fmt.Errorf("blind: invalid color %v", color)
	}
	r := &Recorder{color: color, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	pos, err := rules.FromFEN(StartFEN(color))
	if err != nil {
		return nil, err
	}
	r.pos = pos
	return r, nil
}

// Restore rebuilds a recorder from a stored move list. Entries that no longer
// replay are dropped and reported in the returned count.
func Restore(color nchess.Color, moves []string, opts ...Option) (*Recorder, int, error) {
	r, err := NewRecorder(color, opts...)
	if err != nil {
		return nil, 0, err
	}
	dropped := r.replay(moves)
	return r, dropped, nil
}

func (r *Recorder) Color() nchess.Color { return r.color }

func (r *Recorder) FEN() string { return r.pos.FEN() }

func (r *Recorder) Board() *nchess.Board { return r.pos.Board() }

func (r *Recorder) Len() int { return len(r.moves) }

func (r *Recorder) Moves() []string { return append([]string(nil), r.moves...) }

// Targets is the proposer output for the piece on from.
func (r *Recorder) Targets(from nchess.Square) []nchess.Square {
	return Destinations(r.pos, from)
}

// Commit records from→to when the proposer offers it and the move is accepted.
// Anything else is a no-op reported as ErrIllegalMove.
func (r *Recorder) Commit(from, to nchess.Square) (string, error) {
	if !contains(r.Targets(from), to) {
		return "", fmt.Errorf("%w: %s%s not offered", ErrIllegalMove, from.String(), to.String())
	}
	san, err := CommitMove(r.pos, from, to, r.color)
	if err != nil {
		r.logger.Debug("blind_commit_rejected",
			zap.String("color", rules.ColorName(r.color)),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Error(err),
		)
		return "", err
	}
	r.moves = append(r.moves, san)
	r.logger.Debug("blind_commit",
		zap.String("color", rules.ColorName(r.color)),
		zap.String("san", san),
		zap.Int("ply", len(r.moves)),
	)
	return san, nil
}

// Undo drops the last move. It returns false when the list is empty.
func (r *Recorder) Undo() bool {
	if len(r.moves) == 0 {
		return false
	}
	remaining := append([]string(nil), r.moves[:len(r.moves)-1]...)
	r.reload()
	if dropped := r.replay(remaining); dropped > 0 {
		r.logger.Warn("blind_undo_replay_dropped",
			zap.String("color", rules.ColorName(r.color)),
			zap.Int("dropped", dropped),
		)
	}
	return true
}

func (r *Recorder) Reset() {
	r.reload()
}

func (r *Recorder) reload() {
	pos, err := rules.FromFEN(StartFEN(r.color))
	if err != nil {
		panic(err)
	}
	r.pos = pos
	r.moves = r.moves[:0]
}

func (r *Recorder) replay(moves []string) int {
	dropped := 0
	for _, raw := range moves {
		san, ok := r.replayOne(strings.TrimSpace(raw))
		if !ok {
			dropped++
			continue
		}
		r.moves = append(r.moves, san)
	}
	return dropped
}

func (r *Recorder) replayOne(notation string) (string, bool) {
	if notation == "" {
		return "", false
	}
	snap := r.pos.Snapshot()
	san, err := r.pos.Apply(notation)
	if err != nil && strings.Contains(notation, "x") {
		target, ok := captureSquare(notation)
		if ok && r.pos.Piece(target) == nchess.NoPiece {
			if perr := r.pos.Put(target, phantomFor(r.color)); perr == nil {
				san, err = r.pos.Apply(notation)
			}
		}
	}
	if err != nil {
		r.pos.Restore(snap)
		return "", false
	}
	if err := r.pos.ForceTurn(r.color); err != nil {
		r.pos.Restore(snap)
		return "", false
	}
	return san, true
}

// captureSquare picks the destination of a capture notation: the last square token.
func captureSquare(notation string) (nchess.Square, bool) {
	tokens := squareToken.FindAllString(notation, -1)
	if len(tokens) == 0 {
		return nchess.NoSquare, false
	}
	sq, err := rules.ParseSquare(tokens[len(tokens)-1])
	if err != nil {
		return nchess.NoSquare, false
	}
	return sq, true
}

func contains(list []nchess.Square, sq nchess.Square) bool {
	for _, s := range list {
		if s == sq {
			return true
		}
	}
	return false
}
