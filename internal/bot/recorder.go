package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/Cheese-BlindChess-bot/internal/blind"
	"github.com/park285/Cheese-BlindChess-bot/internal/render"
	"github.com/park285/Cheese-BlindChess-bot/internal/rules"
	"github.com/park285/Cheese-BlindChess-bot/internal/session"
)

// parseMoveArgs accepts "e2 e4", "e2e4" and "e2-e4".
func parseMoveArgs(args []string) (nchess.Square, nchess.Square, bool) {
	var from, to string
	switch len(args) {
	case 1:
		s := strings.ReplaceAll(strings.ToLower(args[0]), "-", "")
		if len(s) != 4 {
			return 0, 0, false
		}
		from, to = s[:2], s[2:]
	case 2:
		from, to = args[0], args[1]
	default:
		return 0, 0, false
	}
	f, err := rules.ParseSquare(from)
	if err != nil {
		return 0, 0, false
	}
	t, err := rules.ParseSquare(to)
	if err != nil {
		return 0, 0, false
	}
	return f, t, true
}

// active loads the caller's recording, answering no_session when absent.
func (h *Handler) active(ctx context.Context, req request) (*session.Session, bool, error) {
	sess, err := h.sessions.Active(ctx, req.user)
	if errors.Is(err, session.ErrNotFound) {
		return nil, false, h.replyError(ctx, req, "no_session", nil)
	}
	if err != nil {
		return nil, false, h.fail(ctx, req, "session_active", err)
	}
	return sess, true, nil
}

func (h *Handler) sessionBoard(ctx context.Context, sess *session.Session, opts render.Options) ([]byte, error) {
	rec, err := sess.Recorder()
	if err != nil {
		return nil, err
	}
	opts.Flip = sess.ChessColor() == nchess.Black
	opts.Footer = fmt.Sprintf("%s  %d moves", sess.Color, len(sess.Moves))
	return h.boardImage(ctx, rec.Board(), opts), nil
}

func (h *Handler) start(ctx context.Context, req request) error {
	if len(req.args) == 0 {
		return h.replyError(ctx, req, "invalid_color", nil)
	}
	color, ok := rules.ParseColor(req.args[0])
	if !ok {
		return h.replyError(ctx, req, "invalid_color", nil)
	}
	sess, resumed, err := h.sessions.Start(ctx, req.user, req.room, color)
	if err != nil {
		return h.fail(ctx, req, "session_start", err)
	}
	png, err := h.sessionBoard(ctx, sess, render.Options{})
	if err != nil {
		return h.fail(ctx, req, "session_board", err)
	}
	return h.out.Board(ctx, req.room, h.fmt.Started(sess, resumed), png)
}

func (h *Handler) commit(ctx context.Context, req request, from, to nchess.Square) error {
	sess, ok, err := h.active(ctx, req)
	if !ok {
		return err
	}
	sess, san, err := h.sessions.Commit(ctx, sess.ID, from, to)
	switch {
	case errors.Is(err, blind.ErrIllegalMove):
		return h.replyError(ctx, req, "illegal_move", map[string]any{"From": from.String(), "To": to.String()})
	case err != nil:
		return h.fail(ctx, req, "session_commit", err)
	}
	return h.reply(ctx, req, h.fmt.Committed(sess, san))
}

func (h *Handler) targets(ctx context.Context, req request) error {
	if len(req.args) == 0 {
		return h.replyError(ctx, req, "invalid_square", map[string]any{"Input": ""})
	}
	from, err := rules.ParseSquare(req.args[0])
	if err != nil {
		return h.replyError(ctx, req, "invalid_square", map[string]any{"Input": req.args[0]})
	}
	sess, ok, err := h.active(ctx, req)
	if !ok {
		return err
	}
	targets, err := h.sessions.Targets(ctx, sess.ID, from)
	if err != nil {
		return h.fail(ctx, req, "session_targets", err)
	}
	text := h.fmt.Targets(from, targets)
	if len(targets) == 0 {
		return h.reply(ctx, req, text)
	}
	png, err := h.sessionBoard(ctx, sess, render.Options{Targets: targets})
	if err != nil {
		return h.fail(ctx, req, "session_board", err)
	}
	return h.out.Board(ctx, req.room, text, png)
}

func (h *Handler) undo(ctx context.Context, req request) error {
	sess, ok, err := h.active(ctx, req)
	if !ok {
		return err
	}
	sess, err = h.sessions.Undo(ctx, sess.ID)
	switch {
	case errors.Is(err, session.ErrNothingToUndo):
		return h.reply(ctx, req, h.fmt.UndoEmpty())
	case err != nil:
		return h.fail(ctx, req, "session_undo", err)
	}
	return h.reply(ctx, req, h.fmt.Undone(sess))
}

func (h *Handler) reset(ctx context.Context, req request) error {
	sess, ok, err := h.active(ctx, req)
	if !ok {
		return err
	}
	if _, err := h.sessions.Reset(ctx, sess.ID); err != nil {
		return h.fail(ctx, req, "session_reset", err)
	}
	return h.reply(ctx, req, h.fmt.Reset())
}

func (h *Handler) list(ctx context.Context, req request) error {
	sess, ok, err := h.active(ctx, req)
	if !ok {
		return err
	}
	return h.reply(ctx, req, h.fmt.List(sess))
}

func (h *Handler) board(ctx context.Context, req request) error {
	sess, ok, err := h.active(ctx, req)
	if !ok {
		return err
	}
	png, err := h.sessionBoard(ctx, sess, render.Options{})
	if err != nil {
		return h.fail(ctx, req, "session_board", err)
	}
	return h.out.Board(ctx, req.room, "", png)
}

func (h *Handler) close(ctx context.Context, req request) error {
	sess, ok, err := h.active(ctx, req)
	if !ok {
		return err
	}
	if err := h.sessions.Close(ctx, sess.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return h.fail(ctx, req, "session_close", err)
	}
	return h.reply(ctx, req, h.fmt.Closed())
}
