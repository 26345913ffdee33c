package bot

import (
	"context"
	"errors"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/Cheese-BlindChess-bot/internal/match"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
	"github.com/park285/Cheese-BlindChess-bot/internal/render"
	"github.com/park285/Cheese-BlindChess-bot/internal/rules"
	"github.com/park285/Cheese-BlindChess-bot/internal/session"
)

// create opens a lobby: 방 [엄격|탐색] [백|흑].
// Without a color the creator takes the color of an active recording, else white.
func (h *Handler) create(ctx context.Context, req request) error {
	policy := h.policy
	color := nchess.NoColor
	for _, arg := range req.args {
		if c, ok := rules.ParseColor(arg); ok {
			color = c
			continue
		}
		p, err := reconcile.ParsePolicy(arg)
		if err != nil {
			return h.replyError(ctx, req, "bad_policy", map[string]any{"Input": arg})
		}
		policy = p
	}
	if color == nchess.NoColor {
		if sess, err := h.sessions.Active(ctx, req.user); err == nil {
			color = sess.ChessColor()
		}
	}
	mt, err := h.matches.Create(ctx, req.user, req.name, req.room, policy, color)
	if err != nil {
		return h.fail(ctx, req, "match_create", err)
	}
	return h.reply(ctx, req, h.fmt.MatchCreated(mt))
}

func (h *Handler) join(ctx context.Context, req request) error {
	if len(req.args) == 0 {
		return h.replyError(ctx, req, "match_not_found", map[string]any{"Code": ""})
	}
	code := strings.ToUpper(req.args[0])
	mt, err := h.matches.Join(ctx, code, req.user, req.name, req.room)
	if err != nil {
		return h.matchFailure(ctx, req, "match_join", code, err)
	}
	return h.broadcast(ctx, req, mt, h.fmt.MatchJoined(mt), nil)
}

// submit hands the caller's recorded list to their active match.
func (h *Handler) submit(ctx context.Context, req request) error {
	mt, err := h.matches.ActiveByUser(ctx, req.user)
	if errors.Is(err, match.ErrNotFound) {
		return h.replyError(ctx, req, "no_match", nil)
	}
	if err != nil {
		return h.fail(ctx, req, "match_active", err)
	}
	sess, ok, err := h.active(ctx, req)
	if !ok {
		return err
	}
	side, _ := mt.ColorOf(req.user)
	if sess.ChessColor() != side {
		return h.replyError(ctx, req, "color_mismatch", map[string]any{"Side": h.fmt.Catalog().Side(side)})
	}
	code := mt.Code
	mt, trace, err := h.matches.Submit(ctx, code, req.user, sess.Moves)
	if err != nil {
		return h.matchFailure(ctx, req, "match_submit", code, err)
	}
	if trace == nil {
		return h.reply(ctx, req, h.fmt.Submitted(side, len(sess.Moves)))
	}
	h.logger.Info("match_resolve",
		zap.String("code", mt.Code),
		zap.String("winner", trace.Winner()),
		zap.String("termination", string(trace.Termination)),
	)
	if err := h.sessions.Close(ctx, sess.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
		h.logger.Warn("blind_session_close_failed", zap.Error(err))
	}
	return h.broadcast(ctx, req, mt, h.fmt.MatchResult(mt, trace), h.finalBoard(ctx, trace))
}

func (h *Handler) result(ctx context.Context, req request) error {
	var code string
	if len(req.args) > 0 {
		code = strings.ToUpper(req.args[0])
	} else if mt, err := h.matches.ActiveByUser(ctx, req.user); err == nil {
		code = mt.Code
	} else {
		return h.replyError(ctx, req, "no_match", nil)
	}
	mt, trace, err := h.matches.Replay(ctx, code)
	if err != nil {
		return h.matchFailure(ctx, req, "match_replay", code, err)
	}
	if trace == nil {
		return h.replyError(ctx, req, "match_pending", map[string]any{"Code": mt.Code})
	}
	return h.out.Board(ctx, req.room, h.fmt.MatchResult(mt, trace), h.finalBoard(ctx, trace))
}

func (h *Handler) matchFailure(ctx context.Context, req request, op, code string, err error) error {
	if key, ok := matchError(err); ok {
		return h.replyError(ctx, req, key, map[string]any{"Code": code})
	}
	return h.fail(ctx, req, op, err)
}

// broadcast sends to every room of the match, the caller's room included.
func (h *Handler) broadcast(ctx context.Context, req request, mt *match.Match, text string, png []byte) error {
	rooms := append([]string{req.room}, mt.Rooms...)
	seen := make(map[string]struct{}, len(rooms))
	var firstErr error
	for _, room := range rooms {
		if _, dup := seen[room]; dup || room == "" {
			continue
		}
		seen[room] = struct{}{}
		if err := h.out.Board(ctx, room, text, png); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// finalBoard renders the last position of a trace with the last applied move marked.
func (h *Handler) finalBoard(ctx context.Context, trace *reconcile.Trace) []byte {
	final := trace.Final()
	pos, err := rules.FromFEN(final.FEN)
	if err != nil {
		h.logger.Warn("blind_final_fen_invalid", zap.String("fen", final.FEN), zap.Error(err))
		return nil
	}
	return h.boardImage(ctx, pos.Board(), render.Options{
		Header: "blind " + string(trace.Policy),
		Footer: "result: " + trace.Winner(),
	})
}
