// Package bot routes Kakao chat commands to the blind recorder, matches and
// the reconciliation simulator.
package bot

import (
	"context"
	"errors"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/Cheese-BlindChess-bot/internal/adapter/blindpresenter"
	"github.com/park285/Cheese-BlindChess-bot/internal/irisfast"
	"github.com/park285/Cheese-BlindChess-bot/internal/match"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
	"github.com/park285/Cheese-BlindChess-bot/internal/render"
	"github.com/park285/Cheese-BlindChess-bot/internal/session"
)

type Deps struct {
	Sessions      *session.Store
	Matches       *match.Manager
	Renderer      *render.Renderer
	Formatter     *blindpresenter.Formatter
	Presenter     *blindpresenter.Presenter
	Logger        *zap.Logger
	Prefix        string
	DefaultPolicy reconcile.Policy
	// RoomAllowed filters rooms; nil allows every room.
	RoomAllowed func(room string) bool
}

type Handler struct {
	sessions *session.Store
	matches  *match.Manager
	renderer *render.Renderer
	fmt      *blindpresenter.Formatter
	out      *blindpresenter.Presenter
	logger   *zap.Logger

	prefix      string
	policy      reconcile.Policy
	roomAllowed func(string) bool
}

func New(d Deps) *Handler {
	h := &Handler{
		sessions:    d.Sessions,
		matches:     d.Matches,
		renderer:    d.Renderer,
		fmt:         d.Formatter,
		out:         d.Presenter,
		logger:      d.Logger,
		prefix:      d.Prefix,
		policy:      d.DefaultPolicy,
		roomAllowed: d.RoomAllowed,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.renderer == nil {
		h.renderer = render.New(render.DefaultSquareSize * 8)
	}
	if h.policy == "" {
		h.policy = reconcile.DefaultPolicy
	}
	return h
}

// request is one parsed chat command.
type request struct {
	room  string
	user  string
	name  string
	sub   string
	args  []string
	extra []string // lines after the first, used by sim
}

var commandWords = map[string]struct{}{
	"블라인드": {}, "블": {}, "blind": {}, "bl": {},
}

// Accepts reports whether msg is addressed to this bot.
func (h *Handler) Accepts(msg *irisfast.Message) bool {
	if msg == nil || strings.TrimSpace(msg.Msg) == "" {
		return false
	}
	if h.roomAllowed != nil && !h.roomAllowed(msg.Room) {
		return false
	}
	_, ok := h.parse(msg)
	return ok
}

func (h *Handler) parse(msg *irisfast.Message) (request, bool) {
	text := strings.TrimSpace(msg.Msg)
	if !strings.HasPrefix(text, h.prefix) {
		return request{}, false
	}
	lines := strings.Split(strings.TrimPrefix(text, h.prefix), "\n")
	fields := strings.Fields(lines[0])
	if len(fields) == 0 {
		return request{}, false
	}
	if _, ok := commandWords[strings.ToLower(fields[0])]; !ok {
		return request{}, false
	}
	req := request{
		room:  msg.Room,
		user:  msg.UserID(),
		name:  msg.SenderName("player"),
		extra: lines[1:],
	}
	if len(fields) > 1 {
		req.sub = strings.ToLower(fields[1])
		req.args = fields[2:]
	}
	return req, true
}

// Handle executes one command. Domain failures are answered in the room;
// the returned error is a delivery failure.
func (h *Handler) Handle(ctx context.Context, msg *irisfast.Message) error {
	if !h.Accepts(msg) {
		return nil
	}
	req, _ := h.parse(msg)
	if req.user == "" {
		h.logger.Warn("blind_command_no_user", zap.String("room", req.room))
		return nil
	}
	h.logger.Debug("blind_command",
		zap.String("room", req.room),
		zap.String("user", req.user),
		zap.String("sub", req.sub),
		zap.Int("args", len(req.args)),
	)

	switch req.sub {
	case "", "도움", "help":
		return h.reply(ctx, req, h.fmt.Help())
	case "기록", "record", "start":
		return h.start(ctx, req)
	case "후보", "targets", "moves":
		return h.targets(ctx, req)
	case "무르기", "undo":
		return h.undo(ctx, req)
	case "초기화", "reset":
		return h.reset(ctx, req)
	case "목록", "list":
		return h.list(ctx, req)
	case "보드", "board":
		return h.board(ctx, req)
	case "종료", "close", "end":
		return h.close(ctx, req)
	case "방", "room", "create":
		return h.create(ctx, req)
	case "참가", "join":
		return h.join(ctx, req)
	case "제출", "submit":
		return h.submit(ctx, req)
	case "결과", "result":
		return h.result(ctx, req)
	case "시뮬", "sim", "simulate":
		return h.simulate(ctx, req)
	}
	if from, to, ok := parseMoveArgs(append([]string{req.sub}, req.args...)); ok {
		return h.commit(ctx, req, from, to)
	}
	return h.reply(ctx, req, h.fmt.Error("unknown_command", nil))
}

func (h *Handler) reply(ctx context.Context, req request, text string) error {
	return h.out.Text(ctx, req.room, text)
}

func (h *Handler) replyError(ctx context.Context, req request, key string, data map[string]any) error {
	return h.reply(ctx, req, h.fmt.Error(key, data))
}

// fail answers with the generic error and logs the cause.
func (h *Handler) fail(ctx context.Context, req request, op string, err error) error {
	h.logger.Error("blind_command_failed",
		zap.String("op", op),
		zap.String("room", req.room),
		zap.String("user", req.user),
		zap.Error(err),
	)
	return h.replyError(ctx, req, "generic", nil)
}

func (h *Handler) boardImage(ctx context.Context, board *nchess.Board, opts render.Options) []byte {
	png, err := h.renderer.PNG(ctx, board, opts)
	if err != nil {
		h.logger.Warn("blind_render_failed", zap.Error(err))
		return nil
	}
	return png
}

// matchError maps match errors to catalog keys.
func matchError(err error) (string, bool) {
	switch {
	case errors.Is(err, match.ErrNotFound):
		return "match_not_found", true
	case errors.Is(err, match.ErrFull):
		return "match_full", true
	case errors.Is(err, match.ErrSelfJoin):
		return "match_self", true
	case errors.Is(err, match.ErrFinished):
		return "match_finished", true
	case errors.Is(err, match.ErrNotParticipant):
		return "not_participant", true
	case errors.Is(err, match.ErrAlreadySubmitted):
		return "already_submitted", true
	case errors.Is(err, match.ErrEmptyList):
		return "empty_list", true
	default:
		return "", false
	}
}
