package bot

import (
	"context"
	"strings"

	"github.com/park285/Cheese-BlindChess-bot/internal/msgcat"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
)

// parseSimLines collects W:/B: lines. Notations may be space or comma separated.
func parseSimLines(lines []string) (white, black []string) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		idx := strings.IndexAny(line, ":：")
		if idx <= 0 {
			continue
		}
		tag := strings.ToLower(strings.TrimSpace(line[:idx]))
		rest := strings.TrimSpace(line[idx:])
		rest = strings.TrimLeft(rest, ":：")
		moves := strings.FieldsFunc(rest, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
		switch tag {
		case "w", "white", "백":
			white = append(white, moves...)
		case "b", "black", "흑":
			black = append(black, moves...)
		}
	}
	return white, black
}

func (h *Handler) simulate(ctx context.Context, req request) error {
	policy := h.policy
	if len(req.args) > 0 {
		p, err := reconcile.ParsePolicy(req.args[0])
		if err != nil {
			return h.replyError(ctx, req, "bad_policy", map[string]any{"Input": req.args[0]})
		}
		policy = p
	}
	white, black := parseSimLines(req.extra)
	if len(white) == 0 && len(black) == 0 {
		return h.replyError(ctx, req, "sim_usage", nil)
	}
	sim := reconcile.New(policy,
		reconcile.WithDescriber(msgcat.NewDescriber(h.fmt.Catalog())),
		reconcile.WithLogger(h.logger),
	)
	trace := sim.Run(white, black)
	text := h.fmt.Summary(trace) + "\n\n" + h.fmt.Trace(trace)
	return h.out.Board(ctx, req.room, text, h.finalBoard(ctx, trace))
}
