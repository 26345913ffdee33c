package match

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/park285/Cheese-BlindChess-bot/internal/domain"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
)

// BuildPGN writes the applied sequence with forfeited and skipped notations as
// comments. Move numbers follow the board, so a forfeit can produce "N..." lines.
func BuildPGN(g *domain.BlindGame, trace *reconcile.Trace) string {
	if g == nil || trace == nil {
		return ""
	}
	result := mapResultToPGN(g.Winner)
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"KakaoBlind\"]\n")
	b.WriteString("[Site \"Iris\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(g.WhiteName)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(g.BlackName)))
	b.WriteString(fmt.Sprintf("[Variant \"Blind %s\"]\n", sanitizePGN(g.Policy)))
	if g.OpeningCode != "" {
		b.WriteString(fmt.Sprintf("[ECO \"%s\"]\n", sanitizePGN(g.OpeningCode)))
	}
	if g.Termination != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(g.Termination)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	var tokens []string
	needNumber := true
	for i := 1; i < len(trace.Steps); i++ {
		prev, s := trace.Steps[i-1], trace.Steps[i]
		move := fullMove(prev.FEN)
		white := s.Turn == "white"
		if s.HasMove() {
			for _, skipped := range s.Skipped {
				tokens = append(tokens, "{skipped "+sanitizeComment(skipped)+"}")
			}
			switch {
			case white:
				tokens = append(tokens, fmt.Sprintf("%d. %s", move, s.MoveSAN))
				needNumber = false
			case needNumber:
				tokens = append(tokens, fmt.Sprintf("%d... %s", move, s.MoveSAN))
			default:
				tokens = append(tokens, s.MoveSAN)
			}
			if !white {
				needNumber = true
			}
			continue
		}
		var note string
		switch s.Event {
		case reconcile.EventIllegalAttempt:
			note = fmt.Sprintf("{%s forfeits: %s}", s.Turn, sanitizeComment(s.Attempted))
		case reconcile.EventNoLegalMove:
			note = fmt.Sprintf("{%s has no legal move: %s}", s.Turn, sanitizeComment(strings.Join(s.Skipped, " ")))
		default:
			continue
		}
		tokens = append(tokens, note)
		needNumber = true
	}
	tokens = append(tokens, result)
	b.WriteString(strings.Join(tokens, " "))
	return b.String()
}

func fullMove(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func mapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

func sanitizeComment(s string) string {
	return strings.NewReplacer("{", "(", "}", ")").Replace(strings.TrimSpace(s))
}
