package blindpresenter

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/Cheese-BlindChess-bot/internal/match"
	"github.com/park285/Cheese-BlindChess-bot/internal/msgcat"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
	"github.com/park285/Cheese-BlindChess-bot/internal/session"
)

// PrefixProvider exposes the command prefix shown in help texts.
type PrefixProvider interface {
	Prefix() string
}

// StaticPrefix is a fixed PrefixProvider.
type StaticPrefix string

func (p StaticPrefix) Prefix() string { return string(p) }

// Formatter turns recorder, match and trace state into Kakao text blocks.
type Formatter struct {
	cat    *msgcat.Catalog
	prefix PrefixProvider
}

func NewFormatter(cat *msgcat.Catalog, provider PrefixProvider) *Formatter {
	return &Formatter{cat: cat, prefix: provider}
}

func (f *Formatter) Prefix() string {
	if f == nil || f.prefix == nil {
		return ""
	}
	return strings.TrimSpace(f.prefix.Prefix())
}

func (f *Formatter) Catalog() *msgcat.Catalog { return f.cat }

func (f *Formatter) text(key string, data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Prefix"]; !ok {
		data["Prefix"] = f.Prefix()
	}
	return f.cat.Text(key, data)
}

func (f *Formatter) Help() string { return f.text("help", nil) }

// Error renders error.<key>.
func (f *Formatter) Error(key string, data map[string]any) string {
	return f.text("error."+key, data)
}

func (f *Formatter) Started(s *session.Session, resumed bool) string {
	side := f.cat.Side(s.ChessColor())
	if resumed {
		return f.text("recorder.resumed", map[string]any{"Side": side, "Count": len(s.Moves)})
	}
	return f.text("recorder.started", map[string]any{"Side": side})
}

func (f *Formatter) Committed(s *session.Session, san string) string {
	return f.text("recorder.committed", map[string]any{"Count": len(s.Moves), "Move": san})
}

func (f *Formatter) Undone(s *session.Session) string {
	return f.text("recorder.undone", map[string]any{"Count": len(s.Moves)})
}

func (f *Formatter) UndoEmpty() string { return f.text("recorder.undo_empty", nil) }
func (f *Formatter) Reset() string     { return f.text("recorder.reset", nil) }
func (f *Formatter) Closed() string    { return f.text("recorder.closed", nil) }

// List prints the recorded moves numbered from 1.
func (f *Formatter) List(s *session.Session) string {
	if len(s.Moves) == 0 {
		return f.text("recorder.list_empty", nil)
	}
	header := f.text("recorder.list_header", map[string]any{
		"Side":  f.cat.Side(s.ChessColor()),
		"Count": len(s.Moves),
	})
	var b strings.Builder
	for i, mv := range s.Moves {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, mv)
	}
	return foldLong(header, b.String())
}

func (f *Formatter) Targets(from nchess.Square, targets []nchess.Square) string {
	if len(targets) == 0 {
		return f.text("recorder.no_targets", map[string]any{"Square": from.String()})
	}
	names := make([]string, len(targets))
	for i, sq := range targets {
		names[i] = sq.String()
	}
	return f.text("recorder.targets", map[string]any{
		"Square":  from.String(),
		"Targets": strings.Join(names, ", "),
	})
}

func (f *Formatter) Policy(p reconcile.Policy) string {
	return f.text("policy."+string(p), nil)
}

func (f *Formatter) MatchCreated(m *match.Match) string {
	return f.text("match.created", map[string]any{"Code": m.Code, "Policy": f.Policy(m.Policy)})
}

func (f *Formatter) MatchJoined(m *match.Match) string {
	return f.text("match.joined", map[string]any{"Code": m.Code, "White": m.WhiteName, "Black": m.BlackName})
}

func (f *Formatter) Submitted(side nchess.Color, count int) string {
	return f.text("match.submitted", map[string]any{"Side": f.cat.Side(side), "Count": count})
}

// Trace lists every step with the running scores; long traces fold behind see-more.
func (f *Formatter) Trace(tr *reconcile.Trace) string {
	header := f.text("sim.header", map[string]any{"Policy": f.Policy(tr.Policy)})
	var b strings.Builder
	for i, st := range tr.Steps {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.text("sim.step", map[string]any{
			"Index":       st.Index,
			"Description": st.Description,
			"White":       st.WhiteScore,
			"Black":       st.BlackScore,
		}))
	}
	return foldLong(header, b.String())
}

// Summary renders the result block for a finished trace.
func (f *Formatter) Summary(tr *reconcile.Trace) string {
	sum := tr.Summary()
	final := tr.Final()
	pair := func(w, b any) map[string]any { return map[string]any{"White": w, "Black": b} }

	lines := []string{
		f.text("summary.winner", map[string]any{"Winner": f.cat.Winner(sum.Winner)}),
		f.text("summary.scores", pair(sum.WhiteScore, sum.BlackScore)),
		f.text("summary.material", pair(sum.WhiteMaterial, sum.BlackMaterial)),
		f.text("summary.moves", pair(sum.WhiteMoves, sum.BlackMoves)),
		f.text("summary.illegal", pair(sum.WhiteIllegal, sum.BlackIllegal)),
		f.text("summary.checks", pair(sum.WhiteChecks, sum.BlackChecks)),
	}
	if len(final.CapturedByWhite)+len(final.CapturedByBlack) > 0 {
		lines = append(lines, f.text("summary.captured", pair(
			f.pieces(final.CapturedByWhite), f.pieces(final.CapturedByBlack))))
	}
	lines = append(lines, f.text("summary.termination", map[string]any{"Reason": f.cat.Termination(sum.Termination)}))
	if sum.OpeningCode != "" {
		lines = append(lines, f.text("summary.opening", map[string]any{"Code": sum.OpeningCode, "Name": sum.OpeningName}))
	}
	return strings.Join(lines, "\n")
}

// MatchResult is the header, the folded trace and the summary of a resolved match.
func (f *Formatter) MatchResult(m *match.Match, tr *reconcile.Trace) string {
	header := f.text("match.result_header", map[string]any{"Code": m.Code})
	return header + "\n" + f.Summary(tr) + "\n\n" + f.Trace(tr)
}

func (f *Formatter) pieces(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = f.cat.Piece(n)
	}
	return strings.Join(out, " ")
}
