package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/park285/Cheese-BlindChess-bot/internal/blind"
	"github.com/park285/Cheese-BlindChess-bot/internal/movelist"
	"github.com/park285/Cheese-BlindChess-bot/internal/render"
	"github.com/park285/Cheese-BlindChess-bot/internal/rules"
	"github.com/park285/Cheese-BlindChess-bot/internal/session"
)

type startRequest struct {
	Owner string `json:"owner"`
	Color string `json:"color"`
	Room  string `json:"room,omitempty"`
}

type moveRequest struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	// Move is the "e2e4" shorthand for From+To.
	Move string `json:"move,omitempty"`
}

type sessionView struct {
	Session *session.Session `json:"session"`
	FEN     string           `json:"fen"`
	Resumed bool             `json:"resumed,omitempty"`
	SAN     string           `json:"san,omitempty"`
}

type targetsView struct {
	Square  string   `json:"square"`
	Targets []string `json:"targets"`
}

func (s *Server) view(sess *session.Session) (sessionView, error) {
	rec, err := sess.Recorder()
	if err != nil {
		return sessionView{}, err
	}
	return sessionView{Session: sess, FEN: rec.FEN()}, nil
}

// sessionError maps store errors to HTTP statuses.
func (s *Server) sessionError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrNothingToUndo):
		writeError(w, http.StatusConflict, "nothing to undo")
	case errors.Is(err, session.ErrConflict):
		writeError(w, http.StatusConflict, "session changed concurrently")
	case errors.Is(err, blind.ErrIllegalMove):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("http_session_error", zap.String("op", op), zap.Error(err))
		writeInternalError(w)
	}
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	color, ok := rules.ParseColor(req.Color)
	if !ok || strings.TrimSpace(req.Owner) == "" {
		writeError(w, http.StatusBadRequest, "owner and color (white|black) are required")
		return
	}
	sess, resumed, err := s.sessions.Start(r.Context(), req.Owner, req.Room, color)
	if err != nil {
		s.sessionError(w, "start", err)
		return
	}
	v, err := s.view(sess)
	if err != nil {
		s.sessionError(w, "start", err)
		return
	}
	v.Resumed = resumed
	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, v)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sessionError(w, "get", err)
		return
	}
	v, err := s.view(sess)
	if err != nil {
		s.sessionError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.sessionError(w, "close", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	from, err := rules.ParseSquare(r.URL.Query().Get("square"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	targets, err := s.sessions.Targets(r.Context(), chi.URLParam(r, "id"), from)
	if err != nil {
		s.sessionError(w, "targets", err)
		return
	}
	writeJSON(w, http.StatusOK, targetsView{Square: from.String(), Targets: squareNames(targets)})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, to, err := req.squares()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, san, err := s.sessions.Commit(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		s.sessionError(w, "commit", err)
		return
	}
	v, err := s.view(sess)
	if err != nil {
		s.sessionError(w, "commit", err)
		return
	}
	v.SAN = san
	writeJSON(w, http.StatusOK, v)
}

func (req moveRequest) squares() (nchess.Square, nchess.Square, error) {
	from, to := req.From, req.To
	if m := strings.TrimSpace(req.Move); m != "" {
		if len(m) != 4 {
			return nchess.NoSquare, nchess.NoSquare, fmt.Errorf("move must look like e2e4")
		}
		from, to = m[:2], m[2:]
	}
	f, err := rules.ParseSquare(from)
	if err != nil {
		return nchess.NoSquare, nchess.NoSquare, err
	}
	t, err := rules.ParseSquare(to)
	if err != nil {
		return nchess.NoSquare, nchess.NoSquare, err
	}
	return f, t, nil
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "undo", s.sessions.Undo)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "reset", s.sessions.Reset)
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, id string) (*session.Session, error)) {
	sess, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sessionError(w, op, err)
		return
	}
	v, err := s.view(sess)
	if err != nil {
		s.sessionError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleExport returns the move-list artifact as plain text.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sessionError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, movelist.DefaultFileName(sess.ChessColor())))
	if err := movelist.Write(w, sess.Moves); err != nil {
		s.logger.Warn("http_export_write", zap.Error(err))
	}
}

// handleBoard renders the restricted board; ?square=e2 marks that piece's destinations.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sessionError(w, "board", err)
		return
	}
	rec, err := sess.Recorder()
	if err != nil {
		s.sessionError(w, "board", err)
		return
	}
	opts := render.Options{Flip: sess.ChessColor() == nchess.Black}
	if sq := r.URL.Query().Get("square"); sq != "" {
		from, err := rules.ParseSquare(sq)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Targets = rec.Targets(from)
	}
	png, err := s.renderer.PNG(r.Context(), rec.Board(), opts)
	if err != nil {
		s.sessionError(w, "board", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func squareNames(list []nchess.Square) []string {
	out := make([]string, len(list))
	for i, sq := range list {
		out[i] = sq.String()
	}
	return out
}
