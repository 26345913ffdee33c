package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-BlindChess-bot/internal/movelist"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
)

type simulateRequest struct {
	White  []string `json:"white"`
	Black  []string `json:"black"`
	Policy string   `json:"policy,omitempty"`
}

type simulateResponse struct {
	Trace   *reconcile.Trace  `json:"trace"`
	Summary reconcile.Summary `json:"summary"`
}

// streamFrame is one websocket message of /simulate/stream.
type streamFrame struct {
	Type    string             `json:"type"` // step | summary | error
	Step    *reconcile.Step    `json:"step,omitempty"`
	Summary *reconcile.Summary `json:"summary,omitempty"`
	Error   string             `json:"error,omitempty"`
}

func (s *Server) resolvePolicy(raw string) (reconcile.Policy, error) {
	if raw == "" {
		return s.policy, nil
	}
	return reconcile.ParsePolicy(raw)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	policy, err := s.resolvePolicy(req.Policy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeTrace(w, s.simulator(policy).Run(req.White, req.Black))
}

// handleSimulateUpload takes the two move-list artifacts as multipart files
// "white" and "black", plus an optional "policy" field.
func (s *Server) handleSimulateUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("multipart: %v", err))
		return
	}
	policy, err := s.resolvePolicy(r.FormValue("policy"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	white, err := readArtifact(r, "white")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	black, err := readArtifact(r, "black")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeTrace(w, s.simulator(policy).Run(white, black))
}

func readArtifact(r *http.Request, field string) ([]string, error) {
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	defer f.Close()
	moves, err := movelist.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return moves, nil
}

func (s *Server) writeTrace(w http.ResponseWriter, trace *reconcile.Trace) {
	s.logger.Info("http_simulate",
		zap.String("policy", string(trace.Policy)),
		zap.Int("steps", trace.Len()),
		zap.String("termination", string(trace.Termination)),
	)
	writeJSON(w, http.StatusOK, simulateResponse{Trace: trace, Summary: trace.Summary()})
}

// handleSimulateStream upgrades to a websocket, reads one simulateRequest and
// streams every step as it is produced, then the summary.
func (s *Server) handleSimulateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("http_stream_accept", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected exit")

	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	var req simulateRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		_ = wsjson.Write(ctx, conn, streamFrame{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusUnsupportedData, "bad request")
		return
	}
	policy, err := s.resolvePolicy(req.Policy)
	if err != nil {
		_ = wsjson.Write(ctx, conn, streamFrame{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusPolicyViolation, "bad policy")
		return
	}

	var writeErr error
	trace := s.simulator(policy).RunEach(req.White, req.Black, func(step reconcile.Step) {
		if writeErr != nil {
			return
		}
		writeErr = wsjson.Write(ctx, conn, streamFrame{Type: "step", Step: &step})
	})
	if writeErr != nil {
		s.logger.Warn("http_stream_write", zap.Error(writeErr))
		return
	}
	sum := trace.Summary()
	if err := wsjson.Write(ctx, conn, streamFrame{Type: "summary", Summary: &sum}); err != nil {
		s.logger.Warn("http_stream_write", zap.Error(err))
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
