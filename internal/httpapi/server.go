// Package httpapi exposes the blind recorder and the reconciliation simulator
// over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
	"github.com/park285/Cheese-BlindChess-bot/internal/render"
	"github.com/park285/Cheese-BlindChess-bot/internal/session"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 4 << 20
)

type Server struct {
	sessions *session.Store
	renderer *render.Renderer
	describe reconcile.Describer
	policy   reconcile.Policy
	logger   *zap.Logger
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDescriber localizes step descriptions of simulated traces.
func WithDescriber(d reconcile.Describer) Option { return func(s *Server) { s.describe = d } }

func WithDefaultPolicy(p reconcile.Policy) Option {
	return func(s *Server) {
		if p != "" {
			s.policy = p
		}
	}
}

func WithRenderer(r *render.Renderer) Option {
	return func(s *Server) {
		if r != nil {
			s.renderer = r
		}
	}
}

func New(sessions *session.Store, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		renderer: render.New(render.DefaultSquareSize * 8),
		policy:   reconcile.DefaultPolicy,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the /api/v1 routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"state": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleStartSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleCloseSession)
				r.Get("/targets", s.handleTargets)
				r.Post("/moves", s.handleCommit)
				r.Post("/undo", s.handleUndo)
				r.Post("/reset", s.handleReset)
				r.Get("/export", s.handleExport)
				r.Get("/board.png", s.handleBoard)
			})
		})
		r.Post("/simulate", s.handleSimulate)
		r.Post("/simulate/upload", s.handleSimulateUpload)
		r.Get("/simulate/stream", s.handleSimulateStream)
	})
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) simulator(p reconcile.Policy) *reconcile.Simulator {
	opts := []reconcile.Option{reconcile.WithLogger(s.logger)}
	if s.describe != nil {
		opts = append(opts, reconcile.WithDescriber(s.describe))
	}
	return reconcile.New(p, opts...)
}
