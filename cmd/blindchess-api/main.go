// Command blindchess-api serves the recorder and simulator HTTP API without the Kakao bot.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/park285/Cheese-BlindChess-bot/internal/config"
	"github.com/park285/Cheese-BlindChess-bot/internal/httpapi"
	"github.com/park285/Cheese-BlindChess-bot/internal/msgcat"
	"github.com/park285/Cheese-BlindChess-bot/internal/obslog"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
	"github.com/park285/Cheese-BlindChess-bot/internal/redisutil"
	"github.com/park285/Cheese-BlindChess-bot/internal/render"
	"github.com/park285/Cheese-BlindChess-bot/internal/session"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		_, _ = os.Stderr.WriteString("obslog init: " + err.Error() + "\n")
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}
	if err := cfg.ValidateAPI(); err != nil {
		logger.Fatal("config_invalid", zap.Error(err))
	}
	policy, err := reconcile.ParsePolicy(cfg.DefaultPolicy)
	if err != nil {
		logger.Fatal("config_invalid", zap.Error(err))
	}
	cat, err := msgcat.New(cfg.Lang, cfg.MsgOverrideDir)
	if err != nil {
		logger.Fatal("msgcat_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	rdb, err := redisutil.Connect(cctx, cfg.RedisURL)
	cancel()
	if err != nil {
		logger.Fatal("redis_connect_error", zap.Error(err))
	}
	defer rdb.Close()

	sessions := session.NewStore(rdb, session.WithTTL(cfg.SessionTTL), session.WithLogger(obslog.Named("session")))
	api := httpapi.New(sessions,
		httpapi.WithLogger(obslog.Named("http")),
		httpapi.WithDescriber(msgcat.NewDescriber(cat)),
		httpapi.WithDefaultPolicy(policy),
		httpapi.WithRenderer(render.New(cfg.RenderSize)),
	)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http_serve_error", zap.Error(err))
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http_shutdown_error", zap.Error(err))
		}
	}
}
