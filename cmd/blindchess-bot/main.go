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

	"github.com/park285/Cheese-BlindChess-bot/internal/adapter/blindpresenter"
	"github.com/park285/Cheese-BlindChess-bot/internal/bot"
	appcfg "github.com/park285/Cheese-BlindChess-bot/internal/config"
	"github.com/park285/Cheese-BlindChess-bot/internal/httpapi"
	"github.com/park285/Cheese-BlindChess-bot/internal/irisfast"
	"github.com/park285/Cheese-BlindChess-bot/internal/match"
	"github.com/park285/Cheese-BlindChess-bot/internal/msgcat"
	"github.com/park285/Cheese-BlindChess-bot/internal/obslog"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
	"github.com/park285/Cheese-BlindChess-bot/internal/redisutil"
	"github.com/park285/Cheese-BlindChess-bot/internal/render"
	"github.com/park285/Cheese-BlindChess-bot/internal/session"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		// 로거 초기화 실패 시 nop 로거로 계속
		_, _ = os.Stderr.WriteString("obslog init: " + err.Error() + "\n")
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}
	if err := cfg.ValidateBot(); err != nil {
		logger.Fatal("config_invalid", zap.Error(err))
	}
	policy, err := reconcile.ParsePolicy(cfg.DefaultPolicy)
	if err != nil {
		logger.Fatal("config_invalid", zap.Error(err))
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cctx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
	rdb, err := redisutil.Connect(cctx, cfg.RedisURL)
	cancel()
	if err != nil {
		logger.Fatal("redis_connect_error", zap.Error(err))
	}
	defer rdb.Close()

	cat, err := msgcat.New(cfg.Lang, cfg.MsgOverrideDir)
	if err != nil {
		logger.Fatal("msgcat_error", zap.Error(err))
	}
	describer := msgcat.NewDescriber(cat)

	// 결과 저장소: DATABASE_URL 이 없으면 메모리
	repo := match.NewMemoryRepository()
	if cfg.DatabaseURL != "" {
		pg, err := match.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres_error", zap.Error(err))
		}
		defer pg.Close()
		mctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
		err = pg.Migrate(mctx)
		cancel()
		if err != nil {
			logger.Fatal("postgres_migrate_error", zap.Error(err))
		}
		repo = pg
	}

	sessions := session.NewStore(rdb,
		session.WithTTL(cfg.SessionTTL),
		session.WithLogger(obslog.Named("session")),
	)
	matches := match.NewManager(rdb,
		match.WithTTL(cfg.MatchTTL),
		match.WithRepository(repo),
		match.WithDescriber(describer),
		match.WithLogger(obslog.Named("match")),
	)
	renderer := render.New(cfg.RenderSize)

	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.XUserID != "" {
			h["X-User-Id"] = cfg.XUserID
		}
		if cfg.XUserEmail != "" {
			h["X-User-Email"] = cfg.XUserEmail
		}
		if cfg.XSessionID != "" {
			h["X-Session-Id"] = cfg.XSessionID
		}
		return h
	}
	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(headers))
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
	ws.SetHeaderProvider(headers)
	ws.SetLogger(obslog.Named("iris_ws"))
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.String("state", state.String()))
	})
	egress := irisfast.NewEgress(cfg.EgressMode, false, client, ws, obslog.Named("egress"))

	presenter := blindpresenter.NewPresenter(egress.SendText, egress.SendImage)
	formatter := blindpresenter.NewFormatter(cat, blindpresenter.StaticPrefix(cfg.BotPrefix))
	handler := bot.New(bot.Deps{
		Sessions:      sessions,
		Matches:       matches,
		Renderer:      renderer,
		Formatter:     formatter,
		Presenter:     presenter,
		Logger:        obslog.Named("bot"),
		Prefix:        cfg.BotPrefix,
		DefaultPolicy: policy,
		RoomAllowed:   cfg.RoomAllowed,
	})

	ws.OnMessage(func(msg *irisfast.Message) {
		if !handler.Accepts(msg) {
			return
		}
		// WS 수신 루프를 막지 않는다
		go func() {
			ctx, cancel := context.WithTimeout(rootCtx, 30*time.Second)
			defer cancel()
			if err := handler.Handle(ctx, msg); err != nil {
				logger.Warn("reply_failed", zap.String("room", msg.Room), zap.Error(err))
			}
		}()
	})

	var apiSrv *http.Server
	if cfg.HTTPAddr != "" {
		api := httpapi.New(sessions,
			httpapi.WithLogger(obslog.Named("http")),
			httpapi.WithDescriber(describer),
			httpapi.WithDefaultPolicy(policy),
			httpapi.WithRenderer(renderer),
		)
		apiSrv = &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr))
			if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http_serve_error", zap.Error(err))
			}
		}()
	}

	cctx, cancel = context.WithTimeout(rootCtx, 10*time.Second)
	err = ws.Connect(cctx)
	cancel()
	if err != nil {
		logger.Fatal("ws_connect_error", zap.Error(err))
	}
	logger.Info("blindchess_bot_started",
		zap.String("prefix", cfg.BotPrefix),
		zap.String("egress", cfg.EgressMode),
		zap.String("policy", string(policy)),
		zap.String("lang", cat.Lang()),
	)

	<-rootCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if apiSrv != nil {
		_ = apiSrv.Shutdown(shutdownCtx)
	}
	_ = ws.Close(shutdownCtx)
}
