// Command irischeck verifies the Iris endpoints the blind chess bot depends on.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/park285/Cheese-BlindChess-bot/internal/config"
	"github.com/park285/Cheese-BlindChess-bot/internal/irisfast"
	"github.com/park285/Cheese-BlindChess-bot/internal/obslog"
)

func main() {
	room := flag.String("room", "", "send a test reply to this room")
	watch := flag.Duration("watch", 10*time.Second, "how long to print websocket messages")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "obslog init:", err)
	}
	defer obslog.Sync()
	logger := obslog.Named("irischeck")

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}
	if cfg.IrisBaseURL == "" {
		logger.Fatal("IRIS_BASE_URL is required")
	}

	headers := func() map[string]string {
		m := map[string]string{}
		if cfg.XUserID != "" {
			m["X-User-Id"] = cfg.XUserID
		}
		if cfg.XUserEmail != "" {
			m["X-User-Email"] = cfg.XUserEmail
		}
		if cfg.XSessionID != "" {
			m["X-Session-Id"] = cfg.XSessionID
		}
		return m
	}
	client := irisfast.NewClient(cfg.IrisBaseURL,
		irisfast.WithHeaderProvider(headers),
		irisfast.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ic, err := client.GetConfig(ctx); err != nil {
		logger.Error("iris_config_failed", zap.Error(err))
	} else {
		logger.Info("iris_config_ok",
			zap.Int("port", ic.Port),
			zap.Int("polling", ic.PollingSpeed),
			zap.Int("rate", ic.MessageRate),
			zap.String("endpoint", ic.WebserverEndpoint),
		)
	}
	if *room != "" {
		if err := client.SendMessage(ctx, *room, "♞ blind chess irischeck"); err != nil {
			logger.Error("iris_reply_failed", zap.String("room", *room), zap.Error(err))
		}
	}

	if cfg.IrisWSURL == "" {
		logger.Info("IRIS_WS_URL not set; skipping WS check")
		return
	}
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 0, time.Second)
	ws.SetHeaderProvider(headers)
	ws.SetLogger(logger)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.String("state", state.String()))
	})
	ws.OnMessage(func(msg *irisfast.Message) {
		fmt.Printf("WS msg room=%s from=%s user=%s text=%q\n", msg.Room, msg.SenderName("?"), msg.UserID(), msg.Msg)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		logger.Error("ws_connect_failed", zap.Error(err))
		return
	}
	time.Sleep(*watch)
	_ = ws.Close(context.Background())
}
