package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/app"
	appcfg "github.com/park285/chess-arena/internal/config"
	"github.com/park285/chess-arena/internal/httpapi"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/observe"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("arena_init_failed", zap.Error(err))
	}

	hub := observe.NewHub(a.Controller.Bus(), a.Controller.Snapshot, logger.Named("observe"))

	api := httpapi.NewApp(httpapi.Deps{
		Arena:         a.Controller,
		Archive:       a.Archive,
		Models:        a.Provider,
		DefaultModels: appcfg.DefaultModels,
		Logger:        logger.Named("http"),
	})

	// fasthttp cannot hand a hijacked conn to net/http handlers, so the feed
	// gets its own listener
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	wsServer := &http.Server{Addr: cfg.WSAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("ws_listen", zap.String("addr", cfg.WSAddr))
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ws_server_failed", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr))
		if err := api.Listen(cfg.HTTPAddr); err != nil {
			logger.Error("http_server_failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		logger.Warn("arena_close_failed", zap.Error(err))
	}
	_ = wsServer.Shutdown(ctx)
	_ = api.ShutdownWithContext(ctx)
}
