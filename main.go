package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/Flying-Toast/sorcerio/server"
)

// sorcerio 服务端：静态资源、元数据与权威游戏 WebSocket 共用一个端口
func main() {
	cfg, err := server.Load(os.Args[1:], os.Getenv, log.Printf)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := server.InitLogger(cfg.Log); err != nil {
		log.Fatalf("logger: %v", err)
	}

	runErr := run(cfg)
	if runErr != nil {
		server.Log.Errorw("server exited", "error", runErr)
	}
	// 日志本身可能已失效，合并后的错误直接写到 stderr
	if err := multierr.Append(runErr, server.SyncLogger()); err != nil {
		log.Printf("exit: %v", err)
		os.Exit(1)
	}
}

func run(cfg server.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(ctx, cfg)
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		server.Log.Infow("sorcerio listening", "addr", cfg.Addr, "public", cfg.PublicDir, "tick_rate", cfg.Room.TickRate)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("listen: %w", err)
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	server.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return multierr.Combine(
		httpSrv.Shutdown(shutdownCtx),
		<-errc,
	)
}
