// sorcerio-client sorcerio 服务端的桌面客户端
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"github.com/Flying-Toast/sorcerio/client"
	"github.com/Flying-Toast/sorcerio/protocol"
	"github.com/Flying-Toast/sorcerio/render"
)

func main() {
	addr := flag.String("addr", "http://localhost:80", "server base URL")
	room := flag.String("room", "", "room to join (empty for the default room)")
	nickname := flag.String("nickname", "", "nickname shown to other players")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	zcfg := zap.NewDevelopmentConfig()
	if !*debug {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	meta, err := client.FetchMeta(ctx, *addr, *room)
	if err != nil {
		cancel()
		sugar.Fatalw("could not load server metadata", "addr", *addr, "error", err)
	}
	wsURL, err := client.WSURL(*addr, *room)
	if err != nil {
		cancel()
		sugar.Fatalw("bad server address", "addr", *addr, "error", err)
	}
	conn, err := client.Dial(ctx, wsURL, protocol.Join{Nickname: *nickname}, sugar)
	cancel()
	if err != nil {
		sugar.Fatalw("could not connect", "url", wsURL, "error", err)
	}
	defer conn.Close()

	session := client.NewSession(meta, sugar)
	ebiten.SetWindowSize(1280, 720)
	ebiten.SetWindowTitle("sorcerio")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(render.NewGame(conn, session, sugar)); err != nil && !errors.Is(err, render.ErrQuit) {
		sugar.Errorw("game stopped", "error", err)
	}
	st := conn.Snapshot()
	sugar.Infow("disconnected", "updates", st.Updates, "inputs_sent", st.InputsSent)
}
