package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"

	"worldview/client"
)

// worldview 入口：连接世界服务器并打开地图窗口
func main() {
	cfg := client.DefaultConfig()
	var logFile, debugAddr string
	flag.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "world server websocket url")
	flag.StringVar(&cfg.Name, "name", cfg.Name, "display name used when joining")
	flag.StringVar(&cfg.BackdropPath, "backdrop", cfg.BackdropPath, "world map image")
	flag.Float64Var(&cfg.WorldWidth, "world-width", cfg.WorldWidth, "world width in world units")
	flag.Float64Var(&cfg.WorldHeight, "world-height", cfg.WorldHeight, "world height in world units")
	flag.IntVar(&cfg.WindowWidth, "width", cfg.WindowWidth, "initial window width")
	flag.IntVar(&cfg.WindowHeight, "height", cfg.WindowHeight, "initial window height")
	flag.Float64Var(&cfg.MaxFPS, "max-fps", cfg.MaxFPS, "redraw rate limit, 0 = unlimited")
	flag.StringVar(&logFile, "log", "client.log", "log file path")
	flag.StringVar(&debugAddr, "debug", "", "debug http listen address, e.g. :6060 (empty disables)")
	flag.Parse()

	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := client.InitLogger(logFile); err != nil {
		panic(err)
	}
	defer func() { _ = client.SyncLogger() }()

	c, err := client.New(cfg)
	if err != nil {
		client.Log.Fatalf("init client: %v", err)
	}

	if debugAddr != "" {
		srv := &http.Server{Addr: debugAddr, Handler: client.DebugMux(c.Metrics())}
		go func() {
			client.Log.Infof("debug endpoints on %s", debugAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				client.Log.Errorf("debug listen: %v", err)
			}
		}()
		defer srv.Close()
	}

	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		c.RequestQuit()
	}()

	ebiten.SetWindowSize(cfg.WindowWidth, cfg.WindowHeight)
	ebiten.SetWindowTitle("worldview - " + cfg.Name)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	// 只在状态变化后重绘，保留上一帧画面
	ebiten.SetScreenClearedEveryFrame(false)

	c.Start()
	if err := ebiten.RunGame(c); err != nil && !errors.Is(err, ebiten.Termination) {
		client.Log.Errorf("run: %v", err)
	}
	stop()
	if err := c.Close(); err != nil {
		client.Log.Warnf("shutdown: %v", err)
	}
	client.Log.Info("Shutting down...")
}
