package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zoombridge/zoombridge/internal/browser"
	"github.com/zoombridge/zoombridge/internal/command"
	"github.com/zoombridge/zoombridge/internal/config"
	"github.com/zoombridge/zoombridge/internal/controller"
	"github.com/zoombridge/zoombridge/internal/gateway"
	"github.com/zoombridge/zoombridge/internal/httpx"
	"github.com/zoombridge/zoombridge/internal/logx"
	"github.com/zoombridge/zoombridge/internal/metrics"
	"github.com/zoombridge/zoombridge/internal/sched"
	"github.com/zoombridge/zoombridge/internal/session"
	"github.com/zoombridge/zoombridge/internal/status"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.Config
	cfg.BindFlags()
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "zoombridge version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("zoombridge version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}

	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	logBuf := logx.NewBuffer(500)
	logx.Configure(cfg.LogLevel, logBuf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logx.Log.Warn().Msg("termination requested")
		cancel()
	}()

	bridge := browser.NewBridge(logx.Log)
	sess := session.New(browser.NewSDK(bridge), browser.NewDom(bridge), sched.Clock{}, logx.Log)
	defer sess.Close()
	dispatcher := command.NewDispatcher(command.Handlers(sess)...)
	gw := gateway.New(cfg.ServerURL, cfg.Reconnect, logx.Log)
	gw.OnOpen(func() { metrics.SetConnectedToServer(true) })
	gw.OnClose(func() { metrics.SetConnectedToServer(false) })
	ctrl := controller.New(gw, sess.Events(), dispatcher, logBuf, logx.Log)

	r := chi.NewRouter()
	r.Get("/page", bridge.Handler())
	addr, err := httpx.ServeUntilContext(ctx, cfg.BrowserAddr, r)
	if err != nil {
		logx.Log.Fatal().Err(err).Str("addr", cfg.BrowserAddr).Msg("start browser endpoint")
	}
	logx.Log.Info().Str("addr", addr).Msg("browser endpoint started")

	if cfg.StatusAddr != "" {
		info := status.Info{
			Version:       version,
			StartedAt:     time.Now(),
			ControlStatus: func() string { return string(gw.Status()) },
			PageConnected: bridge.Connected,
			Session:       sess.State,
		}
		if _, err := status.StartStatusServer(ctx, cfg.StatusAddr, info); err != nil {
			logx.Log.Fatal().Err(err).Msg("start status server")
		}
	}
	if cfg.MetricsAddr != "" {
		if _, err := metrics.StartMetricsServer(ctx, cfg.MetricsAddr); err != nil {
			logx.Log.Fatal().Err(err).Msg("start metrics server")
		}
	}

	go ctrl.Run(ctx)

	if err := gw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logx.Log.Error().Err(err).Msg("control channel terminated")
		os.Exit(1)
	}
}
