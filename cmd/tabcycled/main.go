package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/dgnsrekt/tabcycle/internal/api"
	"github.com/dgnsrekt/tabcycle/internal/browser"
	"github.com/dgnsrekt/tabcycle/internal/config"
	"github.com/dgnsrekt/tabcycle/internal/controller"
	"github.com/dgnsrekt/tabcycle/internal/cycle"
	"github.com/dgnsrekt/tabcycle/internal/gate"
	"github.com/dgnsrekt/tabcycle/internal/journal"
	"github.com/dgnsrekt/tabcycle/internal/kv"
	"github.com/dgnsrekt/tabcycle/internal/metrics"
	"github.com/dgnsrekt/tabcycle/internal/netutil"
	"github.com/dgnsrekt/tabcycle/internal/reactor"
	"github.com/dgnsrekt/tabcycle/internal/recency"
	"github.com/dgnsrekt/tabcycle/internal/relay"
	"github.com/dgnsrekt/tabcycle/internal/types"
	"github.com/jonboulle/clockwork"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("tabcycled config loaded",
		"cdp_url", cfg.CDPURL(),
		"bind_addr", cfg.BindAddr,
		"store", cfg.StoreBackend,
		"store_path", cfg.StorePath,
		"cycle_gated", cfg.CycleGated,
		"journal_dir", cfg.JournalDir,
		"poll_interval_ms", cfg.PollIntervalMS,
		"log_level", cfg.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("tabcycled failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.LaunchConfig{
			Address:    cfg.CDPAddress,
			Port:       cfg.CDPPort,
			BinaryPath: cfg.BrowserPath,
			ProfileDir: cfg.ProfileDir,
			Headless:   cfg.Headless,
		})
		if err := launcher.Launch(ctx); err != nil {
			return err
		}
		defer launcher.Stop()
	}

	backing, err := kv.Open(ctx, kv.Config{
		Backend:   cfg.StoreBackend,
		Path:      cfg.StorePath,
		RedisAddr: cfg.RedisAddr,
		RedisDB:   cfg.RedisDB,
		RedisKey:  cfg.RedisKey,
	})
	if err != nil {
		return err
	}
	defer func() { _ = backing.Close() }()
	store := recency.NewStore(backing)

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	g := gate.New(gate.WithWaitObserver(m.ObserveGateWait))
	broker := relay.NewBroker()

	var jw *journal.Writer
	if cfg.JournalDir != "" {
		jw, err = journal.New(cfg.JournalDir, cfg.JournalBuffer, cfg.JournalSizeMB, clockwork.NewRealClock())
		if err != nil {
			return err
		}
		defer func() { _ = jw.Close() }()
	}

	client := browser.NewClient(cfg.CDPURL(), browser.WithPollInterval(cfg.PollInterval()))
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()
	var tabs types.TabSurface = client

	rx := reactor.New(store, tabs,
		reactor.WithGate(g),
		reactor.WithNotifier(broker),
		reactor.WithMetrics(m),
		reactor.WithJournal(jw),
	)
	cycleOpts := []cycle.Option{cycle.WithNotifier(broker), cycle.WithMetrics(m), cycle.WithJournal(jw)}
	if cfg.CycleGated {
		cycleOpts = append(cycleOpts, cycle.WithGate(g))
	}
	cycler := cycle.New(store, tabs, cycleOpts...)

	events, err := client.Watch(ctx)
	if err != nil {
		return err
	}
	// The event channel closes early only when the browser connection is
	// lost; the daemon then exits so a supervisor can restart it.
	watchDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(watchDone)
		rx.Run(ctx, events)
	}()

	svc := controller.NewService(store, tabs, cycler, rx,
		controller.WithGate(g),
		controller.WithNotifier(broker),
	)
	h := api.NewServer(svc,
		api.WithStream(relay.SSEHandler(broker, clockwork.NewRealClock())),
		api.WithMetrics(metrics.Handler(reg)),
	)

	ln, err := netutil.Listen(cfg.BindAddr, cfg.BindCandidates, cfg.BindFallback)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	serveErr := make(chan error, 1)
	go func() {
		addr := ln.Addr().String()
		slog.Info("tabcycled listening", "addr", addr, "docs", "http://"+addr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// SIGUSR1 runs the cycle command so a desktop hotkey can bind to
	// `pkill -USR1 tabcycled`.
	hotkey := make(chan os.Signal, 1)
	signal.Notify(hotkey, syscall.SIGUSR1)
	defer signal.Stop(hotkey)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-serveErr:
			runErr = err
			break loop
		case <-watchDone:
			if ctx.Err() == nil {
				runErr = types.NewError(types.CodeCDPUnavailable, "browser connection lost", nil)
			}
			break loop
		case <-hotkey:
			cycler.HandleCommand(ctx, types.CycleCommand)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	wg.Wait()
	slog.Info("tabcycled stopped")
	return runErr
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
