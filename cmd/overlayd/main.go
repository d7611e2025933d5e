package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/kline_agent/internal/api"
	"github.com/dgnsrekt/kline_agent/internal/chartbridge"
	"github.com/dgnsrekt/kline_agent/internal/cloudsync"
	"github.com/dgnsrekt/kline_agent/internal/config"
	"github.com/dgnsrekt/kline_agent/internal/controller"
	"github.com/dgnsrekt/kline_agent/internal/engine"
	"github.com/dgnsrekt/kline_agent/internal/localstore"
	"github.com/dgnsrekt/kline_agent/internal/netutil"
	"github.com/dgnsrekt/kline_agent/internal/overlaystore"
	"github.com/dgnsrekt/kline_agent/internal/relay"
	"github.com/dgnsrekt/kline_agent/internal/session"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("overlayd config loaded",
		"bind_addr", cfg.BindAddr,
		"engine", cfg.Engine,
		"store_backend", cfg.StoreBackend,
		"symbol", cfg.Symbol,
		"auto_save_ms", cfg.AutoSaveMS,
		"cloud_provider", cfg.CloudProvider,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.BindCandidates(), cfg.BindFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		slog.Error("failed to open local store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	cloud, err := buildCloudProvider(cfg)
	if err != nil {
		slog.Error("failed to build cloud provider", "provider", cfg.CloudProvider, "error", err)
		os.Exit(1)
	}

	eng, closeEngine, err := buildEngine(cfg)
	if err != nil {
		slog.Error("failed to build engine", "engine", cfg.Engine, "error", err)
		os.Exit(1)
	}
	defer closeEngine()

	storage := overlaystore.NewStorage(store, cfg.Symbol, cloud)
	broker := relay.NewBroker()

	coord := session.New(eng, storage, broker, session.Config{
		Symbol:   cfg.Symbol,
		GroupID:  cfg.GroupID,
		AutoSave: time.Duration(cfg.AutoSaveMS) * time.Millisecond,
	})
	if err := coord.Start(context.Background()); err != nil {
		slog.Error("failed to start overlay session", "error", err)
		os.Exit(1)
	}
	defer coord.Stop()

	svc := controller.NewService(eng, coord, storage, store)
	h := api.NewServer(svc, broker)

	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("overlayd listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("overlayd server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("overlayd shutdown failed", "error", err)
	}
}

func buildStore(cfg *config.Config) (localstore.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, err
		}
		s, err := localstore.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Debug("sqlite store close failed", "error", err)
			}
		}, nil
	default:
		s, err := localstore.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func buildCloudProvider(cfg *config.Config) (overlaystore.CloudProvider, error) {
	switch cfg.CloudProvider {
	case config.CloudHTTP:
		return cloudsync.NewHTTPProvider(cfg.CloudEndpoint, nil), nil
	case config.CloudS3:
		return cloudsync.NewS3Provider(context.Background(), cfg.CloudBucket, cfg.CloudPrefix)
	default:
		return nil, nil
	}
}

func buildEngine(cfg *config.Config) (engine.Engine, func(), error) {
	if cfg.Engine == config.EngineSim {
		return engine.NewSim(), func() {}, nil
	}

	bridge := chartbridge.New(cfg.CDPURL(), cfg.TabURLFilter, time.Duration(cfg.EvalTimeoutMS)*time.Millisecond)
	if err := bridge.Connect(context.Background()); err != nil {
		return nil, nil, err
	}
	return bridge, func() {
		if err := bridge.Close(); err != nil {
			slog.Debug("chart bridge close failed", "error", err)
		}
	}, nil
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
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
