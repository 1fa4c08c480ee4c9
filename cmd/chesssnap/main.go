package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/park285/ChessSnap-PDF/internal/boardimg"
	appcfg "github.com/park285/ChessSnap-PDF/internal/config"
	"github.com/park285/ChessSnap-PDF/internal/msgcat"
	"github.com/park285/ChessSnap-PDF/internal/obslog"
	"github.com/park285/ChessSnap-PDF/internal/server"
	"github.com/park285/ChessSnap-PDF/internal/service/cache"
	"github.com/park285/ChessSnap-PDF/internal/service/scan"
	"github.com/park285/ChessSnap-PDF/internal/visionfast"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	logger := obslog.L()

	cat, err := msgcat.New(os.Getenv("MESSAGE_DIR"))
	if err != nil {
		logger.Fatal("message catalog init", zap.Error(err))
	}

	store, err := cache.New(cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		logger.Fatal("redis init", zap.Error(err))
	}
	defer store.Close()
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		cancel()
		logger.Fatal("redis unreachable", zap.Error(err))
	}
	cancel()

	var repo scan.Repository
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres init", zap.Error(err))
		}
		defer db.Close()
		repo = scan.NewRepository(db)
	} else {
		logger.Warn("DATABASE_URL not set, analysis history is in-memory only")
		repo = scan.NewMemoryRepository()
	}

	vision := visionfast.NewClient(cfg.VisionBaseURL)
	hub := server.NewHub()

	svc, err := scan.NewService(
		vision,
		vision,
		boardimg.NewRenderer(cfg.BoardRenderSize/8),
		store,
		repo,
		hub,
		scan.Config{
			MaxUploadBytes: int64(cfg.MaxUploadBytes),
			SessionTTL:     cfg.SessionTTL,
			HistoryLimit:   cfg.HistoryLimit,
		},
		logger,
	)
	if err != nil {
		logger.Fatal("scan service init", zap.Error(err))
	}

	srv, err := server.New(server.Config{
		ListenAddr:     cfg.ListenAddr,
		EventsAddr:     cfg.EventsAddr,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, svc, cat, hub)
	if err != nil {
		logger.Fatal("server init", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("listener failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
