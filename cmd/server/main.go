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

	"github.com/kdimtricp/paintestimator/internal/api"
	"github.com/kdimtricp/paintestimator/internal/cache"
	"github.com/kdimtricp/paintestimator/internal/config"
	"github.com/kdimtricp/paintestimator/internal/database"
	"github.com/kdimtricp/paintestimator/internal/preview"
	"github.com/kdimtricp/paintestimator/internal/storage"
	"github.com/kdimtricp/paintestimator/internal/transport"
	"github.com/kdimtricp/paintestimator/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	localStorage, err := storage.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}

	db, err := database.NewDB(database.Config{SQLitePath: cfg.DBPath, Logger: logger})
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	estimates := database.NewEstimateRepository(db)

	client := transport.NewClient(transport.Config{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, logger)

	deps := view.Deps{
		Transport: client,
		Storage:   localStorage,
		History:   estimates,
		Logger:    logger,
	}

	if cfg.RedisAddr != "" {
		resultCache, err := cache.Connect(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			TTL:      cfg.CacheTTL,
		}, logger)
		if err != nil {
			logger.Warn("result cache disabled", zap.Error(err))
		} else {
			defer resultCache.Close()
			deps.Cache = resultCache
		}
	}

	inspector, err := preview.NewInspector(logger)
	if err != nil {
		logger.Warn("video previews disabled", zap.Error(err))
		inspector = nil
	} else {
		defer inspector.Cleanup()
	}
	deps.Previews = preview.NewLoader(cfg.PreviewSize, inspector, logger)

	views := view.NewManager(deps)
	defer views.Close()
	go expireViews(ctx, views, cfg.ViewTTL)

	app := &api.App{
		Views:         views,
		History:       estimates,
		Backend:       client,
		Storage:       localStorage,
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        logger,
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting",
		zap.String("port", cfg.Port),
		zap.String("estimator", cfg.BaseURL),
		zap.String("upload_dir", cfg.UploadDir),
		zap.String("db_path", cfg.DBPath),
		zap.Bool("cache", deps.Cache != nil),
		zap.Int64("max_upload_size", cfg.MaxUploadSize),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func expireViews(ctx context.Context, views *view.Manager, maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(maxAge / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			views.Expire(maxAge)
		case <-ctx.Done():
			return
		}
	}
}
