// Package main запускает HTTP-сервер сервиса заказа еды.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/food-ordering-system/internal/cache"
	"github.com/mmeshcher/food-ordering-system/internal/config"
	"github.com/mmeshcher/food-ordering-system/internal/handler"
	"github.com/mmeshcher/food-ordering-system/internal/middleware"
	"github.com/mmeshcher/food-ordering-system/internal/repository"
	"github.com/mmeshcher/food-ordering-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		sugar.Warnw("failed to load .env", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	opts := []service.Option{service.WithStrictTransitions(cfg.StrictStatusTransitions)}
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			sugar.Warnw("redis unavailable, menu cache disabled", "addr", cfg.RedisAddress, "error", err.Error())
		} else {
			opts = append(opts, service.WithMenuCache(cache.NewRedisMenuCache(rdb)))
			sugar.Infow("menu cache enabled", "addr", cfg.RedisAddress)
		}
	}

	svc := service.NewService(repo, logger, opts...)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, cfg.CORSAllowedOrigins)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting food ordering server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// openRepository выбирает хранилище по схеме DATABASE_URI.
func openRepository(ctx context.Context, cfg *config.Config) (service.Repository, error) {
	if strings.HasPrefix(cfg.DatabaseURI, "mongodb://") || strings.HasPrefix(cfg.DatabaseURI, "mongodb+srv://") {
		db, err := repository.ConnectMongoDB(ctx, cfg.DatabaseURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return repository.NewMongoRepository(ctx, db)
	}
	return repository.NewPostgresRepository(cfg.DatabaseURI)
}
