package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/app/migrate"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/cache"
	httpx "github.com/kingliujiaxin/Mutiple-user-blog-system/internal/http"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/repository/postgres"
	articlesvc "github.com/kingliujiaxin/Mutiple-user-blog-system/internal/service/article"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/service/auth"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/ws"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/pkg/config"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/pkg/logger"
)

func main() {
	cfg := config.LoadAppConfig()
	log := logger.New("blog", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)

	feed := cache.NewNoopCache()
	if addr := strings.TrimSpace(cfg.FeedCacheAddr); addr != "" {
		redisFeed, err := cache.NewRedisCache(addr, cfg.FeedCachePass, cfg.FeedCacheDB, cfg.FeedCacheTTL, log)
		if err != nil {
			log.Warn("redis feed cache unavailable", "error", err)
		} else {
			feed = redisFeed
		}
	}
	defer feed.Close()

	commentHub := ws.NewHub()

	authSvc := auth.New(repo, log, cfg)
	articleSvc := articlesvc.New(repo, feed, commentHub, log)

	router := httpx.NewRouter(log, authSvc, articleSvc, cfg, pool.Ping)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("blog server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("blog server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
