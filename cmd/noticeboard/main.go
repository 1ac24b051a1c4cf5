package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"faceattend/internal/config"
	"faceattend/internal/notice"
	"faceattend/internal/store"
)

// Noticeboard drains the redis notice feed published by kiosks and logs each notice.
func main() {
	cfg := config.Load()

	logger, err := cfg.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	cfg.LogWarnings(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	redisClient := store.OpenRedis(store.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() { _ = redisClient.Close() }()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable, will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	feed := notice.NewRedisFeed(redisClient.Client, cfg.NoticeKey, int64(cfg.NoticeHistory))
	notices, err := feed.Consume(ctx)
	if err != nil {
		logger.Fatal("notice consume init failed", zap.Error(err))
	}

	logger.Info("noticeboard started", zap.String("key", cfg.NoticeKey))
	for n := range notices {
		logger.Info("notice",
			zap.String("id", n.ID),
			zap.String("kind", string(n.Kind)),
			zap.String("mode", n.Mode),
			zap.String("title", n.Title),
			zap.String("message", n.Message),
			zap.String("request_id", n.RequestID),
			zap.Time("at", n.At),
		)
	}
	logger.Info("noticeboard stopped")
}
