package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"faceattend/internal/attendanceclient"
	"faceattend/internal/capture"
	"faceattend/internal/config"
	"faceattend/internal/device"
	"faceattend/internal/kiosk"
	"faceattend/internal/metrics"
	"faceattend/internal/notice"
	"faceattend/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := cfg.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	cfg.LogWarnings(logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewSubmissions(reg)

	client := attendanceclient.New(cfg.APIBaseURL, cfg.RequestTimeout, cfg.SubmitSkip).
		WithLogger(logger.Named("attendanceclient"))
	if cfg.SubmitSkip {
		logger.Warn("SUBMIT_SKIP set, submissions are answered locally")
	} else if err := client.Health(ctx); err != nil {
		logger.Warn("attendance service not reachable", zap.String("base_url", cfg.APIBaseURL), zap.Error(err))
	}

	board := notice.NewBoard(cfg.NoticeHistory)

	// With redis the board is fed directly and the list is left to noticeboard consumers.
	var (
		notifier    capture.Notifier
		redisClient *store.Redis
	)
	if cfg.NoticeBackend == "redis" {
		redisClient = store.OpenRedis(store.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() { _ = redisClient.Close() }()
		feed := notice.NewRedisFeed(redisClient.Client, cfg.NoticeKey, int64(cfg.NoticeHistory))
		notifier = notice.Fanout{board, notice.Notifier{Feed: feed}}
	} else {
		feed := notice.NewInMemory(64)
		notifier = notice.Notifier{Feed: feed}
		go func() {
			if err := board.Run(ctx, feed); err != nil {
				logger.Error("notice board stopped", zap.Error(err))
			}
		}()
	}

	opts := []capture.Option{
		capture.WithNotifier(notifier),
		capture.WithRecorder(recorder),
		capture.WithLogger(logger.Named("capture")),
	}
	if cfg.CameraCommand != "" {
		opts = append(opts,
			capture.WithCamera(device.NewCommandCamera(cfg.CameraCommand, cfg.SpoolDir)),
			capture.WithPermission(device.DevicePermission{Device: cfg.CameraDevice, Skip: cfg.CameraPermSkip}),
		)
	} else {
		logger.Info("CAMERA_COMMAND not set, camera capture disabled")
	}
	ctrl := capture.New(client, opts...)

	h := kiosk.New(ctrl, client, board, cfg.SpoolDir)
	if redisClient != nil {
		h.WithRedisHealth(redisClient.Healthy)
	}
	r := kiosk.NewRouter(h, kiosk.RouterConfig{RateLimitPerMin: cfg.RateLimitPerMin, Gatherer: reg})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		// A submission may take the whole request timeout plus local capture.
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting kiosk", zap.String("addr", srv.Addr), zap.String("api_base_url", cfg.APIBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down kiosk")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}

	logger.Info("kiosk exited")
	return nil
}
