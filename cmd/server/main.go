package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canteen/internal/config"
	"canteen/internal/handler"
	"canteen/internal/infrastructure/cache"
	"canteen/internal/infrastructure/database"
	"canteen/internal/infrastructure/lock"
	"canteen/internal/infrastructure/mq"
	"canteen/internal/job"
	"canteen/internal/logger"
	"canteen/internal/repository"
	"canteen/internal/service"
	"canteen/pkg/idgen"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(exitCode(log, run(cfg, log)))
}

// exitCode 退出前刷新日志，os.Exit 不会执行 defer
func exitCode(log *zap.Logger, err error) int {
	code := 0
	if err != nil {
		log.Error("服务异常退出", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	return code
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		return err
	}

	db, err := database.InitMySQL(&cfg.MySQL)
	if err != nil {
		return err
	}

	redisClient, err := cache.InitRedis(&cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	producer, err := mq.InitKafka(&cfg.Kafka)
	if err != nil {
		return err
	}
	defer producer.Close()

	biz := cfg.Business
	uow := repository.NewUnitOfWork(db, biz.MaxConflictRetries)
	locker := lock.NewKeyLocker(
		redisClient,
		time.Duration(biz.LockTTLSeconds)*time.Second,
		time.Duration(biz.LockRetryIntervalMs)*time.Millisecond,
		biz.LockMaxRetries,
	)

	var leaderboardCache service.LeaderboardCache
	if biz.LeaderboardCacheTTLSec > 0 {
		leaderboardCache = cache.NewLeaderboardCache(redisClient, time.Duration(biz.LeaderboardCacheTTLSec)*time.Second)
	}

	ledger := service.NewLedger(db)
	achievements := service.NewAchievementService(db, log)
	leaderboard := service.NewLeaderboardService(db, leaderboardCache, biz.LiveSampleSize, log)
	h := handler.NewHandler(handler.Services{
		Account:     service.NewAccountService(db, uow, locker, ledger, achievements, log),
		Order:       service.NewOrderService(db, uow, locker, ledger, achievements, leaderboard, cfg.Kafka.Topic.Purchase, log),
		Leaderboard: leaderboard,
		Achievement: achievements,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outboxSender := job.NewOutboxSender(db, producer, biz.MaxRetryCount, log)
	go outboxSender.Start(ctx)

	outboxCleaner := job.NewOutboxCleaner(db, time.Duration(biz.OutboxRetentionHours)*time.Hour, log)
	go outboxCleaner.Start(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.SetupRouter(h, log),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	log.Info("正在关闭服务...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("服务关闭异常", zap.Error(err))
	}

	log.Info("服务已关闭")
	return nil
}
