package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rankfeed/rankfeed/internal/config"
	"github.com/rankfeed/rankfeed/internal/repository"
	"github.com/rankfeed/rankfeed/internal/services"
	"github.com/rankfeed/rankfeed/internal/workers"
	"github.com/rankfeed/rankfeed/pkg/cache"
	"github.com/rankfeed/rankfeed/pkg/logger"
	"github.com/rankfeed/rankfeed/pkg/queue"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	logger.Info("Starting RankFeed worker...")

	// 初始化数据库
	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// 初始化Redis缓存
	redisClient := cache.NewRedisClient(
		cfg.Redis.Addr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
		cfg.Redis.MinIdleConns,
	)
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisClient.Ping(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	// 初始化Kafka消费者；worker 只校正计数和清理缓存，不发布事件
	feedEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.FeedEvents, cfg.Kafka.GroupID, logger)

	svc := services.New(services.Options{
		DB:          db,
		Cache:       redisClient,
		IdentityTTL: cfg.Feed.IdentityCacheTTL,
		GraphTTL:    cfg.Feed.GraphCacheTTL,
		Logger:      logger,
	})

	feedWorker := workers.NewFeedWorker(svc.Engagement, svc.Graph, feedEventsConsumer, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := feedWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("Feed worker stopped with error")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-done:
	}

	logger.Info("Shutting down worker...")
	cancel()
	<-done

	if err := feedWorker.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop feed worker")
	}

	logger.Info("Worker exited")
}
