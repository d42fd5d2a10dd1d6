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

	"github.com/rankfeed/rankfeed/internal/config"
	"github.com/rankfeed/rankfeed/internal/handlers"
	"github.com/rankfeed/rankfeed/internal/middleware"
	"github.com/rankfeed/rankfeed/internal/repository"
	"github.com/rankfeed/rankfeed/internal/services"
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
	logger.Info("Starting RankFeed API server...")

	// 初始化数据库
	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	// 初始化Redis缓存
	redisClient := cache.NewRedisClient(
		cfg.Redis.Addr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
		cfg.Redis.MinIdleConns,
	)
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	// 初始化Kafka生产者
	feedEventsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.FeedEvents)
	defer feedEventsProducer.Close()

	storageProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.StorageDeletions)
	defer storageProducer.Close()

	// 初始化服务
	svc := services.New(services.Options{
		DB:          db,
		Cache:       redisClient,
		Events:      feedEventsProducer,
		Storage:     storageProducer,
		IdentityTTL: cfg.Feed.IdentityCacheTTL,
		GraphTTL:    cfg.Feed.GraphCacheTTL,
		Logger:      logger,
	})

	auth := middleware.NewAuthenticator(&cfg.JWT, svc.Identity)
	router := handlers.NewRouter(svc, auth, cfg.Server.Mode)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func init() {
	if err := os.MkdirAll("configs", 0755); err != nil {
		log.Printf("Failed to create directory configs: %v", err)
	}

	// 创建默认配置文件（如果不存在）
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := createDefaultConfig(configPath); err != nil {
			log.Printf("Failed to create default config: %v", err)
		}
	}
}

func createDefaultConfig(path string) error {
	defaultConfig := `server:
  port: ":8080"
  mode: "debug"
  read_timeout: 30s
  write_timeout: 30s

database:
  host: "localhost"
  port: 5432
  user: "rankfeed"
  password: "rankfeed"
  dbname: "rankfeed"
  sslmode: "disable"
  max_open_conns: 50
  max_idle_conns: 10
  log_sql: false

redis:
  host: "localhost"
  port: 6379
  password: ""
  db: 0
  pool_size: 50
  min_idle_conns: 5

kafka:
  brokers:
    - "localhost:9092"
  group_id: "rankfeed-worker"
  topics:
    feed_events: "feed-events"
    storage_deletions: "storage-deletions"

jwt:
  secret: "change-me-in-production"
  issuer: "rankfeed"
  expire_time: 24h

feed:
  default_page_size: 20
  max_page_size: 100
  identity_cache_ttl: 10m   # 外部身份到内部用户ID的缓存
  graph_cache_ttl: 5m       # 关注集合缓存

log:
  level: "info"
  format: "json"`

	return os.WriteFile(path, []byte(defaultConfig), 0644)
}
