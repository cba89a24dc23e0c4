package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/CallumBoase/PDF2Audio/api"
	"github.com/CallumBoase/PDF2Audio/api/handler"
	"github.com/CallumBoase/PDF2Audio/api/middleware"
	appconfig "github.com/CallumBoase/PDF2Audio/config"
	"github.com/CallumBoase/PDF2Audio/internal/cache"
	"github.com/CallumBoase/PDF2Audio/internal/document"
	"github.com/CallumBoase/PDF2Audio/internal/services"
	"github.com/CallumBoase/PDF2Audio/pkg/storage"
	"github.com/CallumBoase/PDF2Audio/pkg/taskqueue"
)

func main() {
	// 加载 .env 文件（不存在时忽略）
	_ = godotenv.Load()

	// 解析命令行参数
	var (
		configFile = flag.String("config", "", "Path to config file")
		mode       = flag.String("mode", "release", "Run mode (debug/release)")
	)
	flag.Parse()

	// 加载配置
	cfg, err := appconfig.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 环境变量里的密钥优先于配置文件
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.TTS.APIKey = key
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Queue.RedisAddr = addr
		cfg.Cache.Address = addr
	}

	// 设置Gin模式
	gin.SetMode(*mode)

	// 初始化日志
	logger := setupLogger(cfg.Logging)
	logger.Info("Starting PDF2Audio server...")

	// 创建文件存储服务
	fileStorage, err := setupStorage(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 创建音频分块缓存
	var audioCache cache.Cache
	if cfg.Cache.Enable {
		audioCache, err = setupCache(cfg.Cache)
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
	}

	// 初始化任务队列（如果启用）
	var queue taskqueue.Queue
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("Task queue initialized successfully")
	}

	// 创建文本清理器和分段器
	normalizer := document.NewTextNormalizer()
	splitterConfig := document.DefaultSplitterConfig()
	if cfg.Document.MaxChunkSize > 0 {
		splitterConfig.MaxChunkSize = cfg.Document.MaxChunkSize
	}
	splitter := document.NewTextSplitter(splitterConfig)

	// 创建转换服务
	serviceOptions := []services.ConversionOption{
		services.WithLogger(logger),
		services.WithMaxWorkers(cfg.TTS.MaxWorkers),
		services.WithTimeout(time.Duration(cfg.TTS.Timeout) * time.Second),
		services.WithDefaultAPIKey(cfg.TTS.APIKey),
		services.WithWorkDir(cfg.Document.WorkDir),
	}
	if audioCache != nil {
		serviceOptions = append(serviceOptions,
			services.WithAudioCache(audioCache),
			services.WithAudioCacheTTL(time.Duration(cfg.Cache.TTL)*time.Second),
		)
	}
	if queue != nil {
		serviceOptions = append(serviceOptions,
			services.WithTaskQueue(queue),
			services.WithAsyncProcessing(true),
		)
		logger.Info("Conversions will be processed via async task queue")
	}

	conversionService := services.NewConversionService(
		fileStorage,
		normalizer,
		splitter,
		serviceOptions...,
	)

	// 启动任务队列工作者
	if queue != nil {
		redisQueue, ok := queue.(*taskqueue.RedisQueue)
		if !ok {
			logger.Fatal("Task queue worker requires a redis queue")
		}

		worker := taskqueue.NewRedisWorker(redisQueue, nil)
		services.RegisterTaskHandlers(worker, conversionService, logger)

		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start task queue worker: %v", err)
		}
		defer worker.Stop()
	}

	// 初始化API处理器并设置路由
	conversionHandler := handler.NewConversionHandler(conversionService)
	r := api.SetupRouter(conversionHandler)

	// 启动HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // 同步转换可能耗时较长
	}

	// 优雅关闭
	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// 创建带超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger 设置日志系统
func setupLogger(cfg appconfig.LoggingConfig) *logrus.Logger {
	logger := middleware.GetLogger()

	switch cfg.Level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.File != "" {
		middleware.EnableFileLogging(cfg.File)
	}

	return logger
}

// setupStorage 设置文件存储服务
func setupStorage(cfg appconfig.StorageConfig) (storage.Storage, error) {
	if cfg.Type == "minio" {
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		})
	}

	// 确保存储目录存在
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}

	return storage.NewLocalStorage(storage.LocalConfig{
		Path: cfg.Path,
	})
}

// setupCache 设置音频分块缓存
func setupCache(cfg appconfig.CacheConfig) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:            cfg.Type,
		DefaultTTL:      time.Duration(cfg.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	}

	if cfg.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Address
		cacheConfig.RedisPassword = cfg.Password
		cacheConfig.RedisDB = cfg.DB
	}

	return cache.NewCache(cacheConfig)
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg appconfig.QueueConfig, logger *logrus.Logger) (taskqueue.Queue, error) {
	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.RedisAddr
	queueConfig.RedisPassword = cfg.RedisPassword
	queueConfig.RedisDB = cfg.RedisDB
	if cfg.Concurrency > 0 {
		queueConfig.Concurrency = cfg.Concurrency
	}
	queueConfig.RetryLimit = cfg.RetryLimit

	logger.WithFields(logrus.Fields{
		"type":        cfg.Type,
		"redis_addr":  cfg.RedisAddr,
		"concurrency": queueConfig.Concurrency,
		"retry_limit": queueConfig.RetryLimit,
	}).Info("Setting up task queue")

	return taskqueue.NewQueue(cfg.Type, queueConfig)
}
