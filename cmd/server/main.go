// Package main 是应用程序的入口点。
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

	"github.com/gin-gonic/gin"

	"docflow-go/internal/config"
	"docflow-go/internal/extract"
	"docflow-go/internal/handler"
	"docflow-go/internal/middleware"
	"docflow-go/internal/model"
	"docflow-go/internal/pipeline"
	"docflow-go/internal/repository"
	"docflow-go/internal/service"
	"docflow-go/pkg/assistant"
	"docflow-go/pkg/database"
	"docflow-go/pkg/drive"
	"docflow-go/pkg/embedding"
	"docflow-go/pkg/es"
	"docflow-go/pkg/kafka"
	"docflow-go/pkg/llm"
	"docflow-go/pkg/log"
	"docflow-go/pkg/storage"
	"docflow-go/pkg/tika"
	"docflow-go/pkg/token"
)

// disabledDrive 在未配置云盘凭证时占位，调用时直接报错。
type disabledDrive struct{}

func (disabledDrive) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	return nil, "", errors.New("云盘集成未配置")
}

func main() {
	// 1. 加载配置
	configPath := os.Getenv("DOCFLOW_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化基础设施客户端
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Document{}, &model.ProcessingJob{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	rdb, err := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}
	minioClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	esClient, err := es.NewClient(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}
	queue := kafka.NewQueue(cfg.Kafka)
	defer queue.Close()

	tikaClient := tika.NewClient(cfg.Tika.ServerURL)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	indexClient := assistant.NewClient(cfg.Assistant)

	var driveClient pipeline.DriveFetcher = disabledDrive{}
	if cfg.Drive.CredentialsFile != "" {
		dc, err := drive.NewClient(context.Background(), cfg.Drive)
		if err != nil {
			log.Fatalf("云盘客户端初始化失败: %v", err)
		}
		driveClient = dc
	}

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	jobRepo := repository.NewJobRepository(db)

	// 5. 初始化处理管道
	orchestrator := pipeline.NewOrchestrator(
		cfg.Pipeline,
		cfg.Embedding,
		docRepo,
		jobRepo,
		extract.NewTextExtractor(tikaClient),
		extract.NewThumbnailExtractor(),
		extract.NewMetadataExtractor(llmClient, cfg.Pipeline.MetadataTextLimit),
		embeddingClient,
		esClient,
		minioClient,
		indexClient,
		driveClient,
		queue,
	)

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	userService := service.NewUserService(userRepo, jwtManager)
	ingestService := service.NewIngestService(docRepo, minioClient, queue, driveClient)
	documentService := service.NewDocumentService(docRepo, jobRepo, minioClient, esClient, indexClient, orchestrator)
	searchService := service.NewSearchService(embeddingClient, esClient, docRepo)
	adminService := service.NewAdminService(docRepo, userRepo)

	// 7. 启动后台 Kafka 消费者
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	consumer, err := kafka.NewConsumer(cfg.Kafka, cfg.Pipeline.MaxParallelism, cfg.Pipeline.MaxAttempts, rdb, orchestrator)
	if err != nil {
		log.Fatalf("Kafka 消费者初始化失败: %v", err)
	}
	go consumer.Start(consumerCtx)

	// 7.1 启动时导入种子目录，已存在的文件自动跳过
	if cfg.Pipeline.SeedDir != "" {
		go func() {
			if err := ingestService.ImportSeedDir(context.Background(), cfg.Pipeline.SeedDir); err != nil {
				log.Warnf("种子目录导入失败: %v", err)
			}
		}()
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	userHandler := handler.NewUserHandler(userService)
	ingestHandler := handler.NewIngestHandler(ingestService)
	documentHandler := handler.NewDocumentHandler(documentService)
	searchHandler := handler.NewSearchHandler(searchService)
	adminHandler := handler.NewAdminHandler(adminService)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", userHandler.Refresh)
		}

		users := apiV1.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userRepo))
			{
				authed.GET("/me", userHandler.Me)
			}
		}

		ingest := apiV1.Group("/ingest")
		ingest.Use(middleware.AuthMiddleware(jwtManager, userRepo))
		{
			ingest.POST("/upload", ingestHandler.Upload)
			ingest.POST("/url", ingestHandler.IngestURL)
			ingest.POST("/drive", ingestHandler.IngestDrive)
		}

		documents := apiV1.Group("/documents")
		documents.Use(middleware.AuthMiddleware(jwtManager, userRepo))
		{
			documents.GET("", documentHandler.List)
			documents.GET("/failed", documentHandler.ListFailed)
			documents.GET("/:id", documentHandler.Get)
			documents.GET("/:id/status", documentHandler.Status)
			documents.GET("/:id/download", documentHandler.Download)
			documents.GET("/:id/thumbnail", documentHandler.Thumbnail)
			documents.POST("/:id/retry", documentHandler.Retry)

			adminOnly := documents.Group("/")
			adminOnly.Use(middleware.AdminAuthMiddleware())
			{
				adminOnly.PUT("/:id/approve", documentHandler.Approve)
				adminOnly.DELETE("/:id", documentHandler.Delete)
			}
		}

		search := apiV1.Group("/search")
		search.Use(middleware.AuthMiddleware(jwtManager, userRepo))
		{
			search.GET("/hybrid", searchHandler.HybridSearch)
		}

		admin := apiV1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager, userRepo), middleware.AdminAuthMiddleware())
		{
			admin.GET("/overview", adminHandler.Overview)
			admin.GET("/users/list", adminHandler.ListUsers)
		}
	}

	// 10. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("收到退出信号，开始优雅停机")

	cancelConsumer()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("服务停机失败: %v", err)
	}
	log.Info("服务已退出")
}
