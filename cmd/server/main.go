// Package main 是应用程序的入口点。
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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"medidesk-go/internal/config"
	"medidesk-go/internal/handler"
	"medidesk-go/internal/hospital"
	"medidesk-go/internal/middleware"
	"medidesk-go/internal/pipeline"
	"medidesk-go/internal/repository"
	"medidesk-go/internal/service"
	"medidesk-go/internal/widget"
	"medidesk-go/pkg/database"
	"medidesk-go/pkg/emailjs"
	"medidesk-go/pkg/es"
	"medidesk-go/pkg/kafka"
	"medidesk-go/pkg/llm"
	"medidesk-go/pkg/log"
	"medidesk-go/pkg/storage"
	"medidesk-go/pkg/telemetry"
	"medidesk-go/pkg/token"
)

// exportURLExpiry 是导出文件下载链接的有效期。
const exportURLExpiry = time.Hour

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化链路追踪与指标
	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	shutdownTelemetry, err := telemetry.Setup(rootCtx, cfg.Telemetry.ServiceName, widget.Version, cfg.Telemetry.Endpoint)
	if err != nil {
		log.Fatal("初始化 OpenTelemetry 失败", err)
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("初始化指标失败", err)
	}

	// 4. 初始化存储
	var (
		chatRepo        repository.ChatLogRepository
		appointmentRepo repository.AppointmentRepository
	)
	switch cfg.Database.Driver {
	case "mongo":
		database.InitMongo(cfg.Database.Mongo.URI, cfg.Database.Mongo.Database)
		chatRepo = repository.NewMongoChatLogRepository(database.MongoDB)
		appointmentRepo = repository.NewMongoAppointmentRepository(database.MongoDB)
	default:
		database.InitMySQL(cfg.Database.MySQL.DSN)
		chatRepo = repository.NewChatLogRepository(database.DB)
		appointmentRepo = repository.NewAppointmentRepository(database.DB)
	}

	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	var sessionRepo repository.SessionRepository
	if database.RDB != nil {
		sessionRepo = repository.NewSessionRepository(database.RDB, time.Duration(cfg.Session.SnapshotTTLHours)*time.Hour)
	}

	// 全文检索可选，未配置时后台筛选在本地完成
	var (
		indexer  service.ChatLogIndexer
		searcher service.ChatLogSearcher
	)
	if cfg.Elasticsearch.Addresses != "" {
		if err := es.InitES(cfg.Elasticsearch); err != nil {
			log.Errorf("Elasticsearch 初始化失败，禁用全文检索: %v", err)
		} else {
			index := es.NewChatLogIndex(es.ESClient, cfg.Elasticsearch.IndexName)
			indexer, searcher = index, index
		}
	}

	var objects service.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		storage.InitMinIO(cfg.MinIO)
		objects = storage.NewObjectStore(storage.MinioClient, cfg.MinIO.BucketName, exportURLExpiry)
	}

	// 5. 医院资料与预约通知
	profile := hospital.FromConfig(cfg.Hospital)
	log.Infow("医院资料已加载", "hospitalId", profile.HospitalID, "departments", len(profile.Departments))

	emailClient := emailjs.NewClient(cfg.EmailJS)
	if !emailClient.Configured() {
		log.Warnf("未配置 EmailJS 凭证，预约通知将被跳过")
	}
	processor := pipeline.NewProcessor(emailClient)

	var notifier service.AppointmentNotifier
	if cfg.Kafka.Brokers != "" {
		kafka.InitProducer(cfg.Kafka)
		go kafka.StartConsumer(rootCtx, cfg.Kafka, processor)
		notifier = pipeline.NewKafkaNotifier(profile.HospitalName)
	} else {
		notifier = pipeline.NewDirectNotifier(processor, profile.HospitalName)
	}

	// 6. 初始化 Service (依赖注入)
	secret := cfg.Session.Secret
	if secret == "" {
		secret = token.GenerateRandomString(32)
		log.Warnf("未配置 session.secret，使用随机密钥，重启后已签发的会话令牌将失效")
	}
	jwtManager := token.NewJWTManager(secret, cfg.Session.TokenExpireHours)

	llmClient := llm.NewClient(cfg.LLM)
	completionService := service.NewCompletionService(llmClient, profile)
	store := service.NewConversationStore(chatRepo, appointmentRepo, indexer)
	chatService := service.NewChatService(profile, completionService, store, jwtManager, service.ChatOptions{
		Notifier:      notifier,
		SessionRepo:   sessionRepo,
		HistoryWindow: cfg.Chat.HistoryWindow,
		MedicalGuard:  cfg.Chat.MedicalGuard,
		SessionTTL:    time.Duration(cfg.Session.TokenExpireHours) * time.Hour,
		Metrics:       metrics,
	})
	adminService := service.NewAdminService(store, searcher, objects)

	widgetDefaults := widget.FromAppConfig(cfg.Widget)
	widget.Default.Init(widgetDefaults)
	defer widget.Default.Stop()

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	r.Use(middleware.RequestLogger(), gin.Recovery())

	chatHandler := handler.NewChatHandler(chatService, widget.Default)
	widgetHandler := handler.NewWidgetHandler(widget.Default, widgetDefaults)
	adminHandler := handler.NewAdminHandler(adminService)

	// 8. 注册路由
	r.GET("/medidesk.js", widgetHandler.Script)
	r.GET("/chat/:token", chatHandler.Handle)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"version": widget.Version}})
	})

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/hospital", handler.NewHospitalHandler(profile).GetProfile)

		widgetGroup := apiV1.Group("/widget")
		{
			widgetGroup.GET("", widgetHandler.State)
			widgetGroup.GET("/config", widgetHandler.Config)
			widgetGroup.POST("/open", widgetHandler.Open)
			widgetGroup.POST("/close", widgetHandler.Close)
			widgetGroup.POST("/toggle", widgetHandler.Toggle)
		}

		sessions := apiV1.Group("/sessions")
		{
			sessions.POST("", chatHandler.CreateSession)

			// 需要会话令牌的路由
			authed := sessions.Group("")
			authed.Use(middleware.SessionAuth(chatService))
			{
				authed.GET("/current", chatHandler.GetSession)
				authed.POST("/messages", chatHandler.SendMessage)
				authed.POST("/quick-replies", chatHandler.SelectQuickReply)
				authed.POST("/appointments", chatHandler.SubmitAppointment)
				authed.DELETE("/appointments", chatHandler.CancelAppointment)
			}
		}

		// 后台看板只读，不需要认证
		admin := apiV1.Group("/admin")
		{
			admin.GET("/overview", adminHandler.Overview)
			admin.GET("/appointments", adminHandler.ListAppointments)
			admin.POST("/appointments/export", adminHandler.ExportAppointments)
			admin.GET("/chats", adminHandler.ListChatLogs)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 等待聊天记录保存与预约通知完成，再关闭下游连接
	chatService.Drain()
	stopBackground()
	kafka.CloseProducer()
	database.CloseMongo(ctx)
	if err := shutdownTelemetry(ctx); err != nil {
		log.Errorf("关闭 OpenTelemetry 失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	c.ExposeHeaders = []string{middleware.RequestIDHeader}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
