package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"office-service/internal/client"
	"office-service/internal/config"
	"office-service/internal/handler"
	"office-service/internal/middleware"
	"office-service/internal/repository"
	"office-service/internal/service"
	"office-service/internal/ws"
)

// Services groups what main needs a handle on after setup: timer-owning
// services for shutdown, repositories for cron jobs.
type Services struct {
	Typing    *service.TypingService
	TaskTimer *service.TaskTimerService
	Hub       *ws.Hub
	GameRepo  repository.GameRepository
	TaskRepo  repository.TaskRepository
}

func Setup(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) (*gin.Engine, *Services) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.MetricsMiddleware())

	// Repositories
	presenceRepo := repository.NewPresenceRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	gameRepo := repository.NewGameRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	// Realtime fanout: hub plus the publisher the services write into.
	hub := ws.NewHub(redisClient, logger)
	publisher := ws.NewDispatcher(redisClient, hub, logger)

	// Services
	presenceService := service.NewPresenceService(presenceRepo, publisher, logger)
	messageService := service.NewMessageService(messageRepo, channelRepo, publisher, logger)
	typingService := service.NewTypingService(publisher, cfg.Typing, logger)
	matchService := service.NewMatchService(gameRepo, publisher, cfg.Matchmaking, logger)
	taskService := service.NewTaskTimerService(taskRepo, profileRepo, publisher, cfg.Tasks, logger)
	profileService := service.NewProfileService(profileRepo)

	// Every delivered conversation event passes the typing service so the
	// viewer-side typer set stays current on all instances, not just the one
	// that received the TYPING frame.
	hub.SetObserver(ws.TypingObserver(typingService))
	go hub.Run()

	// Auth
	var authClient *client.AuthClient
	if cfg.Auth.ServiceURL != "" {
		authClient = client.NewAuthClient(cfg.Auth.ServiceURL, 5*time.Second, logger)
	}
	validator := middleware.NewAuthServiceValidator(authClient, cfg.Auth.SecretKey, logger)

	// Blob storage is optional: without it attachments degrade, messages work.
	var storage client.StorageClient
	if cfg.S3.Bucket != "" {
		var err error
		storage, err = client.NewStorageClient(cfg.S3)
		if err != nil {
			logger.Warn("attachment storage disabled", zap.Error(err))
		}
	}

	// Handlers
	wsHandler := ws.NewHandler(logger, validator, hub, presenceService, messageService, typingService)
	presenceHandler := handler.NewPresenceHandler(presenceService)
	messageHandler := handler.NewMessageHandler(messageService, storage)
	channelHandler := handler.NewChannelHandler(messageService)
	gameHandler := handler.NewGameHandler(matchService)
	taskHandler := handler.NewTaskHandler(taskService)
	profileHandler := handler.NewProfileHandler(profileService)
	fileHandler := handler.NewFileHandler(storage, messageService)
	healthHandler := handler.NewHealthHandler()

	// Health and metrics (no auth)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", middleware.MetricsHandler())

	api := r.Group(cfg.Server.BasePath)
	{
		api.GET("/health", healthHandler.Health)
		api.GET("/ready", healthHandler.Ready)

		// WebSocket endpoints authenticate via ?token=
		api.GET("/ws/presence", wsHandler.HandlePresence)
		api.GET("/ws/chat", wsHandler.HandleChat)

		authenticated := api.Group("")
		authenticated.Use(middleware.AuthMiddleware(validator))
		{
			authenticated.PUT("/presence/status", presenceHandler.SetStatus)
			authenticated.GET("/presence/me", presenceHandler.GetMyStatus)
			authenticated.GET("/presence/workspace/:workspaceId", presenceHandler.GetWorkspacePresence)

			authenticated.GET("/channels", channelHandler.GetChannels)
			authenticated.POST("/channels", channelHandler.CreateChannel)
			authenticated.GET("/channels/:channelId/unread", channelHandler.GetUnreadCount)
			authenticated.POST("/channels/:channelId/read", channelHandler.MarkRead)

			authenticated.GET("/messages", messageHandler.GetMessages)
			authenticated.GET("/messages/sync", messageHandler.SyncMessages)
			authenticated.POST("/messages", messageHandler.SendMessage)

			authenticated.POST("/games/match", gameHandler.FindMatch)
			authenticated.POST("/games/invites", gameHandler.SendInvite)
			authenticated.POST("/games/invites/:gameId/accept", gameHandler.AcceptInvite)
			authenticated.POST("/games/invites/:gameId/decline", gameHandler.DeclineInvite)
			authenticated.GET("/games/:gameId", gameHandler.GetGame)
			authenticated.POST("/games/:gameId/moves", gameHandler.Move)

			authenticated.POST("/tasks", taskHandler.CreateTask)
			authenticated.GET("/tasks", taskHandler.GetMyTasks)
			authenticated.POST("/tasks/:taskId/start", taskHandler.Start)
			authenticated.POST("/tasks/:taskId/break", taskHandler.StartBreak)
			authenticated.DELETE("/tasks/:taskId/break", taskHandler.EndBreak)
			authenticated.POST("/tasks/:taskId/complete", taskHandler.Complete)
			authenticated.POST("/tasks/:taskId/approve", taskHandler.Approve)
			authenticated.POST("/tasks/:taskId/handover", taskHandler.Handover)
			authenticated.GET("/tasks/:taskId/timer", taskHandler.GetTimer)

			authenticated.GET("/profile", profileHandler.GetProfile)
			authenticated.GET("/profile/layout", profileHandler.GetLayout)
			authenticated.PUT("/profile/layout", profileHandler.SaveLayout)

			authenticated.POST("/files/presign", fileHandler.PresignUpload)
			authenticated.GET("/files/:messageId", fileHandler.GetAttachment)
		}
	}

	return r, &Services{
		Typing:    typingService,
		TaskTimer: taskService,
		Hub:       hub,
		GameRepo:  gameRepo,
		TaskRepo:  taskRepo,
	}
}
