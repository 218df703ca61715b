package main

import (
	"log"

	_ "siteexpense/api/swagger" // swagger docs
	"siteexpense/internal/config"
	"siteexpense/internal/database"
	"siteexpense/internal/handler"
	"siteexpense/internal/middleware"
	"siteexpense/internal/repository"
	"siteexpense/internal/service"
	"siteexpense/internal/storage"
	"siteexpense/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Site Expense API
// @version         1.0
// @description     Expense reimbursement workflow for construction sites with two-tier approval.
// @host            localhost:8080
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(cfg.DSN())
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	expenseRepo := repository.NewExpenseRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	siteRepo := repository.NewSiteRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	blobStore := storage.NewLocalStore(cfg.UploadDir, logger)

	authService := service.NewAuthService(userRepo, string(middleware.GetJWTSecret()))
	expenseService := service.NewExpenseService(expenseRepo, siteRepo, userRepo, auditRepo, txManager)
	approvalService := service.NewApprovalService(expenseRepo, approvalRepo, auditRepo, txManager, wsHub)
	attachmentService := service.NewAttachmentService(expenseRepo, attachmentRepo, blobStore, logger)
	siteService := service.NewSiteService(siteRepo, userRepo, auditRepo, txManager)
	userService := service.NewUserService(userRepo, auditRepo, txManager)
	auditService := service.NewAuditService(auditRepo)

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(authService)
	expenseHandler := handler.NewExpenseHandler(expenseService, approvalService, attachmentService)
	siteHandler := handler.NewSiteHandler(siteService)
	userHandler := handler.NewUserHandler(userService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:3000"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	api := router.Group("/api")
	authHandler.RegisterRoutes(api)
	expenseHandler.RegisterRoutes(api)
	siteHandler.RegisterRoutes(api)
	userHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)

	log.Printf("Server listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
