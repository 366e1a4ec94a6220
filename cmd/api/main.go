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

	_ "phcportal/api/swagger" // swagger docs
	"phcportal/internal/config"
	"phcportal/internal/cpanel"
	"phcportal/internal/database"
	"phcportal/internal/handler"
	"phcportal/internal/middleware"
	"phcportal/internal/policy"
	"phcportal/internal/repository"
	"phcportal/internal/scheduler"
	"phcportal/internal/service"
	"phcportal/internal/storage"
	"phcportal/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Kwara State PHC Development Agency API
// @version         1.0
// @description     Admin and public API for the agency portal: PHC directory, staff roll, attendance, blog, gallery and staff email provisioning.
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load("configs/.env")
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.NewConnection(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")
	if err := database.Migrate(db); err != nil {
		log.Println("WARNING: Failed to migrate schema:", err)
	}

	if err := handler.RegisterValidators(); err != nil {
		log.Fatalf("Failed to register validators: %v", err)
	}

	pol := policy.Default()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(cfg.CORSOrigins...)
	go wsHub.Run()

	var store storage.Store
	if cfg.Storage.Enabled() {
		store = storage.NewClient(cfg.Storage.URL, cfg.Storage.ServiceKey)
	} else {
		log.Println("[STORAGE] not configured, image uploads are disabled")
	}
	mailboxes := cpanel.NewClient(cfg.CPanel)
	if !mailboxes.Enabled() {
		log.Println("[STAFF_EMAIL] cPanel credentials missing, addresses will be recorded only")
	}

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	phcRepo := repository.NewPHCRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	staffEmailRepo := repository.NewStaffEmailRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	blogRepo := repository.NewBlogRepository(db)
	galleryRepo := repository.NewGalleryRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	statisticsRepo := repository.NewStatisticsRepository(db)

	authService := service.NewAuthService(userRepo, tokenRepo, phcRepo, settingsRepo, activityRepo, txManager, pol, cfg.JWTSecret)
	auth := middleware.NewAuthenticator(cfg.JWTSecret, authService, pol, cfg.SecureCookies)

	userService := service.NewUserService(userRepo, phcRepo, activityRepo, txManager, pol, auth)
	phcService := service.NewPHCService(phcRepo, activityRepo, txManager, store, pol)
	staffService := service.NewStaffService(staffRepo, activityRepo, txManager, pol)
	staffEmailService := service.NewStaffEmailService(staffEmailRepo, staffRepo, activityRepo, txManager, mailboxes, pol, cfg.CPanel.Domain)
	attendanceService := service.NewAttendanceService(attendanceRepo, staffRepo, activityRepo, txManager, pol, wsHub, cfg.ApprovalCodeTTL)
	blogService := service.NewBlogService(blogRepo, activityRepo, txManager, store, pol)
	galleryService := service.NewGalleryService(galleryRepo, activityRepo, txManager, store, pol)
	activityService := service.NewActivityService(activityRepo, pol)
	settingsService := service.NewSettingsService(settingsRepo, activityRepo, txManager, pol)
	statisticsService := service.NewStatisticsService(statisticsRepo, pol, wsHub)

	jobs := scheduler.New()
	if err := jobs.AddStatsBroadcast(cfg.StatsSchedule, statisticsService); err != nil {
		log.Fatalf("Scheduler setup failed: %v", err)
	}
	jobs.Start()

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DEGRADED"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	// WebSocket endpoint
	handler.NewRealtimeHandler(wsHub, auth).RegisterRoutes(router)

	// API Routing
	api := router.Group("/api")
	handler.NewAuthHandler(authService, settingsService, auth).RegisterRoutes(api)
	handler.NewUserHandler(userService, auth).RegisterRoutes(api)
	handler.NewPHCHandler(phcService, auth).RegisterRoutes(api)
	handler.NewStaffHandler(staffService, staffEmailService, auth).RegisterRoutes(api)
	handler.NewAttendanceHandler(attendanceService, auth).RegisterRoutes(api)
	handler.NewContentHandler(blogService, galleryService, auth).RegisterRoutes(api)
	handler.NewActivityHandler(activityService, auth).RegisterRoutes(api)
	handler.NewStatisticsHandler(statisticsService, auth).RegisterRoutes(api)
	handler.NewSettingsHandler(settingsService, auth).RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	jobs.Stop(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
