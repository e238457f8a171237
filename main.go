package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"study-companion/config"
	"study-companion/handlers"
	"study-companion/middleware"
	"study-companion/realtime"
	"study-companion/services"
	"study-companion/store"
	"study-companion/utils"
	"study-companion/workers"
)

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "mongo":
		return store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case "postgres":
		return store.NewPostgresStore(cfg.DatabaseURL)
	default:
		log.Println("⚠️  Using the in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open store:", err)
	}

	defaults, err := config.DefaultGamificationSettings()
	if err != nil {
		log.Fatal("failed to load gamification defaults:", err)
	}

	// Avatars go to R2, else to UPLOAD_DIR; with neither the upload route answers 503.
	var uploader services.Uploader
	switch r2 := cfg.R2(); {
	case r2.Enabled():
		client, err := utils.NewR2Client(ctx, r2)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		uploader = client
	case cfg.UploadDir != "":
		local, err := utils.NewLocalUploader(cfg.UploadDir, "/uploads")
		if err != nil {
			log.Fatal("failed to ensure upload dir:", err)
		}
		uploader = local
		log.Printf("⚠️  R2 not configured, storing avatars in %s", cfg.UploadDir)
	default:
		log.Println("⚠️  R2 not configured and UPLOAD_DIR unset, avatar uploads disabled")
	}

	hub := realtime.NewHub()
	tasks := utils.NewTaskRegistry()

	tokens := services.NewTokenManager(cfg.SecretKey)
	authService := services.NewAuthService(db, services.NewLocalIdentityProvider(db), tokens, cfg.SessionTTL, cfg.RealtimeTokenTTL)
	settingsService := services.NewSettingsService(db, defaults)
	progressionService := services.NewProgressionService(db, settingsService)
	badgeService := services.NewBadgeService(settingsService, progressionService)
	roomService := services.NewRoomService(db)
	timers := services.NewTimerCoordinator(roomService, hub, tasks, cfg.TimerTick, cfg.TimerStopTimeout)
	presence := services.NewPresenceService(roomService, timers, hub, services.NewConnectionTable(),
		services.NewDisplayNameResolver(db, cfg.DisplayNameCache))
	roomChat := services.NewRoomChatService(roomService, hub)

	app := fiber.New(fiber.Config{
		BodyLimit: 4 * 1024 * 1024,
	})

	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	secured := app.Group("/api", middleware.UserContextMiddleware(authService.Authenticate))
	admin := app.Group("/admin", middleware.UserContextMiddleware(authService.Authenticate), middleware.AdminOnly(cfg.AdminUID))

	handlers.SetupAuthRoutes(app, secured, authService, cfg.CookieSecure)
	handlers.SetupProgressionRoutes(secured, admin, progressionService, badgeService, settingsService)
	handlers.SetupRoomRoutes(secured, roomService)
	handlers.SetupStudyRoutes(secured, services.NewTodoService(db), services.NewChatHistoryService(db), services.NewAvatarService(db, uploader))
	handlers.SetupRealtimeRoutes(ctx, app, authService, handlers.NewRealtimeHandlers(presence, roomChat, timers))

	if cfg.UploadDir != "" {
		app.Static("/uploads", cfg.UploadDir)
	}

	if _, err := workers.RecoverRoomTimers(ctx, roomService, timers); err != nil {
		log.Printf("⚠️  Timer recovery failed: %v", err)
	}

	sweeper := workers.NewRoomSweepWorker(presence, cfg.SweepInterval)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("failed to start room sweep:", err)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ Store driver: %s", cfg.StoreDriver)
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := sweeper.Shutdown(); err != nil {
		log.Printf("Sweep scheduler shutdown error: %v", err)
	}
	if err := timers.Shutdown(cfg.TimerStopTimeout); err != nil {
		log.Printf("Timer shutdown error: %v", err)
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Close(closeCtx); err != nil {
		log.Printf("Store close error: %v", err)
	}
	log.Println("✅ Shutdown complete")
}
