package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"battle-league-system/handlers"
	"battle-league-system/middleware"
	"battle-league-system/models"
	"battle-league-system/services"
	"battle-league-system/utils"
	"battle-league-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // 50MB — event posters are the largest upload
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	// Media storage is optional: without R2 credentials posters fall back to
	// local disk under ./uploads.
	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 not configured, poster uploads will use local storage: %v", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Event{},
		&models.Category{},
		&models.Criterio{},
		&models.JudgeAssignment{},
		&models.Score{},
		&models.ScoreDetail{},
		&models.Battle{},
		&models.Wildcard{},
		&models.Inscripcion{},
		&models.ParticipantMirror{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	services.InitViewInvalidation()

	rankingService := services.NewRankingService(db)
	bracketService := services.NewBracketService(db, rankingService)
	judgingService := services.NewJudgingService(db)
	classificationService := services.NewClassificationService(db, rankingService)
	wildcardService := services.NewWildcardService(db)
	eventService := services.NewEventService(db)

	// --- CONFIGURE Sync Service Details for Participant Mirrors ---
	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL == "" {
		log.Fatal("PROFILE_SERVICE_URL environment variable not set")
	}
	leagueServiceToken := os.Getenv("LEAGUE_SERVICE_TOKEN")
	if leagueServiceToken == "" {
		log.Fatal("LEAGUE_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	syncWorker := workers.NewParticipantSyncWorker(db, profileServiceURL, "/api/v1/public/profiles", leagueServiceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker.Start(ctx)

	eventService.StartPublishScheduler()

	// ✅ Setup routes — enforced Gateway auth, role checks per group
	handlers.SetupEventRoutes(app, eventService)
	handlers.SetupCompetitionRoutes(app, rankingService, bracketService, judgingService)
	handlers.SetupClassificationRoutes(app, wildcardService, classificationService)

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Participant Sync Worker running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
