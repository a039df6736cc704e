package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trust-game-system/handlers"
	"trust-game-system/middleware"
	"trust-game-system/models"
	"trust-game-system/services"
	"trust-game-system/utils"
	"trust-game-system/workers"

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

	app := fiber.New(fiber.Config{})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	// R2 is optional: without credentials the export endpoint returns 503
	// but games and simulations run fine.
	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 not available, dataset export disabled: %v", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Bot{},
		&models.Game{},
		&models.Player{},
		&models.Round{},
		&models.RoundResult{},
		&models.RoundStat{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	cfg := services.LoadGameConfig()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	profileService := services.NewProfileService(db, cfg)
	gameService := services.NewGameService(db, cfg, profileService, rng)
	matchmakingService := services.NewMatchmakingService(db, cfg, rng)
	simulatorService := services.NewSimulatorService(db, cfg, rng)
	exportService := services.NewExportService(db)

	if err := matchmakingService.SeedBots(); err != nil {
		log.Fatal("failed to seed bot roster:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gameService.StartTimeoutSweeper()

	if os.Getenv("SIM_WORKER_ENABLED") == "true" {
		simWorker := workers.NewSimulationWorker(simulatorService)
		go simWorker.Run(ctx, 30*time.Second)
	}

	// ✅ Setup routes — enforced Gateway auth throughout
	handlers.SetupGameRoutes(app, gameService, matchmakingService, profileService)
	handlers.SetupAdminRoutes(app, simulatorService, exportService)

	go func() {
		if err := app.Listen(":5200"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5200")
	log.Println("✅ Round timeout sweeper running (every 5s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
