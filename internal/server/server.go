package server

import (
	"log"
	"time"

	"erp/internal/config"
	"erp/internal/database"
	"erp/internal/handlers"
	"erp/internal/middleware"
	"erp/internal/repositories"
	"erp/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

// New wires repositories, services and handlers into a Fiber app. publisher
// may be nil, which disables inventory events.
func New(cfg *config.Config, db *gorm.DB, publisher services.EventPublisher) *fiber.App {
	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	itemRepo := repositories.NewGORMItemRepository(db)

	// --- Services ---
	tokens := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenLifetime)
	authService := services.NewAuthService(userRepo, tokens, cfg.Auth.BcryptCost)
	inventoryService := services.NewInventoryService(itemRepo, services.InventoryOptions{
		LowStockThreshold: cfg.Inventory.LowStockThreshold,
		DefaultPageSize:   cfg.Inventory.DefaultPageSize,
		MaxPageSize:       cfg.Inventory.MaxPageSize,
		Exchange:          cfg.RabbitMQ.Exchange,
	}, publisher)

	// --- Handlers ---
	validate := handlers.NewValidator()
	authHandler := handlers.NewAuthHandler(authService, validate)
	itemHandler := handlers.NewItemHandler(inventoryService, validate)
	dashboardHandler := handlers.NewDashboardHandler(inventoryService)

	app := fiber.New(fiber.Config{
		AppName:      "erp",
		ErrorHandler: handlers.ErrorHandler,
	})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORS.AllowOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders: handlers.HeaderTotalCount + ", " + middleware.HeaderProcessTime,
	}))
	app.Use(middleware.ProcessTime())

	// --- Routes ---
	guard := middleware.AuthRequired(tokens)
	authHandler.RegisterRoutes(app, guard)
	itemHandler.RegisterRoutes(app, guard)
	dashboardHandler.RegisterRoutes(app, guard)

	app.Get("/health", healthHandler(db))

	return app
}

func healthHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status, dbStatus, code := "healthy", "connected", fiber.StatusOK
		if err := database.Ping(db); err != nil {
			log.Printf("Health check: database ping failed: %v", err)
			status, dbStatus, code = "unhealthy", "unavailable", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"time":     time.Now().Format(time.RFC3339),
			"database": dbStatus,
		})
	}
}
