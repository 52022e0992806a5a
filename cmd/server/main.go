package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/proteindock/api/internal/client"
	"github.com/proteindock/api/internal/config"
	"github.com/proteindock/api/internal/handler"
	"github.com/proteindock/api/internal/middleware"
	"github.com/proteindock/api/internal/model"
	"github.com/proteindock/api/internal/registry"
	"github.com/proteindock/api/internal/service"
	"github.com/proteindock/api/internal/worker"
	ws "github.com/proteindock/api/internal/websocket"
)

// projectIDPattern whitelists the only free-form value that reaches the
// engine command line and the filesystem.
var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		log.Fatalf("Failed to create work directory: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()
	if err := validate.RegisterValidation("projectid", func(fl validator.FieldLevel) bool {
		return projectIDPattern.MatchString(fl.Field().String())
	}); err != nil {
		log.Fatalf("Failed to register projectid validation: %v", err)
	}

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Optional artifact storage
	var artifacts client.ArtifactClient
	if cfg.Artifacts.Backend != "" {
		mc, err := client.NewMinIOClient(ctx, &cfg.Artifacts)
		if err != nil {
			log.Printf("Warning: artifact storage disabled: %v", err)
		} else {
			artifacts = mc
		}
	}

	// Initialize services
	jobRegistry := registry.New()
	jobStore := service.NewRedisJobStore(redisClient)
	dockService := service.NewDockService(cfg, jobStore, jobRegistry, asynqClient)
	mergeService := service.NewMergeService(cfg)

	// Initialize handlers
	dockHandler := handler.NewDockHandler(dockService, validate)
	mergeHandler := handler.NewMergeHandler(mergeService, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    5 * 1024 * 1024, // 5MB
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Structure routes
	structures := api.Group("/structures")
	structures.Post("/merge", rateLimiter.MergeLimit(cfg.RateLimit.MergePerMin), mergeHandler.Merge)

	// Docking routes
	dock := api.Group("/dock")
	dock.Post("/start", rateLimiter.DockLimit(cfg.RateLimit.DockPerHour), dockHandler.Start)
	dock.Post("/cancel/:project", dockHandler.Cancel)
	dock.Get("/status/:project", dockHandler.Status)
	dock.Get("/results/:project", dockHandler.Results)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/dock/:project", websocket.New(func(c *websocket.Conn) {
		project := c.Params("project")
		if !projectIDPattern.MatchString(project) {
			c.Close()
			return
		}
		hub.HandleConnection(c, project)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, jobStore, jobRegistry, hub, artifacts)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, store service.JobStore, reg *registry.Registry, hub *ws.Hub, artifacts client.ArtifactClient) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// One engine process at a time; a run saturates its host.
			Concurrency: 1,
			Queues: map[string]int{
				"dock": 1,
			},
		},
	)

	dockWorker := worker.NewDockWorker(cfg, store, reg, hub, artifacts)

	mux := asynq.NewServeMux()
	mux.HandleFunc(model.TaskTypeDock, dockWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
