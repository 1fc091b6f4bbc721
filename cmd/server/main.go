package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/renderscope/api/internal/auth"
	"github.com/renderscope/api/internal/config"
	"github.com/renderscope/api/internal/handler"
	"github.com/renderscope/api/internal/logging"
	"github.com/renderscope/api/internal/middleware"
	"github.com/renderscope/api/internal/service"
	"github.com/renderscope/api/internal/simulator"
	ws "github.com/renderscope/api/internal/websocket"
	"github.com/renderscope/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logging.NewLogger(cfg.Server.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis not available, export rate limiting and background exports disabled until it recovers", "addr", cfg.Redis.Addr, "error", err)
	}
	cancel()

	// Initialize Asynq client
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	validate := validator.New()
	issuer := auth.NewTokenIssuer(cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Hour)

	// Simulation
	poller := worker.NewPoller(worker.PollerConfig{
		Interval: cfg.Simulation.Interval,
		Params:   cfg.Simulation.Generator,
		Rand:     simulator.NewRand(cfg.Simulation.Seed),
		Logger:   log,
	})

	// WebSocket hub, subscribed before the first snapshot is published
	hub := ws.NewHub(log)
	go hub.Run(ctx)
	relay, err := hub.NewRelay(poller)
	if err != nil {
		log.Error("failed to start websocket relay", "error", err)
		os.Exit(1)
	}
	go relay.Run(ctx)

	poller.Start(ctx)
	defer poller.Stop()

	// Services
	dashboardService := service.NewDashboardService(poller)
	editorService := service.NewEditorService(poller, poller, log)
	exportService := service.NewExportService(time.Now, log)
	exportJobService := service.NewExportJobService(service.NewRedisJobStore(redisClient), asynqClient, time.Now, log)
	authService := service.NewAuthService(issuer)

	// Start worker server in background
	go startWorkerServer(ctx, cfg, redisOpt, exportService, exportJobService, log)

	prod := cfg.Production()

	app := fiber.New(fiber.Config{
		ErrorHandler:          handler.ErrorHandler,
		DisableStartupMessage: prod,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: !prod,
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: cfg.Server.CORSOrigins != "*",
	}))

	handler.SetupRoutes(app, handler.Routes{
		Auth:          middleware.NewAuthMiddleware(issuer, log),
		RateLimiter:   middleware.NewRateLimiter(redisClient, log),
		ExportPerHour: cfg.RateLimit.ExportPerHour,
		Login:         handler.NewAuthHandler(authService, validate),
		Dashboard:     handler.NewDashboardHandler(dashboardService),
		Editor:        handler.NewEditorHandler(editorService, validate),
		Export:        handler.NewExportHandler(dashboardService, exportService, exportJobService, validate),
		WebSocket:     handler.NewWebSocketHandler(hub, poller),
	})

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info("server starting", "addr", addr, "env", cfg.Server.Env)
	if err := app.Listen(addr); err != nil {
		log.Error("server error", "error", err)
	}
}

func startWorkerServer(
	ctx context.Context,
	cfg *config.Config,
	redisOpt asynq.RedisClientOpt,
	exportService *service.ExportService,
	jobs *service.ExportJobService,
	log *slog.Logger,
) {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			worker.ExportQueue: 1,
		},
		Logger:   logging.AsynqLogger(log),
		LogLevel: logging.AsynqLevel(cfg.Server.LogLevel),
	})

	exportWorker := worker.NewExportWorker(exportService, jobs, time.Now, log)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeExportAll, exportWorker.ProcessTask)

	if err := srv.Start(mux); err != nil {
		log.Error("worker server failed to start", "error", err)
		return
	}
	log.Info("worker server started", "concurrency", cfg.Worker.Concurrency)

	<-ctx.Done()
	srv.Shutdown()
}
