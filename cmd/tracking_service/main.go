package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tracking_service/internal/config"
	"tracking_service/internal/dispatcher"
	adsGet "tracking_service/internal/http-server/handlers/ads/get"
	adsGetByID "tracking_service/internal/http-server/handlers/ads/get_by_id"
	ingestHandler "tracking_service/internal/http-server/handlers/ingest"
	addTarget "tracking_service/internal/http-server/handlers/targets/add"
	deleteTarget "tracking_service/internal/http-server/handlers/targets/delete"
	getTargets "tracking_service/internal/http-server/handlers/targets/get"
	"tracking_service/internal/ingest"
	"tracking_service/internal/lib/jwt"
	sl "tracking_service/internal/lib/logger"
	"tracking_service/internal/lib/results"
	adsOp "tracking_service/internal/middleware/ads"
	authMiddlware "tracking_service/internal/middleware/auth"
	targetsOp "tracking_service/internal/middleware/targets"
	"tracking_service/internal/rabbitmq"
	"tracking_service/internal/storage/postgres"
	"tracking_service/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting tracking service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	jwtParser := jwt.New(cfg.JWTSecret)

	// * Инициализация Redis
	redisClient, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Db, cfg.Redis.DefaultTTL)
	if err != nil {
		log.Error("failed to connect redis", sl.Err(err))
		os.Exit(1)
	}
	defer redisClient.Close()

	// * Инициализация PosgreSQL
	postgresClient, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect posgtreSQL", sl.Err(err))
		os.Exit(1)
	}
	defer postgresClient.Close()

	if err := postgresClient.Migrate(ctx); err != nil {
		log.Error("failed to migrate schema", sl.Err(err))
		os.Exit(1)
	}

	// * Инициализация RabbitMQ
	rabbitMQClient, err := rabbitmq.New(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("failed to connect rabbitMQ", sl.Err(err))
		os.Exit(1)
	}
	defer rabbitMQClient.Close()

	if err := rabbitMQClient.DeclareQueues(cfg.RabbitMQ.TaskQueue, cfg.RabbitMQ.ResultQueue); err != nil {
		log.Error("failed to declare queues", sl.Err(err))
		os.Exit(1)
	}

	taskProducer := rabbitmq.NewProducer(
		rabbitMQClient.Channel,
		cfg.RabbitMQ.TaskQueue,
	)
	resultConsumer := rabbitmq.NewConsumer(
		rabbitMQClient.Channel,
		log,
		cfg.RabbitMQ.ResultQueue,
		cfg.RabbitMQ.WorkerPoolSize,
	)

	// * Пайплайн ингеста: подпись -> нормализация -> одна транзакция на батч
	ingestService := ingest.New(cfg.IngestSecret, postgresClient)

	// * Результаты воркера могут приходить и через очередь
	resultsHandler := results.New(log, ingestService, resultConsumer)
	if err := resultsHandler.Run(ctx); err != nil {
		log.Error("failed to start results consumer", sl.Err(err))
		os.Exit(1)
	}

	// * Диспетчер: созревшие цели -> задания воркеру
	disp := dispatcher.New(
		log,
		postgresClient,
		taskProducer,
		cfg.Dispatcher.PollInterval,
		cfg.Dispatcher.BatchSize,
	)
	go disp.Run(ctx)

	targetOperator := targetsOp.New(postgresClient, taskProducer)
	adOperator := adsOp.New(log, postgresClient, redisClient)

	requestValidator := validator.New()

	router := setupRouter(
		log,
		requestValidator,
		postgresClient,
		ingestService,
		targetOperator,
		adOperator,
		*jwtParser,
	)

	server := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("http server started", slog.String("address", cfg.HTTPServer.Address))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown http server", sl.Err(err))
	}

	log.Info("tracking service stopped")
}

func setupRouter(
	log *slog.Logger,
	validate *validator.Validate,
	postgres *postgres.PostgresRepo,
	ingestService *ingest.Service,
	targetOperator *targetsOp.TargetOperator,
	adOperator *adsOp.AdOperator,
	jwtParser jwt.JWTParser,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// * Ингест от воркера: без пользовательской аутентификации,
	// только HMAC-подпись тела
	r.Post("/api/v1/ingest/avito", ingestHandler.New(log, ingestService))

	// * CRUD-поверхность для пользователей
	r.Group(func(r chi.Router) {
		r.Use(authMiddlware.AuthMiddleware(jwtParser))

		r.Post("/api/v1/target", addTarget.New(log, targetOperator, validate))
		r.Get("/api/v1/targets", getTargets.New(log, postgres))
		r.Delete("/api/v1/target", deleteTarget.New(log, postgres))
		r.Get("/api/v1/ads", adsGet.New(log, postgres))
		r.Get("/api/v1/ad", adsGetByID.New(log, adOperator))
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}
