package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	configs "assignment_service/config"
	"assignment_service/internal/repository"
	"assignment_service/internal/server/assignmenthttp"
	"assignment_service/internal/service"
	"assignment_service/pkg/cache"
	"assignment_service/pkg/db"
	"assignment_service/pkg/kafka"
	"assignment_service/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New()
	defer func() { _ = log.Sync() }()

	cfg, err := configs.Load()
	if err != nil {
		log.Fatal("cannot load config", zap.Error(err))
	}

	postgres, err := db.NewPostgres(db.Config{
		Host:         cfg.DB.Host,
		Port:         cfg.DB.Port,
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		DBName:       cfg.DB.DBName,
		SSLMode:      cfg.DB.SSLMode,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		MaxIdleConns: cfg.DB.MaxIdleConns,
	})
	if err != nil {
		log.Fatal("cannot connect to database", zap.Error(err))
	}
	defer func() { _ = postgres.Close() }()

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		log.Fatal("cannot connect to redis", zap.Error(err))
	}
	defer func() { _ = redisCache.Close() }()

	producer, err := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
	if err != nil {
		log.Fatal("cannot create kafka producer", zap.Error(err))
	}
	defer func() { _ = producer.Close() }()

	assignmentRepo := repository.NewAssignmentRepository(postgres.DB())
	stageRepo := repository.NewStageRepository(postgres.DB())
	enrollmentRepo := repository.NewEnrollmentRepository(postgres.DB())
	submissionRepo := repository.NewSubmissionRepository(postgres.DB())
	txRunner := repository.NewSQLTxRunner(postgres.DB())

	sync := service.NewEnrollmentSynchronizer(enrollmentRepo)
	gate := service.NewAccessGate()

	assignmentSvc := service.NewAssignmentService(txRunner, assignmentRepo, stageRepo, enrollmentRepo, sync, gate, redisCache, log)
	submissionSvc := service.NewSubmissionService(assignmentRepo, stageRepo, enrollmentRepo, submissionRepo, gate, producer, log)

	handler := assignmenthttp.NewHandler(assignmentSvc, submissionSvc, log)
	authMiddleware := assignmenthttp.NewAuthMiddleware(cfg.Auth.TokenSecret, log)

	r := chi.NewRouter()
	r.Use(assignmenthttp.NewLoggingMiddleware(log))
	r.Use(func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, 10<<20) // 10 MB
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	handler.RegisterRoutes(r, authMiddleware)

	worker := NewReminderWorker(assignmentSvc, producer, cfg.Worker.Interval, cfg.Worker.DueWindow, log)
	go worker.Run(ctx)

	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
	}

	go func() {
		log.Info("Starting server", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("cannot start http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
