package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"worker-preprocess/config"
	"worker-preprocess/constant"
	jobHandler "worker-preprocess/handler"
	"worker-preprocess/pkg/objectstore"
	"worker-preprocess/pkg/rabbitmq"
	"worker-preprocess/repository"
	"worker-preprocess/service"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("NewRabbitMQConn")
	}

	repo := repository.NewRepo(cfg.DB)
	store := objectstore.NewMinioStore(cfg.Storage)
	detector := service.NewFaceDetector(ctx, cfg.Pipeline.CascadeFile)

	publisher, err := rabbitmq.NewPublisher(conn, cfg.Queue, cfg.Bus.Partitions)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("NewPublisher")
	}
	defer publisher.Close()

	pipeline := service.NewPipeline(store, detector, cfg)
	preprocessService := service.NewService(repo, pipeline, publisher, cfg.Bus.TopicPreprocessed)

	serviceDeps := jobHandler.ServiceDependencies{
		PreprocessService: preprocessService,
	}

	assigned := cfg.Bus.Assigned
	if len(assigned) == 0 {
		assigned = rabbitmq.AllPartitions(cfg.Bus.Partitions)
	}

	// Submission consumer: one sequential goroutine per assigned partition,
	// in-flight jobs run to completion on shutdown.
	submissionConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Bus.TopicSubmitted, assigned, jobHandler.SubmissionHandler)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := submissionConsumer.Consume(ctx, serviceDeps); err != nil && !errors.Is(err, context.Canceled) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Submission consumer error")
		}
	}()

	r := gin.Default()
	addHealth(r)
	newIntake(cfg, repo, store, publisher).register(r)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	// Wait for the in-flight job to finish so nothing is left stuck in
	// preprocessing.
	<-consumerDone

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
