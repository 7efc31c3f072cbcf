package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"timed-quiz-runner/internal/app"
	"timed-quiz-runner/internal/config"
	"timed-quiz-runner/internal/infra/file"
	"timed-quiz-runner/internal/infra/memory"
	pgstore "timed-quiz-runner/internal/infra/postgres"
	redisstore "timed-quiz-runner/internal/infra/redis"
	"timed-quiz-runner/internal/logger"
	transport "timed-quiz-runner/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 3*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	keys := buildKeySource(cfg, pool, redisClient)

	var store app.SessionRepository
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	recent := memory.NewReportSink(config.TTLDuration(cfg.Quiz.ReportRetention, 24*time.Hour))
	sinks := app.MultiSink{recent}
	archives := []app.ReportArchive{recent}
	if cfg.Quiz.ReportDir != "" {
		sinks = append(sinks, file.NewReportSink(cfg.Quiz.ReportDir))
	}
	if pool != nil {
		stored := pgstore.NewReportSink(pool)
		sinks = append(sinks, stored)
		archives = append(archives, stored)
	}

	service := app.NewQuizService(store, keys, sinks, app.Settings{
		Questions:          cfg.Quiz.Questions,
		SecondsPerQuestion: cfg.Quiz.SecondsPerQuestion,
		ImagePattern:       cfg.Quiz.ImagePattern,
		Options:            cfg.Quiz.Options,
		AnswerKeyRef:       cfg.Quiz.AnswerKey,
		ReportFormat:       app.ParseReportFormat(cfg.Quiz.ReportFormat),
		KeyFetchTimeout:    config.TTLDuration(cfg.Quiz.KeyFetchTimeout, 10*time.Second),
	}, log, app.WithReportArchive(archives...))

	reaper := app.NewReaper(service, config.TTLDuration(cfg.Quiz.Retention, time.Hour), log)
	if err := reaper.Start(config.TTLDuration(cfg.Quiz.ReapInterval, 5*time.Minute)); err != nil {
		return err
	}
	defer reaper.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(service, log).ServeWS)
	mux.Handle("/report", transport.NewReportHandler(service, log))

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz runner", zap.String("port", finalPort), zap.String("answer_key", cfg.Quiz.AnswerKey))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	service.Wait()
	return err
}

// buildKeySource picks the answer key origin and wraps it in a cache.
func buildKeySource(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) app.AnswerKeySource {
	var loader memory.AnswerKeyLoader = file.NewAnswerKeySource(cfg.Quiz.AnswerKeyDir, &http.Client{
		Timeout: config.TTLDuration(cfg.Quiz.KeyFetchTimeout, 10*time.Second),
	})
	if cfg.Quiz.AnswerKeySource == "postgres" && pool != nil {
		loader = pgstore.NewAnswerKeyLoader(pool)
	}

	keyTTL := config.TTLDuration(cfg.Quiz.KeyTTL, 10*time.Minute)
	if redisClient != nil {
		return redisstore.NewAnswerKeyCache(redisClient, loader, keyTTL)
	}
	return memory.NewAnswerKeyCache(loader, keyTTL)
}
