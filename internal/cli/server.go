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
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
	pgloader "quiz-room-service/internal/infra/postgres"
	redisinfra "quiz-room-service/internal/infra/redis"
	transport "quiz-room-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuestionSetLoader = memory.NewStaticQuestionSetLoader(sampleQuestionSets())
	if pool != nil {
		loader = pgloader.NewQuestionSetLoader(pool)
	}

	setTTL := config.TTLDuration(cfg.QuestionSets.TTL, 10*time.Minute)
	var setRepo app.QuestionSetRepository
	if redisClient != nil {
		setRepo = redisinfra.NewQuestionSetRepository(redisClient, loader, setTTL)
	} else {
		setRepo = memory.NewQuestionSetRepository(loader, setTTL)
	}

	var registry app.RoomRegistry
	if redisClient != nil {
		registry = redisinfra.NewRoomRegistry(redisClient, redisTTL)
	} else {
		registry = memory.NewRoomRegistry()
	}
	service := app.NewGameService(registry, setRepo)
	wsHandler := transport.NewWSHandler(service)

	corsOptions := cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}
	if len(corsOptions.AllowedOrigins) == 0 {
		corsOptions.AllowedOrigins = []string{"*"}
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      cors.New(corsOptions).Handler(wsHandler.Routes()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quiz room service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestionSets provides minimal demo content; a Postgres-backed loader
// replaces this in production.
func sampleQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"set-1": {
			ID: "set-1",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Prompt:        "What is 2 + 2?",
					Options:       []string{"3", "4", "5"},
					CorrectAnswer: "4",
				},
				{
					ID:            "q2",
					Prompt:        "Which planet is closest to the sun?",
					Options:       []string{"Venus", "Mercury", "Mars"},
					CorrectAnswer: "Mercury",
				},
			},
		},
	}
}
