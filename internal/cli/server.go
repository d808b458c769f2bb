package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toohak-game-service/internal/app"
	"toohak-game-service/internal/config"
	"toohak-game-service/internal/domain"
	"toohak-game-service/internal/infra/memory"
	pgloader "toohak-game-service/internal/infra/postgres"
	redisinfra "toohak-game-service/internal/infra/redis"
	transport "toohak-game-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgloader.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var games app.GameStore
	if redisClient != nil {
		store := redisinfra.NewGameStore(redisClient)
		if err := store.Restore(ctx); err != nil {
			log.Printf("failed to restore games from redis: %v", err)
		}
		games = store
	} else {
		games = memory.NewGameStore()
	}

	sessions := memory.NewSessionDirectory()
	if cfg.Admin.SeedToken != "" {
		sessions.Seed(cfg.Admin.SeedToken, cfg.Admin.SeedUserID)
	}

	service := app.NewGameService(games, quizRepo, sessions)
	handler := transport.NewHandler(service, sessions)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting game service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes backs the static loader used when postgres is not configured.
func sampleQuizzes() map[int]domain.Quiz {
	return map[int]domain.Quiz{
		1: {
			QuizID:  1,
			OwnerID: 1,
			Name:    "Arithmetic warmup",
			Questions: []domain.Question{
				{
					QuestionID: 1,
					Question:   "What is 2 + 2?",
					TimeLimit:  30,
					Points:     5,
					AnswerOptions: []domain.AnswerOption{
						{AnswerID: 1, Answer: "3", Correct: false, Colour: "red"},
						{AnswerID: 2, Answer: "4", Correct: true, Colour: "blue"},
						{AnswerID: 3, Answer: "5", Correct: false, Colour: "green"},
					},
				},
			},
		},
	}
}
