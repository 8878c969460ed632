package cli

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"lms-progress-service/internal/config"
	"lms-progress-service/internal/domain"
	"lms-progress-service/internal/infra/memory"
	"lms-progress-service/internal/infra/postgres"
	infraredis "lms-progress-service/internal/infra/redis"
)

// NewSeedCmd loads the demo catalog into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	db, err := openBun(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrate(ctx, db, log); err != nil {
		return err
	}
	w := &quizTracker{CatalogWriter: postgres.NewStore(db)}
	if err := memory.SeedDemo(ctx, w); err != nil {
		return err
	}
	log.Info("demo catalog loaded", "quizzes", len(w.quizIDs))

	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()
	cache := infraredis.NewQuizRepository(client, nil, 0)
	for _, id := range w.quizIDs {
		if err := cache.Invalidate(ctx, id); err != nil {
			log.Warn("invalidate cached quiz failed", "quiz_id", id, "error", err)
		}
	}
	return nil
}

// quizTracker records the quizzes written through it.
type quizTracker struct {
	memory.CatalogWriter
	quizIDs []string
}

func (w *quizTracker) PutQuiz(ctx context.Context, q domain.Quiz) error {
	if err := w.CatalogWriter.PutQuiz(ctx, q); err != nil {
		return err
	}
	w.quizIDs = append(w.quizIDs, q.ID)
	return nil
}
