package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"lms-progress-service/internal/app"
	"lms-progress-service/internal/config"
	"lms-progress-service/internal/infra/memory"
	"lms-progress-service/internal/infra/postgres"
	infraredis "lms-progress-service/internal/infra/redis"
	transport "lms-progress-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// runtime holds the wired engine and everything that must be closed with it.
type runtime struct {
	engine  *app.Engine
	events  app.EventBus
	limiter transport.Limiter
	closers []func()
	// inProcess is set when state lives in this process only.
	inProcess bool
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func buildRuntime(ctx context.Context, cfg config.Config, log *slog.Logger) (*runtime, error) {
	rt := &runtime{}

	var (
		store  app.Store
		loader memory.QuizLoader
	)
	if cfg.Postgres.URL != "" {
		db, err := openBun(cfg)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		if err := migrate(ctx, db, log); err != nil {
			rt.Close()
			return nil, err
		}
		if cfg.SeedDemo {
			if err := memory.SeedDemo(ctx, postgres.NewStore(db)); err != nil {
				rt.Close()
				return nil, err
			}
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		store = postgres.NewStore(db)
		loader = postgres.NewQuizLoader(pool)
	} else {
		mem := memory.NewStore()
		if cfg.SeedDemo {
			if err := memory.SeedDemo(ctx, mem); err != nil {
				return nil, err
			}
		}
		store = mem
		loader = mem
		rt.inProcess = true
		log.Warn("postgres not configured, using in-memory store")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		quizzes app.QuizRepository
		locker  app.Locker
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, err
		}
		quizzes = infraredis.NewQuizRepository(client, loader, config.TTLDuration(cfg.Redis.TTL, quizTTL))
		locker = infraredis.NewLocker(client, config.TTLDuration(cfg.Lock.TTL, 10*time.Second))
		rt.events = infraredis.NewEventBus(client, log)
		rt.limiter = infraredis.NewRateLimiter(client)
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
		locker = memory.NewLocker()
		rt.events = memory.NewEventBus()
	}

	rt.engine = app.New(app.Options{
		Store:           store,
		Quizzes:         quizzes,
		Locker:          locker,
		Events:          rt.events,
		Logger:          log,
		VerifyBaseURL:   cfg.Certificates.VerifyBaseURL,
		BulkConcurrency: cfg.Enrollment.BulkConcurrency,
	})
	return rt, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	rt, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	// With in-process state no separate worker can see the invites.
	if rt.inProcess {
		sched, err := startScheduler(rt.engine, cfg.Worker.InviteExpirySchedule, log)
		if err != nil {
			return err
		}
		defer sched.Stop()
	}

	if cfg.Auth.Secret == "" {
		return errors.New("auth secret not configured")
	}
	router := transport.NewRouter(transport.RouterConfig{
		Handler:         transport.NewHandler(rt.engine, log),
		Events:          transport.NewWSHandler(rt.events, log),
		Tokens:          transport.NewTokenManager(cfg.Auth.Secret, 0),
		Limiter:         rt.limiter,
		VerifyPerMinute: cfg.RateLimit.VerifyPerMinute,
		CORSOrigins:     cfg.Server.CORSOrigins,
		Logger:          log,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting lms service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
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
	return server.Shutdown(shutdownCtx)
}
