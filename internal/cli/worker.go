package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"lms-progress-service/internal/app"
	"lms-progress-service/internal/config"
)

const defaultInviteExpirySchedule = "@every 1m"

// NewWorkerCmd runs scheduled maintenance jobs.
func NewWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run scheduled jobs (invite expiry)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), *configPath)
		},
	}
}

func runWorker(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	if cfg.Postgres.URL == "" {
		return errors.New("worker requires postgres")
	}

	rt, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	sched, err := startScheduler(rt.engine, cfg.Worker.InviteExpirySchedule, log)
	if err != nil {
		return err
	}
	log.Info("worker started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}
	log.Info("stopping worker")
	<-sched.Stop().Done()
	return nil
}

// startScheduler registers the maintenance jobs and starts the cron loop.
func startScheduler(engine *app.Engine, schedule string, log *slog.Logger) (*cron.Cron, error) {
	if schedule == "" {
		schedule = defaultInviteExpirySchedule
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		expireInvites(engine, log)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func expireInvites(engine *app.Engine, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := engine.Invites.ExpireStale(ctx)
	if err != nil {
		log.Error("expire invites failed", "error", err)
		return
	}
	if n > 0 {
		log.Info("invites expired", "count", n)
	}
}
