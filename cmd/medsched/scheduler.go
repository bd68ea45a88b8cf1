package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/medical-scheduling/internal/api/http"
	"github.com/spec-kit/medical-scheduling/internal/api/http/handlers"
	"github.com/spec-kit/medical-scheduling/internal/events"
	"github.com/spec-kit/medical-scheduling/internal/observability"
	"github.com/spec-kit/medical-scheduling/internal/persistence"
	"github.com/spec-kit/medical-scheduling/internal/repository"
	"github.com/spec-kit/medical-scheduling/internal/service"
	"github.com/spec-kit/medical-scheduling/internal/worker"
)

func newSchedulerCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the appointment scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := bootstrap("scheduler")
			defer logger.Sync() //nolint:errcheck

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, "medsched-scheduler", logger)
			if err != nil {
				logger.Fatal("failed to connect postgres", zap.Error(err))
			}
			defer pg.Close()

			if cfg.Postgres.RunMigrations {
				if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
					logger.Fatal("failed to run migrations", zap.Error(err))
				}
			}

			redis := persistence.NewRedis(ctx, cfg.Redis, logger)
			defer redis.Close()

			var appointments repository.AppointmentRepository
			if pool := pg.PoolHandle(); pool != nil {
				appointments = repository.NewAppointmentRepository(pool)
			} else {
				appointments = repository.NewMemoryAppointmentRepository()
			}

			dispatcher := events.NewInMemoryDispatcher()
			worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))
			if redis.Client != nil {
				worker.StartEventRelay(dispatcher, events.NewRedisRelay(redis.Client, cfg.Redis.EventsChannel))
			}

			scheduling := service.NewSchedulingService(cfg.Scheduler, service.SchedulingDependencies{
				AppointmentRepo: appointments,
				Dispatcher:      dispatcher,
				Logger:          logger,
			})

			metrics := observability.NewMetrics()
			app := httptransport.NewApp(cfg.App.Name + "-scheduler")
			httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
			httptransport.RegisterHealthRoutes(app, handlers.NewHealthHandler("scheduler", cfg.App.Version, metrics, map[string]handlers.Pinger{
				"postgres": pg,
				"redis":    redis,
			}))
			httptransport.RegisterSchedulerRoutes(app, handlers.NewAppointmentsHandler(scheduling))

			return serve(app, listenAddr(cfg, port, "8082"), logger)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default 8082)")
	return cmd
}
