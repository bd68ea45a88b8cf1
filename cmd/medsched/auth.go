package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/medical-scheduling/internal/api/http"
	"github.com/spec-kit/medical-scheduling/internal/api/http/handlers"
	"github.com/spec-kit/medical-scheduling/internal/observability"
	"github.com/spec-kit/medical-scheduling/internal/persistence"
	"github.com/spec-kit/medical-scheduling/internal/repository"
	"github.com/spec-kit/medical-scheduling/internal/service"
)

func newAuthCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Run the token service (register, login, validate)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := bootstrap("auth")
			defer logger.Sync() //nolint:errcheck

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, "medsched-auth", logger)
			if err != nil {
				logger.Fatal("failed to connect postgres", zap.Error(err))
			}
			defer pg.Close()

			if cfg.Postgres.RunMigrations {
				if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
					logger.Fatal("failed to run migrations", zap.Error(err))
				}
			}

			var users repository.UserRepository
			if pool := pg.PoolHandle(); pool != nil {
				users = repository.NewUserRepository(pool)
			} else {
				users = repository.NewMemoryUserRepository()
			}

			authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
				UserRepo: users,
				Logger:   logger,
			})

			metrics := observability.NewMetrics()
			app := httptransport.NewApp(cfg.App.Name + "-auth")
			httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
			httptransport.RegisterHealthRoutes(app, handlers.NewHealthHandler("auth", cfg.App.Version, metrics, map[string]handlers.Pinger{
				"postgres": pg,
			}))
			httptransport.RegisterAuthRoutes(app, handlers.NewUsersHandler(authService))

			return serve(app, listenAddr(cfg, port, "8081"), logger)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default 8081)")
	return cmd
}
