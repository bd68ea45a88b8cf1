package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/medical-scheduling/internal/api/http"
	"github.com/spec-kit/medical-scheduling/internal/api/http/handlers"
	"github.com/spec-kit/medical-scheduling/internal/auth"
	"github.com/spec-kit/medical-scheduling/internal/gateway"
	"github.com/spec-kit/medical-scheduling/internal/observability"
)

func newGatewayCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the trust gateway in front of the auth and scheduler services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := bootstrap("gateway")
			defer logger.Sync() //nolint:errcheck

			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
			opts := gateway.UpstreamOptions{
				Timeout:     cfg.Gateway.UpstreamTimeout(),
				MaxFailures: cfg.Gateway.BreakerMaxFailures,
				OpenFor:     cfg.Gateway.BreakerOpen(),
			}
			authUpstream := gateway.NewUpstream("auth", cfg.Gateway.AuthUpstream, opts, logger)
			schedulerUpstream := gateway.NewUpstream("scheduler", cfg.Gateway.SchedulerUpstream, opts, logger)

			gw := gateway.New(tokens, cfg.Gateway.VerifyTimeout(), []gateway.Route{
				{Prefix: "/auth/login", Access: gateway.AccessPublic, Target: authUpstream},
				{Prefix: "/auth/validate", Access: gateway.AccessPublic, Target: authUpstream},
				{Prefix: "/auth/register", Access: gateway.AccessOptional, Target: authUpstream},
				{Prefix: "/auth/users", Access: gateway.AccessProtected, Target: authUpstream},
				{Prefix: "/appointments", Access: gateway.AccessProtected, Target: schedulerUpstream},
			}, logger)

			metrics := observability.NewMetrics()
			app := httptransport.NewApp(cfg.App.Name + "-gateway")
			httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
			httptransport.RegisterHealthRoutes(app, handlers.NewHealthHandler("gateway", cfg.App.Version, metrics, map[string]handlers.Pinger{
				"auth":      authUpstream,
				"scheduler": schedulerUpstream,
			}))
			app.All("/*", gw.Handle)

			addr := listenAddr(cfg, port, "8080")
			logger.Info("gateway configured",
				zap.String("auth_upstream", cfg.Gateway.AuthUpstream),
				zap.String("scheduler_upstream", cfg.Gateway.SchedulerUpstream))
			return serve(app, addr, logger)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default 8080)")
	return cmd
}
