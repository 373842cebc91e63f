package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/teresa-solution/tenant-provisioning-service/internal/api"
	"github.com/teresa-solution/tenant-provisioning-service/internal/api/handlers"
	"github.com/teresa-solution/tenant-provisioning-service/internal/app"
	"github.com/teresa-solution/tenant-provisioning-service/internal/config"
	"github.com/teresa-solution/tenant-provisioning-service/internal/grpcapi"
	"github.com/teresa-solution/tenant-provisioning-service/internal/logging"
	"github.com/teresa-solution/tenant-provisioning-service/internal/monitoring"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "tenant-server",
		Short:        "Tenant provisioning service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	monitoring.InitMetrics()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Provisioner.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("application database unreachable at startup")
	}

	router := api.NewRouter(api.Deps{
		Tenants: a.Tenants,
		Admins:  a.Admins,
		Tokens:  a.Tokens,
		Auditor: a.Admins,
		Events:  a.Events,
		Sync:    a.Sync,
		Health: map[string]handlers.Pinger{
			"directory":   a.DB,
			"application": a.Provisioner,
		},
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpcapi.NewServer(a.Tenants, logger)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on grpc port: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Msgf("gRPC server listening at %v", lis.Addr())
		if err := grpcServer.GRPC.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		log.Info().Msgf("HTTP server listening on :%d", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go grpcServer.MonitorHealth(ctx, 15*time.Second, map[string]grpcapi.Pinger{
		"directory":   a.DB,
		"application": a.Provisioner,
	})
	if cfg.Provisioning.SyncInterval > 0 {
		go a.Sync.Run(ctx, cfg.Provisioning.SyncInterval)
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server...")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("server failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	grpcServer.GracefulStop()

	log.Info().Msg("Server exiting")
	return runErr
}
