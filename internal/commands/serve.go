package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/typecatalog/internal/app"
	"github.com/nainya/typecatalog/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog gRPC server",
	Long: `Start the gRPC catalog service and the observability HTTP server
(/metrics, /health, /ready, /debug/pprof).`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.LogServerStart(cfg.Server.GRPCPort, cfg.Store.Driver)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize catalog: %w", err)
	}
	defer a.Close()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(a.Metrics, log)),
		grpc.MaxRecvMsgSize(16*1024*1024),
		grpc.MaxSendMsgSize(64*1024*1024),
	)
	server.RegisterCatalogServer(grpcServer, a.Server())

	// Register reflection service for grpcurl/grpcui
	reflection.Register(grpcServer)

	uptimeStop := make(chan struct{})
	defer close(uptimeStop)
	go a.Metrics.StartUptime(uptimeStop)

	errChan := make(chan error, 2)

	var obs *server.ObservabilityServer
	if cfg.Server.MetricsPort > 0 {
		obs = server.NewObservabilityServer(cfg.Server.MetricsPort, a.Registry, a.Ready, log)
		go func() {
			if err := obs.Start(); err != nil {
				errChan <- err
			}
		}()
	}

	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- err
		}
	}()
	log.LogServerReady(cfg.Server.GRPCPort)

	select {
	case <-ctx.Done():
	case err := <-errChan:
		grpcServer.Stop()
		return fmt.Errorf("server error: %w", err)
	}

	log.LogServerShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if obs != nil {
		if err := obs.Shutdown(shutdownCtx); err != nil {
			log.Warn("Observability server shutdown failed").Err(err).Send()
		}
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
	return nil
}
