package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/kraabmod/profiles-service/internal/logging"
)

// GRPCServer matches the lifecycle methods of *grpc.Server.
type GRPCServer interface {
	Serve(lis net.Listener) error
	GracefulStop()
	Stop()
}

// Listen opens the listener for a gRPC server.
type Listen func(network, address string) (net.Listener, error)

// GRPCServerService wraps a gRPC server as a supervised service.
type GRPCServerService struct {
	server          GRPCServer
	addr            string
	listen          Listen
	shutdownTimeout time.Duration
}

// NewGRPCServerService creates the wrapper for a server bound to addr.
func NewGRPCServerService(server GRPCServer, addr string, shutdownTimeout time.Duration) *GRPCServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &GRPCServerService{
		server:          server,
		addr:            addr,
		listen:          net.Listen,
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve implements suture.Service. On cancellation the server is stopped
// gracefully; if in-flight RPCs outlive shutdownTimeout it is stopped hard.
func (g *GRPCServerService) Serve(ctx context.Context) error {
	lis, err := g.listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("grpc server failed to listen on %s: %w", g.addr, err)
	}
	logging.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := g.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("grpc server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		stopped := make(chan struct{})
		go func() {
			g.server.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(g.shutdownTimeout):
			logging.Warn().Dur("timeout", g.shutdownTimeout).Msg("gRPC graceful stop timed out, forcing stop")
			g.server.Stop()
			<-stopped
		}
		<-errCh
		return ctx.Err()
	}
}

func (g *GRPCServerService) String() string {
	return "grpc-server"
}
