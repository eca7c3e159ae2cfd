package api

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/kraabmod/profiles-service/internal/database"
	"github.com/kraabmod/profiles-service/internal/logging"
)

const defaultHealthInterval = 10 * time.Second

// NewGRPCServer returns a gRPC server exposing the standard health checking
// protocol and server reflection.
func NewGRPCServer(opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(opts...)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, hs)
	reflection.Register(s)
	return s, hs
}

// HealthReporter keeps the gRPC health status in step with the database:
// SERVING while the pool answers pings, NOT_SERVING while it is down or
// being recreated.
type HealthReporter struct {
	hs       *health.Server
	db       DBHealth
	interval time.Duration
}

// NewHealthReporter creates a reporter polling db every interval.
func NewHealthReporter(hs *health.Server, db DBHealth, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthReporter{hs: hs, db: db, interval: interval}
}

// Check probes the database once and publishes the result for both the
// overall server ("") and this service's name.
func (r *HealthReporter) Check(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	status := grpc_health_v1.HealthCheckResponse_SERVING

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if r.db.State() == database.StateReconnecting {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	} else if err := r.db.Ping(pingCtx); err != nil {
		logging.Debug().Err(err).Msg("gRPC health: database ping failed")
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}

	r.hs.SetServingStatus("", status)
	r.hs.SetServingStatus(serviceName, status)
	return status
}

// Serve implements suture.Service.
func (r *HealthReporter) Serve(ctx context.Context) error {
	r.Check(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.hs.Shutdown()
			return ctx.Err()
		case <-ticker.C:
			r.Check(ctx)
		}
	}
}

func (r *HealthReporter) String() string {
	return "grpc-health-reporter"
}
