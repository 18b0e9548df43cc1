package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthServer reports SERVING while the checkout database answers pings.
// The empty service name and the service's own name are recognized.
type HealthServer struct {
	healthpb.UnimplementedHealthServer
	serviceName string
	db          Pinger
}

func NewHealthServer(serviceName string, db Pinger) *HealthServer {
	return &HealthServer{serviceName: serviceName, db: db}
}

func (s *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	name := req.GetService()
	if name != "" && name != s.serviceName {
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := s.db.PingContext(pingCtx); err != nil {
		loggerWithContext(ctx).WithError(err).Warn("Health check database ping failed")
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}

	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
