package client

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcmiddleware "github.com/autopeer-io/fleethub/internal/pkg/middleware/grpc"
)

// CheckHealth asks the hub's gRPC health service about service ("" for the
// whole server) and returns the serving status name. Calls without a deadline
// are bounded by timeout.
func CheckHealth(ctx context.Context, addr, service string, timeout time.Duration) (string, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpcmiddleware.WithDefaultTimeout(timeout)),
	)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", err
	}
	return resp.GetStatus().String(), nil
}
