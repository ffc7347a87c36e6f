package resultsd

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GoSim-25-26J-441/experiment-core/pkg/logger"
)

// ServiceName is the gRPC health service name of the results server.
const ServiceName = "experiment.results.v1.Results"

// NewHealthServer returns a health server whose status follows store readiness.
func NewHealthServer(store *ReportStore) *health.Server {
	hs := health.NewServer()
	UpdateHealth(hs, store)
	return hs
}

// UpdateHealth sets the overall and results service status from store readiness.
func UpdateHealth(hs *health.Server, store *ReportStore) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if store.Ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
	return status
}

// WatchHealth refreshes the health status every interval until ctx is done,
// then marks every service as not serving.
func WatchHealth(ctx context.Context, hs *health.Server, store *ReportStore, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := UpdateHealth(hs, store)
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			if status := UpdateHealth(hs, store); status != last {
				logger.Info("results store health changed", "status", status.String())
				last = status
			}
		}
	}
}
