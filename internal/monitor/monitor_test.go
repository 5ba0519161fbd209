package monitor

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/signalsfoundry/spacecraft-simulator/internal/logging"
	"github.com/signalsfoundry/spacecraft-simulator/internal/observability"
)

func startBufconn(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return healthpb.NewHealthClient(conn)
}

func TestHealthTracksServingState(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewSimCollector(reg)
	require.NoError(t, err)

	s := New(collector, nil)
	client := startBufconn(t, s)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	s.SetServing(true)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown"})
	require.Error(t, err)

	require.Equal(t, 3.0, testutil.ToFloat64(collector.MonitorRequests.WithLabelValues("Health", "Check", "OK")))
	require.Equal(t, 1.0, testutil.ToFloat64(collector.MonitorRequests.WithLabelValues("Health", "Check", "NotFound")))
}

func TestRPCLogsCarryRunID(t *testing.T) {
	var buf bytes.Buffer
	s := New(nil, logging.New(logging.Config{Level: "debug", Output: &buf}))
	s.SetRun("run-42")
	client := startBufconn(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "run_id=run-42")
	require.Contains(t, buf.String(), "method=/grpc.health.v1.Health/Check")
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewSimCollector(reg)
	require.NoError(t, err)
	collector.SetSpacecraftCount(4)

	rr := httptest.NewRecorder()
	New(collector, nil).Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "sim_spacecraft 4"))
}
