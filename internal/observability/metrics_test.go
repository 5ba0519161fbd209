package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestSimCollectorRecordsSteps(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.ObserveStep(2 * time.Millisecond)
	collector.ObserveStep(3 * time.Millisecond)
	collector.SetSpacecraftCount(2)

	if got := testutil.ToFloat64(collector.Ticks); got != 2 {
		t.Fatalf("sim_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Spacecraft); got != 2 {
		t.Fatalf("sim_spacecraft = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "sim_step_duration_seconds", nil); count != 2 {
		t.Fatalf("sim_step_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestForgetSpacecraftDropsSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.SetDisturbanceTorque("sat-a", "gravity_gradient", 1e-6)
	collector.SetDisturbanceTorque("sat-b", "gravity_gradient", 2e-6)
	collector.SetRelativeDistance("sat-b", "sat-a", 100)
	collector.SetRelativeDistance("sat-c", "sat-b", 50)

	collector.ForgetSpacecraft("sat-a")

	if got := testutil.CollectAndCount(collector.DisturbanceTorque); got != 1 {
		t.Fatalf("disturbance torque series = %d, want 1", got)
	}
	if got := testutil.CollectAndCount(collector.RelativeDistance); got != 1 {
		t.Fatalf("relative distance series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(collector.RelativeDistance.WithLabelValues("sat-c", "sat-b")); got != 50 {
		t.Fatalf("remaining distance = %v, want 50", got)
	}
}

func TestCollectorsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimCollector: %v", err)
	}
	second.ObserveStep(time.Millisecond)
	if got := testutil.ToFloat64(first.Ticks); got != 1 {
		t.Fatalf("re-registered collector does not share counters: %v", got)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})

	if got := testutil.ToFloat64(collector.MonitorRequests.WithLabelValues("Health", "Check", "NotFound")); got != 1 {
		t.Fatalf("monitor_requests_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "monitor_request_duration_seconds", map[string]string{
		"service": "Health",
		"method":  "Check",
	}); count != 1 {
		t.Fatalf("monitor_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestSchedulerCollectorObservesExecution(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSchedulerCollector(reg)
	if err != nil {
		t.Fatalf("NewSchedulerCollector: %v", err)
	}

	collector.ObserveExecution("gyro", true, time.Microsecond)
	collector.ObserveExecution("gyro", false, time.Microsecond)
	collector.ObserveExecution("gyro", true, time.Microsecond)

	if got := testutil.ToFloat64(collector.ComponentRuns.WithLabelValues("gyro", "main")); got != 2 {
		t.Fatalf("main runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.ComponentRuns.WithLabelValues("gyro", "off")); got != 1 {
		t.Fatalf("off runs = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "scheduler_component_run_duration_seconds", map[string]string{"component": "gyro"}); count != 3 {
		t.Fatalf("run duration sample_count = %d, want 3", count)
	}
}

func TestMetricsHandlerExposesSimMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.ObserveStep(time.Millisecond)
	collector.SetSpacecraftCount(3)
	collector.SetDisturbanceTorque("sat-a", "magnetic", 1e-7)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"sim_ticks_total",
		"sim_step_duration_seconds",
		"sim_spacecraft 3",
		`sim_disturbance_torque_newton_meters{disturbance="magnetic",spacecraft="sat-a"}`,
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		"":                             {"unknown", "unknown"},
		"/grpc.health.v1.Health/Check": {"Health", "Check"},
		"Check":                        {"unknown", "unknown"},
		"/svc/":                        {"svc", "unknown"},
	}
	for in, want := range cases {
		s, m := SplitMethod(in)
		if s != want[0] || m != want[1] {
			t.Fatalf("SplitMethod(%q) = %q, %q; want %q, %q", in, s, m, want[0], want[1])
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
