package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// SimCollector bundles Prometheus metrics for a simulation run and the
// monitoring RPC surface. It satisfies core.MetricsRecorder.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Ticks              prometheus.Counter
	StepDuration       prometheus.Histogram
	Spacecraft         prometheus.Gauge
	DisturbanceTorque  *prometheus.GaugeVec
	RelativeDistance   *prometheus.GaugeVec
	MonitorRequests    *prometheus.CounterVec
	MonitorRPCDuration *prometheus.HistogramVec
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_ticks_total",
		Help: "Number of base ticks the engine has completed.",
	}), "sim_ticks_total")
	if err != nil {
		return nil, err
	}

	stepDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_step_duration_seconds",
		Help:    "Wall-clock duration of one engine step.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}), "sim_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	spacecraft, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_spacecraft",
		Help: "Current number of spacecraft in the arena.",
	}), "sim_spacecraft")
	if err != nil {
		return nil, err
	}

	torque, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_disturbance_torque_newton_meters",
		Help: "Norm of the latest disturbance torque, labeled by spacecraft and disturbance.",
	}, []string{"spacecraft", "disturbance"}), "sim_disturbance_torque_newton_meters")
	if err != nil {
		return nil, err
	}

	distance, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_relative_distance_meters",
		Help: "Latest distance between two tracked spacecraft.",
	}, []string{"target", "reference"}), "sim_relative_distance_meters")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_requests_total",
		Help: "Total number of handled monitoring RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "monitor_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "monitor_request_duration_seconds",
		Help:    "Monitoring RPC latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"service", "method"}), "monitor_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:           gatherer,
		Ticks:              ticks,
		StepDuration:       stepDuration,
		Spacecraft:         spacecraft,
		DisturbanceTorque:  torque,
		RelativeDistance:   distance,
		MonitorRequests:    requests,
		MonitorRPCDuration: durations,
	}, nil
}

// ObserveStep counts one completed tick and records its duration.
func (c *SimCollector) ObserveStep(d time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.StepDuration.Observe(d.Seconds())
}

// SetSpacecraftCount updates the arena size gauge.
func (c *SimCollector) SetSpacecraftCount(n int) {
	if c == nil {
		return
	}
	c.Spacecraft.Set(float64(n))
}

func (c *SimCollector) SetDisturbanceTorque(spacecraft, disturbance string, norm float64) {
	if c == nil {
		return
	}
	c.DisturbanceTorque.WithLabelValues(spacecraft, disturbance).Set(norm)
}

func (c *SimCollector) SetRelativeDistance(target, reference string, distance float64) {
	if c == nil {
		return
	}
	c.RelativeDistance.WithLabelValues(target, reference).Set(distance)
}

// ForgetSpacecraft drops every series labeled with a removed spacecraft.
func (c *SimCollector) ForgetSpacecraft(name string) {
	if c == nil {
		return
	}
	c.DisturbanceTorque.DeletePartialMatch(prometheus.Labels{"spacecraft": name})
	c.RelativeDistance.DeletePartialMatch(prometheus.Labels{"target": name})
	c.RelativeDistance.DeletePartialMatch(prometheus.Labels{"reference": name})
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *SimCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		c.MonitorRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		c.MonitorRPCDuration.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil || c.gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Gatherer(), promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	parts := strings.Split(strings.TrimPrefix(fullMethod, "/"), "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

// register adds col to reg, returning the already registered collector of
// the same type when there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	return register(reg, c, name)
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	return register(reg, c, name)
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	return register(reg, g, name)
}

func registerGaugeVec(reg prometheus.Registerer, g *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	return register(reg, g, name)
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	return register(reg, h, name)
}

func registerHistogramVec(reg prometheus.Registerer, h *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	return register(reg, h, name)
}
