// Package monitor exposes a running simulation to operators: a gRPC health
// service that reports SERVING while the engine runs, and a Prometheus
// /metrics endpoint.
package monitor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/spacecraft-simulator/internal/logging"
	"github.com/signalsfoundry/spacecraft-simulator/internal/observability"
)

// ServiceName is the health service name of the simulation engine.
const ServiceName = "spacecraft.simulator.Engine"

// Server owns the gRPC health server and the metrics HTTP server.
type Server struct {
	log       logging.Logger
	collector *observability.SimCollector

	grpc   *grpc.Server
	health *health.Server

	mu      sync.Mutex
	metrics *http.Server
	runID   string
}

// New builds a server. A nil collector disables RPC metrics and /metrics
// falls back to the default Prometheus gatherer.
func New(collector *observability.SimCollector, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{log: log, collector: collector, health: health.NewServer()}
	s.grpc = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			s.runLoggerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetRun records the run currently executing. RPC logs carry its id.
func (s *Server) SetRun(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = id
}

func (s *Server) currentRun() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// runLoggerInterceptor attaches a logger annotated with the method and the
// active run id to the request context.
func (s *Server) runLoggerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		log := s.log.With(logging.String("method", info.FullMethod))
		if id := s.currentRun(); id != "" {
			ctx = logging.ContextWithRunID(ctx, id)
			log = log.With(logging.String("run_id", id))
		}
		ctx = logging.ContextWithLogger(ctx, log)

		resp, err := handler(ctx, req)
		log.Debug(ctx, "monitor rpc", logging.String("code", status.Code(err).String()))
		return resp, err
	}
}

// SetServing flips the engine and overall health status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
}

// Serve accepts gRPC connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info(context.Background(), "starting monitor gRPC server", logging.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Handler returns the HTTP mux serving /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.collector.Handler())
	return mux
}

// ServeMetrics starts the /metrics HTTP server on addr in the background.
func (s *Server) ServeMetrics(addr string) {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	s.mu.Lock()
	s.metrics = srv
	s.mu.Unlock()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()
	s.log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
}

// Stop marks the service as shutting down and stops both servers.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	s.grpc.GracefulStop()

	s.mu.Lock()
	srv := s.metrics
	s.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.log.Warn(ctx, "metrics server shutdown failed", logging.Err(err))
		}
	}
}
