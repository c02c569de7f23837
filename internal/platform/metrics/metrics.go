package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collectors は gRPC リクエストに関するメトリクス群です。
type Collectors struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
	Denials  *prometheus.CounterVec
}

// NewCollectors は Collectors を生成し、reg に登録します。reg が nil の場合は登録しません。
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "org",
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "Total number of gRPC requests broken down by method and status code.",
		}, []string{"method", "code"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "org",
			Subsystem: "grpc",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for gRPC requests.",
			Buckets: []float64{
				0.0005, 0.001, 0.002, 0.005,
				0.01, 0.02, 0.05, 0.1,
				0.2, 0.5, 1, 2,
			},
		}, []string{"method"}),
		Denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "org",
			Subsystem: "access",
			Name:      "denials_total",
			Help:      "Requests rejected as unauthenticated or forbidden, broken down by method and role.",
		}, []string{"method", "role", "code"}),
	}
	if reg != nil {
		reg.MustRegister(c.Requests, c.Latency, c.Denials)
	}
	return c
}

// ObserveRequest はリクエスト 1 件の結果を記録します。
func (c *Collectors) ObserveRequest(method, code string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Requests.With(prometheus.Labels{"method": method, "code": code}).Inc()
	c.Latency.With(prometheus.Labels{"method": method}).Observe(elapsed.Seconds())
}

// ObserveDenial はアクセス拒否を記録します。
func (c *Collectors) ObserveDenial(method, role, code string) {
	if c == nil {
		return
	}
	c.Denials.With(prometheus.Labels{"method": method, "role": role, "code": code}).Inc()
}

// Server は /metrics を公開する HTTP リスナーです。
type Server struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger
}

// NewServer は gatherer の内容を addr で公開する Server を構築します。
func NewServer(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &Server{
		addr: addr,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run は待ち受けを開始し、コンテキストがキャンセルされると停止します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("metrics server listening", zap.String("addr", s.addr))
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
