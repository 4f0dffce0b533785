// Package metrics counts requests, transport errors and findings of a scan
// and optionally serves them for prometheus scraping
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Phases label requests
const (
	PhaseCrawl  = "crawl"
	PhaseAttack = "attack"
)

// Recorder holds the scan metrics. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry *prometheus.Registry
	server   *http.Server

	requestsTotal        *prometheus.CounterVec
	transportErrorsTotal *prometheus.CounterVec
	findingsTotal        *prometheus.CounterVec
	crawledTotal         prometheus.Counter
	moduleSeconds        *prometheus.GaugeVec
}

// New creates a recorder on its own registry
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_requests_total",
			Help: "Total number of requests sent to the target",
		},
		[]string{"phase"},
	)
	r.transportErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_transport_errors_total",
			Help: "Total number of network level failures",
		},
		[]string{"module"},
	)
	r.findingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_findings_total",
			Help: "Total number of findings reported",
		},
		[]string{"module", "type"},
	)
	r.crawledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trawler_resources_crawled_total",
			Help: "Total number of resources fetched by the explorer",
		},
	)
	r.moduleSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trawler_module_duration_seconds",
			Help: "Time spent attacking per module",
		},
		[]string{"module"},
	)

	r.registry.MustRegister(r.requestsTotal, r.transportErrorsTotal, r.findingsTotal, r.crawledTotal, r.moduleSeconds)
	return r
}

// Request counts a request sent during phase
func (r *Recorder) Request(phase string) {
	if r == nil {
		return
	}
	r.requestsTotal.WithLabelValues(phase).Inc()
}

// TransportError counts a network failure, module is empty while crawling
func (r *Recorder) TransportError(module string) {
	if r == nil {
		return
	}
	if module == "" {
		module = PhaseCrawl
	}
	r.transportErrorsTotal.WithLabelValues(module).Inc()
}

// Finding counts a finding of type payloadType reported by module
func (r *Recorder) Finding(module, payloadType string) {
	if r == nil {
		return
	}
	r.findingsTotal.WithLabelValues(module, payloadType).Inc()
}

// Crawled counts a fetched resource
func (r *Recorder) Crawled() {
	if r == nil {
		return
	}
	r.crawledTotal.Inc()
}

// ModuleDuration records how long a module ran
func (r *Recorder) ModuleDuration(module string, d time.Duration) {
	if r == nil {
		return
	}
	r.moduleSeconds.WithLabelValues(module).Set(d.Seconds())
}

// Registry for tests and custom exposition
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Serve /metrics on addr until Close is called
func (r *Recorder) Serve(addr string) error {
	if r == nil {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "metrics listener")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	r.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := r.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return nil
}

// Close the metrics server if it was started
func (r *Recorder) Close() error {
	if r == nil || r.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.server.Shutdown(ctx)
}
