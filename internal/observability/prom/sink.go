package prom

// Package prom adapts the StatsD-style Sink to Prometheus collectors so short-lived
// CLI runs can push session metrics to a Pushgateway.

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/target/ledgerly/internal/observability/statsd"
)

// Config controls the Prometheus sink.
type Config struct {
	Namespace string
	// PushURL is the Pushgateway address; empty disables Push.
	PushURL string
	Job     string
	Logger  *slog.Logger
}

// Sink lazily registers one collector per metric name. Label names are fixed by
// the first observation; later observations fill missing labels with "".
type Sink struct {
	namespace string
	pushURL   string
	job       string
	registry  *prometheus.Registry
	logger    *slog.Logger

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

var _ statsd.Sink = (*Sink)(nil)

// NewSink creates a sink backed by a private registry.
func NewSink(cfg Config) *Sink {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	job := cfg.Job
	if job == "" {
		job = "ledgerly"
	}
	return &Sink{
		namespace:  sanitize(cfg.Namespace),
		pushURL:    strings.TrimSpace(cfg.PushURL),
		job:        job,
		registry:   prometheus.NewRegistry(),
		logger:     logger,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

// Registry exposes the underlying registry, mainly for tests and handlers.
func (s *Sink) Registry() *prometheus.Registry { return s.registry }

// Count adds value to a counter named <namespace>_<name>_total.
func (s *Sink) Count(name string, value int64, tags map[string]string) {
	s.mu.Lock()
	vec, labels, err := s.counterLocked(name, tags)
	s.mu.Unlock()
	if err != nil {
		s.logger.Debug("prometheus counter unavailable", "metric", name, "error", err)
		return
	}
	vec.With(labelValues(labels, tags)).Add(float64(value))
}

// Gauge sets a gauge named <namespace>_<name>.
func (s *Sink) Gauge(name string, value float64, tags map[string]string) {
	s.mu.Lock()
	vec, labels, err := s.gaugeLocked(name, tags)
	s.mu.Unlock()
	if err != nil {
		s.logger.Debug("prometheus gauge unavailable", "metric", name, "error", err)
		return
	}
	vec.With(labelValues(labels, tags)).Set(value)
}

// Timing observes a histogram named <namespace>_<name>_seconds.
func (s *Sink) Timing(name string, value time.Duration, tags map[string]string) {
	s.mu.Lock()
	vec, labels, err := s.histogramLocked(name, tags)
	s.mu.Unlock()
	if err != nil {
		s.logger.Debug("prometheus histogram unavailable", "metric", name, "error", err)
		return
	}
	vec.With(labelValues(labels, tags)).Observe(value.Seconds())
}

// Push sends all collected metrics to the Pushgateway when configured.
func (s *Sink) Push() error {
	if s.pushURL == "" {
		return nil
	}
	if err := push.New(s.pushURL, s.job).Gatherer(s.registry).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

func (s *Sink) counterLocked(name string, tags map[string]string) (*prometheus.CounterVec, []string, error) {
	if vec, ok := s.counters[name]; ok {
		return vec, s.labels["c:"+name], nil
	}
	labels := labelNames(tags)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: s.fullName(name) + "_total",
		Help: "Count of " + name + " events.",
	}, labels)
	if err := s.registry.Register(vec); err != nil {
		return nil, nil, registerErr(err)
	}
	s.counters[name] = vec
	s.labels["c:"+name] = labels
	return vec, labels, nil
}

func (s *Sink) gaugeLocked(name string, tags map[string]string) (*prometheus.GaugeVec, []string, error) {
	if vec, ok := s.gauges[name]; ok {
		return vec, s.labels["g:"+name], nil
	}
	labels := labelNames(tags)
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: s.fullName(name),
		Help: "Current value of " + name + ".",
	}, labels)
	if err := s.registry.Register(vec); err != nil {
		return nil, nil, registerErr(err)
	}
	s.gauges[name] = vec
	s.labels["g:"+name] = labels
	return vec, labels, nil
}

func (s *Sink) histogramLocked(name string, tags map[string]string) (*prometheus.HistogramVec, []string, error) {
	if vec, ok := s.histograms[name]; ok {
		return vec, s.labels["h:"+name], nil
	}
	labels := labelNames(tags)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    s.fullName(name) + "_seconds",
		Help:    "Duration of " + name + ".",
		Buckets: prometheus.DefBuckets,
	}, labels)
	if err := s.registry.Register(vec); err != nil {
		return nil, nil, registerErr(err)
	}
	s.histograms[name] = vec
	s.labels["h:"+name] = labels
	return vec, labels, nil
}

func (s *Sink) fullName(name string) string {
	n := sanitize(name)
	if s.namespace == "" {
		return n
	}
	return s.namespace + "_" + n
}

func registerErr(err error) error {
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return fmt.Errorf("metric registered with a different type: %w", err)
	}
	return err
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		if k = sanitize(k); k != "" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func labelValues(names []string, tags map[string]string) prometheus.Labels {
	clean := make(map[string]string, len(tags))
	for k, v := range tags {
		clean[sanitize(k)] = v
	}
	out := make(prometheus.Labels, len(names))
	for _, n := range names {
		out[n] = clean[n]
	}
	return out
}

func sanitize(s string) string {
	return strings.Trim(strings.NewReplacer(".", "_", "-", "_", " ", "_", "/", "_").Replace(strings.TrimSpace(s)), "_")
}
