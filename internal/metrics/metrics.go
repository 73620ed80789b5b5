// Package metrics exposes Prometheus instruments for auth outcomes and cache health.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rotation outcomes.
const (
	RotationOK       = "ok"
	RotationNotFound = "not_found"
	RotationInvalid  = "invalid"
	RotationReuse    = "reuse"
	RotationExpired  = "expired"
	RotationRace     = "race"
)

// Metrics holds every instrument on a private registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	login         *prometheus.CounterVec
	rotation      *prometheus.CounterVec
	logout        prometheus.Counter
	code          *prometheus.CounterVec
	cacheHealthy  prometheus.Gauge
	cacheFailures *prometheus.CounterVec
}

// New registers the instruments on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	m := &Metrics{
		reg: reg,
		login: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeeper_login_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		rotation: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeeper_rotation_total",
			Help: "Refresh-token rotations by outcome.",
		}, []string{"outcome"}),
		logout: f.NewCounter(prometheus.CounterOpts{
			Name: "authkeeper_logout_total",
			Help: "Completed logouts.",
		}),
		code: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeeper_code_total",
			Help: "One-time-code operations by op and outcome.",
		}, []string{"op", "outcome"}),
		cacheHealthy: f.NewGauge(prometheus.GaugeOpts{
			Name: "authkeeper_cache_healthy",
			Help: "1 when the ephemeral cache answered the last health check or operation.",
		}),
		cacheFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeeper_cache_failures_total",
			Help: "Cache operations that failed after retries.",
		}, []string{"op"}),
	}
	m.cacheHealthy.Set(1)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Login(outcome string) {
	if m != nil {
		m.login.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Rotation(outcome string) {
	if m != nil {
		m.rotation.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Logout() {
	if m != nil {
		m.logout.Inc()
	}
}

func (m *Metrics) Code(op, outcome string) {
	if m != nil {
		m.code.WithLabelValues(op, outcome).Inc()
	}
}

// CacheHealth tracks cache.Options.OnHealthChange.
func (m *Metrics) CacheHealth(healthy bool) {
	if m == nil {
		return
	}
	if healthy {
		m.cacheHealthy.Set(1)
	} else {
		m.cacheHealthy.Set(0)
	}
}

// CacheFailure tracks cache.Options.OnFailure.
func (m *Metrics) CacheFailure(op string) {
	if m != nil {
		m.cacheFailures.WithLabelValues(op).Inc()
	}
}
