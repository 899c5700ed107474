// Package metrics exposes Prometheus counters for sessions, directory sync and
// signature rendering.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values.
const (
	LoginSuccess = "success"
	LoginInvalid = "invalid"
	LoginError   = "error"

	TierCache   = "cache"
	TierStore   = "store"
	TierMiss    = "miss"
	TierExpired = "expired"

	RenderAssigned = "assigned"
	RenderDefault  = "default"
	RenderNone     = "none"
)

// Recorder is what services report to. Collector is the Prometheus backed
// implementation and Nop discards everything.
type Recorder interface {
	RecordLogin(outcome string)
	RecordSessionLookup(tier string)
	RecordSessionsSwept(n int64)
	SetCachedSessions(n int)
	RecordSync(r domain.SyncResult)
	RecordDirectoryFailure(op string)
	RecordDirectoryLatency(d time.Duration)
	RecordRender(source string, fallback bool)
}

type Collector struct {
	logins         *prometheus.CounterVec
	sessionLookups *prometheus.CounterVec
	sessionsSwept  prometheus.Counter
	cachedSessions prometheus.Gauge
	syncProfiles   *prometheus.CounterVec
	syncRuns       prometheus.Counter
	directoryFail  *prometheus.CounterVec
	directoryLat   prometheus.Histogram
	renders        *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailsig_admin_logins_total",
			Help: "Admin login attempts by outcome.",
		}, []string{"outcome"}),
		sessionLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailsig_session_lookups_total",
			Help: "Session validations by the tier that answered.",
		}, []string{"tier"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailsig_sessions_swept_total",
			Help: "Expired session rows deleted by housekeeping.",
		}),
		cachedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mailsig_sessions_cached",
			Help: "Sessions currently held in the in-memory cache.",
		}),
		syncProfiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailsig_sync_profiles_total",
			Help: "Directory records reconciled, by result.",
		}, []string{"result"}),
		syncRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailsig_sync_runs_total",
			Help: "Reconciliation batches processed.",
		}),
		directoryFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailsig_directory_failures_total",
			Help: "Directory provider failures by operation.",
		}, []string{"op"}),
		directoryLat: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailsig_directory_latency_seconds",
			Help:    "Directory provider call latency.",
			Buckets: prometheus.DefBuckets,
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailsig_signature_renders_total",
			Help: "Signature renders by template source and whether fallback fields were used.",
		}, []string{"source", "fallback"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailsig_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailsig_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.logins,
		c.sessionLookups,
		c.sessionsSwept,
		c.cachedSessions,
		c.syncProfiles,
		c.syncRuns,
		c.directoryFail,
		c.directoryLat,
		c.renders,
		c.httpRequests,
		c.httpLatency,
	)
	return c
}

func (c *Collector) RecordLogin(outcome string) { c.logins.WithLabelValues(outcome).Inc() }

func (c *Collector) RecordSessionLookup(tier string) { c.sessionLookups.WithLabelValues(tier).Inc() }

func (c *Collector) RecordSessionsSwept(n int64) { c.sessionsSwept.Add(float64(n)) }

func (c *Collector) SetCachedSessions(n int) { c.cachedSessions.Set(float64(n)) }

func (c *Collector) RecordSync(r domain.SyncResult) {
	c.syncRuns.Inc()
	c.syncProfiles.WithLabelValues("inserted").Add(float64(r.Inserted))
	c.syncProfiles.WithLabelValues("updated").Add(float64(r.Updated))
	c.syncProfiles.WithLabelValues("unchanged").Add(float64(r.Unchanged))
	c.syncProfiles.WithLabelValues("skipped").Add(float64(r.Skipped))
}

func (c *Collector) RecordDirectoryFailure(op string) { c.directoryFail.WithLabelValues(op).Inc() }

func (c *Collector) RecordDirectoryLatency(d time.Duration) { c.directoryLat.Observe(d.Seconds()) }

func (c *Collector) RecordRender(source string, fallback bool) {
	c.renders.WithLabelValues(source, strconv.FormatBool(fallback)).Inc()
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop is a Recorder that does nothing.
type Nop struct{}

func (Nop) RecordLogin(string)                   {}
func (Nop) RecordSessionLookup(string)           {}
func (Nop) RecordSessionsSwept(int64)            {}
func (Nop) SetCachedSessions(int)                {}
func (Nop) RecordSync(domain.SyncResult)         {}
func (Nop) RecordDirectoryFailure(string)        {}
func (Nop) RecordDirectoryLatency(time.Duration) {}
func (Nop) RecordRender(string, bool)            {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
