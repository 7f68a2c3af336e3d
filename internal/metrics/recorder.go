// Package metrics exposes Prometheus counters for saves, captures, shares
// and HTTP requests.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/dvloznov/voice-ledger/internal/export"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voice_ledger"

// Share outcomes.
const (
	ShareOutcomeOK        = "ok"
	ShareOutcomeCancelled = "cancelled"
	ShareOutcomeError     = "error"
)

// Recorder implements the observer hooks of autosave, capture and export.
type Recorder struct {
	registerer prometheus.Registerer

	saves        *prometheus.CounterVec
	saveDuration prometheus.Histogram
	captures     *prometheus.CounterVec
	captureDur   *prometheus.HistogramVec
	shares       *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewRecorder registers the collectors with reg, or with the default
// registerer when reg is nil.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		registerer: reg,
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Ledger persistence attempts by result.",
		}, []string{"result"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Duration of ledger writes to the store.",
			Buckets:   prometheus.DefBuckets,
		}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Voice captures by target kind and outcome.",
		}, []string{"target", "outcome"}),
		captureDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_duration_seconds",
			Help:      "Time from audio received to ledger updated or failure shown.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"target"}),
		shares: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_attempts_total",
			Help:      "Export share attempts by sink and outcome.",
		}, []string{"sink", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(r.saves, r.saveDuration, r.captures, r.captureDur, r.shares, r.httpRequests, r.httpDuration)
	return r
}

// SaveCompleted implements autosave.Observer.
func (r *Recorder) SaveCompleted(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.saves.WithLabelValues(result).Inc()
	r.saveDuration.Observe(d.Seconds())
}

// CaptureCompleted implements capture.Observer.
func (r *Recorder) CaptureCompleted(kind ledger.TargetKind, outcome string, d time.Duration) {
	r.captures.WithLabelValues(string(kind), outcome).Inc()
	if d > 0 {
		r.captureDur.WithLabelValues(string(kind)).Observe(d.Seconds())
	}
}

// ShareAttempted implements export.Observer.
func (r *Recorder) ShareAttempted(sink string, err error) {
	r.shares.WithLabelValues(sink, ClassifyShare(err)).Inc()
}

// HTTPRequest records one served request. route is the matched pattern, not
// the raw path, to keep label cardinality bounded.
func (r *Recorder) HTTPRequest(method, route string, status int, d time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// WatchLedger registers gauges that read the transaction count and AI
// availability at scrape time.
func (r *Recorder) WatchLedger(transactions func() int, aiAvailable func() bool) {
	r.registerer.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transactions",
			Help:      "Transactions in the current ledger.",
		}, func() float64 { return float64(transactions()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ai_available",
			Help:      "1 when an AI credential is configured and has not been rejected.",
		}, func() float64 {
			if aiAvailable() {
				return 1
			}
			return 0
		}),
	)
}

// ClassifyShare maps a share error to an outcome label.
func ClassifyShare(err error) string {
	switch {
	case err == nil:
		return ShareOutcomeOK
	case errors.Is(err, export.ErrShareCancelled):
		return ShareOutcomeCancelled
	}
	return ShareOutcomeError
}
