// Package metrics exposes prometheus instrumentation for the booking
// platform.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// PlatformMetrics exposes counters for inbound replies, cascade
// cancellations, and lifecycle batch runs.
type PlatformMetrics struct {
	inboundReplies *prometheus.CounterVec
	cascadeTotal   *prometheus.CounterVec
	cleanupRuns    *prometheus.CounterVec
	archivedTotal  prometheus.Counter
	purgedTotal    *prometheus.CounterVec
}

func NewPlatformMetrics(reg prometheus.Registerer) *PlatformMetrics {
	m := &PlatformMetrics{
		inboundReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "inbound",
			Name:      "replies_total",
			Help:      "Inbound customer replies by interpreter outcome",
		}, []string{"outcome"}),
		cascadeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "cascade",
			Name:      "cancellations_total",
			Help:      "Per-booking cascade cancellation results",
		}, []string{"result"}),
		cleanupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "cleanup",
			Name:      "runs_total",
			Help:      "Lifecycle cleanup runs by mode",
		}, []string{"mode"}),
		archivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "cleanup",
			Name:      "archived_total",
			Help:      "Bookings migrated into the archive",
		}),
		purgedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "cleanup",
			Name:      "purged_total",
			Help:      "Archived rows permanently purged by status class",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundReplies, m.cascadeTotal, m.cleanupRuns, m.archivedTotal, m.purgedTotal)
	return m
}

// ObserveInboundReply records one handled inbound message by outcome.
func (m *PlatformMetrics) ObserveInboundReply(outcome string) {
	if m == nil {
		return
	}
	m.inboundReplies.WithLabelValues(outcome).Inc()
}

// ObserveCascade records a cascade batch's per-id accounting.
func (m *PlatformMetrics) ObserveCascade(succeeded, failed int) {
	if m == nil {
		return
	}
	m.cascadeTotal.WithLabelValues("success").Add(float64(succeeded))
	m.cascadeTotal.WithLabelValues("failed").Add(float64(failed))
}

// ObserveCleanupRun records one cleanup invocation.
func (m *PlatformMetrics) ObserveCleanupRun(dryRun bool, archived int) {
	if m == nil {
		return
	}
	mode := "commit"
	if dryRun {
		mode = "dry_run"
	}
	m.cleanupRuns.WithLabelValues(mode).Inc()
	if !dryRun {
		m.archivedTotal.Add(float64(archived))
	}
}

// ObservePurge records permanently deleted archive rows.
func (m *PlatformMetrics) ObservePurge(cancelled, expired int) {
	if m == nil {
		return
	}
	m.purgedTotal.WithLabelValues("cancelled").Add(float64(cancelled))
	m.purgedTotal.WithLabelValues("expired").Add(float64(expired))
}
