// Package metrics holds the Prometheus collectors shared by the binaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var RepairsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "repairbox",
	Name:      "repairs_created_total",
	Help:      "Repairs created at intake, by repair kind.",
}, []string{"kind"})

var TrackingCodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "repairbox",
	Name:      "tracking_code_collisions_total",
	Help:      "Generated tracking codes that were already taken.",
})

// Transitions counts transition attempts by requested status and result
// (applied, noop, note, rejected, conflict, error).
var Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "repairbox",
	Name:      "transitions_total",
	Help:      "Status transition attempts by requested status and result.",
}, []string{"status", "result"})

var TimelineReconciliations = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "repairbox",
	Name:      "timeline_reconciliations_total",
	Help:      "Timelines built from a record whose status was outside the display sequence.",
})

var EventsPublishFailed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "repairbox",
	Name:      "status_events_publish_failed_total",
	Help:      "Status-changed events that could not be published.",
})

var PublicLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "repairbox",
	Name:      "public_lookups_total",
	Help:      "Public tracking lookups by result (found, not_found, malformed, limited).",
}, []string{"result"})

var SMSSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "repairbox",
	Name:      "sms_total",
	Help:      "SMS delivery attempts by result (sent, failed, skipped, limited).",
}, []string{"result"})
