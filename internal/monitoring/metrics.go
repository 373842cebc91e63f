package monitoring

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	TenantsProvisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenants_provisioned_total",
			Help: "Total number of tenant provisioning runs by outcome",
		},
		[]string{"status"},
	)
	ProvisioningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenant_provisioning_duration_seconds",
			Help:    "Duration of tenant provisioning in seconds",
			Buckets: prometheus.LinearBuckets(0, 1, 10), // 0 to 10 seconds
		},
	)
	Compensations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_compensations_total",
			Help: "Compensating actions run after a failed provisioning step",
		},
		[]string{"step", "outcome"},
	)
	AuditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Audit log entries that could not be written",
		},
	)
	SchemaSyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_schema_sync_total",
			Help: "Tenant schema reconciliations by outcome",
		},
		[]string{"outcome"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var collectors = map[string]prometheus.Collector{
	"TenantsProvisioned":   TenantsProvisioned,
	"ProvisioningDuration": ProvisioningDuration,
	"Compensations":        Compensations,
	"AuditWriteFailures":   AuditWriteFailures,
	"SchemaSyncRuns":       SchemaSyncRuns,
	"HTTPRequests":         HTTPRequests,
	"HTTPDuration":         HTTPDuration,
}

// InitMetrics registers every collector with the default registry.
// Calling it more than once is harmless.
func InitMetrics() {
	for name, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			log.Error().Err(err).Msgf("Failed to register %s metric", name)
		}
	}
}
