// Package metrics declares the Prometheus collectors of the picshare server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login results.
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

// Metrics holds all collectors. Each instance registers into its own
// Registerer, so tests can create as many as they like.
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec   // picshare_grpc_requests_total{method,code}
	RequestDuration *prometheus.HistogramVec // picshare_grpc_request_duration_seconds{method}

	// Domain metrics
	UploadsTotal         *prometheus.CounterVec // picshare_uploads_total{visibility}
	LoginsTotal          *prometheus.CounterVec // picshare_logins_total{result}
	ReconcilePurgedTotal prometheus.Counter     // picshare_reconcile_purged_total
	ActiveSessions       prometheus.Gauge       // picshare_active_sessions
	UploadBytesTotal     prometheus.Counter     // picshare_upload_bytes_total
	RenamesTotal         prometheus.Counter     // picshare_renames_total
	ReassignedMediaTotal prometheus.Counter     // picshare_reassigned_media_total
}

// New creates the collectors and registers them with reg. A nil reg gets a
// fresh private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "picshare_grpc_requests_total",
			Help: "Total gRPC requests by method and status code",
		}, []string{"method", "code"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "picshare_grpc_request_duration_seconds",
			Help:    "gRPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),

		UploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "picshare_uploads_total",
			Help: "Total stored uploads by visibility",
		}, []string{"visibility"}),

		LoginsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "picshare_logins_total",
			Help: "Total login attempts by result",
		}, []string{"result"}),

		ReconcilePurgedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "picshare_reconcile_purged_total",
			Help: "Total media records purged because their blob was missing",
		}),

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "picshare_active_sessions",
			Help: "Number of live sessions",
		}),

		UploadBytesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "picshare_upload_bytes_total",
			Help: "Total bytes accepted by the upload sink",
		}),

		RenamesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "picshare_renames_total",
			Help: "Total committed account renames",
		}),

		ReassignedMediaTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "picshare_reassigned_media_total",
			Help: "Total media records moved to a new owner by renames",
		}),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
