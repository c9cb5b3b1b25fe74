package metrics

import (
	"context"
	"net/http"
	"time"

	"go-portal-sync/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	// PortalCalls counts outbound portal API calls by result (success/error/skipped).
	PortalCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_calls_total",
		Help: "Outbound portal API calls",
	}, []string{"portal", "result"})

	// CallDuration observes outbound call latency per portal.
	CallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_call_duration_seconds",
		Help:    "Outbound portal API call duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"portal"})

	// SyncOperations counts sync state machine operations.
	SyncOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_sync_operations_total",
		Help: "Vehicle sync operations by action and result",
	}, []string{"portal", "action", "result"})

	// LeadsIngested counts stored leads by delivery channel.
	LeadsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_leads_ingested_total",
		Help: "Leads stored, by portal and source (webhook/poll)",
	}, []string{"portal", "source"})

	// LeadsDuplicate counts leads dropped by the dedup check.
	LeadsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_leads_duplicate_total",
		Help: "Leads dropped as duplicates",
	}, []string{"portal"})

	// TokenRefreshes counts credential refresh attempts.
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_token_refreshes_total",
		Help: "Credential refresh attempts by result",
	}, []string{"portal", "result"})
)

// StartMetricsServer exposes /metrics on its own listener so the scrape
// endpoint stays off the public API port.
func StartMetricsServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
