// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Report outcomes.
const (
	Loaded  = "loaded"
	Skipped = "skipped"
	Dropped = "dropped"
)

// Transaction outcomes.
const (
	TxDone   = "done"
	TxDenied = "denied"
	TxFailed = "failed"
)

// Metrics holds the pipeline collectors on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	reports    *prometheus.CounterVec
	txs        *prometheus.CounterVec
	retries    prometheus.Counter
	txDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultfees_reports_total",
				Help: "Reports processed by outcome",
			},
			[]string{"outcome"},
		),
		txs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultfees_transactions_total",
				Help: "Transactions processed by outcome",
			},
			[]string{"outcome"},
		),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vaultfees_transaction_retries_total",
			Help: "Transaction attempts repeated after a transient error",
		}),
		txDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vaultfees_transaction_duration_seconds",
			Help:    "Time spent reconciling one transaction",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.reports, m.txs, m.retries, m.txDuration)
	return m
}

// Reports adds n reports with the given outcome.
func (m *Metrics) Reports(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reports.WithLabelValues(outcome).Add(float64(n))
}

// Tx records a finished transaction.
func (m *Metrics) Tx(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.txs.WithLabelValues(outcome).Inc()
	if outcome != TxDenied {
		m.txDuration.Observe(elapsed.Seconds())
	}
}

// Retry counts one repeated attempt.
func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
