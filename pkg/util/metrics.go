package util

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks the counters and gauges a peer exposes for scraping.
type Metrics struct {
	registry *prometheus.Registry

	ConsensusPoint prometheus.Gauge
	AccountCount   prometheus.Gauge
	MergeRounds    prometheus.Counter
	JuiceUsedTotal prometheus.Counter
}

// NewMetrics builds a fresh, registered Metrics instance.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ConsensusPoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "latticenet_consensus_point",
			Help: "Number of blocks this peer has applied past genesis.",
		}),
		AccountCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "latticenet_account_count",
			Help: "Number of accounts present in the latest applied state.",
		}),
		MergeRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latticenet_merge_rounds_total",
			Help: "Total number of belief-merge rounds run.",
		}),
		JuiceUsedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latticenet_juice_used_total",
			Help: "Total juice consumed across every applied transaction.",
		}),
	}
	reg.MustRegister(m.ConsensusPoint, m.AccountCount, m.MergeRounds, m.JuiceUsedTotal)
	return m
}

// Serve exposes the registry on addr at /metrics until the context is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	return srv
}
