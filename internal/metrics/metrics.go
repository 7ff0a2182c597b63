package metrics

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the bot's collectors. A fresh one per process keeps tests isolated.
type Registry struct {
	reg        *prometheus.Registry
	Cycles     *prometheus.CounterVec
	Orders     *prometheus.CounterVec
	Suppressed *prometheus.CounterVec
	LastCycle  prometheus.Gauge
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "session_trader_cycles_total", Help: "Decision cycles by state and action"},
			[]string{"state", "action"},
		),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "session_trader_orders_total", Help: "Order intents handed to the broker"},
			[]string{"intent", "result"},
		),
		Suppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "session_trader_suppressed_total", Help: "Actions withheld by a safety gate"},
			[]string{"reason"},
		),
		LastCycle: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "session_trader_last_cycle_timestamp_seconds", Help: "Unix time of the last finished cycle"},
		),
	}
	r.reg.MustRegister(r.Cycles, r.Orders, r.Suppressed, r.LastCycle)
	return r
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes the current values for the node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, r.reg)
}

// Serve exposes /metrics on addr in the background.
func (r *Registry) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
