// Package metrics holds the Prometheus collectors for the trading loop and
// its upstream calls. All methods are safe on a nil *Registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	Cycles         *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	Orders         *prometheus.CounterVec
	Advisories     *prometheus.CounterVec
	AdvisoryTime   *prometheus.HistogramVec
	UpstreamErrors *prometheus.CounterVec
	OpenPositions  prometheus.Gauge
	PortfolioValue prometheus.Gauge
	Cash           prometheus.Gauge
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spot_trader_cycles_total",
			Help: "Scan cycles by result (ok, error, panic)",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spot_trader_cycle_duration_seconds",
			Help:    "Wall time of one scan cycle",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spot_trader_orders_total",
			Help: "Orders placed by side, reason and result",
		}, []string{"side", "reason", "result"}),
		Advisories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spot_trader_advisories_total",
			Help: "Advisory requests by kind and parsed action",
		}, []string{"kind", "action"}),
		AdvisoryTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spot_trader_advisory_duration_seconds",
			Help:    "Latency of language model requests",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"provider", "result"}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spot_trader_upstream_errors_total",
			Help: "Failed upstream calls by component and operation",
		}, []string{"component", "op"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spot_trader_open_positions",
			Help: "Positions currently held",
		}),
		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spot_trader_portfolio_value_usdt",
			Help: "Cash plus marked value of open positions",
		}),
		Cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spot_trader_cash_usdt",
			Help: "Free plus locked quote balance",
		}),
	}
	r.reg.MustRegister(
		r.Cycles, r.CycleDuration, r.Orders, r.Advisories, r.AdvisoryTime,
		r.UpstreamErrors, r.OpenPositions, r.PortfolioValue, r.Cash,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) ObserveCycle(d time.Duration, result string) {
	if r == nil {
		return
	}
	r.Cycles.WithLabelValues(result).Inc()
	r.CycleDuration.Observe(d.Seconds())
}

func (r *Registry) ObserveOrder(side, reason string, err error) {
	if r == nil {
		return
	}
	r.Orders.WithLabelValues(side, reason, result(err)).Inc()
}

func (r *Registry) ObserveAdvisory(kind, action string) {
	if r == nil {
		return
	}
	r.Advisories.WithLabelValues(kind, action).Inc()
}

func (r *Registry) ObserveAdvisoryLatency(provider string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.AdvisoryTime.WithLabelValues(provider, result(err)).Observe(d.Seconds())
}

func (r *Registry) UpstreamError(component, op string) {
	if r == nil {
		return
	}
	r.UpstreamErrors.WithLabelValues(component, op).Inc()
}

func (r *Registry) SetPortfolio(cash, value float64, open int) {
	if r == nil {
		return
	}
	r.Cash.Set(cash)
	r.PortfolioValue.Set(value)
	r.OpenPositions.Set(float64(open))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
