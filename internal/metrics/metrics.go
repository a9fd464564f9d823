package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checkout holds the counters the checkout core exposes. Registration is
// parameterized so tests can use a private registry.
type Checkout struct {
	OrdersPlaced     prometheus.Counter
	StockConflicts   prometheus.Counter
	CouponRejections *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPLatencyMS    *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Checkout {
	m := &Checkout{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "orders_placed_total",
			Help:      "Total number of successfully placed orders.",
		}),
		StockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "stock_conflicts_total",
			Help:      "Commit-time conditional stock decrements that matched zero rows.",
		}),
		CouponRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "coupon_rejections_total",
			Help:      "Coupon applications rejected by a business rule.",
		}, []string{"reason"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		HTTPLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checkout",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
	}
	reg.MustRegister(m.OrdersPlaced, m.StockConflicts, m.CouponRejections, m.HTTPRequests, m.HTTPLatencyMS)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
