package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"comanda/internal/kitchen"
	"comanda/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor collects kitchen and HTTP metrics on a private registry and keeps
// a small snapshot of counters reported by the health endpoint.
type Monitor struct {
	registry *prometheus.Registry

	orders       *prometheus.CounterVec
	orderTotal   prometheus.Histogram
	orderUnits   prometheus.Histogram
	stock        *prometheus.GaugeVec
	importRows   *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	metrics      map[string]interface{}
	metricsMutex sync.RWMutex
	startTime    time.Time
}

var _ kitchen.Observer = (*Monitor)(nil)

// NewMonitor creates a new monitoring instance
func NewMonitor() *Monitor {
	m := &Monitor{
		registry: prometheus.NewRegistry(),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comanda_orders_total",
				Help: "Order attempts by outcome",
			},
			[]string{"outcome"},
		),
		orderTotal: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "comanda_order_total_amount",
				Help:    "Total amount of committed orders",
				Buckets: prometheus.ExponentialBuckets(500, 2, 10),
			},
		),
		orderUnits: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "comanda_order_units",
				Help:    "Servings per committed order",
				Buckets: prometheus.LinearBuckets(1, 2, 10),
			},
		),
		stock: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "comanda_ingredient_stock",
				Help: "Current stock level per ingredient",
			},
			[]string{"ingredient", "unit"},
		),
		importRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comanda_import_rows_total",
				Help: "CSV stock import rows by result",
			},
			[]string{"result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comanda_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "comanda_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		metrics:   make(map[string]interface{}),
		startTime: time.Now(),
	}

	m.registry.MustRegister(
		m.orders,
		m.orderTotal,
		m.orderUnits,
		m.stock,
		m.importRows,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// OrderCommitted records a successful order
func (m *Monitor) OrderCommitted(order *models.Order) {
	m.orders.WithLabelValues(string(kitchen.OutcomeCommitted)).Inc()
	m.orderTotal.Observe(order.Total.InexactFloat64())
	m.orderUnits.Observe(float64(order.Units()))
	m.bump("orders_" + string(kitchen.OutcomeCommitted))
}

// OrderAborted records an order that changed nothing
func (m *Monitor) OrderAborted(outcome kitchen.Outcome) {
	m.orders.WithLabelValues(string(outcome)).Inc()
	m.bump("orders_" + string(outcome))
}

// StockChanged tracks the latest stock level of an ingredient
func (m *Monitor) StockChanged(ing models.Ingredient) {
	m.stock.WithLabelValues(ing.Name, ing.Unit).Set(ing.Stock.InexactFloat64())
}

// IngredientRemoved drops the stock series of a deleted ingredient
func (m *Monitor) IngredientRemoved(ing models.Ingredient) {
	m.stock.DeletePartialMatch(prometheus.Labels{"ingredient": ing.Name})
}

// RecordImport counts the rows of a CSV stock import
func (m *Monitor) RecordImport(imported, skipped int) {
	m.importRows.WithLabelValues("imported").Add(float64(imported))
	m.importRows.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveRequest records one served HTTP request
func (m *Monitor) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordMetric records a metric value in the snapshot
func (m *Monitor) RecordMetric(name string, value interface{}) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.metrics[name] = value
}

// GetMetrics returns the snapshot counters plus uptime
func (m *Monitor) GetMetrics() map[string]interface{} {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()

	metrics := make(map[string]interface{}, len(m.metrics)+1)
	for k, v := range m.metrics {
		metrics[k] = v
	}
	metrics["uptime_seconds"] = time.Since(m.startTime).Seconds()
	return metrics
}

func (m *Monitor) bump(name string) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	n, _ := m.metrics[name].(int)
	m.metrics[name] = n + 1
}
