package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "waverly"

// requestsTotal counts HTTP requests by method, route pattern and status
// class.
var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	},
	[]string{"method", "route", "status"},
)

// requestDuration measures request handling time by route pattern.
var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP request handling.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// ordersPlacedTotal counts successfully placed orders.
var ordersPlacedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of orders placed through the API.",
	},
)

// signInsTotal counts sign-in attempts by outcome.
var signInsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sign_ins_total",
		Help:      "Total number of sign-in attempts, by outcome.",
	},
	[]string{"outcome"},
)

// exportsTotal counts store exports by outcome.
var exportsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "exports_total",
		Help:      "Total number of store exports, by outcome.",
	},
	[]string{"outcome"},
)
