package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Total number of successful checkouts",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_latency_seconds",
		Help:    "Latency of the checkout sequence",
		Buckets: prometheus.DefBuckets,
	})

	PointsEarnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_points_earned_total",
		Help: "Total loyalty points awarded",
	})

	DiscountsConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discounts_consumed_total",
		Help: "Total number of redemptions consumed at checkout",
	})

	InventoryRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_rejections_total",
		Help: "Total number of checkouts rejected on the locked stock re-check",
	})

	NotificationsDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_delivered_total",
		Help: "Total number of notifications materialized by the worker",
	}, []string{"type"})

	NotificationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total number of notification deliveries that failed",
	}, []string{"type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
