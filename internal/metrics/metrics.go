// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sales_completed_total",
		Help: "Number of sales confirmed and recorded.",
	})

	SalesRevenue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sales_revenue_total",
		Help: "Total revenue from confirmed sales, in currency units.",
	})

	PaymentsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_payments_recorded_total",
		Help: "Payment entries applied to sale sessions, by method.",
	}, []string{"method"})

	SaleConfirmFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sale_confirm_failures_total",
		Help: "Sale confirmations rejected or aborted.",
	})

	DraftSaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_draft_saves_total",
		Help: "Sale session drafts written to the draft cache.",
	})
)
