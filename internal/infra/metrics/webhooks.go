package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookDeliveriesTotal) }

var webhookDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Best-effort webhook POSTs, labeled by outcome.",
	},
	[]string{"outcome"}, // 'delivered', 'failed'
)

func IncWebhookDelivery(outcome string) {
	webhookDeliveriesTotal.WithLabelValues(norm(outcome)).Inc()
}
