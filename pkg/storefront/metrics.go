package storefront

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Cart mutations dispatched, by operation.",
	}, []string{"op"})

	cartErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_errors_total",
		Help: "Cart engine failures, by error kind.",
	}, []string{"kind"})

	activeEngines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_active_carts",
		Help: "Per-visitor cart engines currently held in memory.",
	})

	checkoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_checkouts_total",
		Help: "Successful checkout redirects issued.",
	})
)
