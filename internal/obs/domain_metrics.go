package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartCommandsTotal counts cart commands by name and outcome.
	CartCommandsTotal *prometheus.CounterVec
	// CartCommandDuration records end-to-end command latency in milliseconds,
	// lock wait and snapshot persistence included.
	CartCommandDuration *prometheus.HistogramVec
	// CartLockContention counts lock acquisitions that had to retry.
	CartLockContention prometheus.Counter
	// CatalogLoadTotal counts catalog loads by source and outcome.
	CatalogLoadTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers cart-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartCommandsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_commands_total",
			Help:      "Count of cart commands processed by outcome.",
		}, []string{"command", "result"}))
		CartCommandDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_command_duration_ms",
			Help:      "Cart command latency in milliseconds.",
			Buckets:   []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"command"}))
		CartLockContention = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_lock_contention_total",
			Help:      "Number of cart lock acquisitions that waited on another holder.",
		}))
		CatalogLoadTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_load_total",
			Help:      "Count of catalog loads by source and outcome.",
		}, []string{"source", "result"}))
	})
}

// ObserveCartCommand records one processed cart command.
func ObserveCartCommand(command, result string, millis float64) {
	if CartCommandsTotal != nil {
		CartCommandsTotal.WithLabelValues(command, result).Inc()
	}
	if CartCommandDuration != nil {
		CartCommandDuration.WithLabelValues(command).Observe(millis)
	}
}

// register adds c to reg, reusing an already registered collector of the same type.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
			return c
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
	return c
}
