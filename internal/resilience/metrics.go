package resilience

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
)

// RegisterMetrics creates the breaker collectors on reg. Calling it again
// reuses collectors that are already registered.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	BreakerState = registerVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "breaker_state",
		Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open",
	}, []string{"breaker"}))
	BreakerTransitions = registerVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_transition_total",
		Help: "Circuit breaker state transitions",
	}, []string{"breaker", "from", "to"}))
}

func registerVec[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func observeState(name string, s State) {
	if BreakerState != nil {
		BreakerState.WithLabelValues(name).Set(float64(s))
	}
}

func observeTransition(name string, from, to State) {
	observeState(name, to)
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	}
}
