package devnode

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	submitted prometheus.Counter
	committed prometheus.Counter
	invalid   prometheus.Counter

	retries   prometheus.Counter
	abandoned prometheus.Counter
}

func newMetrics(r prometheus.Registerer, queueDepth func() float64) (*metrics, error) {
	m := &metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devnode",
			Name:      "batches_submitted",
			Help:      "number of batches accepted for processing",
		}),
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devnode",
			Name:      "batches_committed",
			Help:      "number of batches committed",
		}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devnode",
			Name:      "batches_invalid",
			Help:      "number of batches rejected by the processor",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devnode",
			Name:      "processor_retries",
			Help:      "number of batch executions retried after a processor fault",
		}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devnode",
			Name:      "batches_abandoned",
			Help:      "number of batches left pending after exhausting retries",
		}),
	}
	depth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "devnode",
		Name:      "queue_depth",
		Help:      "number of batches waiting for execution",
	}, queueDepth)

	return m, errors.Join(
		r.Register(m.submitted),
		r.Register(m.committed),
		r.Register(m.invalid),

		r.Register(m.retries),
		r.Register(m.abandoned),

		r.Register(depth),
	)
}
