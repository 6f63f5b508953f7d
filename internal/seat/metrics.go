package seat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	emitted       *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	devices       prometheus.Gauge
	touchContacts prometheus.Gauge
	touchMode     prometheus.Gauge
	barrierHits   prometheus.Counter
}

// newMetrics registers the seat metrics on reg. A nil reg leaves them
// unregistered.
func newMetrics(reg prometheus.Registerer, seatID string) *metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"seat": seatID}

	return &metrics{
		emitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "inputseat",
			Name:        "events_emitted_total",
			Help:        "Normalized events emitted, by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "inputseat",
			Name:        "events_dropped_total",
			Help:        "Backend events dropped, by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		devices: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "inputseat",
			Name:        "devices",
			Help:        "Physical devices attached to the seat",
			ConstLabels: labels,
		}),
		touchContacts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "inputseat",
			Name:        "touch_contacts",
			Help:        "Live touch contacts",
			ConstLabels: labels,
		}),
		touchMode: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "inputseat",
			Name:        "touch_mode",
			Help:        "1 when the seat is in touch mode",
			ConstLabels: labels,
		}),
		barrierHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "inputseat",
			Name:        "barrier_hits_total",
			Help:        "Pointer motions blocked by a barrier",
			ConstLabels: labels,
		}),
	}
}
