// Package metrics exposes Prometheus counters and gauges for configuration
// sync activity. All metrics are registered on the default registry; the
// relay binary serves them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BroadcastsTotal counts configuration events published by this instance.
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cfgsync_broadcasts_total",
		Help: "Configuration events broadcast on the shared bus.",
	})

	// EventsReceived counts inbound configuration events by outcome.
	// result: applied | ignored.
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfgsync_events_received_total",
		Help: "Inbound configuration events, by outcome.",
	}, []string{"result"})

	// FetchesTotal counts remote document fetch completions by outcome.
	// result: applied | rejected | error.
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfgsync_fetches_total",
		Help: "Remote configuration fetch completions, by outcome.",
	}, []string{"result"})

	// RelayClients tracks the number of instances connected to the relay.
	RelayClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cfgsync_relay_clients",
		Help: "SDK instances currently connected to the relay hub.",
	})

	// RelayEventsTotal counts frames fanned out by the relay hub.
	RelayEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cfgsync_relay_events_total",
		Help: "Configuration frames relayed between instances.",
	})
)
