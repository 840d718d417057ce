// Package metrics exposes Prometheus collectors for the player.
package metrics

import (
	"PlayDeck/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Player metrics
var (
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playdeck_events_total",
			Help: "Total number of player notifications by type",
		},
		[]string{"type"},
	)

	Tracks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playdeck_tracks",
			Help: "Number of slots in the track list",
		},
	)

	PlaybackErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playdeck_playback_errors_total",
			Help: "Total number of failed playback starts",
		},
	)
)

// Store metrics
var (
	StoreWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playdeck_store_write_failures_total",
			Help: "Total number of persistence writes that failed",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playdeck_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playdeck_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)
)

// Observe counts a player notification. It has the shape of an event listener.
func Observe(ev model.Event) {
	EventsTotal.WithLabelValues(string(ev.Type)).Inc()
	if ev.Type == model.EventError {
		PlaybackErrorsTotal.Inc()
	}
}
