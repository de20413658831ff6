// Package metrics holds the Prometheus collectors of the player.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of player collectors.
type Metrics struct {
	Commands       *prometheus.CounterVec
	Events         *prometheus.CounterVec
	TracksPlayed   prometheus.Counter
	PlayFailures   prometheus.Counter
	StaleResults   prometheus.Counter
	ActiveSessions prometheus.Gauge
	AuthAttempts   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "tunebox_player_commands_total", Help: "Player commands by name and outcome"},
			[]string{"command", "result"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "tunebox_player_events_total", Help: "Playback events by type"},
			[]string{"type"},
		),
		TracksPlayed: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "tunebox_tracks_played_total", Help: "Tracks whose playback started"},
		),
		PlayFailures: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "tunebox_play_failures_total", Help: "Failed load or play attempts"},
		),
		StaleResults: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "tunebox_stale_play_results_total", Help: "Superseded play results discarded"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "tunebox_active_sessions", Help: "Open player sessions"},
		),
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "tunebox_auth_attempts_total", Help: "Signup and login attempts"},
			[]string{"action", "result"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tunebox_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "route", "status"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.Commands,
			m.Events,
			m.TracksPlayed,
			m.PlayFailures,
			m.StaleResults,
			m.ActiveSessions,
			m.AuthAttempts,
			m.HTTPDuration,
		)
	}
	return m
}

// ObserveCommand counts a player command.
func (m *Metrics) ObserveCommand(command string, err error) {
	m.Commands.WithLabelValues(command, result(err)).Inc()
}

// ObserveAuth counts a signup or login attempt.
func (m *Metrics) ObserveAuth(action string, err error) {
	m.AuthAttempts.WithLabelValues(action, result(err)).Inc()
}

// ObserveEvent counts a playback event by its type name. Started, failed and
// stale events also feed their dedicated counters.
func (m *Metrics) ObserveEvent(eventType string) {
	m.Events.WithLabelValues(eventType).Inc()

	switch eventType {
	case "playback_started":
		m.TracksPlayed.Inc()
	case "playback_failed":
		m.PlayFailures.Inc()
	case "stale_result":
		m.StaleResults.Inc()
	}
}

// ObserveHTTP records the latency of a request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
