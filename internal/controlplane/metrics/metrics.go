// Package metrics exposes Prometheus metrics for the fleet service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service updates.
type Metrics struct {
	registry *prometheus.Registry

	Backups          *prometheus.CounterVec
	Restores         *prometheus.CounterVec
	CommandRetries   prometheus.Counter
	TransportErrors  *prometheus.CounterVec
	TroubleshootRuns *prometheus.CounterVec
}

// New builds a dedicated registry with all service collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Backups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rosfleet_backups_total",
			Help: "Backup runs by trigger and terminal result.",
		}, []string{"trigger", "result"}),
		Restores: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rosfleet_restores_total",
			Help: "Restore runs by terminal result.",
		}, []string{"result"}),
		CommandRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "rosfleet_command_retries_total",
			Help: "Device command re-attempts after a failed try.",
		}),
		TransportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rosfleet_transport_errors_total",
			Help: "Transport-level failures by transport kind.",
		}, []string{"transport"}),
		TroubleshootRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rosfleet_troubleshoot_runs_total",
			Help: "Troubleshooting operations by tool.",
		}, []string{"tool"}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// BackupFinished implements the orchestrator's observer contract.
func (m *Metrics) BackupFinished(trigger, result string) {
	m.Backups.WithLabelValues(trigger, result).Inc()
}

// RestoreFinished implements the orchestrator's observer contract.
func (m *Metrics) RestoreFinished(result string) {
	m.Restores.WithLabelValues(result).Inc()
}

// CommandRetried is the executor's OnRetry hook.
func (m *Metrics) CommandRetried(string) {
	m.CommandRetries.Inc()
}

// TransportError records a connect or session failure on a transport kind
// ("api" or "ssh").
func (m *Metrics) TransportError(transport string) {
	m.TransportErrors.WithLabelValues(transport).Inc()
}

// TroubleshootRun implements the troubleshoot engine's observer contract.
func (m *Metrics) TroubleshootRun(tool string) {
	m.TroubleshootRuns.WithLabelValues(tool).Inc()
}
