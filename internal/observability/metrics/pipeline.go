package metrics

import "time"

func (m *ConsoleMetrics) ObserveTransition(phase string) {
	if phase == "" {
		phase = "unknown"
	}
	m.transitionsTotal.WithLabelValues(m.service, phase).Inc()
}

func (m *ConsoleMetrics) ObserveStaleResponse(operation string) {
	m.staleResponsesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *ConsoleMetrics) ObserveRejected(operation, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.rejectedTotal.WithLabelValues(m.service, operation, reason).Inc()
}

func (m *ConsoleMetrics) ObserveRemoteCall(endpoint, outcome string, duration time.Duration) {
	m.remoteCallsTotal.WithLabelValues(m.service, endpoint, outcome).Inc()
	m.remoteCallDuration.WithLabelValues(m.service, endpoint).Observe(duration.Seconds())
}

func (m *ConsoleMetrics) ObserveBreakerState(endpoint string, open bool) {
	value := 0.0
	if open {
		value = 1
	}
	m.breakerOpen.WithLabelValues(m.service, endpoint).Set(value)
}

func (m *ConsoleMetrics) ObserveEventPublished(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.eventsPublished.WithLabelValues(m.service, status).Inc()
}
