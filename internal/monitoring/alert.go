package monitoring

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Alerter receives conditions that need an operator
type Alerter interface {
	Alert(message string, labels map[string]string)
}

// AlerterFunc adapts a function to Alerter
type AlerterFunc func(message string, labels map[string]string)

// Alert calls f
func (f AlerterFunc) Alert(message string, labels map[string]string) {
	f(message, labels)
}

var (
	alerterMu sync.RWMutex
	alerter   Alerter = AlerterFunc(LogAlert)
)

// LogAlert writes the alert as an error log line
func LogAlert(message string, labels map[string]string) {
	fields := make(map[string]any, len(labels))
	for k, v := range labels {
		fields[k] = v
	}
	log.Error().
		Str("alert", message).
		Fields(fields).
		Msg("ALERT: Provisioning issue detected")
}

// SetAlerter replaces the process-wide alerter and returns the previous one
func SetAlerter(a Alerter) Alerter {
	alerterMu.Lock()
	defer alerterMu.Unlock()
	prev := alerter
	alerter = a
	return prev
}

// Alert raises an alert through the configured alerter
func Alert(message string, labels map[string]string) {
	alerterMu.RLock()
	a := alerter
	alerterMu.RUnlock()
	a.Alert(message, labels)
}
