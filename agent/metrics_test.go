package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilReceiverMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeStep(time.Millisecond, true)
		m.observeStep(time.Millisecond, false)
		m.observeTerminal(StatusComplete)
	})
}

func TestNewMetrics_ObserveMethodsDoNotPanic(t *testing.T) {
	m := newMetrics("test-agent")
	assert.NotPanics(t, func() {
		m.observeStep(5*time.Millisecond, true)
		m.observeStep(5*time.Millisecond, false)
		m.observeTerminal(StatusComplete)
		m.observeTerminal(StatusFailed)
	})
}
