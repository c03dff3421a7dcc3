package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"adminconsole/pkg/metrics"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	assert.NotPanics(t, func() { metrics.RegisterCollectors(reg) })
	assert.Panics(t, func() { metrics.RegisterCollectors(reg) }, "double registration must panic")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, metrics.OutcomeSuccess, metrics.Outcome(nil))
	assert.Equal(t, metrics.OutcomeFailure, metrics.Outcome(errors.New("boom")))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(metrics.Notifications.WithLabelValues("info"))
	metrics.Notifications.WithLabelValues("info").Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Notifications.WithLabelValues("info")))
}
