package obsmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewWithRegistry(prometheus.NewRegistry())
}

func TestRecordPLCScanIncrementsCountersOnError(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordPLCScan("turbine_plc", nil)
	m.RecordPLCScan("turbine_plc", assertErr{})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.PLCScansTotal.WithLabelValues("turbine_plc")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PLCScanErrorsTotal.WithLabelValues("turbine_plc")))
}

func TestRecordPhysicsTickObservesDuration(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordPhysicsTick("grid", 5*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.PhysicsTickSeconds))
}

func TestSetSafetyDemandReflectsBooleanAsGauge(t *testing.T) {
	m := newTestMetrics(t)
	m.SetSafetyDemand("reactor_1_sis", true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SafetyDemandActive.WithLabelValues("reactor_1_sis")))

	m.SetSafetyDemand("reactor_1_sis", false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.SafetyDemandActive.WithLabelValues("reactor_1_sis")))
}

func TestRecordAuditDroppedIncrementsCounter(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordAuditDropped()
	m.RecordAuditDropped()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.AuditDroppedTotal))
}

type assertErr struct{}

func (assertErr) Error() string { return "scan failed" }
