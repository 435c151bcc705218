// Package obsmetrics registers simulation-domain Prometheus collectors:
// scan counts, physics tick duration, safety trips, audit drops, and host
// resource gauges.
//
// Grounded on infrastructure/metrics/metrics.go: a Metrics struct holding
// pre-declared CounterVec/HistogramVec/Gauge collectors, a
// NewWithRegistry constructor for test isolation, Record*/Set* helpers, and
// an Enabled() gate — all reproduced here for the simulation domain instead
// of that package's HTTP/blockchain/database domain.
package obsmetrics

import (
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Metrics holds every Prometheus collector this module registers.
type Metrics struct {
	PLCScansTotal *prometheus.CounterVec
	PLCScanErrorsTotal *prometheus.CounterVec
	PhysicsTickSeconds *prometheus.HistogramVec
	SafetyTripsTotal *prometheus.CounterVec
	SafetyDemandActive *prometheus.GaugeVec
	AuditDroppedTotal prometheus.Counter
	FirewallBlocksTotal *prometheus.CounterVec

	HostCPUPercent prometheus.Gauge
	HostMemoryPercent prometheus.Gauge
}

// New registers collectors against the default Prometheus registerer.
func New() *Metrics { return NewWithRegistry(prometheus.DefaultRegisterer) }

// NewWithRegistry registers collectors against a caller-supplied registerer
// (test isolation).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		PLCScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "simcore_plc_scans_total", Help: "Total PLC scan cycles completed"},
			[]string{"device"},
		),
		PLCScanErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "simcore_plc_scan_errors_total", Help: "Total PLC scan cycles that failed"},
			[]string{"device"},
		),
		PhysicsTickSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "simcore_physics_tick_seconds",
				Help: "Wall-clock duration of one outer simulation tick",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"engine"},
		),
		SafetyTripsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "simcore_safety_trips_total", Help: "Total safe-state demands raised by a safety controller"},
			[]string{"device"},
		),
		SafetyDemandActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "simcore_safety_demand_active", Help: "1 if a safety controller currently demands a safe state"},
			[]string{"device"},
		),
		AuditDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "simcore_audit_dropped_total", Help: "Total audit log entries dropped due to backpressure"},
		),
		FirewallBlocksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "simcore_firewall_blocks_total", Help: "Total connections blocked by the boundary firewall"},
			[]string{"rule_id"},
		),
		HostCPUPercent: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "simcore_host_cpu_percent", Help: "Host CPU utilisation percentage"},
		),
		HostMemoryPercent: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "simcore_host_memory_percent", Help: "Host memory utilisation percentage"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.PLCScansTotal, m.PLCScanErrorsTotal, m.PhysicsTickSeconds,
			m.SafetyTripsTotal, m.SafetyDemandActive, m.AuditDroppedTotal,
			m.FirewallBlocksTotal, m.HostCPUPercent, m.HostMemoryPercent,
		)
	}
	return m
}

func (m *Metrics) RecordPLCScan(device string, err error) {
	m.PLCScansTotal.WithLabelValues(device).Inc()
	if err != nil {
		m.PLCScanErrorsTotal.WithLabelValues(device).Inc()
	}
}

func (m *Metrics) RecordPhysicsTick(engine string, d time.Duration) {
	m.PhysicsTickSeconds.WithLabelValues(engine).Observe(d.Seconds())
}

func (m *Metrics) RecordSafetyTrip(device string) {
	m.SafetyTripsTotal.WithLabelValues(device).Inc()
}

func (m *Metrics) SetSafetyDemand(device string, demanded bool) {
	v := 0.0
	if demanded {
		v = 1.0
	}
	m.SafetyDemandActive.WithLabelValues(device).Set(v)
}

func (m *Metrics) RecordAuditDropped() { m.AuditDroppedTotal.Inc() }

func (m *Metrics) RecordFirewallBlock(ruleID string) {
	m.FirewallBlocksTotal.WithLabelValues(ruleID).Inc()
}

// SampleHostResources refreshes the CPU/memory gauges from the live host.
func (m *Metrics) SampleHostResources() error {
	percents, err := cpu.Percent(0, false)
	if err == nil && len(percents) > 0 {
		m.HostCPUPercent.Set(percents[0])
	} else if err != nil {
		return err
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return err
	}
	m.HostMemoryPercent.Set(vm.UsedPercent)
	return nil
}

// Enabled returns whether Prometheus metrics should be exposed, gated by
// SIMCORE_METRICS_ENABLED (mirroring the conventional METRICS_ENABLED
// gate, defaulting to enabled since this module has no production/
// non-production distinction of its own).
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("SIMCORE_METRICS_ENABLED")))
	if raw == "" {
		return true
	}
	switch raw {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
