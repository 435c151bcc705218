package rtu

import (
	"testing"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simerr"
)

func newTestRTU() *RTU {
	r := New("substation_1", nil)
	r.AddBreaker(&Breaker{Name: "brk_1", State: BreakerClosed, RatedCurrentA: 1200, RatedVoltageKV: 138})
	r.AddRelay(&Relay{Name: "ioc_1", Type: RelayInstantaneousOvercurrent, PickupThreshold: 1500, Enabled: true})
	return r
}

func TestLatchedTripOpensClosedBreakers(t *testing.T) {
	r := newTestRTU()
	r.EvaluateRelay("ioc_1", 2000, 10.0)

	if r.Breakers["brk_1"].State != BreakerOpen {
		t.Fatalf("expected breaker to open on relay trip")
	}
	if !r.Relays["ioc_1"].Latched {
		t.Fatalf("expected relay to latch")
	}
}

func TestCloseRejectedWhileLatched(t *testing.T) {
	r := newTestRTU()
	r.EvaluateRelay("ioc_1", 2000, 10.0)

	err := r.CloseBreaker("brk_1", 11.0)
	if err == nil {
		t.Fatalf("expected close to be rejected while relay latched")
	}
	if !simerr.Is(err, simerr.InvalidMode) {
		t.Fatalf("expected InvalidMode error kind, got %v", err)
	}
}

func TestCloseSucceedsAfterReset(t *testing.T) {
	r := newTestRTU()
	r.EvaluateRelay("ioc_1", 2000, 10.0)
	if err := r.ResetRelay("ioc_1"); err != nil {
		t.Fatal(err)
	}

	if err := r.CloseBreaker("brk_1", 12.0); err != nil {
		t.Fatalf("expected close to succeed after relay reset: %v", err)
	}
	if r.Breakers["brk_1"].State != BreakerClosed {
		t.Fatalf("expected breaker closed")
	}
}

func TestAnaloguePointDeadbandReportByException(t *testing.T) {
	p := &AnaloguePoint{Name: "bus_voltage", Deadband: 0.5, Value: 138.0}
	if !p.ShouldReport() {
		t.Fatalf("expected first reading to always report")
	}
	p.MarkReported()

	p.Value = 138.2
	if p.ShouldReport() {
		t.Fatalf("expected small change within deadband to suppress report")
	}

	p.Value = 139.0
	if !p.ShouldReport() {
		t.Fatalf("expected change beyond deadband to report")
	}
}

func TestAnaloguePointMaxReportRateCapsBeyondDeadband(t *testing.T) {
	p := &AnaloguePoint{Name: "bus_voltage", Deadband: 0.1, Value: 138.0, MaxReportsPerSec: 1}
	p.ShouldReport()
	p.MarkReported()

	p.Value = 139.0
	if !p.ShouldReport() {
		t.Fatalf("expected first post-deadband report to pass the rate cap")
	}
	p.MarkReported()

	p.Value = 140.0
	if p.ShouldReport() {
		t.Fatalf("expected a second report within the same instant to be capped")
	}
}
