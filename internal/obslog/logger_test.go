package obslog

import "testing"

type fakeClock struct{ t float64 }

func (f *fakeClock) Now() float64 { return f.t }

type fakeSink struct{ entries []Entry }

func (f *fakeSink) AppendAuditEvent(e Entry) { f.entries = append(f.entries, e) }

func TestLogAuditReachesSink(t *testing.T) {
	sink := &fakeSink{}
	reg := NewRegistry(&fakeClock{t: 12.5}, sink, Config{})
	logger := reg.Get("controller", "turbine_1")

	logger.LogAudit("setpoint changed", "operator", "set_setpoint", "ok", nil)

	if len(sink.entries) != 1 {
		t.Fatalf("expected 1 audit entry reaching sink, got %d", len(sink.entries))
	}
	if sink.entries[0].SimulationTime != 12.5 {
		t.Fatalf("expected simulation time stamped from clock")
	}
	if sink.entries[0].Category != Audit {
		t.Fatalf("expected Audit category")
	}
}

func TestLogAlarmDerivesSeverityFromPriority(t *testing.T) {
	sink := &fakeSink{}
	reg := NewRegistry(&fakeClock{}, sink, Config{})
	logger := reg.Get("safety", "reactor_1")

	logger.LogAlarm("overtemperature", PriorityCritical, AlarmActive, nil)

	trail := logger.GetAuditTrail(10, nil)
	if len(trail) != 1 {
		t.Fatalf("expected entry in ring")
	}
	if trail[0].Severity != Critical {
		t.Fatalf("expected CRITICAL severity derived from priority, got %v", trail[0].Severity)
	}
}

func TestRingDropsOldestOnOverflow(t *testing.T) {
	reg := NewRegistry(&fakeClock{}, &fakeSink{}, Config{RingCapacity: 2})
	logger := reg.Get("diag", "")

	logger.Info("one", nil)
	logger.Info("two", nil)
	logger.Info("three", nil)

	trail := logger.GetAuditTrail(10, nil)
	if len(trail) != 2 {
		t.Fatalf("expected ring bounded to capacity 2, got %d", len(trail))
	}
	if trail[0].Message != "two" || trail[1].Message != "three" {
		t.Fatalf("expected oldest dropped, got %v", trail)
	}
	if logger.Dropped() != 1 {
		t.Fatalf("expected 1 dropped entry, got %d", logger.Dropped())
	}
}

func TestRegistryCachesByNameAndDevice(t *testing.T) {
	reg := NewRegistry(&fakeClock{}, &fakeSink{}, Config{})

	a := reg.Get("plc", "turbine_1")
	b := reg.Get("plc", "turbine_1")
	c := reg.Get("plc", "turbine_2")

	if a != b {
		t.Fatalf("expected same cached instance for identical name+device")
	}
	if a == c {
		t.Fatalf("expected distinct instance for different device")
	}

	reg.Reset()
	d := reg.Get("plc", "turbine_1")
	if d == a {
		t.Fatalf("expected Reset to clear the cache")
	}
}
