package store

import (
	"sync"
	"testing"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simerr"
)

func TestRegisterDeviceRejectsDuplicateName(t *testing.T) {
	s := New(nil, 0)
	if _, err := s.RegisterDevice("turbine_1", "turbine_plc", 1, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := s.RegisterDevice("turbine_1", "turbine_plc", 2, nil, nil)
	if !simerr.Is(err, simerr.AlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestUnknownDeviceReadIsAbsentNotError(t *testing.T) {
	s := New(nil, 0)
	_, ok := s.GetDeviceState("ghost")
	if ok {
		t.Fatalf("expected unknown device to be absent")
	}
	_, ok = s.ReadMemory("ghost", "holding_registers[0]")
	if ok {
		t.Fatalf("expected unknown device read to be absent, not an error")
	}
}

func TestWriteToUnknownDeviceFails(t *testing.T) {
	s := New(nil, 0)
	err := s.WriteMemory("ghost", "holding_registers[0]", 1)
	if !simerr.Is(err, simerr.UnknownDevice) {
		t.Fatalf("expected UnknownDevice, got %v", err)
	}
}

func TestBulkWriteIsAtomicUnderConcurrentBulkReads(t *testing.T) {
	s := New(nil, 0)
	s.RegisterDevice("turbine_1", "turbine_plc", 1, nil, nil)

	const n = 200
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s.BulkWriteMemory("turbine_1", map[string]any{
				"holding_registers[0]": i,
				"holding_registers[1]": i * 2,
			})
		}
	}()

	tornReads := 0
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			snap, _ := s.BulkReadMemory("turbine_1")
			a, aok := snap["holding_registers[0]"].(int)
			b, bok := snap["holding_registers[1]"].(int)
			if aok && bok && b != a*2 {
				tornReads++
			}
		}
	}()

	wg.Wait()
	if tornReads != 0 {
		t.Fatalf("expected no torn reads from bulk write, saw %d", tornReads)
	}
}

func TestAuditLogBoundedAndMostRecentLast(t *testing.T) {
	s := New(nil, 2)
	s.AppendAuditEvent(obslog.Entry{Message: "one"})
	s.AppendAuditEvent(obslog.Entry{Message: "two"})
	s.AppendAuditEvent(obslog.Entry{Message: "three"})

	log := s.GetAuditLog(AuditFilter{}, 10)
	if len(log) != 2 {
		t.Fatalf("expected audit log bounded to capacity 2, got %d", len(log))
	}
	if log[0].Message != "two" || log[1].Message != "three" {
		t.Fatalf("expected most-recent-last ordering with oldest dropped, got %v", log)
	}
}

func TestGetSimulationSummaryAggregates(t *testing.T) {
	s := New(nil, 0)
	s.RegisterDevice("turbine_1", "turbine_plc", 1, nil, nil)
	s.RegisterDevice("turbine_2", "turbine_plc", 2, nil, nil)
	s.RegisterDevice("reactor_1", "reactor_plc", 3, nil, nil)
	s.SetOnline("turbine_1", true)

	summary := s.GetSimulationSummary()
	if summary.DeviceCount != 3 {
		t.Fatalf("expected 3 devices, got %d", summary.DeviceCount)
	}
	if summary.OnlineDeviceCount != 1 {
		t.Fatalf("expected 1 online device, got %d", summary.OnlineDeviceCount)
	}
	if summary.DevicesByKind["turbine_plc"] != 2 {
		t.Fatalf("expected 2 turbine_plc devices, got %d", summary.DevicesByKind["turbine_plc"])
	}
}

func TestResetDropsEverything(t *testing.T) {
	s := New(nil, 0)
	s.RegisterDevice("turbine_1", "turbine_plc", 1, nil, nil)
	s.AppendAuditEvent(obslog.Entry{Message: "x"})

	s.Reset()

	if _, ok := s.GetDeviceState("turbine_1"); ok {
		t.Fatalf("expected device gone after reset")
	}
	if len(s.GetAuditLog(AuditFilter{}, 10)) != 0 {
		t.Fatalf("expected audit log empty after reset")
	}
}
