package hvac

import (
	"context"
	"math"
	"testing"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st := store.New(nil, 0)
	if _, err := st.RegisterDevice("hvac_1", "hvac_plc", 1, nil, nil); err != nil {
		t.Fatal(err)
	}
	eng := New("hvac_1", st, nil, nil, DefaultParameters())
	if err := eng.Initialise(context.Background()); err != nil {
		t.Fatal(err)
	}
	return eng, st
}

func TestZoneTemperatureConvergesToSetpointInAutoMode(t *testing.T) {
	eng, st := newTestEngine(t)
	eng.state.ZoneTemperatureC = 25
	eng.params.OutsideTempC = 10

	st.WriteMemory("hvac_1", AddrSystemEnable, true)
	st.WriteMemory("hvac_1", AddrModeSelect, float64(ModeAuto))
	st.WriteMemory("hvac_1", AddrTempSetpoint, 20.0)
	st.WriteMemory("hvac_1", AddrFanCommand, 80.0)
	st.WriteMemory("hvac_1", AddrDamperCommand, 20.0)

	sawCooling := false
	for i := 0; i < 3000; i++ {
		if err := eng.ReadControlInputs(context.Background()); err != nil {
			t.Fatal(err)
		}
		eng.Update(1.0)
		if eng.GetState().CoolingValvePct > 0 {
			sawCooling = true
		}
		if eng.GetState().EnergyConsumptionKW < 0 {
			t.Fatalf("energy consumption went negative at step %d", i)
		}
	}

	final := eng.GetState().ZoneTemperatureC
	if math.Abs(final-20.0) > 0.5 {
		t.Fatalf("expected zone temperature to settle near 20C, got %v", final)
	}
	if !sawCooling {
		t.Fatalf("expected cooling valve to open while zone was above setpoint")
	}
}

func TestSystemOffDriftsTowardAmbient(t *testing.T) {
	eng, st := newTestEngine(t)
	eng.state.ZoneTemperatureC = 25
	eng.params.OutsideTempC = 10
	st.WriteMemory("hvac_1", AddrSystemEnable, false)

	before := eng.GetState().ZoneTemperatureC
	for i := 0; i < 100; i++ {
		eng.ReadControlInputs(context.Background())
		eng.Update(10.0)
	}
	after := eng.GetState().ZoneTemperatureC

	if after >= before {
		t.Fatalf("expected zone to drift toward ambient when disabled: before=%v after=%v", before, after)
	}
}
