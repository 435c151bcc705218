package turbine

import (
	"context"
	"testing"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st := store.New(nil, 0)
	if _, err := st.RegisterDevice("turbine_1", "turbine_plc", 1, nil, nil); err != nil {
		t.Fatal(err)
	}
	eng := New("turbine_1", st, nil, DefaultParameters())
	if err := eng.Initialise(context.Background()); err != nil {
		t.Fatal(err)
	}
	return eng, st
}

func TestGovernorDrivesTowardSetpoint(t *testing.T) {
	eng, st := newTestEngine(t)
	st.WriteMemory("turbine_1", AddrSpeedSetpoint, eng.params.RatedSpeedRPM*1.2)
	st.WriteMemory("turbine_1", AddrGovernorEnabled, true)

	for i := 0; i < 200; i++ {
		if err := eng.ReadControlInputs(context.Background()); err != nil {
			t.Fatal(err)
		}
		eng.Update(0.1)
	}

	speed := eng.GetState().ShaftSpeedRPM
	cap := eng.params.RatedSpeedRPM * eng.params.OverspeedRatio * 1.1
	if speed > cap+0.01 {
		t.Fatalf("expected shaft speed saturated at governor ceiling %v, got %v", cap, speed)
	}
	if speed < eng.params.RatedSpeedRPM*eng.params.OverspeedRatio {
		t.Fatalf("expected shaft speed to have risen above the overspeed threshold, got %v", speed)
	}
}

func TestEmergencyTripDeceleratesAndCools(t *testing.T) {
	eng, st := newTestEngine(t)
	initialSpeed := eng.GetState().ShaftSpeedRPM

	st.WriteMemory("turbine_1", AddrEmergencyTrip, true)
	if err := eng.ReadControlInputs(context.Background()); err != nil {
		t.Fatal(err)
	}
	eng.Update(1.0)

	state := eng.GetState()
	if !state.Tripped {
		t.Fatalf("expected Tripped=true")
	}
	if state.ShaftSpeedRPM >= initialSpeed {
		t.Fatalf("expected shaft speed to decelerate under trip: before=%v after=%v", initialSpeed, state.ShaftSpeedRPM)
	}
}

func TestDamageAccumulatesOnlyAboveOverspeedThreshold(t *testing.T) {
	eng, st := newTestEngine(t)
	st.WriteMemory("turbine_1", AddrGovernorEnabled, true)
	st.WriteMemory("turbine_1", AddrSpeedSetpoint, eng.params.RatedSpeedRPM)

	eng.ReadControlInputs(context.Background())
	eng.Update(1.0)
	if eng.GetState().Damage != 0 {
		t.Fatalf("expected no damage while at rated speed, got %v", eng.GetState().Damage)
	}

	st.WriteMemory("turbine_1", AddrSpeedSetpoint, eng.params.RatedSpeedRPM*1.3)
	for i := 0; i < 50; i++ {
		eng.ReadControlInputs(context.Background())
		eng.Update(0.5)
	}
	if eng.GetState().Damage <= 0 {
		t.Fatalf("expected damage to accumulate above overspeed threshold")
	}
}

func TestUpdateSkipsNonPositiveDelta(t *testing.T) {
	eng, _ := newTestEngine(t)
	before := eng.GetState()
	eng.Update(0)
	after := eng.GetState()
	if before != after {
		t.Fatalf("expected state unchanged for dt<=0")
	}
}
