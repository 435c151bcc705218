package reactor

import (
	"context"
	"math"
	"testing"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

type fakeClock struct{ t float64 }

func (f *fakeClock) Now() float64 { return f.t }

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st := store.New(nil, 0)
	if _, err := st.RegisterDevice("reactor_1", "reactor_plc", 1, nil, nil); err != nil {
		t.Fatal(err)
	}
	eng := New("reactor_1", st, nil, &fakeClock{}, DefaultParameters())
	if err := eng.Initialise(context.Background()); err != nil {
		t.Fatal(err)
	}
	return eng, st
}

func TestScramDecaysReactionRateWithHalfLife(t *testing.T) {
	eng, st := newTestEngine(t)
	st.WriteMemory("reactor_1", AddrPowerSetpoint, 100.0)
	st.WriteMemory("reactor_1", AddrRodPosition, 100.0)
	eng.ReadControlInputs(context.Background())
	eng.Update(5.0) // ramp reaction rate up first
	eng.state.ReactionRatePercent = 100

	st.WriteMemory("reactor_1", AddrScramCommand, true)
	eng.ReadControlInputs(context.Background())
	eng.Update(2.0) // exactly one half-life

	got := eng.GetState().ReactionRatePercent
	want := 50.0
	if math.Abs(got-want) > 1.0 {
		t.Fatalf("expected reaction rate to halve after one half-life, got %v want ~%v", got, want)
	}
}

func TestResetScramRejectedOutsidePreconditions(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.state.Scram = true
	eng.state.CoreTemperatureC = eng.params.RatedTempC + 50 // still above rated

	if eng.TryResetScram() {
		t.Fatalf("expected reset to be rejected while core temp above rated")
	}
	if !eng.GetState().Scram {
		t.Fatalf("expected SCRAM to remain latched")
	}
}

func TestResetScramSucceedsWhenPreconditionsMet(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.state.Scram = true
	eng.state.CoreTemperatureC = eng.params.RatedTempC - 10
	eng.state.StabilityFactor = 0.95
	eng.state.ContainmentIntegrity = 0.99

	if !eng.TryResetScram() {
		t.Fatalf("expected reset to succeed when preconditions met")
	}
	if eng.GetState().Scram {
		t.Fatalf("expected SCRAM cleared")
	}
}

func TestAutoScramOnCriticalTemperature(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.state.CoreTemperatureC = eng.params.CriticalTempC + 1
	eng.Update(0.1)

	if !eng.GetState().Scram {
		t.Fatalf("expected auto-SCRAM when core exceeds critical temperature")
	}
}
