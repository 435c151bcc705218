package grid

import (
	"context"
	"math"
	"testing"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

// TestUnderFrequencyScenario: one turbine at 40MW against a fixed 80MW
// load should drive frequency below 49.0Hz and latch the under-frequency
// trip.
func TestUnderFrequencyScenario(t *testing.T) {
	st := store.New(nil, 0)
	st.RegisterDevice("turbine_1", "turbine_plc", 1, nil, nil)
	st.WriteMemory("turbine_1", "input_registers[101]", 40.0)

	params := DefaultParameters()
	params.FixedLoadMW = 80.0
	eng := New(st, nil, params)
	if err := eng.Initialise(context.Background()); err != nil {
		t.Fatal(err)
	}

	imbalance := eng.GetState().TotalGenMW - eng.GetState().TotalLoadMW
	if imbalance != -40.0 {
		t.Fatalf("expected -40MW imbalance, got %v", imbalance)
	}

	const dt = 1.0
	tripped := false
	for i := 0; i < 130; i++ {
		eng.UpdateFromDevices(context.Background())
		eng.Update(dt)
		if eng.GetState().UnderFrequencyTrip {
			tripped = true
			break
		}
	}

	if !tripped {
		t.Fatalf("expected under-frequency trip to latch within 130s, final freq=%v", eng.GetState().FrequencyHz)
	}
	if eng.GetState().FrequencyHz >= 49.0 {
		t.Fatalf("expected frequency below 49.0Hz once tripped, got %v", eng.GetState().FrequencyHz)
	}

	expectedDfDt := -40.0 / params.InertiaConstant
	if math.Abs(expectedDfDt-(-0.008)) > 0.0001 {
		t.Fatalf("expected df/dt ~ -0.008 Hz/s, got %v", expectedDfDt)
	}
}

func TestAggregatesGenerationAcrossMultipleTurbines(t *testing.T) {
	st := store.New(nil, 0)
	st.RegisterDevice("turbine_1", "turbine_plc", 1, nil, nil)
	st.RegisterDevice("turbine_2", "turbine_plc", 2, nil, nil)
	st.WriteMemory("turbine_1", "input_registers[101]", 30.0)
	st.WriteMemory("turbine_2", "input_registers[101]", 50.0)

	eng := New(st, nil, DefaultParameters())
	eng.Initialise(context.Background())

	if eng.GetState().TotalGenMW != 80.0 {
		t.Fatalf("expected aggregated generation of 80MW, got %v", eng.GetState().TotalGenMW)
	}
}
