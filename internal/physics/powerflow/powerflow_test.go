package powerflow

import (
	"context"
	"testing"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

func TestDefaultTwoBusAggregatesGeneration(t *testing.T) {
	st := store.New(nil, 0)
	if _, err := st.RegisterDevice("turbine_1", "turbine_plc", 1, nil, nil); err != nil {
		t.Fatal(err)
	}
	st.WriteMemory("turbine_1", "input_registers[101]", 60.0)

	eng := New(st, nil, DefaultTwoBusParameters())
	if err := eng.Initialise(context.Background()); err != nil {
		t.Fatal(err)
	}

	bus := eng.GetBusStates()["bus_gen"]
	if bus.GenMW != 60.0 {
		t.Fatalf("expected 60MW injected at bus_gen, got %v", bus.GenMW)
	}
}

func TestLineOverloadDetectedWhenApparentMVAExceedsLimit(t *testing.T) {
	st := store.New(nil, 0)
	params := DefaultTwoBusParameters()
	params.LineMaxMVA = 10.0 // force overload with a modest voltage spread
	eng := New(st, nil, params)
	if err := eng.Initialise(context.Background()); err != nil {
		t.Fatal(err)
	}

	eng.GetBusStates()["bus_gen"].VoltagePU = 1.2
	eng.GetBusStates()["bus_load"].VoltagePU = 0.9

	eng.Update(1.0)

	line := eng.GetLineStates()["line_gen_load"]
	if !line.Overload {
		t.Fatalf("expected line to be flagged overloaded, mw_flow=%v mvar_flow=%v", line.MWFlow, line.MVARFlow)
	}
}

func TestUpdateIsNoOpBeforeInitialise(t *testing.T) {
	st := store.New(nil, 0)
	eng := New(st, nil, DefaultTwoBusParameters())
	eng.Update(1.0)

	line := eng.GetLineStates()["line_gen_load"]
	if line.MWFlow != 0 {
		t.Fatalf("expected no flow computed before Initialise, got %v", line.MWFlow)
	}
}
