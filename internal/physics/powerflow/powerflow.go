// Package powerflow implements the DC power flow approximation: per-bus
// voltage/angle and per-line MW/MVAR/current, with a didactic linearised
// flow model rather than a Newton-Raphson solve.
//
// Grounded on components/physics/power_flow.py: the linearised
// mw_flow = voltageDiff*k1 + angleDiff*k2 formulation (explicitly
// non-physical in that original, carried forward unchanged to preserve the
// approximation rather than substitute a true solve), the apparent-MVA
// overload check, and the turbine-to-bus
// generation aggregation via input_registers[101] reproduce that original.
package powerflow

import (
	"context"
	"math"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simerr"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

// Bus is a grid node.
type Bus struct {
	Name string
	VoltagePU float64
	AngleDeg float64
	LoadMW float64
	LoadMVAR float64
	GenMW float64
	GenMVAR float64
}

// Line is a transmission line between two buses.
type Line struct {
	Name string
	FromBus string
	ToBus string
	CurrentA float64
	MWFlow float64
	MVARFlow float64
	Overload bool
}

// Parameters describe grid topology and ratings.
type Parameters struct {
	BaseMVA float64
	LineMaxMVA float64
	Buses map[string]*Bus
	Lines map[string]*Line

	// linearised-flow gains, carried verbatim from the didactic original.
	VoltageGain float64
	AngleGain float64

	TurbinePowerAddress string
	TurbineDeviceKind string
	// BusForTurbine maps a turbine device name to its injection bus.
	BusForTurbine func(deviceName string) string
}

// DefaultTwoBusParameters returns a minimal default two-bus system,
// matching power_flow.py's _create_default_grid fallback.
func DefaultTwoBusParameters() Parameters {
	buses := map[string]*Bus{
		"bus_gen": {Name: "bus_gen", VoltagePU: 1.0},
		"bus_load": {Name: "bus_load", VoltagePU: 1.0},
	}
	lines := map[string]*Line{
		"line_gen_load": {Name: "line_gen_load", FromBus: "bus_gen", ToBus: "bus_load"},
	}
	return Parameters{
		BaseMVA: 100.0,
		LineMaxMVA: 150.0,
		Buses: buses,
		Lines: lines,
		VoltageGain: 100.0,
		AngleGain: 10.0,
		TurbinePowerAddress: "input_registers[101]",
		TurbineDeviceKind: "turbine_plc",
		BusForTurbine: func(string) string { return "bus_gen" },
	}
}

type Engine struct {
	store *store.Store
	logger *obslog.Logger
	params Parameters

	initialised bool
}

func New(st *store.Store, logger *obslog.Logger, params Parameters) *Engine {
	return &Engine{store: st, logger: logger, params: params}
}

func (e *Engine) Initialise(ctx context.Context) error {
	for _, bus := range e.params.Buses {
		bus.VoltagePU = 1.0
		bus.AngleDeg = 0.0
	}
	e.initialised = true
	return e.UpdateFromDevices(ctx)
}

// ReadControlInputs is a no-op: power flow has no device-held setpoints of
// its own.
func (e *Engine) ReadControlInputs(ctx context.Context) error { return nil }

// UpdateFromDevices reads per-bus injections from registered turbine
// devices. Satisfies physics.DeviceAggregator.
func (e *Engine) UpdateFromDevices(ctx context.Context) error {
	for _, bus := range e.params.Buses {
		bus.GenMW, bus.GenMVAR, bus.LoadMW, bus.LoadMVAR = 0, 0, 0, 0
	}

	turbines := e.store.GetDevicesByKind(e.params.TurbineDeviceKind)
	for _, turbine := range turbines {
		v, ok := e.store.ReadMemory(turbine.Name, e.params.TurbinePowerAddress)
		if !ok {
			continue
		}
		mw, ok := v.(float64)
		if !ok {
			continue
		}
		busName := e.params.BusForTurbine(turbine.Name)
		bus, ok := e.params.Buses[busName]
		if !ok {
			continue
		}
		bus.GenMW += mw
		bus.GenMVAR += mw * 0.484 // power factor 0.9 (tan(acos(0.9)))
	}

	if bus, ok := e.params.Buses["bus_load"]; ok {
		bus.LoadMW = 80.0
		bus.LoadMVAR = 40.0
	}
	return nil
}

func (e *Engine) Update(dt float64) error {
	if !e.initialised {
		return simerr.NewNotInitialised("powerflow")
	}
	if dt <= 0 {
		if e.logger != nil {
			e.logger.Warn("non-positive dt, skipping powerflow update", map[string]any{"dt": dt})
		}
		return nil
	}
	e.updateDCFlow()
	e.checkOverloads()
	return nil
}

func (e *Engine) updateDCFlow() {
	for _, line := range e.params.Lines {
		from, fok := e.params.Buses[line.FromBus]
		to, tok := e.params.Buses[line.ToBus]
		if !fok || !tok {
			continue
		}

		voltageDiff := from.VoltagePU - to.VoltagePU
		angleDiff := from.AngleDeg - to.AngleDeg

		line.MWFlow = voltageDiff*e.params.VoltageGain + angleDiff*e.params.AngleGain
		line.MVARFlow = voltageDiff * e.params.VoltageGain / 2.0

		apparentMVA := math.Hypot(line.MWFlow, line.MVARFlow)
		line.CurrentA = apparentMVA / from.VoltagePU * 1000.0
	}
}

func (e *Engine) checkOverloads() {
	for name, line := range e.params.Lines {
		apparentMVA := math.Hypot(line.MWFlow, line.MVARFlow)
		old := line.Overload
		line.Overload = apparentMVA > e.params.LineMaxMVA

		if line.Overload && !old && e.logger != nil {
			e.logger.LogAlarm("line overload", obslog.PriorityHigh, obslog.AlarmActive, map[string]any{
				"line": name,
				"apparent_mva": apparentMVA,
				"limit_mva": e.params.LineMaxMVA,
			})
		}
	}
}

func (e *Engine) WriteTelemetry(ctx context.Context) error { return nil }

func (e *Engine) GetBusStates() map[string]*Bus { return e.params.Buses }
func (e *Engine) GetLineStates() map[string]*Line { return e.params.Lines }

func (e *Engine) GetTelemetry() map[string]any {
	buses := make(map[string]any, len(e.params.Buses))
	for name, bus := range e.params.Buses {
		buses[name] = map[string]any{
			"voltage_pu": bus.VoltagePU,
			"angle_deg": bus.AngleDeg,
			"load_mw": bus.LoadMW,
			"gen_mw": bus.GenMW,
			"net_injection_mw": bus.GenMW - bus.LoadMW,
		}
	}
	lines := make(map[string]any, len(e.params.Lines))
	for name, line := range e.params.Lines {
		lines[name] = map[string]any{
			"from_bus": line.FromBus,
			"to_bus": line.ToBus,
			"mw_flow": line.MWFlow,
			"mvar_flow": line.MVARFlow,
			"current_a": line.CurrentA,
			"overload": line.Overload,
		}
	}
	return map[string]any{"buses": buses, "lines": lines}
}
