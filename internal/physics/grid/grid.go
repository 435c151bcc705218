// Package grid implements the grid dynamics physics engine:
// system frequency and voltage response to load/generation imbalance, with
// latched protection trips.
//
// Grounded on components/physics/grid_physics.py: the swing-equation
// frequency update (df/dt = (P_gen - P_load - D·Δf)/H), the
// device-aggregation step reading turbine power from input_registers[101]
// of every turbine_plc device, the simplified voltage-deviation proxy, and the
// four edge-triggered protection-trip flags reproduce that original.
package grid

import (
	"context"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simerr"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

// Parameters are the grid-wide control constants.
type Parameters struct {
	NominalFrequencyHz float64
	FrequencyDeadbandHz float64
	MaxFrequencyHz float64
	MinFrequencyHz float64
	MaxVoltagePU float64
	MinVoltagePU float64
	InertiaConstant float64 // MW·s
	DampingMWPerHz float64

	// FixedLoadMW stands in for per-substation load aggregation: a
	// configured load, extendable to per-substation reads.
	FixedLoadMW float64

	// TurbinePowerAddress is the memory-map cell read off every device of
	// kind TurbineDeviceKind to aggregate total generation.
	TurbinePowerAddress string
	TurbineDeviceKind string
}

func DefaultParameters() Parameters {
	return Parameters{
		NominalFrequencyHz: 50.0,
		FrequencyDeadbandHz: 0.2,
		MaxFrequencyHz: 51.0,
		MinFrequencyHz: 49.0,
		MaxVoltagePU: 1.1,
		MinVoltagePU: 0.9,
		InertiaConstant: 5000.0,
		DampingMWPerHz: 1.0,
		FixedLoadMW: 80.0,
		TurbinePowerAddress: "input_registers[101]",
		TurbineDeviceKind: "turbine_plc",
	}
}

// State is the grid's strongly-typed physics state.
type State struct {
	FrequencyHz float64
	VoltagePU float64
	TotalLoadMW float64
	TotalGenMW float64
	UnderFrequencyTrip bool
	OverFrequencyTrip bool
	UndervoltageTrip bool
	OvervoltageTrip bool
}

type Engine struct {
	store *store.Store
	logger *obslog.Logger
	params Parameters

	state State
	initialised bool
}

func New(st *store.Store, logger *obslog.Logger, params Parameters) *Engine {
	return &Engine{store: st, logger: logger, params: params}
}

func (e *Engine) Initialise(ctx context.Context) error {
	e.state = State{
		FrequencyHz: e.params.NominalFrequencyHz,
		VoltagePU: 1.0,
	}
	e.initialised = true
	return e.UpdateFromDevices(ctx)
}

// UpdateFromDevices aggregates total generation and load from all devices
// . Satisfies physics.DeviceAggregator.
func (e *Engine) UpdateFromDevices(ctx context.Context) error {
	turbines := e.store.GetDevicesByKind(e.params.TurbineDeviceKind)

	total := 0.0
	for _, turbine := range turbines {
		v, ok := e.store.ReadMemory(turbine.Name, e.params.TurbinePowerAddress)
		if !ok {
			continue
		}
		if mw, ok := v.(float64); ok {
			total += mw
		}
	}
	e.state.TotalGenMW = total
	e.state.TotalLoadMW = e.params.FixedLoadMW
	return nil
}

// ReadControlInputs is a no-op: the grid engine has no device-held control
// inputs of its own, only the device-aggregation step.
func (e *Engine) ReadControlInputs(ctx context.Context) error { return nil }

func (e *Engine) Update(dt float64) error {
	if !e.initialised {
		return simerr.NewNotInitialised("grid")
	}
	if dt <= 0 {
		if e.logger != nil {
			e.logger.Warn("non-positive dt, skipping grid update", map[string]any{"dt": dt})
		}
		return nil
	}

	s := &e.state
	p := e.params

	imbalance := s.TotalGenMW - s.TotalLoadMW
	freqDeviation := s.FrequencyHz - p.NominalFrequencyHz
	damping := p.DampingMWPerHz * freqDeviation
	netPower := imbalance - damping

	dfdt := netPower / p.InertiaConstant
	s.FrequencyHz += dfdt * dt

	voltageDeviation := imbalance / 10000.0
	s.VoltagePU = 1.0 + voltageDeviation

	e.updateProtection()

	if e.logger != nil {
		if d := freqDeviation; d > p.FrequencyDeadbandHz || d < -p.FrequencyDeadbandHz {
			e.logger.Warn("grid frequency deviation", map[string]any{
				"frequency_hz": s.FrequencyHz,
				"imbalance_mw": imbalance,
			})
		}
	}
	return nil
}

func (e *Engine) updateProtection() {
	s := &e.state
	p := e.params

	oldUF, oldOF := s.UnderFrequencyTrip, s.OverFrequencyTrip
	s.UnderFrequencyTrip = oldUF || s.FrequencyHz < p.MinFrequencyHz
	s.OverFrequencyTrip = oldOF || s.FrequencyHz > p.MaxFrequencyHz

	if e.logger != nil {
		if s.UnderFrequencyTrip && !oldUF {
			e.logger.LogAlarm("under-frequency trip", obslog.PriorityCritical, obslog.AlarmActive, map[string]any{
				"frequency_hz": s.FrequencyHz,
				"limit_hz": p.MinFrequencyHz,
			})
		}
		if s.OverFrequencyTrip && !oldOF {
			e.logger.LogAlarm("over-frequency trip", obslog.PriorityCritical, obslog.AlarmActive, map[string]any{
				"frequency_hz": s.FrequencyHz,
				"limit_hz": p.MaxFrequencyHz,
			})
		}
	}

	oldUV, oldOV := s.UndervoltageTrip, s.OvervoltageTrip
	s.UndervoltageTrip = oldUV || s.VoltagePU < p.MinVoltagePU
	s.OvervoltageTrip = oldOV || s.VoltagePU > p.MaxVoltagePU

	if e.logger != nil {
		if s.UndervoltageTrip && !oldUV {
			e.logger.LogAlarm("undervoltage trip", obslog.PriorityCritical, obslog.AlarmActive, map[string]any{
				"voltage_pu": s.VoltagePU,
				"limit_pu": p.MinVoltagePU,
			})
		}
		if s.OvervoltageTrip && !oldOV {
			e.logger.LogAlarm("overvoltage trip", obslog.PriorityCritical, obslog.AlarmActive, map[string]any{
				"voltage_pu": s.VoltagePU,
				"limit_pu": p.MaxVoltagePU,
			})
		}
	}
}

func (e *Engine) WriteTelemetry(ctx context.Context) error {
	return nil // grid has no backing device memory map; it is system-scoped
}

func (e *Engine) GetState() State { return e.state }

func (e *Engine) GetTelemetry() map[string]any {
	s := e.state
	return map[string]any{
		"frequency_hz": s.FrequencyHz,
		"voltage_pu": s.VoltagePU,
		"total_generation_mw": s.TotalGenMW,
		"total_load_mw": s.TotalLoadMW,
		"imbalance_mw": s.TotalGenMW - s.TotalLoadMW,
		"under_frequency_trip": s.UnderFrequencyTrip,
		"over_frequency_trip": s.OverFrequencyTrip,
		"undervoltage_trip": s.UndervoltageTrip,
		"overvoltage_trip": s.OvervoltageTrip,
	}
}
