// Package reactor implements the reactor physics engine:
// core/coolant thermodynamics, reaction-rate control, a didactic stability
// metric, and SCRAM emergency shutdown.
//
// Grounded on components/physics/reactor_physics.py: the SCRAM reaction-rate
// half-life decay (0.5**(dt/2.0) in the original, i.e. an exponential decay
// with a 2-second half-life), the deterministic sine-based stability
// fluctuation tied to absolute simulation time, and the SCRAM-clear
// preconditions (temperature/stability/containment) all reproduce that
// original rather than a reinvented control law.
package reactor

import (
	"context"
	"math"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simerr"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

// Memory map addresses, following reactor PLC convention.
const (
	AddrCoreTemp = "input_registers[200]"
	AddrCoolantTemp = "input_registers[201]"
	AddrVesselPressure = "input_registers[202]"
	AddrCoolantFlow = "input_registers[203]"
	AddrReactionRate = "input_registers[204]"
	AddrPowerOutput = "input_registers[205]"
	AddrStability = "input_registers[206]"
	AddrContainment = "input_registers[207]"
	AddrScramActive = "discrete_inputs[200]"
	AddrDamagePercent = "input_registers[208]"

	AddrPowerSetpoint = "holding_registers[200]"
	AddrPumpSpeed = "holding_registers[201]"
	AddrRodPosition = "holding_registers[202]"
	AddrScramCommand = "coils[200]"
	AddrDampenerEnable = "coils[201]"
)

// Parameters are the physical constants of a reactor unit.
type Parameters struct {
	RatedTempC float64
	MaxSafeTempC float64
	CriticalTempC float64
	ThermalMass float64
	ReactionLagSeconds float64
	ScramHalfLifeSeconds float64
	StabilityRecoveryPerSec float64
	StabilityDecayPerSec float64
	DampenerRecoveryBonus float64
	DamageRatePerSec float64
}

func DefaultParameters() Parameters {
	return Parameters{
		RatedTempC: 300,
		MaxSafeTempC: 350,
		CriticalTempC: 400,
		ThermalMass: 5000,
		ReactionLagSeconds: 5,
		ScramHalfLifeSeconds: 2.0,
		StabilityRecoveryPerSec: 0.01,
		StabilityDecayPerSec: 0.02,
		DampenerRecoveryBonus: 0.02,
		DamageRatePerSec: 0.005,
	}
}

// State is the engine's strongly-typed physics state.
type State struct {
	CoreTemperatureC float64
	CoolantTemperatureC float64
	VesselPressureMPa float64
	CoolantFlowFraction float64
	ReactionRatePercent float64
	PowerOutputPercent float64
	StabilityFactor float64 // thaumic field strength ∈ [0,1]
	ContainmentIntegrity float64
	CumulativeOvertempSec float64
	Damage float64
	Scram bool
}

type controlCache struct {
	powerSetpointPercent float64
	pumpSpeedPercent float64
	rodsWithdrawnPercent float64
	scramCommand bool
	dampenerEnabled bool
}

// Clock supplies absolute simulation time for the deterministic stability
// fluctuation (design note: tied to absolute sim time by design).
type Clock interface {
	Now() float64
}

type Engine struct {
	deviceName string
	store *store.Store
	logger *obslog.Logger
	clock Clock
	params Parameters

	state State
	cache controlCache
	initialised bool
}

func New(deviceName string, st *store.Store, logger *obslog.Logger, clock Clock, params Parameters) *Engine {
	return &Engine{deviceName: deviceName, store: st, logger: logger, clock: clock, params: params}
}

func (e *Engine) Initialise(ctx context.Context) error {
	if _, ok := e.store.GetDeviceState(e.deviceName); !ok {
		return simerr.NewUnknownDevice(e.deviceName)
	}
	e.state = State{
		CoreTemperatureC: e.params.RatedTempC,
		CoolantTemperatureC: e.params.RatedTempC - 30,
		VesselPressureMPa: 15,
		CoolantFlowFraction: 1.0,
		StabilityFactor: 1.0,
		ContainmentIntegrity: 1.0,
	}
	e.initialised = true
	return e.WriteTelemetry(ctx)
}

func (e *Engine) ReadControlInputs(ctx context.Context) error {
	power, _ := e.store.ReadMemory(e.deviceName, AddrPowerSetpoint)
	pump, _ := e.store.ReadMemory(e.deviceName, AddrPumpSpeed)
	rods, _ := e.store.ReadMemory(e.deviceName, AddrRodPosition)
	scram, _ := e.store.ReadMemory(e.deviceName, AddrScramCommand)
	dampener, _ := e.store.ReadMemory(e.deviceName, AddrDampenerEnable)

	e.cache = controlCache{
		powerSetpointPercent: toFloat(power, 100),
		pumpSpeedPercent: toFloat(pump, 100),
		rodsWithdrawnPercent: toFloat(rods, 100),
		scramCommand: toBool(scram, false),
		dampenerEnabled: toBool(dampener, true),
	}
	return nil
}

// TryResetScram attempts to clear a latched SCRAM. It is authorised to
// succeed only when core temperature is below rated, stability > 0.8, and
// containment integrity > 0.9. Returns false (and logs at
// WARNING) otherwise.
func (e *Engine) TryResetScram() bool {
	s := &e.state
	if !s.Scram {
		return true
	}
	if e.SafeStatePreconditionMet() {
		s.Scram = false
		return true
	}
	if e.logger != nil {
		e.logger.Warn("reactor SCRAM reset rejected: preconditions not met", map[string]any{
			"core_temp_c": s.CoreTemperatureC,
			"stability": s.StabilityFactor,
			"containment": s.ContainmentIntegrity,
		})
	}
	return false
}

func (e *Engine) Update(dt float64) error {
	if !e.initialised {
		return simerr.NewNotInitialised("reactor")
	}
	if dt <= 0 {
		if e.logger != nil {
			e.logger.Warn("non-positive dt, skipping reactor update", map[string]any{"dt": dt})
		}
		return nil
	}

	s := &e.state
	p := e.params

	if e.cache.scramCommand && !s.Scram {
		s.Scram = true
	}

	if s.Scram {
		// Exponential decay with a 2s half-life: rate *= 0.5^(dt/halfLife).
		s.ReactionRatePercent *= math.Pow(0.5, dt/p.ScramHalfLifeSeconds)
		s.CoolantFlowFraction = 1.0
		s.StabilityFactor += p.StabilityRecoveryPerSec * dt
	} else {
		target := e.cache.powerSetpointPercent
		if e.cache.rodsWithdrawnPercent < target {
			target = e.cache.rodsWithdrawnPercent
		}
		if s.StabilityFactor < 0.8 && e.clock != nil {
			instability := 1.0 - s.StabilityFactor
			target += math.Sin(e.clock.Now()*0.7) * instability * 5.0
		}
		s.ReactionRatePercent += (target - s.ReactionRatePercent) * (dt / p.ReactionLagSeconds)
	}
	if s.ReactionRatePercent < 0 {
		s.ReactionRatePercent = 0
	}

	s.CoolantFlowFraction = e.cache.pumpSpeedPercent / 100.0
	if s.Scram {
		s.CoolantFlowFraction = 1.0
	}

	s.PowerOutputPercent = s.ReactionRatePercent

	// Heat balance: generated scales with reaction rate, removed scales with
	// coolant flow and the core/coolant temperature differential.
	generated := s.ReactionRatePercent * 3.0 // kW-equivalent scale factor
	removed := s.CoolantFlowFraction * (s.CoreTemperatureC - s.CoolantTemperatureC) * 2.0
	netHeat := generated - removed
	s.CoreTemperatureC += netHeat * dt / p.ThermalMass * 1000
	s.CoolantTemperatureC += (s.CoreTemperatureC - s.CoolantTemperatureC) * 0.1 * dt

	// Pressure tracks temperature, with a stability-linked perturbation below 0.7.
	s.VesselPressureMPa = 10 + s.CoreTemperatureC*0.02
	if s.StabilityFactor < 0.7 && e.clock != nil {
		s.VesselPressureMPa += math.Sin(e.clock.Now()*0.9) * (0.7 - s.StabilityFactor) * 2.0
	}

	// Stability source/sink: stress from power level and over-rated temperature.
	stress := s.ReactionRatePercent/100.0*0.01 + 0.0
	if s.CoreTemperatureC > p.RatedTempC {
		stress += (s.CoreTemperatureC - p.RatedTempC) / 100.0 * p.StabilityDecayPerSec
	}
	recovery := p.StabilityRecoveryPerSec
	if e.cache.dampenerEnabled {
		recovery += p.DampenerRecoveryBonus
	}
	s.StabilityFactor += (recovery - stress) * dt
	if s.StabilityFactor < 0 {
		s.StabilityFactor = 0
	}
	if s.StabilityFactor > 1 {
		s.StabilityFactor = 1
	}

	if s.CoreTemperatureC > p.MaxSafeTempC {
		s.CumulativeOvertempSec += dt
		over := (s.CoreTemperatureC - p.MaxSafeTempC) / 100.0
		s.Damage += over * p.DamageRatePerSec * dt
		if s.Damage > 1 {
			s.Damage = 1
		}
	}

	// Containment integrity degrades slowly with accumulated damage.
	s.ContainmentIntegrity = 1.0 - s.Damage*0.5
	if s.ContainmentIntegrity < 0 {
		s.ContainmentIntegrity = 0
	}

	// Auto-SCRAM: core exceeds critical temperature or containment collapses.
	if !s.Scram && (s.CoreTemperatureC >= p.CriticalTempC || s.ContainmentIntegrity < 0.5) {
		s.Scram = true
		if e.logger != nil {
			e.logger.LogAlarm("auto-SCRAM engaged", obslog.PriorityCritical, obslog.AlarmActive, map[string]any{
				"core_temp_c": s.CoreTemperatureC,
				"containment": s.ContainmentIntegrity,
			})
		}
	}
	return nil
}

// TriggerSafeState forces a SCRAM, satisfying the safety package's Engine
// contract (the safety controller calls this every cycle
// while a demand is latched).
func (e *Engine) TriggerSafeState() {
	e.state.Scram = true
}

// SafeStatePreconditionMet reports whether SCRAM-clear preconditions hold,
// satisfying the safety package's Engine contract.
func (e *Engine) SafeStatePreconditionMet() bool {
	s := &e.state
	return s.CoreTemperatureC < e.params.RatedTempC && s.StabilityFactor > 0.8 && s.ContainmentIntegrity > 0.9
}

func (e *Engine) WriteTelemetry(ctx context.Context) error {
	s := e.state
	return e.store.BulkWriteMemory(e.deviceName, map[string]any{
		AddrCoreTemp: s.CoreTemperatureC,
		AddrCoolantTemp: s.CoolantTemperatureC,
		AddrVesselPressure: s.VesselPressureMPa,
		AddrCoolantFlow: s.CoolantFlowFraction,
		AddrReactionRate: s.ReactionRatePercent,
		AddrPowerOutput: s.PowerOutputPercent,
		AddrStability: s.StabilityFactor,
		AddrContainment: s.ContainmentIntegrity,
		AddrScramActive: s.Scram,
		AddrDamagePercent: s.Damage * 100,
	})
}

func (e *Engine) GetState() State { return e.state }

func (e *Engine) GetTelemetry() map[string]any {
	s := e.state
	return map[string]any{
		"core_temperature_c": s.CoreTemperatureC,
		"coolant_temperature_c": s.CoolantTemperatureC,
		"vessel_pressure_mpa": s.VesselPressureMPa,
		"coolant_flow_fraction": s.CoolantFlowFraction,
		"reaction_rate_percent": s.ReactionRatePercent,
		"power_output_percent": s.PowerOutputPercent,
		"stability_factor": s.StabilityFactor,
		"containment_integrity": s.ContainmentIntegrity,
		"overtemperature_time_sec": s.CumulativeOvertempSec,
		"damage_percent": s.Damage * 100,
		"scram_active": s.Scram,
	}
}

func toFloat(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func toBool(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}
