// Package turbine implements the turbine physics engine:
// shaft speed, steam conditions, bearing temperature, vibration, and
// electrical power output, driven by a governor and an emergency trip.
//
// Grounded on components/physics/turbine_physics.py: the proportional
// governor control law, the first-order lag toward speed-ratio-scaled
// steam/bearing targets, the vibration formula, and the damage-accumulation
// rate above the overspeed threshold all reproduce that original's
// constants rather than inventing new ones.
package turbine

import (
	"context"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simerr"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

// Memory map addresses. (turbine PLC convention): shaft
// speed at inputRegisters[100], power at [101].
const (
	AddrShaftSpeed = "input_registers[100]"
	AddrPowerOutputMW = "input_registers[101]"
	AddrSteamPressure = "input_registers[102]"
	AddrSteamTemp = "input_registers[103]"
	AddrBearingTemp = "input_registers[104]"
	AddrVibration = "input_registers[105]"
	AddrOverspeed = "discrete_inputs[100]"
	AddrDamagePercent = "input_registers[106]"

	// control inputs, written by the controller, read by this engine
	AddrSpeedSetpoint = "holding_registers[100]"
	AddrGovernorEnabled = "coils[100]"
	AddrEmergencyTrip = "coils[101]"
)

// Parameters are the physical constants of a turbine unit.
type Parameters struct {
	RatedSpeedRPM float64
	RatedPowerMW float64
	MaxAccelRPMPerSec float64
	MaxDecelRPMPerSec float64
	EmergencyDecelMult float64 // applied to MaxDecelRPMPerSec when tripped
	OverspeedRatio float64 // trip/saturation threshold, ≈1.1
	NominalVibration float64
	AmbientTempF float64
	ThermalLagSeconds float64
	DamageRatePerSec float64 // per second above OverspeedRatio
}

// DefaultParameters mirrors the original's constants for a mid-size steam
// turbine.
func DefaultParameters() Parameters {
	return Parameters{
		RatedSpeedRPM: 3600,
		RatedPowerMW: 150,
		MaxAccelRPMPerSec: 50,
		MaxDecelRPMPerSec: 40,
		EmergencyDecelMult: 2.0,
		OverspeedRatio: 1.1,
		NominalVibration: 2.0,
		AmbientTempF: 70,
		ThermalLagSeconds: 15,
		DamageRatePerSec: 0.01,
	}
}

// State is the engine's strongly-typed physics state.
type State struct {
	ShaftSpeedRPM float64
	SteamPressurePSI float64
	SteamTemperatureF float64
	BearingTemperatureF float64
	VibrationMils float64
	PowerOutputMW float64
	CumulativeOverspeedSec float64
	Damage float64
	Tripped bool
}

type controlCache struct {
	speedSetpointRPM float64
	governorEnabled bool
	emergencyTrip bool
}

// Engine is the turbine physics engine, satisfying physics.Engine.
type Engine struct {
	deviceName string
	store *store.Store
	logger *obslog.Logger
	params Parameters

	state State
	cache controlCache
	initialised bool
	lastUpdate float64
}

func New(deviceName string, st *store.Store, logger *obslog.Logger, params Parameters) *Engine {
	return &Engine{deviceName: deviceName, store: st, logger: logger, params: params}
}

func (e *Engine) Initialise(ctx context.Context) error {
	if _, ok := e.store.GetDeviceState(e.deviceName); !ok {
		return simerr.NewUnknownDevice(e.deviceName)
	}
	e.state = State{
		ShaftSpeedRPM: e.params.RatedSpeedRPM,
		SteamPressurePSI: 1000,
		SteamTemperatureF: 1000,
		BearingTemperatureF: e.params.AmbientTempF,
	}
	e.initialised = true
	return e.WriteTelemetry(ctx)
}

func (e *Engine) ReadControlInputs(ctx context.Context) error {
	setpoint, _ := e.store.ReadMemory(e.deviceName, AddrSpeedSetpoint)
	governor, _ := e.store.ReadMemory(e.deviceName, AddrGovernorEnabled)
	trip, _ := e.store.ReadMemory(e.deviceName, AddrEmergencyTrip)

	e.cache = controlCache{
		speedSetpointRPM: toFloat(setpoint, e.params.RatedSpeedRPM),
		governorEnabled: toBool(governor, true),
		emergencyTrip: toBool(trip, false),
	}
	return nil
}

func (e *Engine) Update(dt float64) error {
	if !e.initialised {
		return simerr.NewNotInitialised("turbine")
	}
	if dt <= 0 {
		if e.logger != nil {
			e.logger.Warn("non-positive dt, skipping turbine update", map[string]any{"dt": dt})
		}
		return nil
	}

	s := &e.state
	p := e.params

	switch {
	case e.cache.emergencyTrip:
		s.Tripped = true
		s.ShaftSpeedRPM -= p.MaxDecelRPMPerSec * p.EmergencyDecelMult * dt
		s.SteamTemperatureF += (p.AmbientTempF - s.SteamTemperatureF) * (dt / p.ThermalLagSeconds) * 2
	case e.cache.governorEnabled:
		s.Tripped = false
		// Validate the setpoint itself, not the resulting shaft speed: the
		// governor may legitimately chase a setpoint up to 1.1x the trip
		// threshold, letting real overspeed (and damage accumulation)
		// occur before saturation below takes over.
		target := e.cache.speedSetpointRPM
		if ceiling := p.RatedSpeedRPM * p.OverspeedRatio * 1.1; target > ceiling {
			target = ceiling
		}
		if target < 0 {
			target = 0
		}
		command := target - s.ShaftSpeedRPM
		maxStep := p.MaxAccelRPMPerSec * dt
		minStep := -p.MaxDecelRPMPerSec * dt
		if command > maxStep {
			command = maxStep
		} else if command < minStep {
			command = minStep
		}
		s.ShaftSpeedRPM += command
	default:
		s.Tripped = false
		s.ShaftSpeedRPM -= p.MaxDecelRPMPerSec * 0.3 * dt
	}

	if s.ShaftSpeedRPM < 0 {
		s.ShaftSpeedRPM = 0
	}
	if cap := p.RatedSpeedRPM * p.OverspeedRatio * 1.1; s.ShaftSpeedRPM > cap && !e.cache.emergencyTrip {
		// Saturates well above the trip threshold itself, so speedRatio can
		// genuinely exceed OverspeedRatio and drive damage accumulation below.
		s.ShaftSpeedRPM = cap
	}

	speedRatio := s.ShaftSpeedRPM / p.RatedSpeedRPM

	// Bearing and steam temperature lag toward speed-ratio-scaled targets;
	// vibration does not enter the bearing target.
	bearingTarget := p.AmbientTempF + 80*speedRatio
	s.BearingTemperatureF += (bearingTarget - s.BearingTemperatureF) * (dt / p.ThermalLagSeconds)

	steamTarget := 1000 * speedRatio
	s.SteamTemperatureF += (steamTarget - s.SteamTemperatureF) * (dt / p.ThermalLagSeconds)
	s.SteamPressurePSI += (steamTarget - s.SteamPressurePSI) * (dt / p.ThermalLagSeconds)

	// Vibration ≈ nominal × (1 + 3·speedDeviationRatio) × (1 + damage).
	deviation := speedRatio - 1.0
	if deviation < 0 {
		deviation = -deviation
	}
	s.VibrationMils = p.NominalVibration * (1 + 3*deviation) * (1 + s.Damage)

	// Power: 0 below 20% rated, linear to rated at rated speed, saturates at 1.05x.
	switch {
	case speedRatio < 0.2:
		s.PowerOutputMW = 0
	case speedRatio > 1.05:
		s.PowerOutputMW = p.RatedPowerMW * 1.05
	default:
		s.PowerOutputMW = p.RatedPowerMW * ((speedRatio - 0.2) / 0.8)
		if s.PowerOutputMW < 0 {
			s.PowerOutputMW = 0
		} else if s.PowerOutputMW > p.RatedPowerMW*1.05 {
			s.PowerOutputMW = p.RatedPowerMW * 1.05
		}
	}

	if speedRatio > p.OverspeedRatio {
		s.CumulativeOverspeedSec += dt
		s.Damage += (speedRatio - p.OverspeedRatio) * p.DamageRatePerSec * dt
		if s.Damage > 1 {
			s.Damage = 1
		}
	}
	return nil
}

// TriggerSafeState forces an emergency trip, satisfying the safety
// package's Engine contract.
func (e *Engine) TriggerSafeState() {
	e.state.Tripped = true
	e.cache.emergencyTrip = true
}

// SafeStatePreconditionMet reports whether the trip may be cleared: shaft
// speed must have decayed back under the overspeed threshold.
func (e *Engine) SafeStatePreconditionMet() bool {
	return e.state.ShaftSpeedRPM < e.params.RatedSpeedRPM*e.params.OverspeedRatio
}

// ResetTrip clears a latched trip once SafeStatePreconditionMet holds.
func (e *Engine) ResetTrip() bool {
	if !e.SafeStatePreconditionMet() {
		return false
	}
	e.state.Tripped = false
	e.cache.emergencyTrip = false
	return true
}

func (e *Engine) WriteTelemetry(ctx context.Context) error {
	s := e.state
	return e.store.BulkWriteMemory(e.deviceName, map[string]any{
		AddrShaftSpeed: s.ShaftSpeedRPM,
		AddrPowerOutputMW: s.PowerOutputMW,
		AddrSteamPressure: s.SteamPressurePSI,
		AddrSteamTemp: s.SteamTemperatureF,
		AddrBearingTemp: s.BearingTemperatureF,
		AddrVibration: s.VibrationMils,
		AddrOverspeed: s.ShaftSpeedRPM > e.params.RatedSpeedRPM*e.params.OverspeedRatio,
		AddrDamagePercent: s.Damage * 100,
	})
}

func (e *Engine) GetState() State { return e.state }

func (e *Engine) GetTelemetry() map[string]any {
	s := e.state
	return map[string]any{
		"shaft_speed_rpm": round1(s.ShaftSpeedRPM),
		"power_output_mw": round1(s.PowerOutputMW),
		"steam_pressure_psi": round1(s.SteamPressurePSI),
		"steam_temperature_f": round1(s.SteamTemperatureF),
		"bearing_temperature_f": round1(s.BearingTemperatureF),
		"vibration_mils": round1(s.VibrationMils),
		"turbine_running": s.ShaftSpeedRPM > 100,
		"overspeed": s.ShaftSpeedRPM > e.params.RatedSpeedRPM*e.params.OverspeedRatio,
		"overspeed_time_sec": round1(s.CumulativeOverspeedSec),
		"damage_percent": round1(s.Damage * 100),
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
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
