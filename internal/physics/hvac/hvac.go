// Package hvac implements the HVAC zone physics engine: zone
// temperature and humidity control, air handling, and a stability proxy
// that decays under environmental stress and recovers with a dampener.
//
// Grounded on components/physics/hvac_physics.py: the fan/damper
// first-order actuator lag, the PI controllers for temperature and
// humidity (including anti-windup integral clamps), the supply-air
// mixing/conditioning model, and the stability proxy's stress/recovery
// balance all reproduce that original's control constants.
package hvac

import (
	"context"
	"math"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simerr"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

// Mode is the HVAC operating mode.
type Mode int

const (
	ModeOff Mode = iota
	ModeHeat
	ModeCool
	ModeAuto
)

const (
	AddrZoneTemp = "holding_registers[0]"
	AddrZoneHumidity = "holding_registers[1]"
	AddrSupplyTemp = "holding_registers[2]"
	AddrDuctPressure = "holding_registers[3]"
	AddrStability = "holding_registers[4]"
	AddrFanSpeed = "holding_registers[5]"
	AddrHeatingValve = "holding_registers[6]"
	AddrCoolingValve = "holding_registers[7]"
	AddrDamperPos = "holding_registers[8]"
	AddrEnergyDraw = "holding_registers[9]"

	AddrTempSetpoint = "holding_registers[10]"
	AddrHumiditySetpoint = "holding_registers[11]"
	AddrFanCommand = "holding_registers[12]"
	AddrModeSelect = "holding_registers[13]"
	AddrDamperCommand = "holding_registers[14]"
	AddrSystemEnable = "coils[10]"
	AddrDampenerEnable = "coils[11]"
)

// Parameters are the zone's design constants.
type Parameters struct {
	ZoneThermalMass float64 // kJ/°C
	RatedHeatingKW float64
	RatedCoolingKW float64
	RatedAirflowM3S float64
	MinTempC float64
	MaxTempC float64
	MinHumidityPercent float64
	MaxHumidityPercent float64
	OutsideTempC float64
	OutsideHumidity float64
	FanTimeConstantSec float64
	DamperTimeConstant float64
}

func DefaultParameters() Parameters {
	return Parameters{
		ZoneThermalMass: 500,
		RatedHeatingKW: 50,
		RatedCoolingKW: 75,
		RatedAirflowM3S: 5,
		MinTempC: 18,
		MaxTempC: 22,
		MinHumidityPercent: 40,
		MaxHumidityPercent: 55,
		OutsideTempC: 10,
		OutsideHumidity: 70,
		FanTimeConstantSec: 5,
		DamperTimeConstant: 30,
	}
}

// State is the zone's strongly-typed physics state.
type State struct {
	ZoneTemperatureC float64
	ZoneHumidityPct float64
	SupplyAirTempC float64
	ReturnAirTempC float64
	DuctPressurePa float64
	FanSpeedPercent float64
	HeatingValvePct float64
	CoolingValvePct float64
	DamperPositionPct float64
	HumidifierOutputPct float64
	StabilityFactor float64
	EnergyConsumptionKW float64
}

type controlCache struct {
	tempSetpointC float64
	humiditySetpointPc float64
	fanCommand float64
	mode Mode
	damperCommand float64
	systemEnable bool
	dampenerEnable bool
}

type Engine struct {
	deviceName string
	store *store.Store
	logger *obslog.Logger
	clock interface{ Now() float64 }
	params Parameters

	state State
	cache controlCache
	initialised bool

	tempIntegral float64
	humidityIntegral float64
}

func New(deviceName string, st *store.Store, logger *obslog.Logger, clock interface{ Now() float64 }, params Parameters) *Engine {
	return &Engine{deviceName: deviceName, store: st, logger: logger, clock: clock, params: params}
}

func (e *Engine) Initialise(ctx context.Context) error {
	if _, ok := e.store.GetDeviceState(e.deviceName); !ok {
		return simerr.NewUnknownDevice(e.deviceName)
	}
	e.state = State{
		ZoneTemperatureC: 20,
		ZoneHumidityPct: 45,
		SupplyAirTempC: 20,
		ReturnAirTempC: 20,
		StabilityFactor: 1.0,
	}
	e.initialised = true
	return e.WriteTelemetry(ctx)
}

func (e *Engine) ReadControlInputs(ctx context.Context) error {
	temp, _ := e.store.ReadMemory(e.deviceName, AddrTempSetpoint)
	hum, _ := e.store.ReadMemory(e.deviceName, AddrHumiditySetpoint)
	fan, _ := e.store.ReadMemory(e.deviceName, AddrFanCommand)
	mode, _ := e.store.ReadMemory(e.deviceName, AddrModeSelect)
	damper, _ := e.store.ReadMemory(e.deviceName, AddrDamperCommand)
	enable, _ := e.store.ReadMemory(e.deviceName, AddrSystemEnable)
	dampener, _ := e.store.ReadMemory(e.deviceName, AddrDampenerEnable)

	e.cache = controlCache{
		tempSetpointC: toFloat(temp, 20),
		humiditySetpointPc: toFloat(hum, 45),
		fanCommand: toFloat(fan, 0),
		mode: Mode(int(toFloat(mode, 0))),
		damperCommand: toFloat(damper, 0),
		systemEnable: toBool(enable, false),
		dampenerEnable: toBool(dampener, true),
	}
	return nil
}

func (e *Engine) Update(dt float64) error {
	if !e.initialised {
		return simerr.NewNotInitialised("hvac")
	}
	if dt <= 0 {
		if e.logger != nil {
			e.logger.Warn("non-positive dt, skipping hvac update", map[string]any{"dt": dt})
		}
		return nil
	}

	if !e.cache.systemEnable {
		e.systemOff(dt)
		return nil
	}

	e.updateFan(dt, e.cache.fanCommand)
	e.updateDamper(dt, e.cache.damperCommand)
	e.updateHeatingCooling(dt, e.cache.tempSetpointC, e.cache.mode)
	e.updateZoneTemperature(dt)
	e.updateHumidity(dt, e.cache.humiditySetpointPc)
	e.updateStability(dt, e.cache.dampenerEnable)
	e.updateEnergy()
	return nil
}

func (e *Engine) systemOff(dt float64) {
	s := &e.state
	s.FanSpeedPercent *= math.Pow(0.9, dt)
	if s.FanSpeedPercent < 1 {
		s.FanSpeedPercent = 0
	}
	s.HeatingValvePct *= math.Pow(0.8, dt)
	s.CoolingValvePct *= math.Pow(0.8, dt)
	s.DamperPositionPct *= math.Pow(0.9, dt)
	s.DuctPressurePa *= math.Pow(0.7, dt)

	drift := 0.001
	s.ZoneTemperatureC += (e.params.OutsideTempC - s.ZoneTemperatureC) * drift * dt
	s.ZoneHumidityPct += (e.params.OutsideHumidity - s.ZoneHumidityPct) * drift * dt

	if s.StabilityFactor > 0.5 {
		s.StabilityFactor -= 0.001 * dt
		if s.StabilityFactor < 0.5 {
			s.StabilityFactor = 0.5
		}
	}

	s.EnergyConsumptionKW *= math.Pow(0.5, dt)
	if s.EnergyConsumptionKW < 0.1 {
		s.EnergyConsumptionKW = 0
	}
}

func (e *Engine) updateFan(dt, speedCommand float64) {
	speedCommand = clamp(speedCommand, 0, 100)
	s := &e.state
	s.FanSpeedPercent += (speedCommand - s.FanSpeedPercent) * (dt / e.params.FanTimeConstantSec)
	s.FanSpeedPercent = clamp(s.FanSpeedPercent, 0, 100)

	maxPressure := 500.0
	target := maxPressure * math.Pow(s.FanSpeedPercent/100.0, 2)
	s.DuctPressurePa += (target - s.DuctPressurePa) * 0.5 * dt
}

func (e *Engine) updateDamper(dt, damperCommand float64) {
	damperCommand = clamp(damperCommand, 0, 100)
	s := &e.state
	s.DamperPositionPct += (damperCommand - s.DamperPositionPct) * (dt / e.params.DamperTimeConstant)
	s.DamperPositionPct = clamp(s.DamperPositionPct, 0, 100)
}

func (e *Engine) updateHeatingCooling(dt, tempSetpoint float64, mode Mode) {
	s := &e.state
	tempSetpoint = clamp(tempSetpoint, e.params.MinTempC, e.params.MaxTempC)
	errC := tempSetpoint - s.ZoneTemperatureC

	const kp, ki = 10.0, 0.5
	e.tempIntegral += errC * dt
	e.tempIntegral = clamp(e.tempIntegral, -50, 50)
	control := kp*errC + ki*e.tempIntegral

	switch mode {
	case ModeOff:
		s.HeatingValvePct, s.CoolingValvePct = 0, 0
	case ModeHeat:
		s.HeatingValvePct = clamp(control, 0, 100)
		s.CoolingValvePct = 0
	case ModeCool:
		s.HeatingValvePct = 0
		s.CoolingValvePct = clamp(-control, 0, 100)
	case ModeAuto:
		if control > 0 {
			s.HeatingValvePct = clamp(control, 0, 100)
			s.CoolingValvePct = 0
		} else {
			s.HeatingValvePct = 0
			s.CoolingValvePct = clamp(-control, 0, 100)
		}
	}

	switch {
	case s.HeatingValvePct > 0:
		s.SupplyAirTempC = s.ReturnAirTempC + s.HeatingValvePct/100.0*15.0
	case s.CoolingValvePct > 0:
		s.SupplyAirTempC = s.ReturnAirTempC - s.CoolingValvePct/100.0*10.0
	default:
		mix := s.DamperPositionPct / 100.0
		s.SupplyAirTempC = s.ReturnAirTempC*(1-mix) + e.params.OutsideTempC*mix
	}
}

func (e *Engine) updateZoneTemperature(dt float64) {
	s := &e.state
	airflow := s.FanSpeedPercent / 100.0 * e.params.RatedAirflowM3S
	const airHeatCapacity = 1.2
	heatFromAir := airflow * airHeatCapacity * (s.SupplyAirTempC - s.ZoneTemperatureC)

	const uaValue = 0.5
	heatLoss := uaValue * (s.ZoneTemperatureC - e.params.OutsideTempC)

	internalGains := 5.0
	if s.StabilityFactor < 0.7 && e.clock != nil {
		instability := 1.0 - s.StabilityFactor
		internalGains += math.Sin(e.clock.Now()*0.5) * instability * 2.0
	}

	netHeat := heatFromAir - heatLoss + internalGains
	s.ZoneTemperatureC += netHeat * dt / e.params.ZoneThermalMass
	s.ReturnAirTempC = s.ZoneTemperatureC + 0.5
}

func (e *Engine) updateHumidity(dt, humiditySetpoint float64) {
	s := &e.state
	humiditySetpoint = clamp(humiditySetpoint, e.params.MinHumidityPercent, e.params.MaxHumidityPercent)
	errPct := humiditySetpoint - s.ZoneHumidityPct

	const kp, ki = 2.0, 0.1
	e.humidityIntegral += errPct * dt
	e.humidityIntegral = clamp(e.humidityIntegral, -100, 100)
	control := kp*errPct + ki*e.humidityIntegral

	if control > 0 {
		s.HumidifierOutputPct = clamp(control, 0, 100)
	} else {
		s.HumidifierOutputPct = 0
	}

	humidifierEffect := s.HumidifierOutputPct / 100.0 * 5.0 * dt
	airflowFrac := s.FanSpeedPercent / 100.0
	damperFrac := s.DamperPositionPct / 100.0
	outsideEffect := (e.params.OutsideHumidity - s.ZoneHumidityPct) * airflowFrac * damperFrac * 0.01 * dt

	naturalSources := 0.1 * dt
	if s.StabilityFactor < 0.6 && e.clock != nil {
		instability := 1.0 - s.StabilityFactor
		naturalSources += math.Cos(e.clock.Now()*0.3) * instability * 3.0 * dt
	}

	s.ZoneHumidityPct += humidifierEffect + outsideEffect + naturalSources
	s.ZoneHumidityPct = clamp(s.ZoneHumidityPct, 10, 90)
}

func (e *Engine) updateStability(dt float64, dampenerEnabled bool) {
	s := &e.state
	tempStress := 0.0
	if s.ZoneTemperatureC > e.params.MaxTempC+3 {
		tempStress = (s.ZoneTemperatureC - (e.params.MaxTempC + 3)) / 10.0
	} else if s.ZoneTemperatureC < e.params.MinTempC {
		tempStress = (e.params.MinTempC - s.ZoneTemperatureC) / 10.0
	}

	humidityStress := 0.0
	if s.ZoneHumidityPct > e.params.MaxHumidityPercent+5 {
		humidityStress = (s.ZoneHumidityPct - (e.params.MaxHumidityPercent + 5)) / 20.0
	} else if s.ZoneHumidityPct < e.params.MinHumidityPercent {
		humidityStress = (e.params.MinHumidityPercent - s.ZoneHumidityPct) / 20.0
	}

	totalStress := tempStress + humidityStress

	var recovery, decay float64
	if dampenerEnabled {
		recovery, decay = 0.02, 0.01*totalStress
	} else {
		recovery, decay = 0.005, 0.05*totalStress
	}

	s.StabilityFactor += (recovery - decay) * dt
	s.StabilityFactor = clamp(s.StabilityFactor, 0, 1)

	if s.StabilityFactor < 0.5 && e.logger != nil {
		e.logger.Warn("hvac stability warning", map[string]any{
			"stability": s.StabilityFactor,
			"zone_temp_c": s.ZoneTemperatureC,
			"zone_rh_pct": s.ZoneHumidityPct,
		})
	}
}

func (e *Engine) updateEnergy() {
	s := &e.state
	fanPower := 15.0 * math.Pow(s.FanSpeedPercent/100.0, 3)
	heatingPower := e.params.RatedHeatingKW * s.HeatingValvePct / 100.0
	coolingPower := e.params.RatedCoolingKW * s.CoolingValvePct / 100.0 / 3.0
	humidifierPower := 5.0 * s.HumidifierOutputPct / 100.0
	dampenerPower := 0.5
	if s.StabilityFactor < 0.9 {
		dampenerPower = 2.0
	}
	s.EnergyConsumptionKW = fanPower + heatingPower + coolingPower + humidifierPower + dampenerPower
}

func (e *Engine) WriteTelemetry(ctx context.Context) error {
	s := e.state
	return e.store.BulkWriteMemory(e.deviceName, map[string]any{
		AddrZoneTemp: s.ZoneTemperatureC,
		AddrZoneHumidity: s.ZoneHumidityPct,
		AddrSupplyTemp: s.SupplyAirTempC,
		AddrDuctPressure: s.DuctPressurePa,
		AddrStability: s.StabilityFactor,
		AddrFanSpeed: s.FanSpeedPercent,
		AddrHeatingValve: s.HeatingValvePct,
		AddrCoolingValve: s.CoolingValvePct,
		AddrDamperPos: s.DamperPositionPct,
		AddrEnergyDraw: s.EnergyConsumptionKW,
	})
}

func (e *Engine) GetState() State { return e.state }

func (e *Engine) GetTelemetry() map[string]any {
	s := e.state
	return map[string]any{
		"zone_temperature_c": s.ZoneTemperatureC,
		"zone_humidity_percent": s.ZoneHumidityPct,
		"supply_air_temp_c": s.SupplyAirTempC,
		"duct_pressure_pa": s.DuctPressurePa,
		"fan_speed_percent": s.FanSpeedPercent,
		"heating_valve_percent": s.HeatingValvePct,
		"cooling_valve_percent": s.CoolingValvePct,
		"damper_position_percent": s.DamperPositionPct,
		"energy_consumption_kw": s.EnergyConsumptionKW,
		"stability_factor": s.StabilityFactor,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
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
