package safety

import (
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics/reactor"
)

// reactorSIFChannels holds the dual-channel jittered readings refreshed
// once per scan by NewReactorSafety's returned refresh closure, so every
// SIF in the cycle sees a consistent snapshot ("no other phase of
// the same controller observes an intermediate state").
type reactorSIFChannels struct {
	tempA, tempB float64
	pressureA, pressureB float64
	stability float64
	containment float64
	coolantFlow float64
	reactorActive bool
}

// NewReactorSafety builds the five reactor Safety Instrumented Functions
//, grounded one-for-one on
// components/devices/control_zone/safety/reactor_safety_plc.py's
// SIF-R01..SIF-R05: high temperature and high pressure vote 2oo2 across
// jittered dual channels; thaumic/stability instability, containment
// breach, and low coolant flow are single-channel. Returns the controller
// plus a refresh function the caller must invoke once per scan, before
// Scan(), to sample fresh channel jitter and a discrepancy-check function
// for the dual-channel diagnostics.
func NewReactorSafety(deviceName string, engine *reactor.Engine, logger *obslog.Logger, tempTripC, pressureTripMPa, stabilityTripPercent, containmentTripPercent, coolantFlowTripPercent float64) (*Controller, func(), func(*Controller)) {
	ch := &reactorSIFChannels{}

	refresh := func() {
		s := engine.GetState()
		ch.tempA = Jittered(s.CoreTemperatureC, 0.005)
		ch.tempB = Jittered(s.CoreTemperatureC, 0.005)
		ch.pressureA = Jittered(s.VesselPressureMPa, 0.01)
		ch.pressureB = Jittered(s.VesselPressureMPa, 0.01)
		ch.stability = s.StabilityFactor * 100
		ch.containment = s.ContainmentIntegrity * 100
		ch.coolantFlow = s.CoolantFlowFraction * 100
		ch.reactorActive = !s.Scram
	}

	sifs := []SIF{
		{
			Name: "SIF-R01-high-temperature",
			Voting: TwoOutOfTwo,
			Channels: func() []float64 { return []float64{ch.tempA, ch.tempB} },
			Evaluate: func(c []float64) []bool { return []bool{c[0] > tempTripC, c[1] > tempTripC} },
		},
		{
			Name: "SIF-R02-high-pressure",
			Voting: TwoOutOfTwo,
			Channels: func() []float64 { return []float64{ch.pressureA, ch.pressureB} },
			Evaluate: func(c []float64) []bool { return []bool{c[0] > pressureTripMPa, c[1] > pressureTripMPa} },
		},
		{
			Name: "SIF-R03-stability-instability",
			Voting: OneOutOfOne,
			Channels: func() []float64 { return []float64{ch.stability} },
			Evaluate: func(c []float64) []bool { return []bool{c[0] < stabilityTripPercent} },
		},
		{
			Name: "SIF-R04-containment-breach",
			Voting: OneOutOfOne,
			Channels: func() []float64 { return []float64{ch.containment} },
			Evaluate: func(c []float64) []bool { return []bool{c[0] < containmentTripPercent} },
		},
		{
			Name: "SIF-R05-low-coolant-flow",
			Voting: OneOutOfOne,
			Channels: func() []float64 { return []float64{ch.coolantFlow} },
			Evaluate: func(c []float64) []bool {
				return []bool{ch.reactorActive && c[0] < coolantFlowTripPercent}
			},
		},
	}

	controller := New(deviceName, SIL3, engine, logger, sifs)

	runDiagnostics := func(c *Controller) {
		c.CheckDiscrepancy("core_temperature", ch.tempA, ch.tempB, 5.0, 1.0)
		c.CheckDiscrepancy("vessel_pressure", ch.pressureA, ch.pressureB, 3.0, 0.5)
	}

	return controller, refresh, runDiagnostics
}
