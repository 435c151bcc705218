package safety

import (
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics/turbine"
)

type turbineSIFChannels struct {
	speed [3]float64
	vibration [3]float64
	bearing [3]float64
}

// NewTurbineSafety builds the turbine Safety Instrumented Functions,
// grounded on tests/unit/devices/test_turbine_safety_plc.py: three
// SIFs (overspeed, vibration, bearing temperature), each voted 2oo3 across
// three jittered sensor channels, mirroring that test's triple-channel
// sensor simulation and 2oo3 voting architecture.
func NewTurbineSafety(deviceName string, engine *turbine.Engine, logger *obslog.Logger, overspeedTripRPM, vibrationTripMils, bearingTripF float64) (*Controller, func()) {
	ch := &turbineSIFChannels{}

	refresh := func() {
		s := engine.GetState()
		for i := 0; i < 3; i++ {
			ch.speed[i] = Jittered(s.ShaftSpeedRPM, 0.002)
			ch.vibration[i] = Jittered(s.VibrationMils, 0.01)
			ch.bearing[i] = Jittered(s.BearingTemperatureF, 0.005)
		}
	}

	sifs := []SIF{
		{
			Name: "SIF-T01-overspeed",
			Voting: TwoOutOfThree,
			Channels: func() []float64 { return ch.speed[:] },
			Evaluate: func(c []float64) []bool {
				return []bool{c[0] > overspeedTripRPM, c[1] > overspeedTripRPM, c[2] > overspeedTripRPM}
			},
		},
		{
			Name: "SIF-T02-vibration",
			Voting: TwoOutOfThree,
			Channels: func() []float64 { return ch.vibration[:] },
			Evaluate: func(c []float64) []bool {
				return []bool{c[0] > vibrationTripMils, c[1] > vibrationTripMils, c[2] > vibrationTripMils}
			},
		},
		{
			Name: "SIF-T03-bearing-temperature",
			Voting: TwoOutOfThree,
			Channels: func() []float64 { return ch.bearing[:] },
			Evaluate: func(c []float64) []bool {
				return []bool{c[0] > bearingTripF, c[1] > bearingTripF, c[2] > bearingTripF}
			},
		},
	}

	controller := New(deviceName, SIL2, engine, logger, sifs)
	return controller, refresh
}
