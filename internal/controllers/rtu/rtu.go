// Package rtu implements the substation RTU device: breaker
// management, protection relays, and deadband-based report-by-exception.
//
// Grounded on components/devices/control_zone/rtu/substation_rtu.py: the
// breaker state machine (UNKNOWN/OPEN/CLOSED/INTERMEDIATE/FAULT), the
// relay types (instantaneous/time overcurrent, under/overvoltage,
// underfrequency), the latched-trip-forces-breakers-open rule, the
// reject-close-while-latched rule, and the deadband report-by-exception
// pattern all reproduce that original's device model.
package rtu

import (
	"golang.org/x/time/rate"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simerr"
)

// BreakerState is a circuit breaker's discrete position.
type BreakerState int

const (
	BreakerUnknown BreakerState = iota
	BreakerOpen
	BreakerClosed
	BreakerIntermediate
	BreakerFault
)

// Breaker is a single managed circuit breaker.
type Breaker struct {
	Name string
	State BreakerState
	RatedCurrentA float64
	RatedVoltageKV float64
	OperationCount int
	LastTripTime float64
}

// RelayType identifies a protection relay's function.
type RelayType int

const (
	RelayInstantaneousOvercurrent RelayType = iota
	RelayTimeOvercurrent
	RelayUndervoltage
	RelayOvervoltage
	RelayUnderfrequency
)

// Relay is a protection relay guarding one or more breakers.
type Relay struct {
	Name string
	Type RelayType
	PickupThreshold float64
	Enabled bool
	Latched bool
	TripCount int
}

// AnaloguePoint is a monitored measurement with deadband report-by-exception.
type AnaloguePoint struct {
	Name string
	Deadband float64
	Value float64
	// MaxReportsPerSec caps report frequency independent of the deadband,
	// so a rapidly oscillating measurement can't flood the report channel
	// even while every crossing is individually deadband-significant.
	// Zero disables the cap (the zero-value AnaloguePoint reports on every
	// deadband crossing, as before).
	MaxReportsPerSec float64

	lastReported float64
	everReported bool
	limiter *rate.Limiter
}

// ShouldReport reports whether the absolute change since the last report
// exceeds the configured deadband, additionally capped by
// MaxReportsPerSec if set.
func (p *AnaloguePoint) ShouldReport() bool {
	if !p.everReported {
		return true
	}
	delta := p.Value - p.lastReported
	if delta < 0 {
		delta = -delta
	}
	if delta <= p.Deadband {
		return false
	}
	if p.MaxReportsPerSec <= 0 {
		return true
	}
	if p.limiter == nil {
		p.limiter = rate.NewLimiter(rate.Limit(p.MaxReportsPerSec), 1)
	}
	return p.limiter.Allow()
}

// MarkReported records the current value as the last-reported baseline.
func (p *AnaloguePoint) MarkReported() {
	p.lastReported = p.Value
	p.everReported = true
}

// RTU manages a configured set of breakers and protection relays for one
// substation.
type RTU struct {
	deviceName string
	logger *obslog.Logger

	Breakers map[string]*Breaker
	Relays map[string]*Relay
	Points map[string]*AnaloguePoint
}

func New(deviceName string, logger *obslog.Logger) *RTU {
	return &RTU{
		deviceName: deviceName,
		logger: logger,
		Breakers: make(map[string]*Breaker),
		Relays: make(map[string]*Relay),
		Points: make(map[string]*AnaloguePoint),
	}
}

func (r *RTU) AddBreaker(b *Breaker) { r.Breakers[b.Name] = b }
func (r *RTU) AddRelay(rel *Relay) { r.Relays[rel.Name] = rel }
func (r *RTU) AddPoint(p *AnaloguePoint) { r.Points[p.Name] = p }

// AnyLatched reports whether any relay on this RTU is currently latched.
func (r *RTU) AnyLatched() bool {
	for _, rel := range r.Relays {
		if rel.Latched {
			return true
		}
	}
	return false
}

// EvaluateRelay applies a relay's trip condition against a measured value
// and latches it on trip, evaluated every cycle.
func (r *RTU) EvaluateRelay(name string, measured float64, simTimeNow float64) {
	rel, ok := r.Relays[name]
	if !ok || !rel.Enabled {
		return
	}

	var tripped bool
	switch rel.Type {
	case RelayInstantaneousOvercurrent, RelayTimeOvercurrent:
		tripped = measured > rel.PickupThreshold
	case RelayUndervoltage, RelayUnderfrequency:
		tripped = measured < rel.PickupThreshold
	case RelayOvervoltage:
		tripped = measured > rel.PickupThreshold
	}

	if tripped && !rel.Latched {
		rel.Latched = true
		rel.TripCount++
		r.tripAllBreakers(simTimeNow)
		if r.logger != nil {
			r.logger.LogAlarm("protection relay tripped: "+name, obslog.PriorityCritical, obslog.AlarmActive, map[string]any{
				"rtu": r.deviceName, "relay": name, "measured": measured, "pickup": rel.PickupThreshold,
			})
		}
	}
}

func (r *RTU) tripAllBreakers(simTimeNow float64) {
	for _, b := range r.Breakers {
		if b.State == BreakerClosed {
			b.State = BreakerOpen
			b.OperationCount++
			b.LastTripTime = simTimeNow
		}
	}
}

// ResetRelay clears a latched relay; does not itself re-close any breaker.
func (r *RTU) ResetRelay(name string) error {
	rel, ok := r.Relays[name]
	if !ok {
		return simerr.NewUnknownDevice(name)
	}
	rel.Latched = false
	if r.logger != nil {
		r.logger.LogAlarm("protection relay reset: "+name, obslog.PriorityCritical, obslog.AlarmCleared, map[string]any{
			"rtu": r.deviceName, "relay": name,
		})
	}
	return nil
}

// CloseBreaker commands a breaker closed; rejected while any relay on this
// RTU remains latched.
func (r *RTU) CloseBreaker(name string, simTimeNow float64) error {
	b, ok := r.Breakers[name]
	if !ok {
		return simerr.NewUnknownDevice(name)
	}
	if r.AnyLatched() {
		return simerr.New(simerr.InvalidMode, "breaker close rejected: a protection relay is latched").WithDetails(map[string]any{
			"rtu": r.deviceName, "breaker": name,
		})
	}
	b.State = BreakerClosed
	b.OperationCount++
	return nil
}

// OpenBreaker commands a breaker open; always permitted.
func (r *RTU) OpenBreaker(name string) error {
	b, ok := r.Breakers[name]
	if !ok {
		return simerr.NewUnknownDevice(name)
	}
	b.State = BreakerOpen
	b.OperationCount++
	return nil
}
