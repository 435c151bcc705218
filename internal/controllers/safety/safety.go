// Package safety implements Safety Instrumented Systems:
// voted, multi-channel protective logic layered over a physics engine's own
// safe-state action, independent of (and faster-scanning than) the process
// PLCs in package plc.
//
// Grounded on components/devices/control_zone/safety/reactor_safety_plc.py
// (and its base_safety_controller.py ancestor, referenced but not present
// in the retrieved index — its SIL/voting vocabulary is reconstructed from
// this file's imports and docstring): the SIL rating/voting-architecture
// declaration, the per-channel sensor jitter, the per-SIF voting rule, the
// latched demand driving the engine's safe-state action every cycle while
// active, the cross-channel discrepancy diagnostic with ACTIVE/CLEARED
// alarm transitions, and the bypass-suppresses-latching-but-logs-CRITICAL
// behaviour all reproduce that original.
package safety

import (
	"math"
	"math/rand"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
)

// SIL is the Safety Integrity Level rating of a controller.
type SIL int

const (
	SIL1 SIL = iota + 1
	SIL2
	SIL3
)

// Voting is the voting architecture applied across redundant channels.
type Voting int

const (
	OneOutOfOne Voting = iota
	OneOutOfTwo
	TwoOutOfTwo
	TwoOutOfThree
)

// Decide applies the voting rule to a set of per-channel trip booleans.
func (v Voting) Decide(channelTripped []bool) bool {
	switch v {
	case OneOutOfOne:
		return len(channelTripped) > 0 && channelTripped[0]
	case OneOutOfTwo:
		for _, t := range channelTripped {
			if t {
				return true
			}
		}
		return false
	case TwoOutOfTwo:
		if len(channelTripped) < 2 {
			return false
		}
		return channelTripped[0] && channelTripped[1]
	case TwoOutOfThree:
		count := 0
		for _, t := range channelTripped {
			if t {
				count++
			}
		}
		return count >= 2
	default:
		return false
	}
}

// SensorChannel is one redundant measurement channel for a monitored
// quantity, jittered around the true physics value.
type SensorChannel struct {
	JitterFraction float64 // e.g. 0.005 for ±0.5%
	Value float64
}

// Jittered perturbs trueValue by up to ±jitterFraction, simulating the
// small per-channel discrepancy of independent redundant sensors, grounded
// on reactor_safety_plc.py's random.uniform(-0.005, 0.005) channel
// simulation.
func Jittered(trueValue, jitterFraction float64) float64 {
	return trueValue * (1.0 + jitterFraction*(rand.Float64()*2-1))
}

// SIF is a single Safety Instrumented Function: a named trip condition
// evaluated against one or more sensor channels via a voting rule.
type SIF struct {
	Name string
	Voting Voting
	Evaluate func(channels []float64) []bool // per-channel trip decision
	Channels func() []float64 // current channel readings
}

// Engine is the minimal safe-state contract a physics engine must expose to
// be governed by a safety controller ("calls the engine's
// safe-state action every cycle while latched").
type Engine interface {
	TriggerSafeState()
	SafeStatePreconditionMet() bool
}

// Controller is a generic SIL-rated, voting, multi-SIF safety layer.
type Controller struct {
	deviceName string
	sil SIL
	engine Engine
	logger *obslog.Logger
	sifs []SIF

	demanded bool
	bypassActive bool
	resetSignalHigh bool
	demandCount int
	faultCount int

	discrepancyFaultActive bool
	perSIFResults map[string]bool
}

func New(deviceName string, sil SIL, engine Engine, logger *obslog.Logger, sifs []SIF) *Controller {
	return &Controller{deviceName: deviceName, sil: sil, engine: engine, logger: logger, sifs: sifs, perSIFResults: make(map[string]bool)}
}

func (c *Controller) SIL() SIL { return c.sil }

func (c *Controller) Demanded() bool { return c.demanded }

func (c *Controller) DemandCount() int { return c.demandCount }

// SetBypass enables or disables bypass. bypass is itself
// audit-logged at CRITICAL severity on every cycle while active — the scan
// loop, not this setter, is responsible for the recurring log (see Scan).
func (c *Controller) SetBypass(enabled bool) {
	c.bypassActive = enabled
}

// Scan evaluates every SIF's voting rule, latches a demand if any
// unbypassed SIF trips, and drives the engine's safe-state action every
// cycle while latched.
func (c *Controller) Scan() {
	raisedThisCycle := false
	for _, sif := range c.sifs {
		channels := sif.Channels()
		tripped := sif.Evaluate(channels)
		raised := sif.Voting.Decide(tripped)
		c.perSIFResults[sif.Name] = raised
		if raised {
			raisedThisCycle = true
		}
	}

	if raisedThisCycle && !c.bypassActive {
		if !c.demanded {
			c.demandCount++
		}
		c.demanded = true
	}

	// Bypass is itself audit-logged at CRITICAL severity on every cycle
	// while active, independent of whether a SIF happens to
	// be raised this particular cycle.
	if c.bypassActive && c.logger != nil {
		c.logger.LogAlarm(
			"safety bypass active",
			obslog.PriorityCritical, obslog.AlarmActive,
			map[string]any{"device": c.deviceName, "demand_suppressed": raisedThisCycle},
		)
	}

	if c.demanded && !c.bypassActive {
		c.engine.TriggerSafeState()
	}
}

// PerSIFResults returns each SIF's latest raised/not-raised decision,
// keyed by name (the safety status surface: "perSifResults").
func (c *Controller) PerSIFResults() map[string]bool {
	out := make(map[string]bool, len(c.perSIFResults))
	for k, v := range c.perSIFResults {
		out[k] = v
	}
	return out
}

// TryReset clears a latched demand only on a rising edge of resetSignal AND
// when the engine's own safe-state precondition holds.
func (c *Controller) TryReset(resetSignal bool) bool {
	risingEdge := resetSignal && !c.resetSignalHigh
	c.resetSignalHigh = resetSignal

	if !risingEdge || !c.demanded {
		return false
	}
	if !c.engine.SafeStatePreconditionMet() {
		if c.logger != nil {
			c.logger.Warn("safety reset rejected: engine precondition not met", map[string]any{"device": c.deviceName})
		}
		return false
	}
	c.demanded = false
	if c.logger != nil {
		c.logger.LogAudit("safety demand reset", "operator", "safety_reset", "accepted", map[string]any{"device": c.deviceName})
	}
	return true
}

// CheckDiscrepancy runs a cross-channel diagnostic: a discrepancy beyond
// threshold raises an ACTIVE alarm and sets a diagnostic fault; falling
// below clearThreshold clears it.
func (c *Controller) CheckDiscrepancy(name string, a, b, raiseThreshold, clearThreshold float64) {
	discrepancy := math.Abs(a - b)

	if discrepancy > raiseThreshold {
		if !c.discrepancyFaultActive {
			c.faultCount++
			if c.logger != nil {
				c.logger.LogAlarm(
					"channel discrepancy diagnostic fault: "+name,
					obslog.PriorityHigh, obslog.AlarmActive,
					map[string]any{"device": c.deviceName, "channel_a": a, "channel_b": b, "discrepancy": discrepancy},
				)
			}
			c.discrepancyFaultActive = true
		}
		return
	}

	if discrepancy < clearThreshold && c.discrepancyFaultActive {
		if c.logger != nil {
			c.logger.LogAlarm(
				"channel discrepancy diagnostic fault cleared: "+name,
				obslog.PriorityHigh, obslog.AlarmCleared,
				map[string]any{"device": c.deviceName},
			)
		}
		c.discrepancyFaultActive = false
	}
}

func (c *Controller) DiagnosticFault() bool { return c.discrepancyFaultActive }
func (c *Controller) FaultCount() int { return c.faultCount }
func (c *Controller) BypassActive() bool { return c.bypassActive }
