// Package telemetry implements the read-only status projections the
// simulation core exposes to external collaborators: per-device
// telemetry snapshots, per-PLC scan diagnostics, and the safety status
// surface.
//
// Follows infrastructure/service.BaseService's pattern of a caller-supplied
// statsFn returning map[string]any for a status endpoint, and the
// per-device get_*_status() dict methods seen across the device
// controllers (e.g. reactor_plc.py's get_reactor_status,
// reactor_safety_plc.py's get_safety_status) — this package is the single
// place those per-device projections are gathered into one facility-wide
// snapshot instead of being scattered across device classes.
package telemetry

import (
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/controllers/plc"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/controllers/safety"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics"
)

// SafetyStatus is the per-controller safety status surface: SIL rating,
// demand/fault counts, current safe-state and bypass flags, diagnostic
// fault state, and per-SIF trip results.
type SafetyStatus struct {
	SILLevel safety.SIL
	DemandCount int
	FaultCount int
	SafeStateActive bool
	DiagnosticFault bool
	BypassActive bool
	PerSIFResults map[string]bool
}

// PLCStatus projects a PLC's identity and scan diagnostics.
type PLCStatus struct {
	Identity plc.Identity
	Diagnostics plc.Diagnostics
}

// deviceEngine pairs a device name with its physics engine for the
// telemetry registry.
type deviceEngine struct {
	name string
	engine physics.Engine
}

type plcEntry struct {
	name string
	ctrl plc.Controller
}

type safetyEntry struct {
	name string
	ctrl *safety.Controller
}

// Registry gathers read-only references to every physics engine, PLC, and
// safety controller the scheduler has wired, and projects their current
// state on demand. It holds no mutable simulation state of its own.
type Registry struct {
	engines []deviceEngine
	plcs []plcEntry
	safeties []safetyEntry
}

func New() *Registry { return &Registry{} }

func (r *Registry) RegisterEngine(deviceName string, engine physics.Engine) {
	r.engines = append(r.engines, deviceEngine{name: deviceName, engine: engine})
}

func (r *Registry) RegisterPLC(deviceName string, ctrl plc.Controller) {
	r.plcs = append(r.plcs, plcEntry{name: deviceName, ctrl: ctrl})
}

func (r *Registry) RegisterSafety(deviceName string, ctrl *safety.Controller) {
	r.safeties = append(r.safeties, safetyEntry{name: deviceName, ctrl: ctrl})
}

// GetDeviceTelemetry returns a device's current telemetry projection,
// or nil if no such device was registered ("an operator query to
// a non-existent device yields an empty result, not an exception").
func (r *Registry) GetDeviceTelemetry(deviceName string) map[string]any {
	for _, e := range r.engines {
		if e.name == deviceName {
			return e.engine.GetTelemetry()
		}
	}
	return nil
}

// GetFacilityTelemetry returns every registered device's telemetry,
// keyed by device name.
func (r *Registry) GetFacilityTelemetry() map[string]map[string]any {
	out := make(map[string]map[string]any, len(r.engines))
	for _, e := range r.engines {
		out[e.name] = e.engine.GetTelemetry()
	}
	return out
}

// GetPLCStatus returns a PLC's identity and diagnostics, or the zero value
// and false if unknown.
func (r *Registry) GetPLCStatus(deviceName string) (PLCStatus, bool) {
	for _, p := range r.plcs {
		if p.name == deviceName {
			return PLCStatus{Identity: p.ctrl.Identity(), Diagnostics: p.ctrl.Diagnostics()}, true
		}
	}
	return PLCStatus{}, false
}

// GetSafetyStatus returns one safety controller's status surface, or the
// zero value and false if unknown.
func (r *Registry) GetSafetyStatus(deviceName string) (SafetyStatus, bool) {
	for _, s := range r.safeties {
		if s.name == deviceName {
			c := s.ctrl
			return SafetyStatus{
				SILLevel: c.SIL(),
				DemandCount: c.DemandCount(),
				FaultCount: c.FaultCount(),
				SafeStateActive: c.Demanded(),
				DiagnosticFault: c.DiagnosticFault(),
				BypassActive: c.BypassActive(),
				PerSIFResults: c.PerSIFResults(),
			}, true
		}
	}
	return SafetyStatus{}, false
}

// ListDevices returns every registered device name.
func (r *Registry) ListDevices() []string {
	out := make([]string, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, e.name)
	}
	return out
}
