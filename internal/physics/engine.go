// Package physics declares the common contract every physics engine
// satisfies, used by the scheduler to drive the outer
// simulation tick without depending on each concrete engine package.
//
// Grounded on components/physics/base_physics_engine.py's
// BasePhysicsEngine/BaseDevicePhysicsEngine abstract base classes: the
// initialise/update/getState/getTelemetry lifecycle and the async
// readControlInputs/writeTelemetry bracket phases map directly onto this
// interface.
package physics

import "context"

// Engine is the contract satisfied by every device-scoped and system-scoped
// physics engine.
type Engine interface {
	// Initialise verifies the backing device exists, writes an initial
	// telemetry snapshot, and records the last-update time.
	Initialise(ctx context.Context) error

	// ReadControlInputs reads declared control addresses from the state
	// store into an internal cache. Must be called before Update.
	ReadControlInputs(ctx context.Context) error

	// Update is a synchronous, non-suspending step. It returns NotInitialised
	// if Initialise was never called; a non-positive dt is skipped with a
	// warning rather than an error.
	Update(dt float64) error

	// WriteTelemetry publishes current state to the device memory map.
	WriteTelemetry(ctx context.Context) error

	// GetTelemetry returns a display-oriented projection of current state.
	GetTelemetry() map[string]any
}

// DeviceAggregator is implemented by system-scoped engines (grid, power
// flow) that pull generation/load from devices before stepping.
type DeviceAggregator interface {
	UpdateFromDevices(ctx context.Context) error
}
