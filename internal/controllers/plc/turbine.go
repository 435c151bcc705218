package plc

import (
	"context"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics/turbine"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

// Raw setpoint registers, split across two 16-bit-style holding registers
// the way an RPM value above 65535 would need to be on real Modbus gear
// (edge case). The controller assembles them into the single
// float64 cell the turbine physics engine reads at turbine.AddrSpeedSetpoint.
const (
	AddrRawSpeedSetpointLow = "holding_registers[110]"
	AddrRawSpeedSetpointHigh = "holding_registers[111]"
	AddrTripReset = "coils[110]"
)

// TurbineController is the vendor-shaped PLC for a steam turbine unit.
//
// Grounded on components/devices/control_zone/plc/vendor_specific/turbine_plc.py:
// the 32-bit setpoint register split/reassembly and the rising-edge trip
// reset detection reproduce that original's _execute_logic/_write_outputs.
type TurbineController struct {
	base
	store *store.Store
	engine *turbine.Engine
	tripResetHigh bool
}

func NewTurbineController(deviceName string, st *store.Store, logger *obslog.Logger, engine *turbine.Engine, scanIntervalSec float64) *TurbineController {
	identity := Identity{
		Vendor: "GenericTurbine Controls",
		Model: "GT-2100",
		Protocols: []string{"modbus"},
		ScanIntervalSec: scanIntervalSec,
	}
	return &TurbineController{
		base: newBase(deviceName, identity, logger, engine),
		store: st,
		engine: engine,
	}
}

func (c *TurbineController) Scan(ctx context.Context, simTimeNow float64) error {
	return c.runScanCycle(ctx, simTimeNow, func() error {
		low, _ := c.store.ReadMemory(c.deviceName, AddrRawSpeedSetpointLow)
		high, _ := c.store.ReadMemory(c.deviceName, AddrRawSpeedSetpointHigh)
		if lowF, ok := toFloat(low); ok {
			hiF, _ := toFloat(high)
			assembled := hiF*65536 + lowF
			if err := c.store.WriteMemory(c.deviceName, turbine.AddrSpeedSetpoint, assembled); err != nil {
				return err
			}
		}

		tripReset, _ := c.store.ReadMemory(c.deviceName, AddrTripReset)
		resetCommanded, _ := toBool(tripReset)
		if resetCommanded && !c.tripResetHigh {
			c.tripResetHigh = true
			c.store.WriteMemory(c.deviceName, turbine.AddrEmergencyTrip, false)
			if c.logger != nil {
				c.logger.LogAudit("turbine trip reset commanded", "operator", "trip_reset", "accepted", map[string]any{"device": c.deviceName})
			}
		} else if !resetCommanded {
			c.tripResetHigh = false
		}
		return nil
	})
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func toBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}
