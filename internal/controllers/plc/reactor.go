package plc

import (
	"context"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics/reactor"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

const AddrScramResetCoil = "coils[202]"

// ReactorController is the vendor-shaped PLC for the reactor unit.
//
// Grounded on components/devices/control_zone/plc/vendor_specific/reactor_plc.py
// and components/devices/control_zone/safety/reactor_safety_plc.py: the
// rising-edge SCRAM-reset detection and the audit/alarm logging around a
// successful or rejected reset reproduce those originals, adapted since
// this project keeps SCRAM preconditions in the physics engine
// (reactor.Engine.TryResetScram) rather than duplicating them here.
type ReactorController struct {
	base
	store *store.Store
	engine *reactor.Engine
	scramResetHigh bool
}

func NewReactorController(deviceName string, st *store.Store, logger *obslog.Logger, engine *reactor.Engine, scanIntervalSec float64) *ReactorController {
	identity := Identity{
		Vendor: "Siemens",
		Model: "S7-400H (reactor control gateway)",
		Protocols: []string{"s7", "modbus"},
		ScanIntervalSec: scanIntervalSec,
	}
	return &ReactorController{
		base: newBase(deviceName, identity, logger, engine),
		store: st,
		engine: engine,
	}
}

func (c *ReactorController) Scan(ctx context.Context, simTimeNow float64) error {
	return c.runScanCycle(ctx, simTimeNow, func() error {
		resetRaw, _ := c.store.ReadMemory(c.deviceName, AddrScramResetCoil)
		resetCommanded, _ := toBool(resetRaw)

		if resetCommanded && !c.scramResetHigh {
			c.scramResetHigh = true
			if c.engine.TryResetScram() {
				if c.logger != nil {
					c.logger.LogAudit("reactor SCRAM reset", "operator", "scram_reset", "accepted", map[string]any{"device": c.deviceName})
					c.logger.LogAlarm("reactor SCRAM cleared", obslog.PriorityCritical, obslog.AlarmCleared, map[string]any{"device": c.deviceName})
				}
			} else if c.logger != nil {
				c.logger.LogAudit("reactor SCRAM reset", "operator", "scram_reset", "rejected", map[string]any{"device": c.deviceName})
			}
		} else if !resetCommanded {
			c.scramResetHigh = false
		}
		return c.store.WriteMemory(c.deviceName, AddrScramResetCoil, false)
	})
}
