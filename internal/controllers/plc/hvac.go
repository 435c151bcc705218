package plc

import (
	"context"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics/hvac"
)

// HVACController is the vendor-shaped PLC for a zone's air-handling unit.
//
// Grounded on components/devices/control_zone/plc/vendor_specific/hvac_plc.py:
// a thin scan-cycle wrapper with no protocol-level complications beyond the
// generic contract, reflecting that original's comparatively simple PLC
// (the control law complexity lives in the physics engine, not the PLC).
type HVACController struct {
	base
}

func NewHVACController(deviceName string, logger *obslog.Logger, engine *hvac.Engine, scanIntervalSec float64) *HVACController {
	identity := Identity{
		Vendor: "Honeywell",
		Model: "Spyder BACnet/Modbus AHU controller",
		Protocols: []string{"modbus", "bacnet"},
		ScanIntervalSec: scanIntervalSec,
	}
	return &HVACController{base: newBase(deviceName, identity, logger, engine)}
}

func (c *HVACController) Scan(ctx context.Context, simTimeNow float64) error {
	return c.runScanCycle(ctx, simTimeNow, nil)
}
