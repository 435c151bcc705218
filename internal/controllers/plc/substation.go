package plc

import (
	"context"
	"fmt"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics/grid"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
)

// Modbus projection of grid measurements (memory-map convention).
const (
	AddrSubFrequency = "input_registers[300]" // Hz * 100
	AddrSubVoltage = "input_registers[301]" // pu * 1000
	AddrSubGenMW = "input_registers[302]"
	AddrSubLoadMW = "input_registers[303]"
	AddrSubUFTrip = "discrete_inputs[300]"
	AddrSubOFTrip = "discrete_inputs[301]"
)

// IEC-104 information-object addresses for the same measurements:
// substation devices additionally expose iec104_single_points[ioa] and
// iec104_measured_values[ioa].
const (
	IOAFrequency = 1
	IOAVoltage = 2
	IOAGeneration = 3
	IOALoad = 4
	IOAUnderFrequencyTrip = 101
	IOAOverFrequencyTrip = 102
)

// SubstationController publishes grid-wide measurements through two
// parallel protocol projections of the same underlying telemetry.
//
// Grounded on components/devices/control_zone/plc/generic/substation_plc.py:
// the dual Modbus-register/IEC-104-information-object projection of one set
// of measurements reproduces that original's design; "none of the
// controllers own the telemetry, they translate only".
type SubstationController struct {
	base
	store *store.Store
	grid *grid.Engine
}

func NewSubstationController(deviceName string, st *store.Store, logger *obslog.Logger, gridEngine *grid.Engine, scanIntervalSec float64) *SubstationController {
	identity := Identity{
		Vendor: "ABB",
		Model: "RTU560 substation gateway",
		Protocols: []string{"modbus", "iec104"},
		ScanIntervalSec: scanIntervalSec,
	}
	return &SubstationController{
		base: newBase(deviceName, identity, logger, gridEngine),
		store: st,
		grid: gridEngine,
	}
}

func (c *SubstationController) Scan(ctx context.Context, simTimeNow float64) error {
	return c.runScanCycle(ctx, simTimeNow, func() error {
		s := c.grid.GetState()

		modbusView := map[string]any{
			AddrSubFrequency: s.FrequencyHz * 100,
			AddrSubVoltage: s.VoltagePU * 1000,
			AddrSubGenMW: s.TotalGenMW,
			AddrSubLoadMW: s.TotalLoadMW,
			AddrSubUFTrip: s.UnderFrequencyTrip,
			AddrSubOFTrip: s.OverFrequencyTrip,
		}

		iec104View := map[string]any{
			iec104MeasuredValue(IOAFrequency): s.FrequencyHz,
			iec104MeasuredValue(IOAVoltage): s.VoltagePU,
			iec104MeasuredValue(IOAGeneration): s.TotalGenMW,
			iec104MeasuredValue(IOALoad): s.TotalLoadMW,
			iec104SinglePoint(IOAUnderFrequencyTrip): s.UnderFrequencyTrip,
			iec104SinglePoint(IOAOverFrequencyTrip): s.OverFrequencyTrip,
		}

		for addr, v := range modbusView {
			if err := c.store.WriteMemory(c.deviceName, addr, v); err != nil {
				return err
			}
		}
		for addr, v := range iec104View {
			if err := c.store.WriteMemory(c.deviceName, addr, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func iec104MeasuredValue(ioa int) string {
	return fmt.Sprintf("iec104_measured_values[%d]", ioa)
}

func iec104SinglePoint(ioa int) string {
	return fmt.Sprintf("iec104_single_points[%d]", ioa)
}
