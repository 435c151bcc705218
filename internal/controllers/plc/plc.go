// Package plc implements the generic PLC scan-cycle contract
// and the vendor-shaped field controllers built on it.
//
// Grounded on components/devices/control_zone/plc/generic/base_plc.py: the
// three-phase scan cycle (read inputs → execute logic → write outputs), the
// scanCount/errorCount/lastScanTime diagnostics, and the vendor/protocol
// identity fields all reproduce that original's BasePLC contract, adapted
// from an async device-loop pattern to a synchronous Scan call driven by
// the scheduler.
package plc

import (
	"context"
	"fmt"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics"
)

// Identity is the vendor/protocol metadata a PLC exposes for discovery and
// reconnaissance scenarios.
type Identity struct {
	Vendor string
	Model string
	Protocols []string
	ScanIntervalSec float64
}

// Diagnostics are the standard per-scan counters every PLC accumulates.
type Diagnostics struct {
	ScanCount uint64
	ErrorCount uint64
	LastScanTime float64
}

// Controller is the generic scan-cycle contract satisfied by every
// vendor-shaped PLC in this package.
type Controller interface {
	Identity() Identity
	Scan(ctx context.Context, simTimeNow float64) error
	Diagnostics() Diagnostics
	ResetScanCounters()
}

// base provides the shared scan-cycle bookkeeping; vendor controllers embed
// it and supply their own physics.Engine-backed read/execute/write phases.
type base struct {
	deviceName string
	identity Identity
	logger *obslog.Logger
	engine physics.Engine

	diag Diagnostics
}

func newBase(deviceName string, identity Identity, logger *obslog.Logger, engine physics.Engine) base {
	return base{deviceName: deviceName, identity: identity, logger: logger, engine: engine}
}

func (b *base) Identity() Identity { return b.identity }

func (b *base) Diagnostics() Diagnostics { return b.diag }

func (b *base) ResetScanCounters() {
	b.diag = Diagnostics{}
	if b.logger != nil {
		b.logger.Info(fmt.Sprintf("PLC '%s' scan counters reset", b.deviceName), nil)
	}
}

// runScanCycle executes the standard read→execute→write phases against the
// wrapped physics.Engine, in the order the original BasePLC._scan_cycle
// used (read_inputs, execute_logic, write_outputs), then updates
// diagnostics. extra runs after WriteTelemetry, for controller-specific
// logic (edge detection, register splitting) that doesn't belong in the
// physics engine itself.
func (b *base) runScanCycle(ctx context.Context, simTimeNow float64, extra func() error) error {
	if err := b.engine.ReadControlInputs(ctx); err != nil {
		b.diag.ErrorCount++
		if b.logger != nil {
			b.logger.ErrorEvent(fmt.Sprintf("PLC '%s' read-inputs failed: %v", b.deviceName, err), map[string]any{"error": err.Error()})
		}
		return err
	}

	dt := simTimeNow - b.diag.LastScanTime
	if b.diag.ScanCount == 0 {
		dt = b.identity.ScanIntervalSec
	}
	if err := b.engine.Update(dt); err != nil {
		b.diag.ErrorCount++
		if b.logger != nil {
			b.logger.ErrorEvent(fmt.Sprintf("PLC '%s' update failed: %v", b.deviceName, err), map[string]any{"error": err.Error()})
		}
		return err
	}

	if err := b.engine.WriteTelemetry(ctx); err != nil {
		b.diag.ErrorCount++
		if b.logger != nil {
			b.logger.ErrorEvent(fmt.Sprintf("PLC '%s' write-outputs failed: %v", b.deviceName, err), map[string]any{"error": err.Error()})
		}
		return err
	}

	if extra != nil {
		if err := extra(); err != nil {
			b.diag.ErrorCount++
			return err
		}
	}

	b.diag.ScanCount++
	b.diag.LastScanTime = simTimeNow
	return nil
}
