package safety

// ScanTask adapts a Controller plus the refresh (and, for multi-channel
// controllers, discrepancy-diagnostic) closures returned by NewReactorSafety
// and NewTurbineSafety into the single Scan() method an independent scan
// task driver expects ("controllers run on independent scan
// tasks"). The refresh closure must run immediately before Scan so every SIF
// evaluated that cycle sees a consistent channel snapshot.
type ScanTask struct {
	controller *Controller
	refresh func()
	runDiagnostics func(*Controller)
}

// NewScanTask wraps a controller with no per-cycle diagnostics step (e.g.
// turbine safety, whose NewTurbineSafety returns only a refresh closure).
func NewScanTask(controller *Controller, refresh func()) *ScanTask {
	return &ScanTask{controller: controller, refresh: refresh}
}

// NewScanTaskWithDiagnostics wraps a controller whose NewXSafety constructor
// also returns a cross-channel discrepancy check (e.g. reactor safety's dual
// temperature/pressure channels).
func NewScanTaskWithDiagnostics(controller *Controller, refresh func(), runDiagnostics func(*Controller)) *ScanTask {
	return &ScanTask{controller: controller, refresh: refresh, runDiagnostics: runDiagnostics}
}

// Scan refreshes channel jitter, runs any discrepancy diagnostics, then
// evaluates the controller's SIFs — in that order, once per call.
func (t *ScanTask) Scan() {
	if t.refresh != nil {
		t.refresh()
	}
	if t.runDiagnostics != nil {
		t.runDiagnostics(t.controller)
	}
	t.controller.Scan()
}

// Controller exposes the wrapped controller for status projection (e.g.
// telemetry.Registry.RegisterSafety).
func (t *ScanTask) Controller() *Controller { return t.controller }
