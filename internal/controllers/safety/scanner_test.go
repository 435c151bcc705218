package safety

import "testing"

func TestScanTaskRefreshesBeforeEvaluating(t *testing.T) {
	value := 10.0
	sif := SIF{
		Name:     "test-sif",
		Voting:   OneOutOfOne,
		Channels: func() []float64 { return []float64{value} },
		Evaluate: func(c []float64) []bool { return []bool{c[0] > 50.0} },
	}
	engine := &fakeEngine{}
	c := New("test", SIL2, engine, nil, []SIF{sif})

	refreshed := false
	task := NewScanTask(c, func() {
		refreshed = true
		value = 60.0
	})

	task.Scan()

	if !refreshed {
		t.Fatalf("expected refresh closure to run before Scan evaluated SIFs")
	}
	if !c.Demanded() {
		t.Fatalf("expected demand latched using the refreshed channel value")
	}
}

func TestScanTaskWithDiagnosticsRunsDiagnosticsBeforeScan(t *testing.T) {
	engine := &fakeEngine{}
	c := New("test", SIL3, engine, nil, nil)

	diagnosticsRan := false
	task := NewScanTaskWithDiagnostics(c, func() {}, func(ctrl *Controller) {
		diagnosticsRan = true
		ctrl.CheckDiscrepancy("temp", 100, 110, 5.0, 1.0)
	})

	task.Scan()

	if !diagnosticsRan {
		t.Fatalf("expected runDiagnostics closure to run")
	}
	if !c.DiagnosticFault() {
		t.Fatalf("expected discrepancy fault raised by the diagnostics closure")
	}
}

func TestScanTaskControllerReturnsWrappedController(t *testing.T) {
	engine := &fakeEngine{}
	c := New("test", SIL1, engine, nil, nil)
	task := NewScanTask(c, func() {})

	if task.Controller() != c {
		t.Fatalf("expected Controller() to return the wrapped controller")
	}
}
