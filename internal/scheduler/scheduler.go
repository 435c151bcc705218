// Package scheduler implements the simulation scheduler:
// dependency-ordered startup, the outer simulation tick loop over
// system-scoped physics engines, and independent per-controller scan
// tasks.
//
// Grounded on tests/integration/test_simulator_lifecycle.py's wiring order
// (clock/time → physics → PLCs/safety controllers → SCADA/workstations)
// and on components/time/simulation_time.py's background-advance-loop
// shape, already adapted into this module's clock package. The outer loop
// here plays the part simulation_time.py's caller played in the original:
// driving GridPhysics/PowerFlow system-wide updates once per tick while
// each PLC and safety controller scans independently: controllers run on
// independent scan tasks, not driven by the outer loop.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/clock"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/controllers/plc"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics"
)

// SafetyScanner is the subset of safety.Controller the scheduler drives;
// declared locally to avoid an import cycle with the safety package's own
// use of physics engines.
type SafetyScanner interface {
	Scan()
}

type systemEngine struct {
	name string
	engine physics.Engine
	aggregator physics.DeviceAggregator // nil if the engine doesn't aggregate
	fullCycle bool // false: only UpdateFromDevices runs here; ReadControlInputs/Update/WriteTelemetry belong to an owning PLC's scan cycle
}

type plcTask struct {
	name string
	ctrl plc.Controller
	interval time.Duration
}

type safetyTask struct {
	name string
	ctrl SafetyScanner
	interval time.Duration
}

// genericTask drives an arbitrary periodic function that doesn't fit the
// plc.Controller or SafetyScanner shapes — e.g. RTU protection-relay
// evaluation, which depends on another device's telemetry rather than
// owning a physics engine of its own.
type genericTask struct {
	name string
	fn func(ctx context.Context, simTimeNow float64)
	interval time.Duration
}

// Scheduler owns the simulation's cooperative-concurrent wiring: one outer
// tick loop for system-scoped physics engines, and one independent scan
// goroutine per registered controller.
type Scheduler struct {
	clk *clock.Clock
	logger *obslog.Logger

	mu sync.Mutex
	systemEngines []systemEngine
	plcTasks []plcTask
	safetyTasks []safetyTask
	genericTasks []genericTask

	running bool
	stopCh chan struct{}
	wg sync.WaitGroup
	updateCount uint64
	lastTickSim float64

	tickInterval time.Duration
}

// New builds a Scheduler bound to an already-constructed Clock. Startup
// follows a fixed dependency order: clock → store → logger, before any
// engine or controller is registered.
func New(clk *clock.Clock, logger *obslog.Logger, tickInterval time.Duration) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = clock.DefaultUpdateInterval
	}
	return &Scheduler{clk: clk, logger: logger, tickInterval: tickInterval}
}

// RegisterSystemEngine adds a system-scoped physics engine with no owning
// PLC (power flow) to the outer tick loop's full read→update→write cycle.
// If engine also implements physics.DeviceAggregator, UpdateFromDevices
// runs first each tick.
func (s *Scheduler) RegisterSystemEngine(name string, engine physics.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, _ := engine.(physics.DeviceAggregator)
	s.systemEngines = append(s.systemEngines, systemEngine{name: name, engine: engine, aggregator: agg, fullCycle: true})
}

// RegisterAggregator adds a system-scoped engine whose ReadControlInputs/
// Update/WriteTelemetry cycle is already driven by an owning PLC's scan
// task (e.g. grid, stepped through the substation controller) — only its
// UpdateFromDevices phase runs on the outer loop, gathering generation/load
// from devices ahead of that PLC's next scan.
func (s *Scheduler) RegisterAggregator(name string, agg physics.DeviceAggregator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemEngines = append(s.systemEngines, systemEngine{name: name, aggregator: agg, fullCycle: false})
}

// RegisterController adds a PLC to its own independent scan task, ticking
// at interval ("controllers run on independent scan tasks").
func (s *Scheduler) RegisterController(name string, ctrl plc.Controller, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plcTasks = append(s.plcTasks, plcTask{name: name, ctrl: ctrl, interval: interval})
}

// RegisterSafetyController adds a safety controller to its own independent
// scan task.
func (s *Scheduler) RegisterSafetyController(name string, ctrl SafetyScanner, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.safetyTasks = append(s.safetyTasks, safetyTask{name: name, ctrl: ctrl, interval: interval})
}

// RegisterTask adds an arbitrary periodic function to its own independent
// scan task ("controllers run on independent scan tasks"),
// for device logic that doesn't own a physics.Engine or safety Controller
// of its own (e.g. an RTU evaluating protection relays against another
// device's published telemetry).
func (s *Scheduler) RegisterTask(name string, fn func(ctx context.Context, simTimeNow float64), interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.genericTasks = append(s.genericTasks, genericTask{name: name, fn: fn, interval: interval})
}

// Initialise runs every registered system engine's Initialise, in
// registration order (the dependency-ordered startup: "physics"
// precedes "controllers").
func (s *Scheduler) Initialise(ctx context.Context) error {
	s.mu.Lock()
	engines := append([]systemEngine(nil), s.systemEngines...)
	s.mu.Unlock()

	for _, se := range engines {
		if se.engine == nil {
			continue
		}
		if err := se.engine.Initialise(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Start begins the clock, the outer tick loop, and every independent
// controller scan task.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.lastTickSim = s.clk.Now()
	s.mu.Unlock()

	s.clk.Start()

	s.wg.Add(1)
	go s.runOuterLoop(ctx)

	s.mu.Lock()
	plcTasks := append([]plcTask(nil), s.plcTasks...)
	safetyTasks := append([]safetyTask(nil), s.safetyTasks...)
	genericTasks := append([]genericTask(nil), s.genericTasks...)
	s.mu.Unlock()

	for _, t := range plcTasks {
		s.wg.Add(1)
		go s.runPLCTask(ctx, t)
	}
	for _, t := range safetyTasks {
		s.wg.Add(1)
		go s.runSafetyTask(t)
	}
	for _, t := range genericTasks {
		s.wg.Add(1)
		go s.runGenericTask(ctx, t)
	}
}

// Stop halts the outer loop and every controller scan task, and stops the
// clock. Does not clear registered engines/controllers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.clk.Stop()
}

// Pause freezes simulation time; controller scan tasks keep running against
// a clock that is no longer advancing.
func (s *Scheduler) Pause() { s.clk.Pause() }

// Resume un-freezes simulation time.
func (s *Scheduler) Resume() { s.clk.Resume() }

// Reset stops everything, resets the clock to zero, and clears scan
// counters on every registered PLC. Safety controllers are not reset.
func (s *Scheduler) Reset() {
	s.Stop()
	s.clk.Reset()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCount = 0
	for _, t := range s.plcTasks {
		t.ctrl.ResetScanCounters()
	}
}

// UpdateCount returns the number of completed outer-loop ticks.
func (s *Scheduler) UpdateCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCount
}

// runOuterLoop implements the six-step outer-loop algorithm for
// system-scoped engines. An engine error logs and halts the loop without
// tearing down controller scan tasks or the clock ("outer-loop
// error logs+halts loop without tearing down controllers/clock").
func (s *Scheduler) runOuterLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.tick(ctx) {
				return
			}
		}
	}
}

// tick runs one outer-loop pass. Returns true if an engine error occurred
// and the loop should halt.
func (s *Scheduler) tick(ctx context.Context) bool {
	now := s.clk.Now()

	s.mu.Lock()
	dt := now - s.lastTickSim
	paused := s.clk.ModeNow() == clock.Paused
	engines := append([]systemEngine(nil), s.systemEngines...)
	s.mu.Unlock()

	if paused || dt <= 0 {
		return false
	}

	for _, se := range engines {
		if se.aggregator != nil {
			if err := se.aggregator.UpdateFromDevices(ctx); err != nil {
				s.logHalt(se.name, "update-from-devices", err)
				return true
			}
		}
	}

	for _, se := range engines {
		if !se.fullCycle {
			continue
		}
		if err := se.engine.ReadControlInputs(ctx); err != nil {
			s.logHalt(se.name, "read-control-inputs", err)
			return true
		}
	}

	for _, se := range engines {
		if !se.fullCycle {
			continue
		}
		if err := se.engine.Update(dt); err != nil {
			s.logHalt(se.name, "update", err)
			return true
		}
	}

	for _, se := range engines {
		if !se.fullCycle {
			continue
		}
		if err := se.engine.WriteTelemetry(ctx); err != nil {
			s.logHalt(se.name, "write-telemetry", err)
			return true
		}
	}

	s.mu.Lock()
	s.lastTickSim = now
	s.updateCount++
	s.mu.Unlock()
	return false
}

func (s *Scheduler) logHalt(engineName, phase string, err error) {
	if s.logger != nil {
		s.logger.ErrorEvent("outer simulation loop halted: "+engineName+" "+phase+" failed", map[string]any{
			"engine": engineName, "phase": phase, "error": err.Error(),
		})
	}
}

// runPLCTask drives one PLC's independent scan cycle on its own interval.
// A scan error is logged and counted by the controller itself
// (plc.base.runScanCycle); the task continues ("controller
// error increments errorCount, logs, continues its own scan task").
func (s *Scheduler) runPLCTask(ctx context.Context, t plcTask) {
	defer s.wg.Done()

	interval := t.interval
	if interval <= 0 {
		interval = time.Duration(t.ctrl.Identity().ScanIntervalSec*1000) * time.Millisecond
	}
	if interval <= 0 {
		interval = s.tickInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			_ = t.ctrl.Scan(ctx, s.clk.Now())
		}
	}
}

func (s *Scheduler) runGenericTask(ctx context.Context, t genericTask) {
	defer s.wg.Done()

	interval := t.interval
	if interval <= 0 {
		interval = s.tickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			t.fn(ctx, s.clk.Now())
		}
	}
}

func (s *Scheduler) runSafetyTask(t safetyTask) {
	defer s.wg.Done()

	interval := t.interval
	if interval <= 0 {
		interval = s.tickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			t.ctrl.Scan()
		}
	}
}
