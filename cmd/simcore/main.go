// Package main is the simulation-core demo entry point: it wires the
// clock, state store, logging registry, physics engines, field
// controllers, safety instrumented systems, and boundary devices into one
// running facility and drives it until an interrupt signal requests a
// clean stop.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/boundary"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/clock"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/controllers/plc"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/controllers/rtu"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/controllers/safety"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obsmetrics"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics/grid"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics/hvac"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics/powerflow"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics/reactor"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/physics/turbine"
	connregistry "github.com/tymyrddin/power-and-light-sim-sub001/internal/registry"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/scheduler"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simconfig"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/store"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/telemetry"
)

const (
	deviceTurbine1 = "turbine_1"
	deviceReactor1 = "reactor_1"
	deviceHVAC1 = "hvac_1"
	deviceSubstation = "substation_1"
)

func main() {
	cfg, err := simconfig.Load(os.Getenv("SIMCORE_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	mode := clock.RealTime
	if !cfg.Runtime.Realtime {
		mode = clock.Accelerated
	}
	clk, err := clock.New(mode, cfg.Runtime.TimeAcceleration)
	if err != nil {
		log.Fatalf("clock init failed: %v", err)
	}

	st := store.New(clk, cfg.AuditLogCapacity)
	logs := obslog.NewRegistry(clk, st, obslog.Config{})
	metrics := obsmetrics.New()

	for _, dev := range []struct {
		name, kind string
		protocols []string
	}{
		{deviceTurbine1, "turbine_plc", []string{"modbus"}},
		{deviceReactor1, "reactor_plc", []string{"s7"}},
		{deviceHVAC1, "hvac_plc", []string{"modbus"}},
		{deviceSubstation, "substation_plc", []string{"modbus", "iec104"}},
	} {
		if _, err := st.RegisterDevice(dev.name, dev.kind, 0, dev.protocols, nil); err != nil {
			log.Fatalf("registering device %s: %v", dev.name, err)
		}
	}

	turbineEngine := turbine.New(deviceTurbine1, st, logs.Get("physics", deviceTurbine1), turbine.DefaultParameters())
	reactorEngine := reactor.New(deviceReactor1, st, logs.Get("physics", deviceReactor1), clk, reactor.DefaultParameters())
	hvacEngine := hvac.New(deviceHVAC1, st, logs.Get("physics", deviceHVAC1), clk, hvac.DefaultParameters())
	gridParams := grid.DefaultParameters()
	gridEngine := grid.New(st, logs.Get("physics", "grid"), gridParams)
	powerflowEngine := powerflow.New(st, logs.Get("physics", "powerflow"), powerflow.DefaultTwoBusParameters())

	defaultScan := func(kind string, fallback float64) float64 {
		if d, ok := cfg.DefaultsForKind(kind); ok && d.ScanIntervalSec > 0 {
			return d.ScanIntervalSec
		}
		return fallback
	}

	turbineCtrl := plc.NewTurbineController(deviceTurbine1, st, logs.Get("plc", deviceTurbine1), turbineEngine, defaultScan("turbine_plc", 0.1))
	reactorCtrl := plc.NewReactorController(deviceReactor1, st, logs.Get("plc", deviceReactor1), reactorEngine, defaultScan("reactor_plc", 0.1))
	hvacCtrl := plc.NewHVACController(deviceHVAC1, logs.Get("plc", deviceHVAC1), hvacEngine, defaultScan("hvac_plc", 1.0))
	substationCtrl := plc.NewSubstationController(deviceSubstation, st, logs.Get("plc", deviceSubstation), gridEngine, defaultScan("substation_plc", 0.5))

	turbineSafety, turbineRefresh := safety.NewTurbineSafety(
		deviceTurbine1+"_sis", turbineEngine, logs.Get("safety", deviceTurbine1),
		3960, 10.0, 250.0,
	)
	reactorSafety, reactorRefresh, reactorDiagnostics := safety.NewReactorSafety(
		deviceReactor1+"_sis", reactorEngine, logs.Get("safety", deviceReactor1),
		650, 17.0, 40.0, 90.0, 20.0,
	)
	turbineScan := safety.NewScanTask(turbineSafety, turbineRefresh)
	reactorScan := safety.NewScanTaskWithDiagnostics(reactorSafety, reactorRefresh, reactorDiagnostics)

	fw := boundary.New("facility_firewall", logs.Get("boundary", "facility_firewall"), clk)
	fw.AddRule(&boundary.Rule{
		Name: "allow-engineering-workstation", Enabled: true, Priority: 10,
		Action: boundary.ActionAllow, SourceIP: "10.0.1.50", DestIP: "any", DestPort: 0, Protocol: "any",
	}, "system")
	fw.AddRule(&boundary.Rule{
		Name: "deny-enterprise-to-control", Enabled: true, Priority: 100,
		Action: boundary.ActionDeny, SourceIP: "any", DestIP: "any", DestPort: 502, Protocol: "tcp",
	}, "system")

	conns := connregistry.New(logs.Get("network", "connection_registry"), clk)

	relayRTU := rtu.New(deviceSubstation+"_rtu", logs.Get("rtu", deviceSubstation))
	relayRTU.AddBreaker(&rtu.Breaker{Name: "breaker_1", RatedCurrentA: 1200, RatedVoltageKV: 138})
	relayRTU.AddRelay(&rtu.Relay{Name: "under_frequency_51", Type: rtu.RelayUnderfrequency, PickupThreshold: gridParams.NominalFrequencyHz - 1.0, Enabled: true})

	telemetryReg := telemetry.New()
	telemetryReg.RegisterEngine(deviceTurbine1, turbineEngine)
	telemetryReg.RegisterEngine(deviceReactor1, reactorEngine)
	telemetryReg.RegisterEngine(deviceHVAC1, hvacEngine)
	telemetryReg.RegisterEngine("grid", gridEngine)
	telemetryReg.RegisterEngine("powerflow", powerflowEngine)
	telemetryReg.RegisterPLC(deviceTurbine1, turbineCtrl)
	telemetryReg.RegisterPLC(deviceReactor1, reactorCtrl)
	telemetryReg.RegisterPLC(deviceHVAC1, hvacCtrl)
	telemetryReg.RegisterPLC(deviceSubstation, substationCtrl)
	telemetryReg.RegisterSafety(deviceTurbine1+"_sis", turbineScan.Controller())
	telemetryReg.RegisterSafety(deviceReactor1+"_sis", reactorScan.Controller())

	tickInterval := time.Duration(cfg.Runtime.UpdateIntervalSec * float64(time.Second))
	sched := scheduler.New(clk, logs.Get("scheduler", "simcore"), tickInterval)
	sched.RegisterSystemEngine("powerflow", powerflowEngine)
	sched.RegisterAggregator("grid", gridEngine)
	sched.RegisterController(deviceTurbine1, turbineCtrl, time.Duration(defaultScan("turbine_plc", 0.1)*float64(time.Second)))
	sched.RegisterController(deviceReactor1, reactorCtrl, time.Duration(defaultScan("reactor_plc", 0.1)*float64(time.Second)))
	sched.RegisterController(deviceHVAC1, hvacCtrl, time.Duration(defaultScan("hvac_plc", 1.0)*float64(time.Second)))
	sched.RegisterController(deviceSubstation, substationCtrl, time.Duration(defaultScan("substation_plc", 0.5)*float64(time.Second)))
	sched.RegisterSafetyController(deviceTurbine1+"_sis", turbineScan, 50*time.Millisecond)
	sched.RegisterSafetyController(deviceReactor1+"_sis", reactorScan, 50*time.Millisecond)
	sched.RegisterTask("facility_firewall", func(ctx context.Context, simTimeNow float64) { fw.Scan() }, time.Second)
	sched.RegisterTask(deviceSubstation+"_rtu", func(ctx context.Context, simTimeNow float64) {
		relayRTU.EvaluateRelay("under_frequency_51", gridEngine.GetState().FrequencyHz, simTimeNow)
	}, 200*time.Millisecond)

	ctx := context.Background()

	// turbine/reactor/hvac/grid physics engines are each driven by their
	// owning PLC's or the substation's own scan cycle rather than the
	// scheduler's full-cycle system engines (only powerflow runs a full
	// cycle there; grid is registered for UpdateFromDevices only), and none
	// of those scan cycles call Initialise — only ReadControlInputs/
	// Update/WriteTelemetry. Each engine must be explicitly initialised
	// once up front, or every Update call fails with NotInitialised.
	for _, e := range []struct {
		name string
		engine interface{ Initialise(context.Context) error }
	}{
		{deviceTurbine1, turbineEngine},
		{deviceReactor1, reactorEngine},
		{deviceHVAC1, hvacEngine},
		{"grid", gridEngine},
	} {
		if err := e.engine.Initialise(ctx); err != nil {
			log.Fatalf("%s initialise failed: %v", e.name, err)
		}
	}

	if err := sched.Initialise(ctx); err != nil {
		log.Fatalf("simulation initialise failed: %v", err)
	}

	sched.Start(ctx)
	log.Println("simulation core running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down...")
	sched.Stop()

	if err := metrics.SampleHostResources(); err != nil {
		log.Printf("host resource sampling failed: %v", err)
	}
	log.Printf("final tick count: %d, active connections: %d", sched.UpdateCount(), len(conns.GetActive("")))
}
