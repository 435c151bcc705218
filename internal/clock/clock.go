// Package clock implements the Simulation Clock: the
// system-wide notion of "now" that can run in real-time, accelerated,
// stepped, or paused modes.
//
// Grounded on components/time/simulation_time.py: a wall-time anchor
// recomputed on resume/setSpeed so elapsed simulation time stays
// continuous across mode transitions, and a background advance loop
// ticking at a configurable update interval that only advances simulation
// time while not paused. The concurrency shape (an internal lock guarding
// all mutation, a stop channel for the advance goroutine) follows the
// services/automation scheduler pattern used elsewhere in this module.
package clock

import (
	"sync"
	"time"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simerr"
)

// Mode is one of the four operating modes
type Mode string

const (
	RealTime Mode = "REALTIME"
	Accelerated Mode = "ACCELERATED"
	Stepped Mode = "STEPPED"
	Paused Mode = "PAUSED"
)

// MaxSpeed is the safety cap on the speed multiplier ("speed
// multiplier > 0 and ≤ configured cap").
const MaxSpeed = 1000.0

// DefaultUpdateInterval mirrors simulation_time.py's default 0.01s advance
// tick.
const DefaultUpdateInterval = 10 * time.Millisecond

// minSleep is the floor applied by waitFor's polling loop so it never spins
// a true busy loop, matching simulation_time.py's 0.001s floor.
const minSleep = time.Millisecond

// pausedPollInterval mirrors simulation_time.py's 0.1s busy-poll while
// paused.
const pausedPollInterval = 100 * time.Millisecond

// Clock is the simulation's single time authority. All exported methods are
// safe for concurrent use; mutation serialises on an internal lock per
// the failure semantics.
type Clock struct {
	mu sync.Mutex

	mode Mode
	speed float64

	simTime float64 // accumulated simulation seconds
	wallAnchor time.Time
	simAtAnchor float64
	startWall time.Time
	paused bool
	pausedAt time.Time
	pausedTotal time.Duration
	running bool

	updateInterval time.Duration
	stopCh chan struct{}
	wg sync.WaitGroup

	nowFn func() time.Time // overridable for tests
}

// New builds a Clock in the given mode with the given speed multiplier
// (ignored outside Accelerated mode, but still validated).
func New(mode Mode, speed float64) (*Clock, error) {
	if speed <= 0 || speed > MaxSpeed {
		return nil, simerr.NewInvalidArgument("speed", "must be > 0 and <= cap").
			WithDetails(map[string]any{"speed": speed, "cap": MaxSpeed})
	}
	c := &Clock{
		mode: mode,
		speed: speed,
		updateInterval: DefaultUpdateInterval,
		nowFn: time.Now,
	}
	return c, nil
}

// Start seeds wall/sim zero and begins the internal advance loop if the
// mode requires it.
func (c *Clock) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.wallAnchor = c.nowFn()
	c.startWall = c.wallAnchor
	c.simAtAnchor = c.simTime
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	if c.mode == RealTime || c.mode == Accelerated {
		c.wg.Add(1)
		go c.advanceLoop()
	}
}

// Stop halts the advance loop; it does not reset time.
func (c *Clock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
}

// Reset zeros simulation time and wall-elapsed counters; preserves mode and
// speed.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.simTime = 0
	c.pausedTotal = 0
	c.paused = false
	c.wallAnchor = c.nowFn()
	c.startWall = c.wallAnchor
	c.simAtAnchor = 0
}

// Pause flips the paused flag.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.simTime = c.lockedNow()
	c.paused = true
	c.pausedAt = c.nowFn()
}

// Resume flips the paused flag off and recomputes anchors so resumed time
// is continuous (no jump).
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.pausedTotal += c.nowFn().Sub(c.pausedAt)
	c.paused = false
	c.wallAnchor = c.nowFn()
	c.simAtAnchor = c.simTime
}

// Step advances simulation time by dt seconds. It fails with InvalidMode
// unless mode is Stepped or Paused; dt must be non-negative.
func (c *Clock) Step(dt float64) error {
	if dt < 0 {
		return simerr.NewInvalidArgument("dt", "must be non-negative")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != Stepped && c.mode != Paused && !c.paused {
		return simerr.NewInvalidMode("step", c.mode)
	}
	c.simTime += dt
	c.simAtAnchor = c.simTime
	c.wallAnchor = c.nowFn()
	return nil
}

// SetSpeed changes the accelerated-mode multiplier. It fails with
// InvalidArgument for m <= 0 or m > cap, and adjusts anchors so now() is
// continuous across the change.
func (c *Clock) SetSpeed(m float64) error {
	if m <= 0 || m > MaxSpeed {
		return simerr.NewInvalidArgument("speed", "must be > 0 and <= cap").
			WithDetails(map[string]any{"speed": m, "cap": MaxSpeed})
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.simTime = c.lockedNow()
	c.simAtAnchor = c.simTime
	c.wallAnchor = c.nowFn()
	c.speed = m
	return nil
}

// Now returns current simulation time in seconds.
func (c *Clock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockedNow()
}

// lockedNow computes simulation time under the held lock.
func (c *Clock) lockedNow() float64 {
	if c.paused || c.mode == Stepped || c.mode == Paused {
		return c.simTime
	}
	elapsedWall := c.nowFn().Sub(c.wallAnchor).Seconds()
	return c.simAtAnchor + elapsedWall*c.speed
}

// Elapsed returns total simulation time elapsed since the last Reset.
func (c *Clock) Elapsed() float64 {
	return c.Now()
}

// WallElapsed returns total wall-clock time elapsed since Start, excluding
// paused duration.
func (c *Clock) WallElapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := c.nowFn().Sub(c.startWall) - c.pausedTotal
	if c.paused {
		elapsed -= c.nowFn().Sub(c.pausedAt)
	}
	return elapsed
}

// Delta returns Now() - from; pure read.
func (c *Clock) Delta(from float64) float64 {
	return c.Now() - from
}

// ModeNow returns the current mode.
func (c *Clock) ModeNow() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Speed returns the current speed multiplier.
func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// WaitFor suspends until simulation time has advanced by dt seconds. It
// honours pause (extends the wait through pauses) and speed (shorter wall
// waits when accelerated), matching simulation_time.py's
// wait_simulation_time polling loop.
func (c *Clock) WaitFor(dt float64) {
	if dt <= 0 {
		return
	}
	target := c.Now() + dt
	for {
		c.mu.Lock()
		paused := c.paused
		speed := c.speed
		c.mu.Unlock()

		if paused {
			time.Sleep(pausedPollInterval)
			continue
		}

		remaining := target - c.Now()
		if remaining <= 0 {
			return
		}
		sleep := c.updateInterval
		if bySpeed := time.Duration(remaining / speed * float64(time.Second)); bySpeed < sleep {
			sleep = bySpeed
		}
		if sleep < minSleep {
			sleep = minSleep
		}
		time.Sleep(sleep)
	}
}

func (c *Clock) advanceLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			if !c.paused {
				c.simTime = c.lockedNow()
				c.simAtAnchor = c.simTime
				c.wallAnchor = c.nowFn()
			}
			c.mu.Unlock()
		}
	}
}
