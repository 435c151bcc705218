package clock

import (
	"testing"
	"time"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simerr"
)

func TestNewRejectsInvalidSpeed(t *testing.T) {
	if _, err := New(Accelerated, 0); err == nil {
		t.Fatalf("expected error for speed <= 0")
	}
	if _, err := New(Accelerated, MaxSpeed+1); err == nil {
		t.Fatalf("expected error for speed > cap")
	}
	if _, err := New(Accelerated, -1); !simerr.Is(err, simerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument kind")
	}
}

func TestStepOnlyAllowedWhenSteppedOrPaused(t *testing.T) {
	c, err := New(RealTime, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Step(1.0); !simerr.Is(err, simerr.InvalidMode) {
		t.Fatalf("expected InvalidMode stepping a running realtime clock, got %v", err)
	}

	stepped, _ := New(Stepped, 1.0)
	if err := stepped.Step(5.0); err != nil {
		t.Fatalf("unexpected error stepping: %v", err)
	}
	if stepped.Now() != 5.0 {
		t.Fatalf("expected now()=5.0 after step, got %v", stepped.Now())
	}
}

func TestStepRejectsNegativeDelta(t *testing.T) {
	c, _ := New(Stepped, 1.0)
	if err := c.Step(-1.0); !simerr.Is(err, simerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for negative dt")
	}
}

func TestPauseFreezesTime(t *testing.T) {
	c, _ := New(Accelerated, 100.0)
	c.Start()
	defer c.Stop()

	c.Pause()
	before := c.Now()
	time.Sleep(20 * time.Millisecond)
	after := c.Now()

	if before != after {
		t.Fatalf("expected now() unchanged while paused: before=%v after=%v", before, after)
	}
}

func TestResumeContinuesWithoutJump(t *testing.T) {
	c, _ := New(Accelerated, 50.0)
	c.Start()
	defer c.Stop()

	time.Sleep(10 * time.Millisecond)
	c.Pause()
	frozen := c.Now()
	time.Sleep(20 * time.Millisecond)
	c.Resume()

	justAfterResume := c.Now()
	if justAfterResume < frozen {
		t.Fatalf("expected time to not go backwards on resume: frozen=%v after=%v", frozen, justAfterResume)
	}
	if justAfterResume-frozen > 0.05 {
		t.Fatalf("expected resume to not jump far ahead immediately: delta=%v", justAfterResume-frozen)
	}
}

func TestMonotonicityAcrossObservations(t *testing.T) {
	c, _ := New(Accelerated, 10.0)
	c.Start()
	defer c.Stop()

	t1 := c.Now()
	time.Sleep(5 * time.Millisecond)
	t2 := c.Now()

	if t2 < t1 {
		t.Fatalf("expected non-decreasing now(): t1=%v t2=%v", t1, t2)
	}
}

func TestSetSpeedRejectsOutOfRange(t *testing.T) {
	c, _ := New(Accelerated, 1.0)
	if err := c.SetSpeed(0); !simerr.Is(err, simerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for speed 0")
	}
	if err := c.SetSpeed(MaxSpeed + 0.001); !simerr.Is(err, simerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for speed above cap")
	}
}
