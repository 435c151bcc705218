package safety

import "testing"

type fakeEngine struct {
	triggered          bool
	preconditionMet    bool
}

func (e *fakeEngine) TriggerSafeState()         { e.triggered = true }
func (e *fakeEngine) SafeStatePreconditionMet() bool { return e.preconditionMet }

func twoChannelSIF(a, b *float64, trip float64) SIF {
	return SIF{
		Name:   "test-sif",
		Voting: TwoOutOfTwo,
		Channels: func() []float64 {
			return []float64{*a, *b}
		},
		Evaluate: func(channels []float64) []bool {
			return []bool{channels[0] > trip, channels[1] > trip}
		},
	}
}

func TestTwoOutOfTwoRequiresBothChannels(t *testing.T) {
	a, b := 10.0, 10.0
	sif := twoChannelSIF(&a, &b, 50.0)
	engine := &fakeEngine{}
	c := New("test", SIL3, engine, nil, []SIF{sif})

	a = 60.0
	c.Scan()
	if c.Demanded() {
		t.Fatalf("expected no demand with only one of two channels tripped")
	}

	b = 60.0
	c.Scan()
	if !c.Demanded() {
		t.Fatalf("expected demand once both channels trip under 2oo2")
	}
	if !engine.triggered {
		t.Fatalf("expected engine.TriggerSafeState to be called once demanded")
	}
}

func TestBypassSuppressesLatchButIsLogged(t *testing.T) {
	a, b := 60.0, 60.0
	sif := twoChannelSIF(&a, &b, 50.0)
	engine := &fakeEngine{}
	c := New("test", SIL3, engine, nil, []SIF{sif})
	c.SetBypass(true)

	c.Scan()
	if c.Demanded() {
		t.Fatalf("expected bypass to suppress latching")
	}
	if engine.triggered {
		t.Fatalf("expected engine not triggered while bypassed")
	}
}

func TestResetRequiresRisingEdgeAndPrecondition(t *testing.T) {
	a, b := 60.0, 60.0
	sif := twoChannelSIF(&a, &b, 50.0)
	engine := &fakeEngine{preconditionMet: false}
	c := New("test", SIL3, engine, nil, []SIF{sif})
	c.Scan()

	if c.TryReset(true) {
		t.Fatalf("expected reset to fail while precondition unmet")
	}

	engine.preconditionMet = true
	if c.TryReset(true) {
		t.Fatalf("expected reset to require a fresh rising edge, not a held-high signal")
	}

	c.TryReset(false) // drop the signal low; must not itself clear the demand
	if !c.Demanded() {
		t.Fatalf("expected demand to remain latched while signal is simply dropped")
	}

	if !c.TryReset(true) {
		t.Fatalf("expected reset to succeed on rising edge with precondition met")
	}
	if c.Demanded() {
		t.Fatalf("expected demand cleared after successful reset")
	}
}

func TestDiscrepancyDiagnosticRaisesAndClears(t *testing.T) {
	engine := &fakeEngine{}
	c := New("test", SIL2, engine, nil, nil)

	c.CheckDiscrepancy("temp", 100, 110, 5.0, 1.0)
	if !c.DiagnosticFault() {
		t.Fatalf("expected discrepancy fault raised above threshold")
	}

	c.CheckDiscrepancy("temp", 100, 100.5, 5.0, 1.0)
	if c.DiagnosticFault() {
		t.Fatalf("expected discrepancy fault cleared below clear-threshold")
	}
}

func TestPerSIFResultsReflectsLatestScan(t *testing.T) {
	a, b := 10.0, 10.0
	sif := twoChannelSIF(&a, &b, 50.0)
	engine := &fakeEngine{}
	c := New("test", SIL3, engine, nil, []SIF{sif})

	c.Scan()
	if c.PerSIFResults()["test-sif"] {
		t.Fatalf("expected test-sif not raised below trip threshold")
	}

	a, b = 60.0, 60.0
	c.Scan()
	if !c.PerSIFResults()["test-sif"] {
		t.Fatalf("expected test-sif raised once both channels trip")
	}
}

func TestVotingArchitectures(t *testing.T) {
	cases := []struct {
		voting Voting
		trips  []bool
		want   bool
	}{
		{OneOutOfOne, []bool{true}, true},
		{OneOutOfOne, []bool{false}, false},
		{OneOutOfTwo, []bool{false, true}, true},
		{OneOutOfTwo, []bool{false, false}, false},
		{TwoOutOfTwo, []bool{true, false}, false},
		{TwoOutOfTwo, []bool{true, true}, true},
		{TwoOutOfThree, []bool{true, true, false}, true},
		{TwoOutOfThree, []bool{true, false, false}, false},
	}
	for _, tc := range cases {
		if got := tc.voting.Decide(tc.trips); got != tc.want {
			t.Fatalf("voting %v with %v: got %v, want %v", tc.voting, tc.trips, got, tc.want)
		}
	}
}
