package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t float64 }

func (c *fakeClock) Now() float64 { return c.t }

func newTestFirewall() (*Firewall, *fakeClock) {
	clk := &fakeClock{}
	fw := New("fw_1", nil, clk)
	return fw, clk
}

func TestDefaultPolicyAllowsWhenNoRuleMatches(t *testing.T) {
	fw, _ := newTestFirewall()
	allowed, _ := fw.CheckConnection("10.0.0.5", "10.0.0.10", 502, "tcp")
	assert.True(t, allowed, "expected default-allow when no rule matches")
}

func TestHigherPriorityRuleWinsOverLowerPriority(t *testing.T) {
	fw, _ := newTestFirewall()
	fw.AddRule(&Rule{Name: "deny-all-modbus", Enabled: true, Priority: 10, Action: ActionDeny,
		SourceIP: "any", DestIP: "any", DestPort: 502, Protocol: "tcp"}, "engineer")
	fw.AddRule(&Rule{Name: "allow-hmi", Enabled: true, Priority: 1, Action: ActionAllow,
		SourceIP: "10.0.0.5", DestIP: "any", DestPort: 502, Protocol: "tcp"}, "engineer")

	allowed, _ := fw.CheckConnection("10.0.0.5", "10.0.0.10", 502, "tcp")
	assert.True(t, allowed, "expected the lower-priority-number rule (allow-hmi) to win")

	allowed, _ = fw.CheckConnection("10.0.0.99", "10.0.0.10", 502, "tcp")
	assert.False(t, allowed, "expected unmatched source to fall through to the deny-all rule")
}

func TestDisabledRuleIsSkipped(t *testing.T) {
	fw, _ := newTestFirewall()
	fw.AddRule(&Rule{Name: "deny-all", Enabled: false, Priority: 1, Action: ActionDeny,
		SourceIP: "any", DestIP: "any", DestPort: 0, Protocol: "any"}, "engineer")

	allowed, reason := fw.CheckConnection("10.0.0.5", "10.0.0.10", 502, "tcp")
	assert.True(t, allowed, "expected disabled rule to be skipped, got reason %q", reason)
}

func TestBlockedConnectionRecordedInHistory(t *testing.T) {
	fw, _ := newTestFirewall()
	fw.AddRule(&Rule{Name: "deny-all", Enabled: true, Priority: 1, Action: ActionDeny,
		SourceIP: "any", DestIP: "any", DestPort: 0, Protocol: "any"}, "engineer")

	fw.CheckConnection("10.0.0.5", "10.0.0.10", 502, "tcp")

	history := fw.GetBlockedConnections(0)
	require.Len(t, history, 1)
	assert.Equal(t, 502, history[0].DestPort)
}

func TestBlockRateAlarmRaisesAndClearsWithHysteresis(t *testing.T) {
	fw, clk := newTestFirewall()
	fw.AddRule(&Rule{Name: "deny-all", Enabled: true, Priority: 1, Action: ActionDeny,
		SourceIP: "any", DestIP: "any", DestPort: 0, Protocol: "any"}, "engineer")

	clk.t = 0
	for i := 0; i < 55; i++ {
		fw.CheckConnection("10.0.0.5", "10.0.0.10", 502, "tcp")
	}
	fw.Scan()
	assert.True(t, fw.blockRateAlarmRaised, "expected block rate alarm to raise above 50/min")

	clk.t = 45 // most blocks now older than the 60s window relative to remaining ones below
	for i := 0; i < 10; i++ {
		fw.CheckConnection("10.0.0.5", "10.0.0.10", 502, "tcp")
	}
	clk.t = 61 // pushes the first 55 out of the rolling 60s window, leaving ~10
	fw.Scan()
	assert.False(t, fw.blockRateAlarmRaised, "expected block rate alarm to clear once rate drops below 30/min")
}

func TestRuleCanBeDisabledAndReEnabled(t *testing.T) {
	fw, _ := newTestFirewall()
	id := fw.AddRule(&Rule{Name: "deny-hmi", Enabled: true, Priority: 1, Action: ActionDeny,
		SourceIP: "any", DestIP: "any", DestPort: 502, Protocol: "tcp"}, "engineer")

	require.True(t, fw.SetRuleEnabled(id, false, "engineer"), "expected rule to be found and disabled")
	allowed, _ := fw.CheckConnection("10.0.0.5", "10.0.0.10", 502, "tcp")
	assert.True(t, allowed, "expected connection allowed once denying rule disabled")

	fw.SetRuleEnabled(id, true, "engineer")
	allowed, _ = fw.CheckConnection("10.0.0.5", "10.0.0.10", 502, "tcp")
	assert.False(t, allowed, "expected connection blocked once rule re-enabled")
}

// The log rate limiter (golang.org/x/time/rate) only throttles the security
// log line itself; block accounting and history must still see every hit.
func TestLogLimiterDoesNotThrottleBlockAccounting(t *testing.T) {
	fw, _ := newTestFirewall()
	fw.AddRule(&Rule{Name: "deny-all", Enabled: true, Priority: 1, Action: ActionDeny,
		SourceIP: "any", DestIP: "any", DestPort: 0, Protocol: "any"}, "engineer")

	for i := 0; i < 20; i++ {
		fw.CheckConnection("10.0.0.5", "10.0.0.10", 502, "tcp")
	}

	stats := fw.GetStatistics()
	assert.Equal(t, 20, stats.TotalConnectionsBlocked, "every connection should still be counted as blocked even once logging is rate-limited")
}
