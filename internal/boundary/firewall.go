// Package boundary implements the Firewall boundary device:
// ordered rule evaluation, hit counters, bounded blocked-connection
// history, and a rolling block-rate alarm with hysteresis.
//
// Grounded on components/devices/enterprise_zone/firewall.py: the
// priority-sorted rule list with first-match-wins evaluation falling
// through to a default action, per-rule hit counters, the bounded
// blocked-connection history, the 60-second rolling block-rate window, and
// the 50/min-set, 30/min-clear alarm hysteresis all reproduce that
// original's Firewall device.
package boundary

import (
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
)

// logRateLimit caps WARNING security-log emission to one per source IP per
// second; the block itself, its hit counter, and its history entry are
// never throttled — only the log line is, so a single hostile source
// hammering the firewall can't flood the audit sink.
const logRateLimit = rate.Limit(1)

// RuleAction is the disposition a matched rule applies to a connection.
type RuleAction string

const (
	ActionAllow RuleAction = "allow"
	ActionDeny RuleAction = "deny"
	ActionDrop RuleAction = "drop"
	ActionReject RuleAction = "reject"
)

// Rule is one firewall policy entry, matched in ascending Priority order.
type Rule struct {
	ID string
	Name string
	Enabled bool
	Priority int
	Action RuleAction

	SourceIP string // "any" matches all
	DestIP string
	DestPort int // 0 matches any
	Protocol string // "any" matches all

	HitCount int
	LastHit float64
}

func (r *Rule) matches(sourceIP, destIP string, destPort int, protocol string) bool {
	if r.SourceIP != "any" && r.SourceIP != sourceIP {
		return false
	}
	if r.DestIP != "any" && r.DestIP != destIP {
		return false
	}
	if r.DestPort != 0 && r.DestPort != destPort {
		return false
	}
	if r.Protocol != "any" && r.Protocol != protocol {
		return false
	}
	return true
}

// BlockedConnection is a record of a denied connection attempt.
type BlockedConnection struct {
	Timestamp float64
	SourceIP string
	DestIP string
	DestPort int
	Protocol string
	RuleID string
	Reason string
}

const defaultBlockHistoryLimit = 1000

// Clock supplies the simulation time used to timestamp rule hits and
// blocked connections, and to evaluate the rolling block-rate window.
type Clock interface {
	Now() float64
}

// Firewall is the industrial boundary firewall device.
type Firewall struct {
	deviceName string
	logger *obslog.Logger
	clock Clock

	mu sync.Mutex
	defaultAction RuleAction
	rules []*Rule
	nextRuleID int

	blockHistoryLimit int
	blocked []BlockedConnection
	logLimiters map[string]*rate.Limiter

	totalChecked int
	totalAllowed int
	totalBlocked int

	blockRateAlarmRaised bool
}

func New(deviceName string, logger *obslog.Logger, clock Clock) *Firewall {
	return &Firewall{
		deviceName: deviceName,
		logger: logger,
		clock: clock,
		defaultAction: ActionAllow,
		blockHistoryLimit: defaultBlockHistoryLimit,
		nextRuleID: 1,
		logLimiters: make(map[string]*rate.Limiter),
	}
}

// AddRule inserts a rule and re-sorts by priority, audit-logging the change
// ("rule edits... are each audit-logged").
func (f *Firewall) AddRule(r *Rule, user string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	r.ID = ruleID(f.nextRuleID)
	f.nextRuleID++
	f.rules = append(f.rules, r)
	f.sortRules()

	if f.logger != nil {
		f.logger.LogAudit("firewall rule added: "+r.Name, user, "add_firewall_rule", "accepted", map[string]any{
			"rule_id": r.ID, "priority": r.Priority, "action": string(r.Action),
		})
	}
	return r.ID
}

func (f *Firewall) SetRuleEnabled(ruleID string, enabled bool, user string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.rules {
		if r.ID == ruleID {
			r.Enabled = enabled
			if f.logger != nil {
				action := "enable_firewall_rule"
				if !enabled {
					action = "disable_firewall_rule"
				}
				f.logger.LogAudit("firewall rule "+ruleID, user, action, "accepted", map[string]any{"rule_id": ruleID})
			}
			return true
		}
	}
	return false
}

func (f *Firewall) sortRules() {
	sort.SliceStable(f.rules, func(i, j int) bool { return f.rules[i].Priority < f.rules[j].Priority })
}

// CheckConnection evaluates rules in priority order; first match wins, no
// match falls through to the default action.
func (f *Firewall) CheckConnection(sourceIP, destIP string, destPort int, protocol string) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.totalChecked++
	now := f.now()

	for _, r := range f.rules {
		if !r.Enabled || !r.matches(sourceIP, destIP, destPort, protocol) {
			continue
		}
		r.HitCount++
		r.LastHit = now

		if r.Action == ActionAllow {
			f.totalAllowed++
			return true, "allowed by rule " + r.ID + ": " + r.Name
		}

		f.totalBlocked++
		f.recordBlock(now, sourceIP, destIP, destPort, protocol, r.ID, r.Name)
		if f.logger != nil && f.logLimiterFor(sourceIP).Allow() {
			f.logger.LogSecurity("firewall block: "+sourceIP+" -> "+destIP, obslog.Warning, sourceIP, map[string]any{
				"dest_ip": destIP, "dest_port": destPort, "protocol": protocol, "rule_id": r.ID, "action": string(r.Action),
			})
		}
		return false, "blocked by rule " + r.ID + ": " + r.Name
	}

	if f.defaultAction == ActionAllow {
		f.totalAllowed++
		return true, "allowed by default policy"
	}
	f.totalBlocked++
	f.recordBlock(now, sourceIP, destIP, destPort, protocol, "default", "default policy")
	if f.logger != nil && f.logLimiterFor(sourceIP).Allow() {
		f.logger.LogSecurity("firewall block: "+sourceIP+" -> "+destIP, obslog.Warning, sourceIP, map[string]any{
			"dest_ip": destIP, "dest_port": destPort, "protocol": protocol, "rule_id": "default", "action": "default policy",
		})
	}
	return false, "blocked by default policy"
}

// logLimiterFor returns the per-source-IP log rate limiter, creating one on
// first sight of that source. Must be called with f.mu held.
func (f *Firewall) logLimiterFor(sourceIP string) *rate.Limiter {
	lim, ok := f.logLimiters[sourceIP]
	if !ok {
		lim = rate.NewLimiter(logRateLimit, 1)
		f.logLimiters[sourceIP] = lim
	}
	return lim
}

func (f *Firewall) recordBlock(now float64, sourceIP, destIP string, destPort int, protocol, ruleID, reason string) {
	f.blocked = append(f.blocked, BlockedConnection{
		Timestamp: now, SourceIP: sourceIP, DestIP: destIP, DestPort: destPort,
		Protocol: protocol, RuleID: ruleID, Reason: reason,
	})
	if len(f.blocked) > f.blockHistoryLimit {
		f.blocked = f.blocked[len(f.blocked)-f.blockHistoryLimit:]
	}
}

func (f *Firewall) now() float64 {
	if f.clock == nil {
		return 0
	}
	return f.clock.Now()
}

// Scan recomputes the 60-second rolling block rate and applies the 50/min
// set, 30/min clear alarm hysteresis.
func (f *Firewall) Scan() {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	rate := 0
	for _, b := range f.blocked {
		if now-b.Timestamp < 60.0 {
			rate++
		}
	}

	if rate > 50 && !f.blockRateAlarmRaised {
		f.blockRateAlarmRaised = true
		if f.logger != nil {
			f.logger.LogAlarm("firewall high block rate", obslog.PriorityHigh, obslog.AlarmActive, map[string]any{
				"device": f.deviceName, "block_rate_per_minute": rate,
			})
		}
	} else if rate < 30 && f.blockRateAlarmRaised {
		f.blockRateAlarmRaised = false
		if f.logger != nil {
			f.logger.LogAlarm("firewall block rate normalised", obslog.PriorityHigh, obslog.AlarmCleared, map[string]any{
				"device": f.deviceName, "block_rate_per_minute": rate,
			})
		}
	}
}

func (f *Firewall) GetBlockedConnections(limit int) []BlockedConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 || limit > len(f.blocked) {
		limit = len(f.blocked)
	}
	out := make([]BlockedConnection, limit)
	copy(out, f.blocked[len(f.blocked)-limit:])
	return out
}

// Statistics is a point-in-time snapshot of firewall counters.
type Statistics struct {
	TotalRules int
	ActiveRules int
	TotalConnectionsChecked int
	TotalConnectionsAllowed int
	TotalConnectionsBlocked int
	BlockedHistoryLen int
}

func (f *Firewall) GetStatistics() Statistics {
	f.mu.Lock()
	defer f.mu.Unlock()

	active := 0
	for _, r := range f.rules {
		if r.Enabled {
			active++
		}
	}
	return Statistics{
		TotalRules: len(f.rules),
		ActiveRules: active,
		TotalConnectionsChecked: f.totalChecked,
		TotalConnectionsAllowed: f.totalAllowed,
		TotalConnectionsBlocked: f.totalBlocked,
		BlockedHistoryLen: len(f.blocked),
	}
}

func ruleID(n int) string {
	const digits = "0123456789"
	buf := []byte{'F', 'W', '-'}
	start := len(buf)
	if n == 0 {
		return string(append(buf, '0'))
	}
	for n > 0 {
		buf = append(buf, digits[n%10])
		n /= 10
	}
	for i, j := start, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
