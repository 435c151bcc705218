// Package obslog is the structured event logger: a uniform
// ingestion point for severity-classified, category-tagged entries, stamped
// with both simulation and wall time, fed into an in-memory ring and the
// central audit log of the state store.
//
// It follows the shape of infrastructure/logging: a logrus-backed Logger
// with context-aware field injection and purpose-built helper methods,
// adapted here to the simulation's severity/category taxonomy instead of
// HTTP/DB/blockchain concerns.
package obslog

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Severity is one of the seven syslog-shaped levels named
type Severity string

const (
	Critical Severity = "CRITICAL"
	Alert Severity = "ALERT"
	Error Severity = "ERROR"
	Warning Severity = "WARNING"
	Notice Severity = "NOTICE"
	Info Severity = "INFO"
	Debug Severity = "DEBUG"
)

// Category tags the subsystem an entry concerns.
type Category string

const (
	Security Category = "SECURITY"
	Safety Category = "SAFETY"
	Process Category = "PROCESS"
	Alarm Category = "ALARM"
	Audit Category = "AUDIT"
	System Category = "SYSTEM"
	Communication Category = "COMMUNICATION"
	Diagnostic Category = "DIAGNOSTIC"
)

// AlarmPriority and AlarmState back logAlarm.
type AlarmPriority string

const (
	PriorityCritical AlarmPriority = "CRITICAL"
	PriorityHigh AlarmPriority = "HIGH"
	PriorityMedium AlarmPriority = "MEDIUM"
	PriorityLow AlarmPriority = "LOW"
)

type AlarmState string

const (
	AlarmActive AlarmState = "ACTIVE"
	AlarmAcknowledged AlarmState = "ACKNOWLEDGED"
	AlarmCleared AlarmState = "CLEARED"
	AlarmSuppressed AlarmState = "SUPPRESSED"
)

// priorityToSeverity is the fixed alarm-priority-to-log-severity mapping
var priorityToSeverity = map[AlarmPriority]Severity{
	PriorityCritical: Critical,
	PriorityHigh: Error,
	PriorityMedium: Warning,
	PriorityLow: Notice,
}

// Entry is the wire-shape structured log entry
type Entry struct {
	SimulationTime float64 `json:"simulationTime"`
	WallTime int64 `json:"wallTime"`
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Message string `json:"message"`
	Device string `json:"device,omitempty"`
	Component string `json:"component,omitempty"`
	User string `json:"user,omitempty"`
	EventID string `json:"eventId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	SourceIP string `json:"sourceIp,omitempty"`
	Data map[string]any `json:"data,omitempty"`
	AlarmPriority AlarmPriority `json:"alarmPriority,omitempty"`
	AlarmState AlarmState `json:"alarmState,omitempty"`
}

// Clock is the minimal time source a Logger needs: simulation-time "now".
// internal/clock.Clock satisfies this.
type Clock interface {
	Now() float64
}

// AuditSink receives audit/security/alarm entries for the central audit
// log (internal/store.Store satisfies this).
type AuditSink interface {
	AppendAuditEvent(Entry)
}

// Ring is a bounded, drop-oldest in-memory buffer of entries, mirroring the
// audit ring described in the audit/event entry invariants defined for
//.
type Ring struct {
	mu sync.Mutex
	capacity int
	entries []Entry
	dropped uint64
}

func newRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Ring{capacity: capacity, entries: make([]Entry, 0, capacity)}
}

func (r *Ring) push(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) >= r.capacity {
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:len(r.entries)-1]
		r.dropped++
	}
	r.entries = append(r.entries, e)
}

// Snapshot returns up to limit most-recent entries (most-recent-last),
// optionally filtered by a predicate.
func (r *Ring) Snapshot(limit int, match func(Entry) bool) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if match == nil || match(r.entries[i]) {
			out = append(out, r.entries[i])
		}
	}
	// reverse into most-recent-last order
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Logger is the per name+device logging instance described
// Instances are obtained through a Registry and cached by name+device.
type Logger struct {
	name string
	device string
	clock Clock
	sink AuditSink
	raw *logrus.Logger
	ring *Ring
}

// Config controls ring capacity; zero value is fine (defaults apply).
type Config struct {
	RingCapacity int
}

func newLogger(name, device string, clock Clock, sink AuditSink, cfg Config) *Logger {
	raw := logrus.New()
	raw.SetFormatter(&logrus.JSONFormatter{})
	return &Logger{
		name: name,
		device: device,
		clock: clock,
		sink: sink,
		raw: raw,
		ring: newRing(cfg.RingCapacity),
	}
}

func (l *Logger) stamp(severity Severity, category Category, message string) Entry {
	var simTime float64
	if l.clock != nil {
		simTime = l.clock.Now()
	}
	return Entry{
		SimulationTime: simTime,
		WallTime: wallNowUnix(),
		Severity: severity,
		Category: category,
		Message: message,
		Device: l.device,
		Component: l.name,
		EventID: uuid.NewString(),
	}
}

func (l *Logger) emit(e Entry) {
	l.ring.push(e)
	l.raw.WithFields(logrus.Fields{
		"component": e.Component,
		"device": e.Device,
		"category": e.Category,
		"simTime": e.SimulationTime,
	}).Log(severityToLogrusLevel(e.Severity), e.Message)

	switch e.Category {
	case Audit, Security, Alarm:
		if l.sink != nil {
			l.sink.AppendAuditEvent(e)
		}
	}
}

// LogEvent is the general entry point.
func (l *Logger) LogEvent(severity Severity, category Category, message string, data map[string]any) {
	e := l.stamp(severity, category, message)
	e.Data = data
	l.emit(e)
}

// LogAudit records an AUDIT-category entry and always reaches the central
// audit log.
func (l *Logger) LogAudit(message, user, action, result string, data map[string]any) {
	e := l.stamp(Info, Audit, message)
	e.User = user
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	e.Data["action"] = action
	e.Data["result"] = result
	for k, v := range data {
		e.Data[k] = v
	}
	l.emit(e)
}

// LogAlarm records an ALARM-category entry; severity is derived from
// priority by the fixed mapping
func (l *Logger) LogAlarm(message string, priority AlarmPriority, state AlarmState, data map[string]any) {
	severity, ok := priorityToSeverity[priority]
	if !ok {
		severity = Warning
	}
	e := l.stamp(severity, Alarm, message)
	e.AlarmPriority = priority
	e.AlarmState = state
	e.Data = data
	l.emit(e)
}

// LogSecurity records a SECURITY-category entry.
func (l *Logger) LogSecurity(message string, severity Severity, sourceIP string, data map[string]any) {
	e := l.stamp(severity, Security, message)
	e.SourceIP = sourceIP
	e.Data = data
	l.emit(e)
}

func (l *Logger) Critical(message string, data map[string]any) { l.LogEvent(Critical, System, message, data) }
func (l *Logger) Warn(message string, data map[string]any) { l.LogEvent(Warning, System, message, data) }
func (l *Logger) Info(message string, data map[string]any) { l.LogEvent(Info, System, message, data) }
func (l *Logger) Debug(message string, data map[string]any) { l.LogEvent(Debug, System, message, data) }
func (l *Logger) ErrorEvent(message string, data map[string]any) {
	l.LogEvent(Error, System, message, data)
}

// GetAuditTrail reads the in-memory ring.
func (l *Logger) GetAuditTrail(limit int, match func(Entry) bool) []Entry {
	return l.ring.Snapshot(limit, match)
}

// Dropped returns the count of entries evicted from this logger's ring.
func (l *Logger) Dropped() uint64 { return l.ring.Dropped() }

func severityToLogrusLevel(s Severity) logrus.Level {
	switch s {
	case Critical, Alert:
		return logrus.FatalLevel // logged, process is not actually terminated by this path
	case Error:
		return logrus.ErrorLevel
	case Warning:
		return logrus.WarnLevel
	case Notice, Info:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}
