// Package registry implements the connection registry: tracking
// of active network sessions into and out of the simulated facility, with
// defender-initiated kill and a bounded closed-session history.
//
// Grounded on components/network/connection_registry.py: session lifecycle
// (connect/disconnect/kill), the bounded closed-session history, and the
// NOTICE/INFO/WARNING security-event logging on connect/disconnect/kill all
// reproduce that original's ConnectionRegistry. Unlike the Python original's
// process-wide singleton (`_instance`/`__new__`), this is an explicit root
// object constructed once in cmd/simcore and passed to its callers — the
// same pattern already used for obslog.Registry in this module.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
)

// Connection is one active or historical network session.
type Connection struct {
	SessionID string
	SourceIP string
	SourceDevice string
	TargetDevice string
	Protocol string
	Port int
	ConnectedAt float64
	DisconnectedAt float64
	Username string
	Metadata map[string]any

	ClosedBy string // "client", "defender", or "" while still open
	Reason string
}

const defaultHistoryLimit = 500

// Clock supplies the simulation time stamped onto connect/disconnect events.
type Clock interface {
	Now() float64
}

// Registry tracks every open network session and a bounded history of
// closed ones.
type Registry struct {
	logger *obslog.Logger
	clock Clock

	mu sync.Mutex
	active map[string]*Connection
	history []*Connection
	historyLimit int
}

func New(logger *obslog.Logger, clock Clock) *Registry {
	return &Registry{
		logger: logger,
		clock: clock,
		active: make(map[string]*Connection),
		historyLimit: defaultHistoryLimit,
	}
}

// Reset clears all active and historical connections. Test-only, mirroring
// the original's reset_singleton() used to isolate unit tests from shared
// process state.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = make(map[string]*Connection)
	r.history = nil
}

func (r *Registry) now() float64 {
	if r.clock == nil {
		return 0
	}
	return r.clock.Now()
}

// Connect opens a new session and returns its generated session ID
// (connect logs a NOTICE security event).
func (r *Registry) Connect(sourceIP, sourceDevice, targetDevice, protocol string, port int, username string, metadata map[string]any) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID := newSessionID()
	conn := &Connection{
		SessionID: sessionID,
		SourceIP: sourceIP,
		SourceDevice: sourceDevice,
		TargetDevice: targetDevice,
		Protocol: protocol,
		Port: port,
		ConnectedAt: r.now(),
		Username: username,
		Metadata: metadata,
	}
	r.active[sessionID] = conn

	if r.logger != nil {
		r.logger.LogSecurity("connection established: "+sourceDevice+" -> "+targetDevice, obslog.Notice, sourceIP, map[string]any{
			"session_id": sessionID, "target_device": targetDevice, "protocol": protocol, "port": port, "username": username,
		})
	}
	return sessionID
}

// Disconnect closes a session as a normal client-initiated close, logging
// an INFO security event.
func (r *Registry) Disconnect(sessionID string) bool {
	return r.close(sessionID, "client", "")
}

// KillConnection force-closes a session as a defender-initiated action
// (logs a WARNING security event with the given reason).
func (r *Registry) KillConnection(sessionID, reason string) bool {
	return r.close(sessionID, "defender", reason)
}

func (r *Registry) close(sessionID, closedBy, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.active[sessionID]
	if !ok {
		return false
	}
	delete(r.active, sessionID)

	conn.DisconnectedAt = r.now()
	conn.ClosedBy = closedBy
	conn.Reason = reason

	r.history = append(r.history, conn)
	if len(r.history) > r.historyLimit {
		r.history = r.history[len(r.history)-r.historyLimit:]
	}

	if r.logger != nil {
		severity := obslog.Info
		message := "connection closed: " + conn.SourceDevice + " -> " + conn.TargetDevice
		if closedBy == "defender" {
			severity = obslog.Warning
			message = "connection killed by defender: " + conn.SourceDevice + " -> " + conn.TargetDevice
		}
		r.logger.LogSecurity(message, severity, conn.SourceIP, map[string]any{
			"session_id": sessionID, "target_device": conn.TargetDevice, "closed_by": closedBy, "reason": reason,
		})
	}
	return true
}

// GetActive returns a snapshot of every open connection, optionally
// filtered to a target device.
func (r *Registry) GetActive(targetDevice string) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Connection, 0, len(r.active))
	for _, c := range r.active {
		if targetDevice != "" && c.TargetDevice != targetDevice {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out
}

// GetHistory returns up to limit most-recent closed sessions, optionally
// filtered to a target device. limit <= 0 returns the full bounded history.
func (r *Registry) GetHistory(limit int, targetDevice string) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*Connection
	for _, c := range r.history {
		if targetDevice != "" && c.TargetDevice != targetDevice {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// GetConnection looks up an active session by ID.
func (r *Registry) GetConnection(sessionID string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.active[sessionID]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// IsConnected reports whether a session is currently active.
func (r *Registry) IsConnected(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[sessionID]
	return ok
}

func newSessionID() string {
	return uuid.NewString()
}
