// Package store implements the State Store: the single
// concurrent data substrate for device memory, the device registry, and
// the append-only central audit log.
//
// Grounded on infrastructure/state/state.go: a PersistenceBackend-shaped
// separation between the in-memory substrate and a higher-level wrapper,
// adapted here to per-device typed memory maps instead of a flat
// key/value store, plus the bulk-atomicity and bounded-audit-ring
// requirements. components.state.data_store was not present in the
// retrieved reference pack, so this package's shape follows
// infrastructure/state/state.go directly.
package store

import (
	"sort"
	"sync"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simerr"
)

// Device is the per-device record described Name and Kind are
// fixed at registration; Online and the memory map are the only mutable
// fields after that.
type Device struct {
	Name string
	ID int
	Kind string
	Protocols []string
	Metadata map[string]string
	RegisteredAt float64

	mu sync.RWMutex
	online bool
	memory map[string]any
}

// Online reports the device's online flag.
func (d *Device) Online() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.online
}

// Snapshot returns a shallow copy of the device's memory map, safe to range
// over without holding the device lock. cross-device reads are
// not snapshot-consistent, but this single device's view is self-atomic
// with respect to writes/bulk writes on the same device.
func (d *Device) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]any, len(d.memory))
	for k, v := range d.memory {
		out[k] = v
	}
	return out
}

// DefaultAuditCapacity bounds the central audit log ("system-wide
// audit log is similarly bounded").
const DefaultAuditCapacity = 10000

// Store is the process-wide state substrate. It is safe for concurrent use
// by many readers and writers, per the concurrency contract.
type Store struct {
	clock obslog.Clock

	registryMu sync.RWMutex
	devices map[string]*Device

	auditMu sync.Mutex
	audit []obslog.Entry
	auditCapacity int
	auditDropped uint64

	backendMu sync.Mutex
	backend PersistenceBackend
}

// New builds an empty Store. clock supplies the simulation time recorded
// as each device's registration time; AppendAuditEvent stores entries with
// whatever timestamp they already carry.
func New(clock obslog.Clock, auditCapacity int) *Store {
	if auditCapacity <= 0 {
		auditCapacity = DefaultAuditCapacity
	}
	return &Store{
		clock: clock,
		devices: make(map[string]*Device),
		auditCapacity: auditCapacity,
	}
}

// RegisterDevice fails with AlreadyExists if the name is taken.
func (s *Store) RegisterDevice(name, kind string, id int, protocols []string, metadata map[string]string) (*Device, error) {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	if _, exists := s.devices[name]; exists {
		return nil, simerr.NewAlreadyExists(name)
	}

	var now float64
	if s.clock != nil {
		now = s.clock.Now()
	}

	d := &Device{
		Name: name,
		ID: id,
		Kind: kind,
		Protocols: protocols,
		Metadata: metadata,
		RegisteredAt: now,
		memory: make(map[string]any),
	}
	s.devices[name] = d
	return d, nil
}

// UnregisterDevice removes the device and its memory map.
func (s *Store) UnregisterDevice(name string) {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	delete(s.devices, name)
}

// GetDeviceState returns the device record, or (nil, false) if unknown.
// An unknown device is an absent result, not an error.
func (s *Store) GetDeviceState(name string) (*Device, bool) {
	s.registryMu.RLock()
	defer s.registryMu.RUnlock()
	d, ok := s.devices[name]
	return d, ok
}

// GetDevicesByKind returns all registered devices of the given kind.
func (s *Store) GetDevicesByKind(kind string) []*Device {
	s.registryMu.RLock()
	defer s.registryMu.RUnlock()

	out := make([]*Device, 0)
	for _, d := range s.devices {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetOnline mutates only the online flag.
func (s *Store) SetOnline(name string, online bool) error {
	d, ok := s.GetDeviceState(name)
	if !ok {
		return simerr.NewUnknownDevice(name)
	}
	d.mu.Lock()
	d.online = online
	d.mu.Unlock()
	return nil
}

// ReadMemory reads a single cell; returns (nil, false) if the device or
// address is absent.
func (s *Store) ReadMemory(name, address string) (any, bool) {
	d, ok := s.GetDeviceState(name)
	if !ok {
		return nil, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, present := d.memory[address]
	return v, present
}

// WriteMemory writes a single cell; fails with UnknownDevice.
func (s *Store) WriteMemory(name, address string, value any) error {
	d, ok := s.GetDeviceState(name)
	if !ok {
		return simerr.NewUnknownDevice(name)
	}
	d.mu.Lock()
	d.memory[address] = value
	d.mu.Unlock()
	return nil
}

// BulkReadMemory returns the whole memory map for a device, atomic with
// respect to concurrent bulk writes on the same device .
func (s *Store) BulkReadMemory(name string) (map[string]any, error) {
	d, ok := s.GetDeviceState(name)
	if !ok {
		return nil, simerr.NewUnknownDevice(name)
	}
	return d.Snapshot(), nil
}

// BulkWriteMemory applies a multi-cell write atomically with respect to
// other bulk reads/writes on the same device .
func (s *Store) BulkWriteMemory(name string, mapping map[string]any) error {
	d, ok := s.GetDeviceState(name)
	if !ok {
		return simerr.NewUnknownDevice(name)
	}
	d.mu.Lock()
	for k, v := range mapping {
		d.memory[k] = v
	}
	d.mu.Unlock()
	return nil
}

// AppendAuditEvent pushes to the central audit log, evicting oldest beyond
// the configured bound. Store implements obslog.AuditSink.
func (s *Store) AppendAuditEvent(e obslog.Entry) {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	if len(s.audit) >= s.auditCapacity {
		copy(s.audit, s.audit[1:])
		s.audit = s.audit[:len(s.audit)-1]
		s.auditDropped++
	}
	s.audit = append(s.audit, e)
}

// AuditFilter narrows GetAuditLog results.
type AuditFilter struct {
	Device string
	User string
	Severity obslog.Severity
	Category obslog.Category
}

func (f AuditFilter) matches(e obslog.Entry) bool {
	if f.Device != "" && e.Device != f.Device {
		return false
	}
	if f.User != "" && e.User != f.User {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	return true
}

// GetAuditLog returns the most-recent-last subset matching filters, capped
// at limit.
func (s *Store) GetAuditLog(filter AuditFilter, limit int) []obslog.Entry {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	out := make([]obslog.Entry, 0, limit)
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if filter.matches(s.audit[i]) {
			out = append(out, s.audit[i])
		}
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// Summary is the aggregated projection returned by GetSimulationSummary.
type Summary struct {
	DeviceCount int
	OnlineDeviceCount int
	DevicesByKind map[string]int
	AuditLogSize int
	AuditDropped uint64
}

// GetSimulationSummary returns aggregated counts. Several
// end-to-end scenarios (S1-S6) depend on observing aggregate state, so this
// is a real projection rather than a stub.
func (s *Store) GetSimulationSummary() Summary {
	s.registryMu.RLock()
	byKind := make(map[string]int)
	online := 0
	for _, d := range s.devices {
		byKind[d.Kind]++
		if d.Online() {
			online++
		}
	}
	total := len(s.devices)
	s.registryMu.RUnlock()

	s.auditMu.Lock()
	auditSize := len(s.audit)
	dropped := s.auditDropped
	s.auditMu.Unlock()

	return Summary{
		DeviceCount: total,
		OnlineDeviceCount: online,
		DevicesByKind: byKind,
		AuditLogSize: auditSize,
		AuditDropped: dropped,
	}
}

// Reset drops all devices, memory, and audit records.
func (s *Store) Reset() {
	s.registryMu.Lock()
	s.devices = make(map[string]*Device)
	s.registryMu.Unlock()

	s.auditMu.Lock()
	s.audit = nil
	s.auditDropped = 0
	s.auditMu.Unlock()
}
