package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
)

// fakeBackend is an in-memory PersistenceBackend double, standing in for
// RedisBackend in tests so they don't need a live Redis server.
type fakeBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeBackend() *fakeBackend { return &fakeBackend{data: make(map[string][]byte)} }

func (b *fakeBackend) Save(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = data
	return nil
}

func (b *fakeBackend) Load(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (b *fakeBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func (b *fakeBackend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.data))
	for k := range b.data {
		out = append(out, k)
	}
	return out, nil
}

func (b *fakeBackend) Close(ctx context.Context) error { return nil }

func TestSnapshotWithNoBackendIsNoop(t *testing.T) {
	s := New(nil, 0)
	if err := s.Snapshot(context.Background()); err != nil {
		t.Fatalf("expected nil backend snapshot to be a no-op, got %v", err)
	}
}

func TestSnapshotWritesDeviceMemoryToBackend(t *testing.T) {
	s := New(nil, 0)
	if _, err := s.RegisterDevice("turbine_1", "turbine_plc", 1, []string{"modbus"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteMemory("turbine_1", "input_registers[100]", 3600.0); err != nil {
		t.Fatal(err)
	}

	backend := newFakeBackend()
	s.SetBackend(backend)

	if err := s.Snapshot(context.Background()); err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}

	raw, err := backend.Load(context.Background(), "device:turbine_1")
	if err != nil {
		t.Fatalf("expected device snapshot to be saved: %v", err)
	}
	var snap deviceSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Kind != "turbine_plc" || snap.Memory["input_registers[100]"] != 3600.0 {
		t.Fatalf("expected snapshot to capture device kind and memory, got %+v", snap)
	}
}

func TestSnapshotWritesAuditLog(t *testing.T) {
	s := New(nil, 0)
	backend := newFakeBackend()
	s.SetBackend(backend)

	s.AppendAuditEvent(obslog.Entry{Message: "test event", Severity: obslog.Info, Category: obslog.System})
	if err := s.Snapshot(context.Background()); err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}
	if _, err := backend.Load(context.Background(), "audit_log"); err != nil {
		t.Fatalf("expected audit log to be saved: %v", err)
	}
}
