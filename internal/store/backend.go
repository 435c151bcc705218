package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/obslog"
)

// PersistenceBackend mirrors infrastructure/state.PersistenceBackend's
// shape: a key/value byte store behind Save/Load/Delete/List/Close. The
// in-memory Store above never depends on one directly — a backend is an
// optional, best-effort snapshot target set via SetBackend, used to get
// device memory maps and the audit log outside process memory — the
// in-memory state substrate itself always stays authoritative in-process.
type PersistenceBackend interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Close(ctx context.Context) error
}

// RedisBackend is a PersistenceBackend backed by Redis, for deployments
// that want device-memory/audit-log snapshots surviving a process restart
// without standing up a database. The in-memory Store remains the source
// of truth during a run; this backend only receives periodic snapshots via
// Store.Snapshot.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend does not dial: redis.NewClient connects lazily on the
// first command, so an unreachable server surfaces on the first Save/Load.
func NewRedisBackend(addr string, db int) *RedisBackend {
	return &RedisBackend{client: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

func (b *RedisBackend) Save(ctx context.Context, key string, data []byte) error {
	return b.client.Set(ctx, key, data, 0).Err()
}

func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

func (b *RedisBackend) List(ctx context.Context, prefix string) ([]string, error) {
	return b.client.Keys(ctx, prefix+"*").Result()
}

func (b *RedisBackend) Close(ctx context.Context) error {
	return b.client.Close()
}

// ErrNotFound is returned by Load for an absent key.
var ErrNotFound = fmt.Errorf("store: key not found in backend")

// deviceSnapshot is the JSON-serialisable shape written per device.
type deviceSnapshot struct {
	Kind string `json:"kind"`
	ID int `json:"id"`
	Protocols []string `json:"protocols"`
	Metadata map[string]string `json:"metadata"`
	Online bool `json:"online"`
	Memory map[string]any `json:"memory"`
}

// SetBackend installs an optional snapshot target. Passing nil disables
// snapshotting.
func (s *Store) SetBackend(backend PersistenceBackend) {
	s.backendMu.Lock()
	defer s.backendMu.Unlock()
	s.backend = backend
}

// Snapshot writes every device's current memory map and the audit log to
// the installed backend, if any. A nil backend makes this a no-op — the
// in-memory store needs no snapshot to keep running.
func (s *Store) Snapshot(ctx context.Context) error {
	s.backendMu.Lock()
	backend := s.backend
	s.backendMu.Unlock()
	if backend == nil {
		return nil
	}

	s.registryMu.RLock()
	devices := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		devices = append(devices, d)
	}
	s.registryMu.RUnlock()

	for _, d := range devices {
		snap := deviceSnapshot{
			Kind: d.Kind, ID: d.ID, Protocols: d.Protocols, Metadata: d.Metadata,
			Online: d.Online(), Memory: d.Snapshot(),
		}
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		if err := backend.Save(ctx, "device:"+d.Name, data); err != nil {
			return err
		}
	}

	s.auditMu.Lock()
	auditCopy := append([]obslog.Entry(nil), s.audit...)
	s.auditMu.Unlock()
	data, err := json.Marshal(auditCopy)
	if err != nil {
		return err
	}
	return backend.Save(ctx, "audit_log", data)
}
