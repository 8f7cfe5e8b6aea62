package snapshots

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/judoassistant/tournament-sync/internal/common"
)

// MemoryStore keeps snapshots in process memory. It is used when no bucket
// is configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, ref Ref, at time.Time, data []byte) (string, error) {
	key := StorageKey(ref, at)
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[key] = buf
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryStore) Get(_ context.Context, ref Ref, at time.Time) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[StorageKey(ref, at)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return data, nil
}

func (m *MemoryStore) Prune(_ context.Context, ref Ref, keep string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.objects {
		if k != keep && strings.HasPrefix(k, prefix(ref)) {
			delete(m.objects, k)
		}
	}
	return nil
}

// Keys lists the stored keys under webName, unordered.
func (m *MemoryStore) Keys(webName string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, "tournaments/"+webName+"/") {
			keys = append(keys, k)
		}
	}
	return keys
}
