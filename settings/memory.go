package settings

import (
	"context"
	"sync"
)

// Memory is a process-local Backend. Nothing survives a restart.
type Memory struct {
	mu     sync.RWMutex
	values map[Key][]byte
}

func NewMemory() *Memory {
	return &Memory{values: make(map[Key][]byte)}
}

func (m *Memory) Load(ctx context.Context, k Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[k]
	return v, ok, nil
}

func (m *Memory) Save(ctx context.Context, k Key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[k] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) List(ctx context.Context, namespace string, guildID int64) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte)
	for k, v := range m.values {
		if k.Namespace == namespace && k.GuildID == guildID {
			out[k.Name] = v
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
