package session

import (
	"encoding/json"
	"sync"
)

// Storage is the local persisted key-value store.
type Storage interface {
	// Get returns nil, nil when key is absent.
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

type MemoryStorage struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: map[string][]byte{}}
}

func (m *MemoryStorage) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

func (m *MemoryStorage) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// LoadSession reads a provider session saved under key, nil when absent.
func LoadSession(storage Storage, key string) (*Session, error) {
	raw, err := storage.Get(key)
	if err != nil || raw == nil {
		return nil, err
	}

	s := &Session{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

func SaveSession(storage Storage, key string, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return storage.Set(key, raw)
}
