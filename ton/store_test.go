package ton

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	storage "github.com/aiandyou50/CandleSpinner-sub000/db/redis"
)

// memStore is an in-memory durable map for the package tests. It also
// satisfies the game package's store surface so a real CreditLedger can sit
// behind the orchestrator under test.
type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return val, nil
}

func (m *memStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprintf("%v", value)
	return nil
}

func (m *memStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, _ := strconv.ParseInt(m.data[key], 10, 64)
	cur++
	m.data[key] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (m *memStore) GetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

func (m *memStore) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(ctx, key, string(data), expiration)
}

func (m *memStore) UpdateJSON(ctx context.Context, key string, expiration time.Duration, fn func(current []byte) (interface{}, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current []byte
	if val, ok := m.data[key]; ok {
		current = []byte(val)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	m.data[key] = string(data)
	return nil
}
