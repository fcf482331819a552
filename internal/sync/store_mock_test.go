package sync

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/s3rsync/s3rsync/internal/blob"
	"github.com/s3rsync/s3rsync/internal/utils"
)

// memStore is an in-memory blob.Store used by tests. Upload and Download
// move bytes between real files and the object map. Individual keys can be
// forced to fail to exercise per-file failure isolation.
type memStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failKeys map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		objects:  make(map[string][]byte),
		failKeys: make(map[string]error),
	}
}

func (m *memStore) failKey(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failKeys[key] = err
}

func (m *memStore) Upload(ctx context.Context, key string, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failKeys[key]; ok {
		return err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) Download(ctx context.Context, key string, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failKeys[key]; ok {
		return err
	}
	data, ok := m.objects[key]
	if !ok {
		return blob.ErrKeyNotFound
	}
	if err := utils.EnsureParent(filePath); err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0o644)
}

func (m *memStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, blob.ErrKeyNotFound
	}
	return data, nil
}

func (m *memStore) PutObject(ctx context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failKeys[key]; ok {
		return err
	}
	m.objects[key] = body
	return nil
}

func (m *memStore) List(ctx context.Context, keyPrefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, keyPrefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// noopLock always acquires. fakeLock with held=true simulates contention.
type fakeLock struct {
	held     bool
	acquired bool
	released bool
}

func (l *fakeLock) TryAcquire() (bool, error) {
	if l.held {
		return false, nil
	}
	l.acquired = true
	return true, nil
}

func (l *fakeLock) Release() error {
	l.released = true
	return nil
}

var _ blob.Store = (*memStore)(nil)
var _ ProcessLock = (*fakeLock)(nil)
