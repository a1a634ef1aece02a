package webapi

import (
	"sync"

	"github.com/richardpark-msft/vigil/internal/models"
)

// TaskStore tracks the latest progress record per verification task. The
// interface stays narrow (get/put/delete) and is injected into Handlers so
// nothing in the pipeline depends on a live registry.
type TaskStore interface {
	Get(id string) (models.ProgressRecord, bool)
	Put(id string, record models.ProgressRecord)
	Delete(id string)
}

// MemoryTaskStore is an in-memory TaskStore guarded by a RWMutex.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]models.ProgressRecord
}

// NewMemoryTaskStore creates an empty MemoryTaskStore.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]models.ProgressRecord)}
}

func (m *MemoryTaskStore) Get(id string) (models.ProgressRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.tasks[id]
	return record, ok
}

func (m *MemoryTaskStore) Put(id string, record models.ProgressRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[id] = record
}

func (m *MemoryTaskStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
}

var _ TaskStore = (*MemoryTaskStore)(nil)
