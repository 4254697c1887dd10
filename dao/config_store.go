// dao/config_store.go
package dao

import (
	"context"
	"sort"
	"sync"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

// StoredConnection is one persisted connection with its mapping rules.
type StoredConnection struct {
	Connection *model.Connection
	Mappings   []model.MappingRule
}

// ConfigStore persists connection and mapping configuration. The registry
// is the source of truth at runtime; the store only survives restarts.
type ConfigStore interface {
	SaveConnection(ctx context.Context, conn *model.Connection) error
	DeleteConnection(ctx context.Context, id string) error
	SaveMappings(ctx context.Context, connectionID string, rules []model.MappingRule) error
	LoadAll(ctx context.Context) ([]StoredConnection, error)
}

// MemoryStore keeps configuration in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	connections map[string]*model.Connection
	mappings    map[string][]model.MappingRule
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		connections: make(map[string]*model.Connection),
		mappings:    make(map[string][]model.MappingRule),
	}
}

func (s *MemoryStore) SaveConnection(_ context.Context, conn *model.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[conn.ID] = conn.Clone()
	return nil
}

func (s *MemoryStore) DeleteConnection(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[id]; !ok {
		return pip_errors.ErrConnectionNotFound
	}
	delete(s.connections, id)
	delete(s.mappings, id)
	return nil
}

func (s *MemoryStore) SaveMappings(_ context.Context, connectionID string, rules []model.MappingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[connectionID]; !ok {
		return pip_errors.ErrConnectionNotFound
	}
	s.mappings[connectionID] = append([]model.MappingRule(nil), rules...)
	return nil
}

func (s *MemoryStore) LoadAll(_ context.Context) ([]StoredConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StoredConnection, 0, len(s.connections))
	for id, conn := range s.connections {
		out = append(out, StoredConnection{
			Connection: conn.Clone(),
			Mappings:   append([]model.MappingRule(nil), s.mappings[id]...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Connection.ID < out[j].Connection.ID })
	return out, nil
}
