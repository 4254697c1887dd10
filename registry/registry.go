// registry/registry.go
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

// Listener is told about configuration changes after they are committed.
// Calls are synchronous and made without holding the registry lock, so a
// listener may read the registry back. A removed connection is already gone
// when ConnectionRemoved runs.
type Listener interface {
	ConnectionChanged(old, updated *model.Connection)
	ConnectionRemoved(conn *model.Connection)
	MappingsChanged(connectionID string)
}

// Registry is the in-memory source of truth for connections and their
// mapping tables. Reads are concurrent; writes are exclusive.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*model.Connection
	rules       map[string][]model.MappingRule
	owners      map[string]string // target attribute -> connection id

	listenersMu sync.RWMutex
	listeners   []Listener

	now func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		connections: make(map[string]*model.Connection),
		rules:       make(map[string][]model.MappingRule),
		owners:      make(map[string]string),
		now:         time.Now,
	}
}

// AddListener subscribes l to every later change.
func (r *Registry) AddListener(l Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Registry) snapshotListeners() []Listener {
	r.listenersMu.RLock()
	defer r.listenersMu.RUnlock()
	return append([]Listener(nil), r.listeners...)
}

// Create stores a new connection. An empty id is assigned a UUID.
func (r *Registry) Create(conn *model.Connection) (*model.Connection, error) {
	stored := conn.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	r.mu.Lock()
	if _, exists := r.connections[stored.ID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", pip_errors.ErrConnectionConflict, stored.ID)
	}
	now := r.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	if stored.Version == 0 {
		stored.Version = 1
	}
	r.connections[stored.ID] = stored
	r.mu.Unlock()

	logger.Info("Connection registered",
		zap.String("connectionID", stored.ID),
		zap.String("type", string(stored.Type)),
		zap.String("provider", stored.Provider))
	return stored.Clone(), nil
}

// Update replaces a connection's configuration and notifies listeners with
// the previous and new versions.
func (r *Registry) Update(conn *model.Connection) (*model.Connection, error) {
	r.mu.Lock()
	old, ok := r.connections[conn.ID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", pip_errors.ErrConnectionNotFound, conn.ID)
	}
	updated := conn.Clone()
	updated.CreatedAt = old.CreatedAt
	updated.UpdatedAt = r.now().UTC()
	updated.Version = old.Version + 1
	r.connections[conn.ID] = updated
	r.mu.Unlock()

	for _, l := range r.snapshotListeners() {
		l.ConnectionChanged(old.Clone(), updated.Clone())
	}
	logger.Info("Connection updated",
		zap.String("connectionID", updated.ID),
		zap.Int("version", updated.Version),
		zap.Bool("enabled", updated.Enabled),
		zap.Bool("sourceChanged", old.SourceChanged(updated)))
	return updated.Clone(), nil
}

// Delete drops the connection and its mappings, then notifies listeners.
// Resolutions that start after the removal see ErrConnectionNotFound, so
// nothing new can be cached or scheduled once listeners have cleaned up.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	conn, ok := r.connections[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", pip_errors.ErrConnectionNotFound, id)
	}
	delete(r.connections, id)
	for _, rule := range r.rules[id] {
		if r.owners[rule.TargetAttribute] == id {
			delete(r.owners, rule.TargetAttribute)
		}
	}
	delete(r.rules, id)
	r.mu.Unlock()

	for _, l := range r.snapshotListeners() {
		l.ConnectionRemoved(conn.Clone())
	}
	logger.Info("Connection removed", zap.String("connectionID", id))
	return nil
}

// Get returns a copy of the connection with the given id.
func (r *Registry) Get(id string) (*model.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pip_errors.ErrConnectionNotFound, id)
	}
	return conn.Clone(), nil
}

// List returns every connection ordered by name then id.
func (r *Registry) List() []*model.Connection {
	return r.list(false)
}

// ListEnabled returns enabled connections in List order.
func (r *Registry) ListEnabled() []*model.Connection {
	return r.list(true)
}

func (r *Registry) list(enabledOnly bool) []*model.Connection {
	r.mu.RLock()
	out := make([]*model.Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		if enabledOnly && !conn.Enabled {
			continue
		}
		out = append(out, conn.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SetMappings replaces the ordered mapping table of a connection. Target
// attributes must be unique within the table and must not be owned by a
// different connection.
func (r *Registry) SetMappings(connectionID string, rules []model.MappingRule) ([]model.MappingRule, error) {
	stored := make([]model.MappingRule, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for i, rule := range rules {
		if _, dup := seen[rule.TargetAttribute]; dup {
			return nil, fmt.Errorf("%w: %s is mapped twice", pip_errors.ErrMappingConflict, rule.TargetAttribute)
		}
		seen[rule.TargetAttribute] = struct{}{}
		rule.ConnectionID = connectionID
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		stored[i] = rule
	}

	r.mu.Lock()
	if _, ok := r.connections[connectionID]; !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", pip_errors.ErrConnectionNotFound, connectionID)
	}
	for target := range seen {
		if owner, ok := r.owners[target]; ok && owner != connectionID {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s is owned by connection %s", pip_errors.ErrMappingConflict, target, owner)
		}
	}
	for _, rule := range r.rules[connectionID] {
		delete(r.owners, rule.TargetAttribute)
	}
	for target := range seen {
		r.owners[target] = connectionID
	}
	r.rules[connectionID] = stored
	r.mu.Unlock()

	for _, l := range r.snapshotListeners() {
		l.MappingsChanged(connectionID)
	}
	logger.Info("Mappings replaced", zap.String("connectionID", connectionID), zap.Int("rules", len(stored)))
	return cloneRules(stored), nil
}

// Mappings returns a copy of the ordered mapping table of a connection.
func (r *Registry) Mappings(connectionID string) ([]model.MappingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.connections[connectionID]; !ok {
		return nil, fmt.Errorf("%w: %s", pip_errors.ErrConnectionNotFound, connectionID)
	}
	return cloneRules(r.rules[connectionID]), nil
}

// OwnerOf returns the connection and rule that produce an attribute.
func (r *Registry) OwnerOf(attribute string) (*model.Connection, model.MappingRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.owners[attribute]
	if !ok {
		return nil, model.MappingRule{}, false
	}
	for _, rule := range r.rules[id] {
		if rule.TargetAttribute == attribute {
			return r.connections[id].Clone(), rule, true
		}
	}
	return nil, model.MappingRule{}, false
}

func cloneRules(rules []model.MappingRule) []model.MappingRule {
	out := make([]model.MappingRule, len(rules))
	copy(out, rules)
	return out
}
