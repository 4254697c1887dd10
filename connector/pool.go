// connector/pool.go
package connector

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

// ErrOutdatedConnection is returned by Pool.Get for a connection copy older
// than the version the pool has already seen. Callers re-read the
// connection and ask again.
var ErrOutdatedConnection = errors.New("connection configuration is outdated")

type pooled struct {
	connector Connector
	version   int
}

// Pool keeps one live connector per connection and rebuilds it when the
// connection's source settings change. Every live connector is tagged with
// the connection version it serves.
type Pool struct {
	registry *Registry
	retry    RetryPolicy

	mu       sync.Mutex
	live     map[string]pooled
	versions map[string]int // newest version seen per connection
}

// NewPool returns an empty pool building connectors from registry and
// wrapping them with the retry policy.
func NewPool(registry *Registry, retry RetryPolicy) *Pool {
	return &Pool{
		registry: registry,
		retry:    retry,
		live:     make(map[string]pooled),
		versions: make(map[string]int),
	}
}

// Get returns the live connector for conn, building it on first use or when
// conn is newer than the pooled one. A copy older than the newest version
// seen is refused with ErrOutdatedConnection and never pooled.
func (p *Pool) Get(conn *model.Connection) (Connector, error) {
	p.mu.Lock()
	if newest, ok := p.versions[conn.ID]; ok && conn.Version < newest {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s at version %d, current %d", ErrOutdatedConnection, conn.ID, conn.Version, newest)
	}
	prev, ok := p.live[conn.ID]
	if ok && prev.version == conn.Version {
		p.mu.Unlock()
		return prev.connector, nil
	}
	c, err := p.registry.Build(ConfigFromConnection(conn))
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	c = WithRetry(c, conn.ID, p.retry)
	p.live[conn.ID] = pooled{connector: c, version: conn.Version}
	p.versions[conn.ID] = conn.Version
	p.mu.Unlock()

	if ok {
		closeConnector(conn.ID, prev.connector)
	}
	logger.Debug("Connector built",
		zap.String("connectionID", conn.ID),
		zap.String("provider", conn.Provider),
		zap.Int("version", conn.Version))
	return c, nil
}

// Evict closes and forgets the live connector of a connection.
func (p *Pool) Evict(connectionID string) {
	p.mu.Lock()
	prev, ok := p.live[connectionID]
	delete(p.live, connectionID)
	p.mu.Unlock()
	if ok {
		closeConnector(connectionID, prev.connector)
	}
}

// Close closes every live connector.
func (p *Pool) Close() {
	p.mu.Lock()
	live := p.live
	p.live = make(map[string]pooled)
	p.mu.Unlock()
	for id, l := range live {
		closeConnector(id, l.connector)
	}
}

// ConnectionChanged records the new version. A source change evicts the
// connector; any other change keeps it and retags it.
func (p *Pool) ConnectionChanged(old, updated *model.Connection) {
	p.mu.Lock()
	if updated.Version > p.versions[updated.ID] {
		p.versions[updated.ID] = updated.Version
	}
	prev, ok := p.live[updated.ID]
	sourceChanged := old.SourceChanged(updated)
	switch {
	case ok && sourceChanged:
		delete(p.live, updated.ID)
	case ok:
		prev.version = updated.Version
		p.live[updated.ID] = prev
	}
	p.mu.Unlock()

	if ok && sourceChanged {
		closeConnector(updated.ID, prev.connector)
	}
}

// ConnectionRemoved closes the connector and forgets the connection.
func (p *Pool) ConnectionRemoved(conn *model.Connection) {
	p.mu.Lock()
	delete(p.versions, conn.ID)
	p.mu.Unlock()
	p.Evict(conn.ID)
}

func (p *Pool) MappingsChanged(string) {}

func closeConnector(connectionID string, c Connector) {
	closer, ok := c.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn("Failed to close connector", zap.Error(err), zap.String("connectionID", connectionID))
	}
}
