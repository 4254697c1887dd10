// cache/invalidate.go
package cache

import (
	"context"

	"go.uber.org/zap"

	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/metrics"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

// bump starts a new configuration generation for a connection. Fetches
// already in flight will not store their results.
func (m *Manager) bump(connectionID string, clearSuspension bool) {
	cs := m.state(connectionID)
	cs.mu.Lock()
	cs.gen++
	if clearSuspension {
		cs.suspended = nil
	}
	cs.mu.Unlock()
}

// Invalidate marks every entry of a connection Stale and cancels its refresh
// jobs. Stale entries are still served during the grace period.
func (m *Manager) Invalidate(connectionID string) int {
	m.bump(connectionID, true)
	if m.scheduler != nil {
		m.scheduler.CancelConnection(connectionID)
	}
	now := m.now()
	n := 0
	for _, key := range m.entriesOf(connectionID) {
		e, ok := m.entries.Peek(key)
		if !ok {
			continue
		}
		e.mu.Lock()
		if e.state == StateValid || e.state == StateRefreshing {
			e.state = StateStale
			e.staleSince = now
			n++
		}
		e.terminal = false
		e.mu.Unlock()
	}
	m.deleteShared(connectionID)
	logger.Info("Invalidated cache entries", zap.String("connectionID", connectionID), zap.Int("entries", n))
	return n
}

// InvalidateSubject drops a single subject of a connection.
func (m *Manager) InvalidateSubject(connectionID, subject string) bool {
	if m.scheduler != nil {
		m.scheduler.Cancel(connectionID, subject)
	}
	removed := m.entries.Remove(cacheKey(connectionID, subject))
	if m.shared != nil {
		if err := m.shared.Delete(context.Background(), connectionID, subject); err != nil {
			logger.Warn("Failed to delete shared cache entry", zap.String("connectionID", connectionID), zap.Error(err))
		}
	}
	metrics.CacheSize(m.entries.Len(), m.bytes.Load())
	return removed
}

// Disable stops background work for a connection. Entries keep being served
// as terminal until they expire; entries holding only sensitive attributes
// are dropped at once.
func (m *Manager) Disable(connectionID string) {
	m.bump(connectionID, false)
	cancelled := 0
	if m.scheduler != nil {
		cancelled = m.scheduler.CancelConnection(connectionID)
	}
	dropped := 0
	for _, key := range m.entriesOf(connectionID) {
		e, ok := m.entries.Peek(key)
		if !ok {
			continue
		}
		e.mu.Lock()
		drop := e.val.sensitiveOnly()
		e.terminal = true
		if e.state == StateRefreshing {
			e.state = StateValid
		}
		e.mu.Unlock()
		if drop {
			m.entries.Remove(key)
			dropped++
		}
	}
	metrics.CacheSize(m.entries.Len(), m.bytes.Load())
	logger.Info("Disabled connection cache",
		zap.String("connectionID", connectionID),
		zap.Int("cancelledJobs", cancelled),
		zap.Int("droppedEntries", dropped))
}

// Purge removes every entry of a connection.
func (m *Manager) Purge(connectionID string) int {
	m.bump(connectionID, true)
	if m.scheduler != nil {
		m.scheduler.CancelConnection(connectionID)
	}
	n := 0
	for _, key := range m.entriesOf(connectionID) {
		if m.entries.Remove(key) {
			n++
		}
	}
	m.deleteShared(connectionID)
	metrics.CacheSize(m.entries.Len(), m.bytes.Load())
	return n
}

func (m *Manager) deleteShared(connectionID string) {
	if m.shared == nil {
		return
	}
	if err := m.shared.DeleteConnection(context.Background(), connectionID); err != nil {
		logger.Warn("Failed to delete shared cache entries", zap.String("connectionID", connectionID), zap.Error(err))
	}
}

// Sweep removes entries that can no longer be served and returns how many.
func (m *Manager) Sweep() int {
	now := m.now()
	n := 0
	for _, key := range m.entries.Keys() {
		e, ok := m.entries.Peek(key)
		if !ok {
			continue
		}
		e.mu.Lock()
		dead := false
		switch e.state {
		case StateStale:
			dead = now.Sub(e.staleSince) >= m.cfg.GracePeriod
		case StateValid:
			dead = !now.Before(e.val.ExpiresAt)
		case StateExpired:
			dead = true
		}
		if dead {
			e.state = StateExpired
		}
		e.mu.Unlock()
		if dead && m.entries.Remove(key) {
			n++
		}
	}
	metrics.CacheSize(m.entries.Len(), m.bytes.Load())
	if n > 0 {
		logger.Debug("Swept cache entries", zap.Int("removed", n))
	}
	return n
}

// StartJanitor runs Sweep on a cron schedule such as "@every 30s".
func (m *Manager) StartJanitor(spec string) error {
	return m.scheduler.AddPeriodic(spec, "cache-janitor", func() { m.Sweep() })
}

// ConnectionChanged implements registry.Listener.
func (m *Manager) ConnectionChanged(old, updated *model.Connection) {
	switch {
	case old.Enabled && !updated.Enabled:
		m.Disable(updated.ID)
	case old.CacheEnabled && !updated.CacheEnabled:
		m.Purge(updated.ID)
	case !old.Enabled && updated.Enabled, old.SourceChanged(updated):
		m.Invalidate(updated.ID)
	}
}

// ConnectionRemoved implements registry.Listener.
func (m *Manager) ConnectionRemoved(conn *model.Connection) {
	m.Purge(conn.ID)
}

// MappingsChanged implements registry.Listener.
func (m *Manager) MappingsChanged(connectionID string) {
	m.Purge(connectionID)
}
