// cache/fetch.go
package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/controlcoreio/control-core-012025-sub001/connector"
	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/metrics"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

// fetch loads one subject from the upstream source, maps it and stores the
// result. It runs at most once per key at a time.
func (m *Manager) fetch(ctx context.Context, conn *model.Connection, subject string) (*Value, error) {
	gen := m.generation(conn.ID)
	ctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()

	if v := m.loadShared(ctx, conn, subject); v != nil {
		m.store(conn, subject, v, gen)
		return v, nil
	}

	rules, err := m.source.Mappings(conn.ID)
	if err != nil {
		return nil, err
	}
	conn, c, err := m.connectorFor(conn)
	if errors.Is(err, connector.ErrOutdatedConnection) || errors.Is(err, pip_errors.ErrConnectionNotFound) {
		return nil, err
	}
	if err != nil {
		if !pip_errors.IsAuth(err) && !pip_errors.IsTransient(err) && !pip_errors.IsPermanent(err) {
			err = &pip_errors.PermanentError{ConnectionID: conn.ID, Op: "cache.connector", Err: err}
		}
		m.recordFailure(ctx, conn, gen, err)
		return nil, err
	}

	m.upstream.Add(1)
	start := time.Now()
	raw, err := c.Fetch(ctx, subject)
	metrics.UpstreamFetch(conn.ID, fetchOutcome(err), time.Since(start))
	if err != nil {
		m.recordFailure(ctx, conn, gen, err)
		return nil, err
	}

	res, err := m.mapper.Map(conn.ID, rules, raw)
	if err != nil {
		// unmapped data is never cached
		return nil, err
	}

	now := m.now()
	ttl := conn.TTL()
	if m.cfg.SensitiveMaxTTL > 0 && ttl > m.cfg.SensitiveMaxTTL && anySensitive(res.Sensitive) {
		ttl = m.cfg.SensitiveMaxTTL
	}
	v := &Value{
		Bag:       res.Bag,
		Sensitive: res.Sensitive,
		Issues:    res.Issues,
		State:     StateValid,
		FetchedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if m.cacheable(conn) && m.store(conn, subject, v, gen) {
		m.saveShared(ctx, conn, subject, v)
	}
	return v, nil
}

// connectorFor returns the live connector of conn. When the pool already
// holds a newer version of the connection, the registry copy is read again
// so the fetch never rebuilds a connector from a replaced configuration.
func (m *Manager) connectorFor(conn *model.Connection) (*model.Connection, connector.Connector, error) {
	c, err := m.connectors.Get(conn)
	if !errors.Is(err, connector.ErrOutdatedConnection) {
		return conn, c, err
	}
	current, gerr := m.source.Get(conn.ID)
	if gerr != nil {
		return conn, nil, gerr
	}
	c, err = m.connectors.Get(current)
	return current, c, err
}

func (m *Manager) loadShared(ctx context.Context, conn *model.Connection, subject string) *Value {
	if m.shared == nil || !m.cacheable(conn) {
		return nil
	}
	b, err := m.shared.Load(ctx, conn.ID, subject)
	if err != nil {
		logger.Warn("Failed to read shared cache", zap.String("connectionID", conn.ID), zap.Error(err))
		return nil
	}
	if b == nil || !m.now().Before(b.ExpiresAt) {
		return nil
	}
	return valueFromShared(b)
}

func (m *Manager) saveShared(ctx context.Context, conn *model.Connection, subject string, v *Value) {
	if m.shared == nil {
		return
	}
	if err := m.shared.Save(ctx, conn.ID, subject, v.shared()); err != nil {
		logger.Warn("Failed to write shared cache", zap.String("connectionID", conn.ID), zap.Error(err))
	}
}

// store installs v unless the connection was invalidated since gen was read
// or no longer exists. The read lock is held until the refresh job is
// scheduled, so a concurrent Purge either sees the entry or makes store drop it.
func (m *Manager) store(conn *model.Connection, subject string, v *Value, gen uint64) bool {
	cs := m.state(conn.ID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.gen != gen {
		logger.Debug("Dropping fetch result of an outdated configuration", zap.String("connectionID", conn.ID))
		return false
	}
	if _, err := m.source.Get(conn.ID); err != nil {
		logger.Debug("Dropping fetch result of a removed connection", zap.String("connectionID", conn.ID))
		return false
	}

	key := cacheKey(conn.ID, subject)
	size := approxSize(key, v)

	e := &entry{connectionID: conn.ID, subject: subject}
	e.fill(v)
	e.size.Store(size)
	m.bytes.Add(size)
	if prev, ok, _ := m.entries.PeekOrAdd(key, e); ok {
		m.bytes.Add(-size)
		prev.mu.Lock()
		prev.fill(v)
		prev.mu.Unlock()
		old := prev.size.Swap(size)
		m.bytes.Add(size - old)
	}
	m.enforceBudget()
	m.scheduleRefresh(conn, subject, v)
	metrics.CacheSize(m.entries.Len(), m.bytes.Load())
	return true
}

func (m *Manager) scheduleRefresh(conn *model.Connection, subject string, v *Value) {
	if m.scheduler == nil {
		return
	}
	refresh := conn.RefreshInterval()
	if refresh <= 0 || refresh >= v.ExpiresAt.Sub(v.FetchedAt) {
		return
	}
	delay := v.FetchedAt.Add(refresh).Sub(m.now())
	if delay < 0 {
		delay = 0
	}
	connectionID := conn.ID
	m.scheduler.Schedule(connectionID, subject, delay, func() {
		m.refresh(connectionID, subject)
	})
}

// refresh re-fetches an entry ahead of expiry while readers keep the
// current value.
func (m *Manager) refresh(connectionID, subject string) {
	conn, err := m.source.Get(connectionID)
	if err != nil || !conn.Enabled || !m.cacheable(conn) || m.suspended(connectionID) != nil {
		return
	}
	key := cacheKey(connectionID, subject)
	e, ok := m.entries.Peek(key)
	if !ok {
		return
	}
	e.mu.Lock()
	if e.state != StateValid {
		e.mu.Unlock()
		return
	}
	e.state = StateRefreshing
	e.mu.Unlock()

	res := <-m.flight.DoChan(key, func() (interface{}, error) {
		return m.fetch(context.Background(), conn, subject)
	})
	if res.Err == nil {
		return
	}

	logger.Warn("Background refresh failed",
		zap.String("connectionID", connectionID),
		zap.Error(res.Err))
	e.mu.Lock()
	if e.state == StateRefreshing {
		e.state = StateStale
		e.staleSince = m.now()
	}
	e.mu.Unlock()
}

// recordFailure suspends the connection on a permanent error and reports
// credential problems.
func (m *Manager) recordFailure(ctx context.Context, conn *model.Connection, gen uint64, err error) {
	switch {
	case pip_errors.IsPermanent(err):
		cs := m.state(conn.ID)
		cs.mu.Lock()
		if cs.gen == gen {
			cs.suspended = err
		}
		cs.mu.Unlock()
		logger.Error("Suspending connection after permanent error",
			zap.String("connectionID", conn.ID),
			zap.Error(err))
		if m.notifier != nil {
			m.notifier.NotifyConnectionFailure(ctx, conn, err)
		}
	case pip_errors.IsAuth(err):
		logger.Error("Upstream rejected connection credentials",
			zap.String("connectionID", conn.ID),
			zap.Error(err))
		if m.notifier != nil {
			m.notifier.NotifyConnectionFailure(ctx, conn, err)
		}
	default:
		logger.Warn("Upstream fetch failed",
			zap.String("connectionID", conn.ID),
			zap.Error(err))
	}
}

func fetchOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case pip_errors.IsAuth(err):
		return "auth_error"
	case pip_errors.IsPermanent(err):
		return "permanent_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transient_error"
	}
}

func anySensitive(sensitive map[string]bool) bool {
	for _, s := range sensitive {
		if s {
			return true
		}
	}
	return false
}
