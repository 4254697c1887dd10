// cache/cache.go

// Package cache keeps mapped attribute bags per (connection, subject) with
// TTL expiry, refresh-ahead, single-flight fetches and LRU eviction.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/controlcoreio/control-core-012025-sub001/connector"
	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/mapper"
	"github.com/controlcoreio/control-core-012025-sub001/metrics"
	"github.com/controlcoreio/control-core-012025-sub001/model"
	"github.com/controlcoreio/control-core-012025-sub001/scheduler"
)

// ConnectionSource is the read side of the connection registry.
type ConnectionSource interface {
	Get(id string) (*model.Connection, error)
	Mappings(connectionID string) ([]model.MappingRule, error)
}

// ConnectorSource hands out live connectors.
type ConnectorSource interface {
	Get(conn *model.Connection) (connector.Connector, error)
}

// Notifier is told about failures an administrator has to act on. It must
// not block.
type Notifier interface {
	NotifyConnectionFailure(ctx context.Context, conn *model.Connection, err error)
}

// SharedStore is an optional second tier shared between replicas. Load
// returns nil, nil on a miss.
type SharedStore interface {
	Load(ctx context.Context, connectionID, subject string) (*model.CachedBag, error)
	Save(ctx context.Context, connectionID, subject string, bag *model.CachedBag) error
	Delete(ctx context.Context, connectionID, subject string) error
	DeleteConnection(ctx context.Context, connectionID string) error
}

// Config bounds the cache. MaxBytes is an approximate budget over the
// serialized size of stored bags; zero disables it.
type Config struct {
	MaxEntries      int
	MaxBytes        int64
	GracePeriod     time.Duration
	FetchTimeout    time.Duration
	SensitiveMaxTTL time.Duration
}

// DefaultConfig returns the limits used when configuration leaves them unset.
func DefaultConfig() Config {
	return Config{
		MaxEntries:      100000,
		MaxBytes:        256 << 20,
		GracePeriod:     30 * time.Second,
		FetchTimeout:    10 * time.Second,
		SensitiveMaxTTL: 5 * time.Minute,
	}
}

// connState carries per-connection bookkeeping. gen is bumped by every
// invalidation so results fetched under an older configuration are dropped.
type connState struct {
	mu        sync.RWMutex
	gen       uint64
	suspended error
}

// Manager is the attribute cache. It implements registry.Listener so
// configuration changes invalidate, disable or purge entries.
type Manager struct {
	cfg        Config
	source     ConnectionSource
	connectors ConnectorSource
	mapper     *mapper.Mapper
	scheduler  *scheduler.Scheduler
	notifier   Notifier
	shared     SharedStore
	now        func() time.Time

	entries *lru.Cache[string, *entry]
	flight  singleflight.Group

	connsMu sync.Mutex
	conns   map[string]*connState

	bytes       atomic.Int64
	hits        atomic.Uint64
	misses      atomic.Uint64
	staleServed atomic.Uint64
	upstream    atomic.Uint64
	evictions   atomic.Uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithNotifier reports permanent and credential failures to n.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithSharedStore adds a second cache tier shared between replicas.
func WithSharedStore(s SharedStore) Option {
	return func(m *Manager) { m.shared = s }
}

// NewManager wires a cache over the connection registry, the connector pool
// and the mapper. sched may be nil, which turns refresh-ahead off.
func NewManager(cfg Config, source ConnectionSource, connectors ConnectorSource, mp *mapper.Mapper, sched *scheduler.Scheduler, opts ...Option) (*Manager, error) {
	defaults := DefaultConfig()
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaults.MaxEntries
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaults.FetchTimeout
	}
	if cfg.GracePeriod < 0 {
		cfg.GracePeriod = 0
	}

	m := &Manager{
		cfg:        cfg,
		source:     source,
		connectors: connectors,
		mapper:     mp,
		scheduler:  sched,
		now:        time.Now,
		conns:      make(map[string]*connState),
	}
	for _, opt := range opts {
		opt(m)
	}

	entries, err := lru.NewWithEvict[string, *entry](cfg.MaxEntries, m.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache index: %w", err)
	}
	m.entries = entries
	return m, nil
}

// Get returns the attribute bag of subject from a connection, fetching it
// when there is no servable entry. Waiting ends when ctx is done; the fetch
// itself carries on and populates the cache.
func (m *Manager) Get(ctx context.Context, connectionID, subject string) (*Value, error) {
	conn, err := m.source.Get(connectionID)
	if err != nil {
		return nil, err
	}
	key := cacheKey(connectionID, subject)

	if !conn.Enabled {
		if v := m.serveTerminal(conn, key); v != nil {
			return v, nil
		}
		return nil, fmt.Errorf("%w: %s", pip_errors.ErrConnectionDisabled, connectionID)
	}

	if !m.cacheable(conn) {
		metrics.CacheLookup(conn.ID, metrics.ResultBypass)
		return m.load(ctx, conn, subject)
	}

	if v := m.serveCached(conn, key, subject); v != nil {
		return v, nil
	}
	m.misses.Add(1)
	metrics.CacheLookup(conn.ID, metrics.ResultMiss)
	return m.load(ctx, conn, subject)
}

func (m *Manager) cacheable(conn *model.Connection) bool {
	return conn.CacheEnabled && conn.CacheTTLSeconds > 0
}

func (m *Manager) serveCached(conn *model.Connection, key, subject string) *Value {
	e, ok := m.entries.Get(key)
	if !ok {
		return nil
	}
	now := m.now()

	e.mu.Lock()
	switch {
	case (e.state == StateValid || e.state == StateRefreshing) && now.Before(e.val.ExpiresAt):
		v := e.snapshot()
		e.mu.Unlock()
		m.hits.Add(1)
		metrics.CacheLookup(conn.ID, metrics.ResultHit)
		return v

	case e.state == StateStale && now.Sub(e.staleSince) < m.cfg.GracePeriod:
		v := e.snapshot()
		e.mu.Unlock()
		m.staleServed.Add(1)
		metrics.CacheLookup(conn.ID, metrics.ResultStale)
		m.refetch(conn, subject)
		return v
	}
	e.state = StateExpired
	e.mu.Unlock()

	m.removeEntry(key, e)
	return nil
}

// fresh returns a snapshot of an unexpired valid entry without touching
// counters or recency.
func (m *Manager) fresh(key string) *Value {
	e, ok := m.entries.Peek(key)
	if !ok {
		return nil
	}
	now := m.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if (e.state == StateValid || e.state == StateRefreshing) && now.Before(e.val.ExpiresAt) {
		return e.snapshot()
	}
	return nil
}

// removeEntry drops key only while it still maps to e, so a reader holding
// an expired entry cannot remove one a concurrent fetch just installed.
func (m *Manager) removeEntry(key string, e *entry) {
	if cur, ok := m.entries.Peek(key); ok && cur == e {
		m.entries.Remove(key)
	}
}

// serveTerminal serves entries of a disabled connection until they expire.
func (m *Manager) serveTerminal(conn *model.Connection, key string) *Value {
	e, ok := m.entries.Get(key)
	if !ok {
		return nil
	}
	now := m.now()

	e.mu.Lock()
	servable := e.terminal &&
		((e.state == StateValid && now.Before(e.val.ExpiresAt)) ||
			(e.state == StateStale && now.Sub(e.staleSince) < m.cfg.GracePeriod))
	if servable {
		v := e.snapshot()
		e.mu.Unlock()
		m.hits.Add(1)
		metrics.CacheLookup(conn.ID, metrics.ResultTerminal)
		return v
	}
	e.state = StateExpired
	e.mu.Unlock()

	m.removeEntry(key, e)
	return nil
}

func (m *Manager) load(ctx context.Context, conn *model.Connection, subject string) (*Value, error) {
	if err := m.suspended(conn.ID); err != nil {
		return nil, err
	}
	detached := context.WithoutCancel(ctx)
	key := cacheKey(conn.ID, subject)
	ch := m.flight.DoChan(key, func() (interface{}, error) {
		// a flight that finished after our miss may have filled the key
		if m.cacheable(conn) {
			if v := m.fresh(key); v != nil {
				return v, nil
			}
		}
		return m.fetch(detached, conn, subject)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Value).clone(), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: connection %s: %v", pip_errors.ErrSourceTimeout, conn.ID, ctx.Err())
	}
}

// refetch starts a background fetch for a stale entry. Concurrent callers
// share it through the single-flight group.
func (m *Manager) refetch(conn *model.Connection, subject string) {
	if m.suspended(conn.ID) != nil {
		return
	}
	m.flight.DoChan(cacheKey(conn.ID, subject), func() (interface{}, error) {
		return m.fetch(context.Background(), conn, subject)
	})
}

func (m *Manager) state(connectionID string) *connState {
	m.connsMu.Lock()
	defer m.connsMu.Unlock()
	cs, ok := m.conns[connectionID]
	if !ok {
		cs = &connState{}
		m.conns[connectionID] = cs
	}
	return cs
}

func (m *Manager) generation(connectionID string) uint64 {
	cs := m.state(connectionID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.gen
}

func (m *Manager) suspended(connectionID string) error {
	cs := m.state(connectionID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.suspended == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", pip_errors.ErrConnectionSuspended, connectionID, cs.suspended)
}

// Suspended lists connections whose automatic fetching stopped after a
// permanent error, with that error.
func (m *Manager) Suspended() map[string]string {
	m.connsMu.Lock()
	defer m.connsMu.Unlock()
	out := make(map[string]string)
	for id, cs := range m.conns {
		cs.mu.RLock()
		if cs.suspended != nil {
			out[id] = cs.suspended.Error()
		}
		cs.mu.RUnlock()
	}
	return out
}

// entriesOf lists the keys held for a connection.
func (m *Manager) entriesOf(connectionID string) []string {
	prefix := connectionID + "\x00"
	var keys []string
	for _, key := range m.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (m *Manager) onEvict(key string, e *entry) {
	m.bytes.Add(-e.size.Load())
	m.evictions.Add(1)
	metrics.CacheEvicted()
	if m.scheduler != nil {
		m.scheduler.Cancel(e.connectionID, e.subject)
	}
}

func (m *Manager) enforceBudget() {
	if m.cfg.MaxBytes <= 0 {
		return
	}
	for m.bytes.Load() > m.cfg.MaxBytes && m.entries.Len() > 1 {
		key, _, ok := m.entries.RemoveOldest()
		if !ok {
			return
		}
		logger.Debug("Evicted cache entry under memory pressure", zap.String("key", strings.ReplaceAll(key, "\x00", "/")))
	}
}

// Stats reports counters and sizes for the admin surface.
func (m *Manager) Stats() model.CacheStats {
	hits, misses := m.hits.Load(), m.misses.Load()
	stats := model.CacheStats{
		Entries:        m.entries.Len(),
		Bytes:          m.bytes.Load(),
		Hits:           hits,
		Misses:         misses,
		StaleServed:    m.staleServed.Load(),
		UpstreamFetch:  m.upstream.Load(),
		Evictions:      m.evictions.Load(),
		SuspendedConns: len(m.Suspended()),
	}
	if m.scheduler != nil {
		stats.RefreshJobs = m.scheduler.Len()
	}
	if total := hits + misses; total > 0 {
		stats.HitRatio = float64(hits) / float64(total)
	}
	return stats
}
