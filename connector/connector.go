// Package connector defines the uniform contract every information source
// implements, the factory registry keyed by (type, provider) and the generic
// adapters shipped with the engine.
package connector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

// AnyType registers a factory for every connection type of a provider.
const AnyType model.ConnectionType = "*"

// Connector fetches raw fields for a subject from one external source.
// Fetch must honour the context deadline and return *errors.AuthError,
// *errors.TransientNetworkError or *errors.PermanentError on failure.
// TestConnection is for configuration tooling only.
type Connector interface {
	Fetch(ctx context.Context, subject string) (model.RawFields, error)
	TestConnection(ctx context.Context) (*TestResult, error)
}

// TestResult is what a successful connection test reports.
type TestResult struct {
	Latency time.Duration
	Fields  []model.DiscoveredField
}

// Config is everything a factory needs to build a connector.
type Config struct {
	ConnectionID string
	Type         model.ConnectionType
	Provider     string
	Endpoint     string
	Settings     map[string]any
	Credentials  model.Credentials
}

// ConfigFromConnection builds the factory input of a stored connection.
func ConfigFromConnection(conn *model.Connection) Config {
	return Config{
		ConnectionID: conn.ID,
		Type:         conn.Type,
		Provider:     conn.Provider,
		Endpoint:     conn.Endpoint,
		Settings:     conn.Configuration,
		Credentials:  conn.Auth,
	}
}

// ConfigFromTestRequest builds the factory input of an unsaved connection.
// An empty endpoint falls back to configuration["endpoint"].
func ConfigFromTestRequest(req model.ConnectionTestRequest) Config {
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = cast.ToString(req.Configuration["endpoint"])
	}
	return Config{
		ConnectionID: "test",
		Type:         req.ConnectionType,
		Provider:     req.Provider,
		Endpoint:     endpoint,
		Settings:     req.Configuration,
		Credentials:  req.Credentials,
	}
}

// String reads a setting as a string, returning def when unset or empty.
func (c Config) String(key, def string) string {
	if v, ok := c.Settings[key]; ok && v != nil {
		if s := cast.ToString(v); s != "" {
			return s
		}
	}
	return def
}

func (c Config) Int(key string, def int) int {
	if v, ok := c.Settings[key]; ok && v != nil {
		if i, err := cast.ToIntE(v); err == nil {
			return i
		}
	}
	return def
}

func (c Config) StringMap(key string) map[string]string {
	if v, ok := c.Settings[key]; ok && v != nil {
		return cast.ToStringMapString(v)
	}
	return nil
}

func (c Config) permanent(op string, format string, args ...any) error {
	return &pip_errors.PermanentError{ConnectionID: c.ConnectionID, Op: op, Err: fmt.Errorf(format, args...)}
}

// Factory builds a connector. Factories must not perform network I/O.
type Factory func(cfg Config) (Connector, error)

type factoryKey struct {
	connType model.ConnectionType
	provider string
}

// Registry maps (type, provider) pairs to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[factoryKey]Factory
}

// NewRegistry returns a registry with no factories.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[factoryKey]Factory)}
}

// Register binds a factory to a (type, provider) pair. Providers are
// matched case-insensitively.
func (r *Registry) Register(connType model.ConnectionType, provider string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[factoryKey{connType: connType, provider: strings.ToLower(provider)}] = factory
}

func (r *Registry) lookup(connType model.ConnectionType, provider string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider = strings.ToLower(provider)
	if f, ok := r.factories[factoryKey{connType: connType, provider: provider}]; ok {
		return f, true
	}
	f, ok := r.factories[factoryKey{connType: AnyType, provider: provider}]
	return f, ok
}

// Supports reports whether a factory exists for the pair.
func (r *Registry) Supports(connType model.ConnectionType, provider string) bool {
	_, ok := r.lookup(connType, provider)
	return ok
}

// Build looks up the factory for cfg, falling back to the AnyType
// registration of the provider.
func (r *Registry) Build(cfg Config) (Connector, error) {
	factory, ok := r.lookup(cfg.Type, cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", pip_errors.ErrConnectorNotRegistered, cfg.Type, cfg.Provider)
	}
	return factory(cfg)
}

// Providers lists registered pairs as "type/provider", sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, fmt.Sprintf("%s/%s", k.connType, k.provider))
	}
	sort.Strings(out)
	return out
}

// RegisterDefaults installs the generic adapters.
func RegisterDefaults(r *Registry) {
	r.Register(AnyType, "rest", NewRESTConnector)
	r.Register(model.ConnectionTypeDatabase, "postgres", NewPostgresConnector)
	r.Register(model.ConnectionTypeHR, "postgres", NewPostgresConnector)
	r.Register(model.ConnectionTypeERP, "postgres", NewPostgresConnector)
	r.Register(model.ConnectionTypeDatabase, "neo4j", NewNeo4jConnector)
	r.Register(model.ConnectionTypeIdentity, "neo4j", NewNeo4jConnector)
	r.Register(model.ConnectionTypeDatabase, "elasticsearch", NewElasticsearchConnector)
	r.Register(model.ConnectionTypeCRM, "elasticsearch", NewElasticsearchConnector)
	r.Register(model.ConnectionTypeDatabase, "redis", NewRedisConnector)
	r.Register(AnyType, "static", NewStaticConnector)
}

// Func adapts plain functions to Connector. A nil TestFn reports success
// with no discovered fields.
type Func struct {
	FetchFn func(ctx context.Context, subject string) (model.RawFields, error)
	TestFn  func(ctx context.Context) (*TestResult, error)
}

func (f Func) Fetch(ctx context.Context, subject string) (model.RawFields, error) {
	return f.FetchFn(ctx, subject)
}

func (f Func) TestConnection(ctx context.Context) (*TestResult, error) {
	if f.TestFn == nil {
		return &TestResult{}, nil
	}
	return f.TestFn(ctx)
}
