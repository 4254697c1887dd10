// connector/redis.go
package connector

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

// RedisConnector reads a hash per subject.
//
// Settings: key_template (default "{subject}"), db.
// Credentials: username, password.
type RedisConnector struct {
	cfg         Config
	client      *redis.Client
	keyTemplate string
}

func NewRedisConnector(cfg Config) (Connector, error) {
	const op = "connector.NewRedisConnector"
	if cfg.Endpoint == "" {
		return nil, cfg.permanent(op, "endpoint is required")
	}
	var opts *redis.Options
	if strings.HasPrefix(cfg.Endpoint, "redis://") || strings.HasPrefix(cfg.Endpoint, "rediss://") {
		parsed, err := redis.ParseURL(cfg.Endpoint)
		if err != nil {
			return nil, cfg.permanent(op, "invalid endpoint: %v", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.Endpoint, DB: cfg.Int("db", 0)}
	}
	if user := cfg.Credentials["username"]; user != "" {
		opts.Username = user
	}
	if pw := cfg.Credentials["password"]; pw != "" {
		opts.Password = pw
	}
	opts.MaxRetries = -1
	return &RedisConnector{
		cfg:         cfg,
		client:      redis.NewClient(opts),
		keyTemplate: cfg.String("key_template", subjectPlaceholder),
	}, nil
}

func (c *RedisConnector) key(subject string) string {
	return strings.ReplaceAll(c.keyTemplate, subjectPlaceholder, subject)
}

func (c *RedisConnector) Fetch(ctx context.Context, subject string) (model.RawFields, error) {
	const op = "connector.(RedisConnector).Fetch"
	values, err := c.client.HGetAll(ctx, c.key(subject)).Result()
	if err != nil {
		return nil, c.classify(op, err)
	}
	return fieldsFromStrings(values), nil
}

func (c *RedisConnector) TestConnection(ctx context.Context) (*TestResult, error) {
	const op = "connector.(RedisConnector).TestConnection"
	start := time.Now()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return nil, c.classify(op, err)
	}
	result := &TestResult{Latency: time.Since(start)}
	if subject := c.cfg.String("test_subject", ""); subject != "" {
		raw, err := c.Fetch(ctx, subject)
		if err != nil {
			return nil, err
		}
		result.Fields = DiscoverFields(raw)
	}
	return result, nil
}

func (c *RedisConnector) Close() error {
	return c.client.Close()
}

func (c *RedisConnector) classify(op string, err error) error {
	id := c.cfg.ConnectionID
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "NOAUTH"), strings.HasPrefix(msg, "WRONGPASS"), strings.Contains(msg, "invalid password"):
		return &pip_errors.AuthError{ConnectionID: id, Op: op, Err: err}
	case strings.HasPrefix(msg, "WRONGTYPE"):
		return &pip_errors.PermanentError{ConnectionID: id, Op: op, Err: err}
	default:
		return &pip_errors.TransientNetworkError{ConnectionID: id, Op: op, Err: err}
	}
}
