// connector/neo4j.go
package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

// Neo4jConnector reads a subject node from a graph. Node properties are
// merged into the raw fields; scalar columns are copied as-is.
//
// Settings: query (receives $subject), or label + key_property; database.
// Credentials: username, password.
type Neo4jConnector struct {
	cfg      Config
	driver   neo4j.Driver
	query    string
	database string
}

func NewNeo4jConnector(cfg Config) (Connector, error) {
	const op = "connector.NewNeo4jConnector"
	if cfg.Endpoint == "" {
		return nil, cfg.permanent(op, "endpoint is required")
	}
	query := cfg.String("query", "")
	if query == "" {
		query = fmt.Sprintf("MATCH (n:%s {%s: $subject}) RETURN n LIMIT 1",
			cfg.String("label", "User"), cfg.String("key_property", "id"))
	}

	auth := neo4j.NoAuth()
	if user := cfg.Credentials["username"]; user != "" {
		auth = neo4j.BasicAuth(user, cfg.Credentials["password"], "")
	}
	driver, err := neo4j.NewDriver(cfg.Endpoint, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.Int("max_pool_size", 10)
		c.MaxConnectionLifetime = 30 * time.Minute
	})
	if err != nil {
		return nil, cfg.permanent(op, "failed to create Neo4j driver: %v", err)
	}
	return &Neo4jConnector{cfg: cfg, driver: driver, query: query, database: cfg.String("database", "")}, nil
}

func (c *Neo4jConnector) Fetch(ctx context.Context, subject string) (model.RawFields, error) {
	const op = "connector.(Neo4jConnector).Fetch"
	if err := ctx.Err(); err != nil {
		return nil, &pip_errors.TransientNetworkError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
	}
	session := c.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: c.database})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(c.query, map[string]interface{}{"subject": subject})
		if err != nil {
			return nil, err
		}
		if !res.Next() {
			return model.RawFields{}, res.Err()
		}
		return recordFields(res.Record()), nil
	}, neo4j.WithTxTimeout(txTimeout(ctx)))
	if err != nil {
		return nil, c.classify(op, err)
	}
	return result.(model.RawFields), nil
}

func (c *Neo4jConnector) TestConnection(ctx context.Context) (*TestResult, error) {
	const op = "connector.(Neo4jConnector).TestConnection"
	start := time.Now()
	if err := c.driver.VerifyConnectivity(); err != nil {
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

func (c *Neo4jConnector) Close() error {
	return c.driver.Close()
}

func (c *Neo4jConnector) classify(op string, err error) error {
	id := c.cfg.ConnectionID
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		parts := strings.Split(neoErr.Code, ".")
		switch {
		case len(parts) > 2 && parts[2] == "Security":
			return &pip_errors.AuthError{ConnectionID: id, Op: op, Err: err}
		case len(parts) > 1 && parts[1] == "TransientError":
			return &pip_errors.TransientNetworkError{ConnectionID: id, Op: op, Err: err}
		default:
			return &pip_errors.PermanentError{ConnectionID: id, Op: op, Err: err}
		}
	}
	// connectivity failures and transaction timeouts
	return &pip_errors.TransientNetworkError{ConnectionID: id, Op: op, Err: err}
}

func recordFields(record *neo4j.Record) model.RawFields {
	raw := model.RawFields{}
	for i, key := range record.Keys {
		switch v := record.Values[i].(type) {
		case neo4j.Node:
			for k, p := range v.Props {
				raw[k] = p
			}
		case neo4j.Relationship:
			for k, p := range v.Props {
				raw[key+"."+k] = p
			}
		default:
			raw[key] = v
		}
	}
	return raw
}

func txTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
		return time.Millisecond
	}
	return 10 * time.Second
}
