// connector/postgres.go
package connector

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

const columnDiscoveryQuery = `
	SELECT column_name, data_type, is_nullable
	FROM information_schema.columns
	WHERE table_name = $1
	ORDER BY ordinal_position`

// SQLConnector runs a single-row query per subject. The query receives the
// subject as $1; the first row's columns become the raw fields.
//
// Settings: query (required), table (enables column discovery).
// Credentials: username, password (merged into the endpoint URL).
type SQLConnector struct {
	cfg   Config
	db    *sql.DB
	query string
	table string
}

func NewPostgresConnector(cfg Config) (Connector, error) {
	const op = "connector.NewPostgresConnector"
	if cfg.String("query", "") == "" {
		return nil, cfg.permanent(op, "configuration.query is required")
	}
	dsn, err := postgresDSN(cfg)
	if err != nil {
		return nil, cfg.permanent(op, "invalid endpoint: %v", err)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, cfg.permanent(op, "failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Int("max_open_conns", 10))
	db.SetConnMaxIdleTime(5 * time.Minute)
	return newSQLConnector(cfg, db), nil
}

func newSQLConnector(cfg Config, db *sql.DB) *SQLConnector {
	return &SQLConnector{
		cfg:   cfg,
		db:    db,
		query: cfg.String("query", ""),
		table: cfg.String("table", ""),
	}
}

func postgresDSN(cfg Config) (string, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", errors.New("endpoint must be a postgres:// URL")
	}
	if user := cfg.Credentials["username"]; user != "" {
		u.User = url.UserPassword(user, cfg.Credentials["password"])
	}
	return u.String(), nil
}

func (c *SQLConnector) Fetch(ctx context.Context, subject string) (model.RawFields, error) {
	const op = "connector.(SQLConnector).Fetch"
	rows, err := c.db.QueryContext(ctx, c.query, subject)
	if err != nil {
		return nil, c.classify(op, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, c.classify(op, err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, c.classify(op, err)
		}
		return model.RawFields{}, nil
	}

	values := make([]any, len(columns))
	scan := make([]any, len(columns))
	for i := range values {
		scan[i] = &values[i]
	}
	if err := rows.Scan(scan...); err != nil {
		return nil, c.classify(op, err)
	}

	raw := make(model.RawFields, len(columns))
	for i, col := range columns {
		if b, ok := values[i].([]byte); ok {
			raw[col] = string(b)
			continue
		}
		raw[col] = values[i]
	}
	return raw, nil
}

func (c *SQLConnector) TestConnection(ctx context.Context) (*TestResult, error) {
	const op = "connector.(SQLConnector).TestConnection"
	start := time.Now()
	if err := c.db.PingContext(ctx); err != nil {
		return nil, c.classify(op, err)
	}
	result := &TestResult{Latency: time.Since(start)}
	if c.table == "" {
		return result, nil
	}

	rows, err := c.db.QueryContext(ctx, columnDiscoveryQuery, c.table)
	if err != nil {
		return nil, c.classify(op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, c.classify(op, err)
		}
		required := nullable == "NO"
		result.Fields = append(result.Fields, model.DiscoveredField{
			Name:        name,
			Type:        string(sqlDataType(dataType)),
			Description: dataType,
			Required:    &required,
			Sensitivity: sensitivityOf(name),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, c.classify(op, err)
	}
	return result, nil
}

func (c *SQLConnector) Close() error {
	return c.db.Close()
}

func (c *SQLConnector) classify(op string, err error) error {
	id := c.cfg.ConnectionID
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "28":
			return &pip_errors.AuthError{ConnectionID: id, Op: op, Err: err}
		case "08", "53", "57":
			return &pip_errors.TransientNetworkError{ConnectionID: id, Op: op, Err: err}
		default:
			return &pip_errors.PermanentError{ConnectionID: id, Op: op, Err: err}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &pip_errors.TransientNetworkError{ConnectionID: id, Op: op, Err: err}
	}
	if strings.Contains(err.Error(), "connection refused") {
		return &pip_errors.TransientNetworkError{ConnectionID: id, Op: op, Err: err}
	}
	return &pip_errors.PermanentError{ConnectionID: id, Op: op, Err: err}
}

func sqlDataType(dataType string) model.DataType {
	switch {
	case dataType == "boolean":
		return model.DataTypeBoolean
	case strings.Contains(dataType, "int"), dataType == "numeric", dataType == "real",
		dataType == "double precision", dataType == "decimal":
		return model.DataTypeNumber
	case strings.HasPrefix(dataType, "timestamp"), dataType == "date":
		return model.DataTypeDatetime
	case dataType == "ARRAY":
		return model.DataTypeArray
	case dataType == "json", dataType == "jsonb":
		return model.DataTypeObject
	default:
		return model.DataTypeString
	}
}
