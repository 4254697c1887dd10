// connector/static.go
package connector

import (
	"context"

	"github.com/spf13/cast"

	"github.com/controlcoreio/control-core-012025-sub001/model"
)

// StaticConnector serves records embedded in the connection configuration
// under "records", keyed by subject. Used for fixtures and local development.
type StaticConnector struct {
	records map[string]map[string]any
}

func NewStaticConnector(cfg Config) (Connector, error) {
	const op = "connector.NewStaticConnector"
	raw, ok := cfg.Settings["records"]
	if !ok {
		return &StaticConnector{records: map[string]map[string]any{}}, nil
	}
	records, err := cast.ToStringMapE(raw)
	if err != nil {
		return nil, cfg.permanent(op, "configuration.records must be an object: %v", err)
	}
	out := make(map[string]map[string]any, len(records))
	for subject, rec := range records {
		fields, err := cast.ToStringMapE(rec)
		if err != nil {
			return nil, cfg.permanent(op, "record %q must be an object: %v", subject, err)
		}
		out[subject] = fields
	}
	return &StaticConnector{records: out}, nil
}

func (c *StaticConnector) Fetch(ctx context.Context, subject string) (model.RawFields, error) {
	rec, ok := c.records[subject]
	if !ok {
		return model.RawFields{}, nil
	}
	raw := make(model.RawFields, len(rec))
	for k, v := range rec {
		raw[k] = v
	}
	return raw, nil
}

func (c *StaticConnector) TestConnection(ctx context.Context) (*TestResult, error) {
	for _, rec := range c.records {
		return &TestResult{Fields: DiscoverFields(rec)}, nil
	}
	return &TestResult{}, nil
}
