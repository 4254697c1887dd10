// connector/elasticsearch.go
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

// ElasticsearchConnector looks a subject up with a term query and returns
// the first hit's _source.
//
// Settings: index (required), subject_field (default "id").
// Credentials: username, password or api_key.
type ElasticsearchConnector struct {
	cfg          Config
	client       *elasticsearch.Client
	index        string
	subjectField string
}

func NewElasticsearchConnector(cfg Config) (Connector, error) {
	const op = "connector.NewElasticsearchConnector"
	index := cfg.String("index", "")
	if index == "" {
		return nil, cfg.permanent(op, "configuration.index is required")
	}
	if cfg.Endpoint == "" {
		return nil, cfg.permanent(op, "endpoint is required")
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  []string{cfg.Endpoint},
		Username:   cfg.Credentials["username"],
		Password:   cfg.Credentials["password"],
		APIKey:     cfg.Credentials["api_key"],
		MaxRetries: 1,
	})
	if err != nil {
		return nil, cfg.permanent(op, "failed to create client: %v", err)
	}
	return &ElasticsearchConnector{
		cfg:          cfg,
		client:       client,
		index:        index,
		subjectField: cfg.String("subject_field", "id"),
	}, nil
}

func (c *ElasticsearchConnector) Fetch(ctx context.Context, subject string) (model.RawFields, error) {
	const op = "connector.(ElasticsearchConnector).Fetch"
	query := map[string]interface{}{
		"size": 1,
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				c.subjectField: subject,
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, &pip_errors.PermanentError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
	}

	res, err := c.client.Search(
		c.client.Search.WithContext(ctx),
		c.client.Search.WithIndex(c.index),
		c.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, &pip_errors.TransientNetworkError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
	}
	defer res.Body.Close()
	if err := c.classify(op, res); err != nil {
		return nil, err
	}

	var body struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, &pip_errors.PermanentError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: fmt.Errorf("failed to decode search response: %w", err)}
	}
	if len(body.Hits.Hits) == 0 {
		return model.RawFields{}, nil
	}
	return model.RawFields(body.Hits.Hits[0].Source), nil
}

func (c *ElasticsearchConnector) TestConnection(ctx context.Context) (*TestResult, error) {
	const op = "connector.(ElasticsearchConnector).TestConnection"
	start := time.Now()
	res, err := c.client.Info(c.client.Info.WithContext(ctx))
	if err != nil {
		return nil, &pip_errors.TransientNetworkError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
	}
	res.Body.Close()
	if err := c.classify(op, res); err != nil {
		return nil, err
	}
	result := &TestResult{Latency: time.Since(start)}

	mapping, err := c.client.Indices.GetMapping(
		c.client.Indices.GetMapping.WithContext(ctx),
		c.client.Indices.GetMapping.WithIndex(c.index),
	)
	if err != nil {
		return nil, &pip_errors.TransientNetworkError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
	}
	defer mapping.Body.Close()
	if err := c.classify(op, mapping); err != nil {
		return nil, err
	}
	var indices map[string]struct {
		Mappings struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(mapping.Body).Decode(&indices); err != nil {
		return nil, &pip_errors.PermanentError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
	}
	for _, idx := range indices {
		result.Fields = append(result.Fields, mappingFields("", idx.Mappings.Properties)...)
	}
	return result, nil
}

func (c *ElasticsearchConnector) classify(op string, res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	err := fmt.Errorf("elasticsearch returned %s: %s", res.Status(), detail)
	id := c.cfg.ConnectionID
	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return &pip_errors.AuthError{ConnectionID: id, Op: op, Err: err}
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
		return &pip_errors.TransientNetworkError{ConnectionID: id, Op: op, Err: err}
	default:
		return &pip_errors.PermanentError{ConnectionID: id, Op: op, Err: err}
	}
}

func mappingFields(prefix string, props map[string]interface{}) []model.DiscoveredField {
	var out []model.DiscoveredField
	for name, raw := range props {
		full := name
		if prefix != "" {
			full = prefix + "." + name
		}
		def, _ := raw.(map[string]interface{})
		if nested, ok := def["properties"].(map[string]interface{}); ok {
			out = append(out, mappingFields(full, nested)...)
			continue
		}
		esType, _ := def["type"].(string)
		out = append(out, model.DiscoveredField{
			Name:        full,
			Type:        string(esDataType(esType)),
			Description: esType,
			Sensitivity: sensitivityOf(full),
		})
	}
	return out
}

func esDataType(esType string) model.DataType {
	switch esType {
	case "boolean":
		return model.DataTypeBoolean
	case "long", "integer", "short", "byte", "double", "float", "half_float", "scaled_float":
		return model.DataTypeNumber
	case "date", "date_nanos":
		return model.DataTypeDatetime
	case "object", "nested", "flattened":
		return model.DataTypeObject
	default:
		return model.DataTypeString
	}
}
