// audit/repository.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

const defaultQuerySize = 100

type Repository interface {
	LogAction(ctx context.Context, log AuditLog) error
	QueryLogs(ctx context.Context, q Query) ([]AuditLog, error)
}

type ElasticsearchRepository struct {
	esClient *elasticsearch.Client
	index    string
}

// NewElasticsearchRepository creates a repository writing to index on the
// cluster at esURL.
func NewElasticsearchRepository(esURL, index string) (*ElasticsearchRepository, error) {
	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  []string{esURL},
		MaxRetries: 2,
	})
	if err != nil {
		return nil, err
	}
	if index == "" {
		index = "pip-audit"
	}
	return &ElasticsearchRepository{esClient: esClient, index: index}, nil
}

func (r *ElasticsearchRepository) LogAction(ctx context.Context, log AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(log)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      r.index,
		DocumentID: log.ID,
		Body:       bytes.NewReader(data),
	}
	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing audit log: %s", res.String())
	}
	return nil
}

func (r *ElasticsearchRepository) QueryLogs(ctx context.Context, q Query) ([]AuditLog, error) {
	body, err := json.Marshal(searchBody(q))
	if err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(r.index),
		r.esClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching audit logs: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source AuditLog `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	logs := make([]AuditLog, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		logs = append(logs, hit.Source)
	}
	return logs, nil
}

func searchBody(q Query) map[string]interface{} {
	must := []interface{}{}
	if !q.From.IsZero() || !q.To.IsZero() {
		window := map[string]interface{}{}
		if !q.From.IsZero() {
			window["gte"] = q.From.Format(time.RFC3339)
		}
		if !q.To.IsZero() {
			window["lte"] = q.To.Format(time.RFC3339)
		}
		must = append(must, map[string]interface{}{"range": map[string]interface{}{"timestamp": window}})
	}
	for field, value := range map[string]string{
		"user_id":     q.UserID,
		"action":      q.Action,
		"resource_id": q.ResourceID,
	} {
		if strings.TrimSpace(value) != "" {
			must = append(must, map[string]interface{}{"term": map[string]interface{}{field: value}})
		}
	}
	size := q.Size
	if size <= 0 {
		size = defaultQuerySize
	}
	return map[string]interface{}{
		"size": size,
		"sort": []interface{}{map[string]interface{}{"timestamp": "desc"}},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
	}
}

// DiscardRepository drops every log. It backs the service when auditing is
// disabled.
type DiscardRepository struct{}

func (DiscardRepository) LogAction(context.Context, AuditLog) error { return nil }

func (DiscardRepository) QueryLogs(context.Context, Query) ([]AuditLog, error) {
	return []AuditLog{}, nil
}
