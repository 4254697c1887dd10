// connector/rest.go
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/mitchellh/pointerstructure"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

const subjectPlaceholder = "{subject}"

// RESTConnector reads a JSON document per subject from an HTTP API.
//
// Settings: method, headers, result_path, subject_param, test_subject, test_url.
// Credentials: type (bearer|basic|api_key), token, username, password,
// header, api_key.
type RESTConnector struct {
	cfg          Config
	client       *http.Client
	method       string
	headers      map[string]string
	resultPath   string
	subjectParam string
	testSubject  string
	testURL      string
}

func NewRESTConnector(cfg Config) (Connector, error) {
	const op = "connector.NewRESTConnector"
	u, err := url.Parse(strings.ReplaceAll(cfg.Endpoint, subjectPlaceholder, "x"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, cfg.permanent(op, "invalid endpoint %q", cfg.Endpoint)
	}
	return &RESTConnector{
		cfg:          cfg,
		client:       cleanhttp.DefaultPooledClient(),
		method:       strings.ToUpper(cfg.String("method", http.MethodGet)),
		headers:      cfg.StringMap("headers"),
		resultPath:   cfg.String("result_path", ""),
		subjectParam: cfg.String("subject_param", "subject"),
		testSubject:  cfg.String("test_subject", ""),
		testURL:      cfg.String("test_url", ""),
	}, nil
}

func (c *RESTConnector) subjectURL(subject string) string {
	if strings.Contains(c.cfg.Endpoint, subjectPlaceholder) {
		return strings.ReplaceAll(c.cfg.Endpoint, subjectPlaceholder, url.PathEscape(subject))
	}
	u, _ := url.Parse(c.cfg.Endpoint)
	q := u.Query()
	q.Set(c.subjectParam, subject)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *RESTConnector) Fetch(ctx context.Context, subject string) (model.RawFields, error) {
	const op = "connector.(RESTConnector).Fetch"
	status, body, err := c.do(ctx, op, c.method, c.subjectURL(subject))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return model.RawFields{}, nil
	}
	if err := c.classifyStatus(op, status, body); err != nil {
		return nil, err
	}
	return c.decode(op, body)
}

func (c *RESTConnector) TestConnection(ctx context.Context) (*TestResult, error) {
	const op = "connector.(RESTConnector).TestConnection"
	start := time.Now()
	if c.testSubject != "" {
		raw, err := c.Fetch(ctx, c.testSubject)
		if err != nil {
			return nil, err
		}
		return &TestResult{Latency: time.Since(start), Fields: DiscoverFields(raw)}, nil
	}

	target := c.testURL
	if target == "" {
		u, _ := url.Parse(strings.ReplaceAll(c.cfg.Endpoint, subjectPlaceholder, ""))
		target = (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
	}
	status, body, err := c.do(ctx, op, http.MethodGet, target)
	if err != nil {
		return nil, err
	}
	// any non-auth, non-server answer proves the endpoint is reachable
	if status == http.StatusUnauthorized || status == http.StatusForbidden || status >= 500 {
		return nil, c.classifyStatus(op, status, body)
	}
	return &TestResult{Latency: time.Since(start)}, nil
}

func (c *RESTConnector) do(ctx context.Context, op, method, target string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, nil, &pip_errors.PermanentError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	applyAuth(req, c.cfg.Credentials)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, &pip_errors.TransientNetworkError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, &pip_errors.TransientNetworkError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
	}
	return resp.StatusCode, body, nil
}

func (c *RESTConnector) classifyStatus(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	err := fmt.Errorf("unexpected status %d: %s", status, truncate(body, 200))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &pip_errors.AuthError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return &pip_errors.TransientNetworkError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
	default:
		return &pip_errors.PermanentError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
	}
}

func (c *RESTConnector) decode(op string, body []byte) (model.RawFields, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &pip_errors.PermanentError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: fmt.Errorf("response is not JSON: %w", err)}
	}
	if c.resultPath != "" {
		v, err := pointerstructure.Get(doc, DottedToPointer(c.resultPath))
		if err != nil {
			if errors.Is(err, pointerstructure.ErrNotFound) {
				return model.RawFields{}, nil
			}
			return nil, &pip_errors.PermanentError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: err}
		}
		doc = v
	}
	if list, ok := doc.([]any); ok {
		if len(list) == 0 {
			return model.RawFields{}, nil
		}
		doc = list[0]
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &pip_errors.PermanentError{ConnectionID: c.cfg.ConnectionID, Op: op, Err: fmt.Errorf("response is not a JSON object")}
	}
	return model.RawFields(obj), nil
}

func applyAuth(req *http.Request, creds model.Credentials) {
	switch strings.ToLower(creds["type"]) {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+creds["token"])
	case "basic":
		req.SetBasicAuth(creds["username"], creds["password"])
	case "api_key", "apikey":
		header := creds["header"]
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, creds["api_key"])
	}
}

// DottedToPointer converts "a.b.0" into the JSON pointer "/a/b/0".
func DottedToPointer(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + strings.ReplaceAll(path, ".", "/")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
