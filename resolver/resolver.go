// resolver/resolver.go

// Package resolver turns a resolution request into one attribute bag by
// fanning out to the cache of every owning connection.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/controlcoreio/control-core-012025-sub001/cache"
	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/metrics"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

const (
	ReasonUnknownAttribute = "unknown attribute"
	ReasonTimeout          = "source timed out"
	ReasonNoValue          = "no value for subject"
)

// Owners routes an attribute to the connection that maps it.
type Owners interface {
	OwnerOf(attribute string) (*model.Connection, model.MappingRule, bool)
}

// Lookup serves attribute bags per connection and subject.
type Lookup interface {
	Get(ctx context.Context, connectionID, subject string) (*cache.Value, error)
}

// Config holds resolver defaults.
type Config struct {
	DefaultDeadline time.Duration
	MaxDeadline     time.Duration
}

// Resolver fans attribute requests out to the owning connections.
type Resolver struct {
	owners Owners
	lookup Lookup
	cfg    Config
}

// New returns a resolver routing attributes through owners and reading
// bags through lookup.
func New(owners Owners, lookup Lookup, cfg Config) *Resolver {
	if cfg.DefaultDeadline <= 0 {
		cfg.DefaultDeadline = 500 * time.Millisecond
	}
	if cfg.MaxDeadline <= 0 {
		cfg.MaxDeadline = 5 * time.Second
	}
	if cfg.DefaultDeadline > cfg.MaxDeadline {
		cfg.DefaultDeadline = cfg.MaxDeadline
	}
	return &Resolver{owners: owners, lookup: lookup, cfg: cfg}
}

type wanted struct {
	attribute string
	rule      model.MappingRule
}

type group struct {
	conn  *model.Connection
	attrs []wanted
}

type result struct {
	connectionID string
	value        *cache.Value
	err          error
}

// Deadline returns the wait bound applied to a request.
func (r *Resolver) Deadline(req model.ResolutionRequest) time.Duration {
	d := req.Deadline()
	if d <= 0 {
		d = r.cfg.DefaultDeadline
	}
	if d > r.cfg.MaxDeadline {
		d = r.cfg.MaxDeadline
	}
	return d
}

// Resolve looks up every requested attribute. When a required attribute is
// unavailable the response carries a *ResolutionError, which is also
// returned as the error, and no values.
func (r *Resolver) Resolve(ctx context.Context, req model.ResolutionRequest) (*model.ResolutionResponse, error) {
	start := time.Now()
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: subject is required", pip_errors.ErrInvalidResolutionRequest)
	}
	if req.DeadlineMS < 0 {
		return nil, fmt.Errorf("%w: deadline_ms must not be negative", pip_errors.ErrInvalidResolutionRequest)
	}

	resp := &model.ResolutionResponse{
		Values:   model.AttributeBag{},
		Warnings: []model.ResolutionWarning{},
	}
	groups, order := r.group(req.Attributes, resp)
	if len(groups) == 0 && len(resp.Warnings) == 0 {
		return nil, fmt.Errorf("%w: at least one attribute is required", pip_errors.ErrInvalidResolutionRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, r.Deadline(req))
	defer cancel()

	results := make(chan result, len(groups))
	for _, id := range order {
		go func(connectionID string) {
			v, err := r.lookup.Get(ctx, connectionID, subject)
			results <- result{connectionID: connectionID, value: v, err: err}
		}(id)
	}

	done := make(map[string]result, len(groups))
wait:
	for len(done) < len(groups) {
		select {
		case res := <-results:
			done[res.connectionID] = res
		case <-ctx.Done():
			break wait
		}
	}

	var failures []pip_errors.AttributeFailure
	for _, id := range order {
		g := groups[id]
		res, ok := done[id]
		if !ok {
			res = result{connectionID: id, err: fmt.Errorf("%w: %s", pip_errors.ErrSourceTimeout, id)}
		}
		failures = append(failures, r.merge(g, res, resp)...)
	}

	sortWarnings(resp.Warnings)
	sort.Strings(resp.SensitiveAttributes)

	if len(failures) > 0 {
		rerr := &pip_errors.ResolutionError{Subject: subject, Failures: failures}
		resp.Values = model.AttributeBag{}
		resp.SensitiveAttributes = nil
		resp.Error = rerr
		metrics.Resolution("error", time.Since(start))
		logger.Warn("Required attributes unresolved",
			zap.String("subject", subject),
			zap.Int("failures", len(failures)))
		return resp, rerr
	}

	outcome := "complete"
	if len(resp.Warnings) > 0 {
		outcome = "partial"
	}
	metrics.Resolution(outcome, time.Since(start))
	logger.Debug("Attributes resolved",
		zap.String("subject", subject),
		zap.Any("values", logger.RedactBag(resp.Values, sensitiveSet(resp.SensitiveAttributes))),
		zap.Int("warnings", len(resp.Warnings)))
	return resp, nil
}

// group dedupes attributes and buckets them by owning connection. Unknown
// attributes become warnings.
func (r *Resolver) group(attributes []string, resp *model.ResolutionResponse) (map[string]*group, []string) {
	groups := make(map[string]*group)
	var order []string
	seen := make(map[string]bool, len(attributes))
	for _, attr := range attributes {
		attr = strings.TrimSpace(attr)
		if attr == "" || seen[attr] {
			continue
		}
		seen[attr] = true

		conn, rule, ok := r.owners.OwnerOf(attr)
		if !ok {
			resp.Warnings = append(resp.Warnings, model.ResolutionWarning{Attribute: attr, Reason: ReasonUnknownAttribute})
			continue
		}
		g, ok := groups[conn.ID]
		if !ok {
			g = &group{conn: conn}
			groups[conn.ID] = g
			order = append(order, conn.ID)
		}
		g.attrs = append(g.attrs, wanted{attribute: attr, rule: rule})
	}
	return groups, order
}

// merge copies one connection's contribution into resp and returns the
// required attributes it could not provide.
func (r *Resolver) merge(g *group, res result, resp *model.ResolutionResponse) []pip_errors.AttributeFailure {
	var failures []pip_errors.AttributeFailure
	fail := func(w wanted, reason string) {
		if w.rule.Required {
			failures = append(failures, pip_errors.AttributeFailure{
				Attribute:    w.attribute,
				ConnectionID: g.conn.ID,
				Reason:       reason,
			})
			return
		}
		resp.Warnings = append(resp.Warnings, model.ResolutionWarning{Attribute: w.attribute, Reason: reason})
	}

	if res.err != nil {
		reason := failureReason(res.err)
		logger.Warn("Connection lookup failed",
			zap.String("connectionID", g.conn.ID),
			zap.String("reason", reason),
			zap.Error(res.err))
		for _, w := range g.attrs {
			fail(w, reason)
		}
		return failures
	}

	issues := make(map[string]string, len(res.value.Issues))
	for _, issue := range res.value.Issues {
		issues[issue.Attribute] = issue.Reason
	}
	for _, w := range g.attrs {
		v, ok := res.value.Bag[w.attribute]
		if !ok {
			reason := ReasonNoValue
			if why, ok := issues[w.attribute]; ok {
				reason = why
			}
			fail(w, reason)
			continue
		}
		resp.Values[w.attribute] = v
		if res.value.Sensitive[w.attribute] || w.rule.Sensitive {
			resp.SensitiveAttributes = append(resp.SensitiveAttributes, w.attribute)
		}
	}
	return failures
}

// failureReason renders an error for callers without leaking upstream
// details.
func failureReason(err error) string {
	var mappingErr *pip_errors.MappingError
	var transformErr *pip_errors.TransformError
	switch {
	case errors.Is(err, pip_errors.ErrSourceTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, pip_errors.ErrConnectionDisabled):
		return "connection disabled"
	case errors.Is(err, pip_errors.ErrConnectionSuspended):
		return "connection suspended"
	case errors.Is(err, pip_errors.ErrConnectionNotFound):
		return "connection not found"
	case pip_errors.IsAuth(err):
		return "source authentication failed"
	case pip_errors.IsPermanent(err):
		return "source misconfigured"
	case pip_errors.IsTransient(err):
		return "source unavailable"
	case errors.As(err, &mappingErr):
		return "mapping failed: " + mappingErr.Reason
	case errors.As(err, &transformErr):
		return "transform failed: " + transformErr.Transform
	default:
		return "source error"
	}
}

func sortWarnings(w []model.ResolutionWarning) {
	sort.SliceStable(w, func(i, j int) bool { return w[i].Attribute < w[j].Attribute })
}

func sensitiveSet(attrs []string) map[string]bool {
	out := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		out[a] = true
	}
	return out
}
