// resolver/resolver_test.go
package resolver_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/controlcoreio/control-core-012025-sub001/cache"
	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
	"github.com/controlcoreio/control-core-012025-sub001/resolver"
)

type owner struct {
	conn string
	rule model.MappingRule
}

type owners map[string]owner

func (o owners) OwnerOf(attribute string) (*model.Connection, model.MappingRule, bool) {
	entry, ok := o[attribute]
	if !ok {
		return nil, model.MappingRule{}, false
	}
	return &model.Connection{ID: entry.conn}, entry.rule, true
}

type lookupFunc func(ctx context.Context, connectionID, subject string) (*cache.Value, error)

func (f lookupFunc) Get(ctx context.Context, connectionID, subject string) (*cache.Value, error) {
	return f(ctx, connectionID, subject)
}

func newOwners() owners {
	o := owners{}
	add := func(conn, attribute string, required, sensitive bool) {
		o[attribute] = owner{conn: conn, rule: model.MappingRule{TargetAttribute: attribute, Required: required, Sensitive: sensitive}}
	}
	add("hr", "user.department", true, false)
	add("hr", "user.salary", false, true)
	add("crm", "user.tier", false, false)
	add("crm", "user.region", false, false)
	add("idp", "user.clearance", true, false)
	return o
}

func bags(data map[string]*cache.Value) lookupFunc {
	return func(_ context.Context, connectionID, _ string) (*cache.Value, error) {
		v, ok := data[connectionID]
		if !ok {
			return nil, &pip_errors.TransientNetworkError{ConnectionID: connectionID, Op: "test", Err: errors.New("down")}
		}
		return v, nil
	}
}

func value(bag model.AttributeBag, sensitive ...string) *cache.Value {
	s := map[string]bool{}
	for _, a := range sensitive {
		s[a] = true
	}
	return &cache.Value{Bag: bag, Sensitive: s, State: cache.StateValid}
}

func TestResolveMergesConnections(t *testing.T) {
	calls := atomic.Int32{}
	data := bags(map[string]*cache.Value{
		"hr":  value(model.AttributeBag{"user.department": "eng", "user.salary": 100}, "user.salary"),
		"crm": value(model.AttributeBag{"user.tier": "gold", "user.region": "eu"}),
		"idp": value(model.AttributeBag{"user.clearance": 3.0}),
	})
	r := resolver.New(newOwners(), lookupFunc(func(ctx context.Context, id, subject string) (*cache.Value, error) {
		calls.Add(1)
		assert.Equal(t, "alice", subject)
		return data(ctx, id, subject)
	}), resolver.Config{})

	resp, err := r.Resolve(context.Background(), model.ResolutionRequest{
		Subject:    "alice",
		Attributes: []string{"user.department", "user.salary", "user.tier", "user.region", "user.clearance", "user.tier"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.AttributeBag{
		"user.department": "eng",
		"user.salary":     100,
		"user.tier":       "gold",
		"user.region":     "eu",
		"user.clearance":  3.0,
	}, resp.Values)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, []string{"user.salary"}, resp.SensitiveAttributes)
	assert.Nil(t, resp.Error)
	// one lookup per connection, not per attribute
	assert.EqualValues(t, 3, calls.Load())
}

func TestOptionalFailureBecomesWarning(t *testing.T) {
	r := resolver.New(newOwners(), bags(map[string]*cache.Value{
		"hr": value(model.AttributeBag{"user.department": "eng"}),
	}), resolver.Config{})

	resp, err := r.Resolve(context.Background(), model.ResolutionRequest{
		Subject:    "alice",
		Attributes: []string{"user.department", "user.tier", "user.unknown"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.AttributeBag{"user.department": "eng"}, resp.Values)
	assert.Equal(t, []model.ResolutionWarning{
		{Attribute: "user.tier", Reason: "source unavailable"},
		{Attribute: "user.unknown", Reason: resolver.ReasonUnknownAttribute},
	}, resp.Warnings)
}

func TestDroppedOptionalFieldCarriesIssue(t *testing.T) {
	v := value(model.AttributeBag{"user.department": "eng"})
	v.Issues = []model.FieldIssue{{Attribute: "user.salary", Reason: "validation"}}
	r := resolver.New(newOwners(), bags(map[string]*cache.Value{"hr": v}), resolver.Config{})

	resp, err := r.Resolve(context.Background(), model.ResolutionRequest{
		Subject:    "alice",
		Attributes: []string{"user.department", "user.salary"},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.ResolutionWarning{{Attribute: "user.salary", Reason: "validation"}}, resp.Warnings)
}

func TestRequiredFailureFailsClosed(t *testing.T) {
	r := resolver.New(newOwners(), lookupFunc(func(_ context.Context, id, _ string) (*cache.Value, error) {
		switch id {
		case "hr":
			return nil, &pip_errors.MappingError{ConnectionID: "hr", Attribute: "user.department", Reason: "required check"}
		case "idp":
			return nil, &pip_errors.AuthError{ConnectionID: "idp", Op: "test", Err: errors.New("401")}
		default:
			return value(model.AttributeBag{"user.tier": "gold"}), nil
		}
	}), resolver.Config{})

	resp, err := r.Resolve(context.Background(), model.ResolutionRequest{
		Subject:    "alice",
		Attributes: []string{"user.department", "user.clearance", "user.tier"},
	})
	require.Error(t, err)
	var rerr *pip_errors.ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "alice", rerr.Subject)
	assert.Equal(t, []pip_errors.AttributeFailure{
		{Attribute: "user.department", ConnectionID: "hr", Reason: "mapping failed: required check"},
		{Attribute: "user.clearance", ConnectionID: "idp", Reason: "source authentication failed"},
	}, rerr.Failures)
	require.NotNil(t, resp)
	assert.Empty(t, resp.Values)
	assert.Same(t, rerr, resp.Error)
}

func TestDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := lookupFunc(func(ctx context.Context, id, _ string) (*cache.Value, error) {
		if id == "crm" {
			return value(model.AttributeBag{"user.tier": "gold"}), nil
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})
	r := resolver.New(newOwners(), slow, resolver.Config{DefaultDeadline: 50 * time.Millisecond, MaxDeadline: time.Second})

	t.Run("OptionalTimesOut", func(t *testing.T) {
		start := time.Now()
		resp, err := r.Resolve(context.Background(), model.ResolutionRequest{
			Subject:    "alice",
			Attributes: []string{"user.tier", "user.salary"},
		})
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
		assert.Equal(t, model.AttributeBag{"user.tier": "gold"}, resp.Values)
		assert.Equal(t, []model.ResolutionWarning{{Attribute: "user.salary", Reason: resolver.ReasonTimeout}}, resp.Warnings)
	})

	t.Run("RequiredTimesOut", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), model.ResolutionRequest{
			Subject:    "alice",
			Attributes: []string{"user.clearance"},
			DeadlineMS: 20,
		})
		var rerr *pip_errors.ResolutionError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, resolver.ReasonTimeout, rerr.Failures[0].Reason)
	})
}

func TestDeadlineBounds(t *testing.T) {
	r := resolver.New(newOwners(), bags(nil), resolver.Config{DefaultDeadline: 500 * time.Millisecond, MaxDeadline: 5 * time.Second})
	assert.Equal(t, 500*time.Millisecond, r.Deadline(model.ResolutionRequest{}))
	assert.Equal(t, 200*time.Millisecond, r.Deadline(model.ResolutionRequest{DeadlineMS: 200}))
	assert.Equal(t, 5*time.Second, r.Deadline(model.ResolutionRequest{DeadlineMS: 60000}))
}

func TestInvalidRequest(t *testing.T) {
	r := resolver.New(newOwners(), bags(nil), resolver.Config{})
	for name, req := range map[string]model.ResolutionRequest{
		"NoSubject":        {Attributes: []string{"user.tier"}},
		"NoAttributes":     {Subject: "alice"},
		"BlankAttributes":  {Subject: "alice", Attributes: []string{" ", ""}},
		"NegativeDeadline": {Subject: "alice", Attributes: []string{"user.tier"}, DeadlineMS: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), req)
			assert.ErrorIs(t, err, pip_errors.ErrInvalidResolutionRequest)
		})
	}
}
