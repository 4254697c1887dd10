// cache/entry.go
package cache

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/controlcoreio/control-core-012025-sub001/model"
)

type State int

const (
	StateEmpty State = iota
	StateFetching
	StateValid
	StateRefreshing
	StateStale
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFetching:
		return "fetching"
	case StateValid:
		return "valid"
	case StateRefreshing:
		return "refreshing"
	case StateStale:
		return "stale"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Value is what a lookup returns. Bag is a private copy.
type Value struct {
	Bag       model.AttributeBag
	Sensitive map[string]bool
	Issues    []model.FieldIssue
	State     State
	FetchedAt time.Time
	ExpiresAt time.Time
	FromCache bool
}

func (v *Value) clone() *Value {
	out := *v
	out.Bag = v.Bag.Clone()
	out.Sensitive = make(map[string]bool, len(v.Sensitive))
	for k, s := range v.Sensitive {
		out.Sensitive[k] = s
	}
	out.Issues = append([]model.FieldIssue(nil), v.Issues...)
	return &out
}

func (v *Value) sensitiveOnly() bool {
	if len(v.Bag) == 0 {
		return false
	}
	for attr := range v.Bag {
		if !v.Sensitive[attr] {
			return false
		}
	}
	return true
}

func (v *Value) shared() *model.CachedBag {
	return &model.CachedBag{
		Bag:       v.Bag,
		Sensitive: v.Sensitive,
		Issues:    v.Issues,
		FetchedAt: v.FetchedAt,
		ExpiresAt: v.ExpiresAt,
	}
}

func valueFromShared(b *model.CachedBag) *Value {
	if b.Bag == nil {
		b.Bag = model.AttributeBag{}
	}
	return &Value{
		Bag:       b.Bag,
		Sensitive: b.Sensitive,
		Issues:    b.Issues,
		State:     StateValid,
		FetchedAt: b.FetchedAt,
		ExpiresAt: b.ExpiresAt,
	}
}

// entry is one (connection, subject) slot. Every field except size is
// guarded by mu.
type entry struct {
	connectionID string
	subject      string

	mu         sync.Mutex
	val        *Value
	state      State
	staleSince time.Time
	terminal   bool

	size atomic.Int64
}

func (e *entry) fill(v *Value) {
	e.val = v
	e.state = StateValid
	e.staleSince = time.Time{}
	e.terminal = false
}

// snapshot must be called with mu held.
func (e *entry) snapshot() *Value {
	v := e.val.clone()
	v.State = e.state
	v.FromCache = true
	return v
}

const entryOverhead = 128

func approxSize(key string, v *Value) int64 {
	b, err := json.Marshal(v.Bag)
	if err != nil {
		return int64(len(key) + entryOverhead + 256)
	}
	return int64(len(key) + len(b) + entryOverhead)
}

func cacheKey(connectionID, subject string) string {
	return connectionID + "\x00" + subject
}
