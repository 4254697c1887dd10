// model/cache.go
package model

import "time"

// FieldIssue describes an optional attribute dropped while mapping a record.
type FieldIssue struct {
	RuleID    string `json:"rule_id"`
	Attribute string `json:"attribute"`
	Reason    string `json:"reason"`
}

// CachedBag is the mapped result of one fetch as it is shared between
// engine replicas.
type CachedBag struct {
	Bag       AttributeBag    `json:"bag"`
	Sensitive map[string]bool `json:"sensitive,omitempty"`
	Issues    []FieldIssue    `json:"issues,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type CacheStats struct {
	Entries        int     `json:"entries"`
	Bytes          int64   `json:"bytes"`
	Hits           uint64  `json:"hits"`
	Misses         uint64  `json:"misses"`
	StaleServed    uint64  `json:"stale_served"`
	UpstreamFetch  uint64  `json:"upstream_fetches"`
	Evictions      uint64  `json:"evictions"`
	RefreshJobs    int     `json:"refresh_jobs"`
	HitRatio       float64 `json:"hit_ratio"`
	SuspendedConns int     `json:"suspended_connections"`
}
